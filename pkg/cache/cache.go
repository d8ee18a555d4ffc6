package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
	hits      uint64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size        int
	Capacity    int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// Cache is a thread-safe TTL cache with hit-count based eviction.
// When the cache reaches its capacity, the entry with the fewest hits
// is evicted; ties go to the oldest entry. Expired entries are dropped
// lazily on access and by a background sweeper.
type Cache[K comparable, V any] struct {
	capacity   int
	defaultTTL time.Duration
	items      map[K]*entry[V]
	mu         sync.Mutex
	stopSweep  chan struct{}
	sweepOnce  sync.Once

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	sweepInterval time.Duration
}

// WithSweepInterval sets how often the background sweeper scans for
// expired entries. Default 1 minute.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// New creates a cache with the given capacity and default TTL.
// The capacity must be positive, otherwise it panics. A background
// sweeper is started; call Close to stop it.
func New[K comparable, V any](capacity int, defaultTTL time.Duration, opts ...Option) *Cache[K, V] {
	if capacity <= 0 {
		panic("cache capacity must be positive")
	}

	o := options{sweepInterval: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[K, V]{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[K]*entry[V], capacity),
		stopSweep:  make(chan struct{}),
	}
	go c.sweepLoop(o.sweepInterval)

	return c
}

// Get retrieves a value and bumps its hit counter.
// Returns the zero value and false on a miss or an expired entry.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.items, key)
		c.expirations++
		c.misses++
		var zero V
		return zero, false
	}

	e.hits++
	c.hits++
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL, evicting the
// least-hit entry first when the cache is full.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = now.Add(ttl)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictLeastHit()
	}

	c.items[key] = &entry[V]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

// Delete removes an entry. Returns true if it existed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		delete(c.items, key)
		return true
	}
	return false
}

// Len returns the number of live entries, including any not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries without touching the counters.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*entry[V], c.capacity)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:        len(c.items),
		Capacity:    c.capacity,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache[K, V]) Close() {
	c.sweepOnce.Do(func() { close(c.stopSweep) })
}

// Must be called with lock held.
func (c *Cache[K, V]) evictLeastHit() {
	var victim K
	var victimEntry *entry[V]

	for k, e := range c.items {
		if victimEntry == nil ||
			e.hits < victimEntry.hits ||
			(e.hits == victimEntry.hits && e.createdAt.Before(victimEntry.createdAt)) {
			victim = k
			victimEntry = e
		}
	}
	if victimEntry != nil {
		delete(c.items, victim)
		c.evictions++
	}
}

func (c *Cache[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache[K, V]) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, k)
			c.expirations++
		}
	}
}
