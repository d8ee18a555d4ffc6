package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter is a token bucket governing the global outbound call rate.
// Tokens are fractional and refilled lazily on each acquisition; when the
// bucket is empty the caller is suspended until its reservation refills.
// Safe for concurrent use; one lock per limiter instance.
type Limiter struct {
	mu sync.Mutex

	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

// NewLimiter creates a limiter with the given capacity and refill rate in
// tokens per second. The bucket starts full.
func NewLimiter(capacity, refillRate float64) (*Limiter, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %v", ErrInvalidConfig, capacity)
	}
	if refillRate <= 0 {
		return nil, fmt.Errorf("%w: refill rate must be positive, got %v", ErrInvalidConfig, refillRate)
	}

	return &Limiter{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		lastRefill: time.Now(),
	}, nil
}

// Wait consumes one token, blocking until one is available or the context
// is cancelled. Reservations are made under the lock, so concurrent
// waiters are granted in acquisition order without overcommitting.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()

	now := time.Now()
	l.refill(now)

	if l.tokens >= 1 {
		l.tokens--
		l.mu.Unlock()
		return nil
	}

	// Reserve the token now and sleep until it would have refilled.
	// The deficit may grow below zero when several callers queue up,
	// which naturally spaces them refillRate apart.
	wait := time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
	l.tokens--
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// Return the reservation so cancelled waiters don't burn rate.
		l.mu.Lock()
		l.tokens++
		l.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Tokens reports the currently available tokens after a lazy refill.
// Intended for tests and monitoring.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(time.Now())
	return l.tokens
}

// refill must be called with the lock held.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens = min(l.capacity, l.tokens+elapsed*l.refillRate)
	l.lastRefill = now
}
