package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/insightbot/subgate/pkg/ratelimit"
)

// SendFunc delivers one message to one target.
type SendFunc func(ctx context.Context, targetID int64, message string) error

// Dispatcher fans out messages to many targets with bounded parallelism.
// Each send passes through a fixed-size admission semaphore and the
// shared rate limiter, and is retried with backoff on failure. A target
// that exhausts its retries is recorded as failed without affecting
// sends to the other targets.
type Dispatcher struct {
	send       SendFunc
	limiter    *ratelimit.Limiter
	backoff    BackoffStrategy
	maxRetries int
	sem        chan struct{}
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxConcurrent bounds the number of in-flight sends. Default 5.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = make(chan struct{}, n)
		}
	}
}

// WithMaxRetries sets the retry ceiling per target. Default 3.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

// WithBackoff sets the retry backoff strategy.
func WithBackoff(b BackoffStrategy) Option {
	return func(d *Dispatcher) {
		if b != nil {
			d.backoff = b
		}
	}
}

// WithLogger sets the logger. Default discards nothing but logs at the
// default slog level.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a dispatcher around a send primitive and a shared limiter.
func New(send SendFunc, limiter *ratelimit.Limiter, opts ...Option) (*Dispatcher, error) {
	if send == nil {
		return nil, ErrSendFuncRequired
	}
	if limiter == nil {
		return nil, ErrLimiterRequired
	}

	d := &Dispatcher{
		send:       send,
		limiter:    limiter,
		backoff:    DefaultBackoffStrategy(),
		maxRetries: 3,
		sem:        make(chan struct{}, 5),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Send delivers a message to one target, holding an admission slot for
// the whole retry sequence so a flapping target cannot monopolize the
// rate limiter.
func (d *Dispatcher) Send(ctx context.Context, targetID int64, message string) error {
	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			delay := d.backoff.NextInterval(attempt)
			d.logger.Warn("send failed, retrying",
				slog.Int64("target_id", targetID),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := d.send(ctx, targetID, message); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("%w: target %d after %d attempts: %w",
		ErrDeliveryFailed, targetID, d.maxRetries+1, lastErr)
}

// Broadcast delivers a message to every target concurrently and returns
// an independent result per target; a nil map value means success.
// Fan-out is never all-or-nothing.
func (d *Dispatcher) Broadcast(ctx context.Context, targetIDs []int64, message string) map[int64]error {
	results := make(map[int64]error, len(targetIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range targetIDs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			err := d.Send(ctx, id, message)

			mu.Lock()
			results[id] = err
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return results
}
