package ratelimit

import (
	"context"
	"time"
)

// Config defines a keyed token bucket configuration. Inbound command
// throttling uses distinct configs per scope (user vs group identifiers).
type Config struct {
	Capacity       int           // maximum tokens the bucket can hold (burst limit)
	RefillRate     int           // tokens added per refill interval
	RefillInterval time.Duration // how often tokens are added
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return ErrInvalidConfig
	}
	if c.RefillRate <= 0 {
		return ErrInvalidConfig
	}
	if c.RefillInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Store defines the interface for keyed rate limit storage backends.
type Store interface {
	// ConsumeTokens attempts to consume the specified number of tokens for
	// the key. Returns the remaining tokens and the next refill time.
	// A negative remaining count means the request should be denied.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}

// Result contains the outcome of a keyed rate limit check.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens remaining after the check
	ResetAt   time.Time // when tokens will next be refilled
}

// Allowed reports whether the request was admitted.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before the next request.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return time.Until(r.ResetAt)
}
