package ratelimit

import (
	"context"
	"fmt"
)

// Keyed throttles requests per identifier (user ID, group ID) against a
// Store. Inbound command handling uses two independent instances with
// distinct configs for user and group scopes.
type Keyed struct {
	store  Store
	config Config
}

// NewKeyed creates a keyed rate limiter backed by the given store.
func NewKeyed(store Store, config Config) (*Keyed, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Keyed{store: store, config: config}, nil
}

// Allow consumes one token for the key.
func (k *Keyed) Allow(ctx context.Context, key string) (*Result, error) {
	return k.AllowN(ctx, key, 1)
}

// AllowN consumes n tokens for the key.
func (k *Keyed) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}

	remaining, resetAt, err := k.store.ConsumeTokens(ctx, key, n, k.config)
	if err != nil {
		return nil, err
	}

	return &Result{
		Limit:     k.config.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the state for the given key.
func (k *Keyed) Reset(ctx context.Context, key string) error {
	return k.store.Reset(ctx, key)
}
