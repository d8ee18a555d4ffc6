package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/ratelimit"
)

func TestMemoryStore_ConsumeTokens(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	ctx := context.Background()

	config := ratelimit.Config{
		Capacity:       3,
		RefillRate:     1,
		RefillInterval: time.Minute,
	}

	// Fresh bucket starts at capacity.
	remaining, _, err := store.ConsumeTokens(ctx, "user:1", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	remaining, _, err = store.ConsumeTokens(ctx, "user:1", 2, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// Over budget goes negative, meaning deny.
	remaining, resetAt, err := store.ConsumeTokens(ctx, "user:1", 1, config)
	require.NoError(t, err)
	assert.Equal(t, -1, remaining)
	assert.True(t, resetAt.After(time.Now()))
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	ctx := context.Background()

	config := ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute}

	remaining, _, err := store.ConsumeTokens(ctx, "group:-100111", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	remaining, _, err = store.ConsumeTokens(ctx, "group:-100222", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestMemoryStore_Refill(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	ctx := context.Background()

	config := ratelimit.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: 50 * time.Millisecond,
	}

	_, _, err := store.ConsumeTokens(ctx, "k", 2, config)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	remaining, _, err := store.ConsumeTokens(ctx, "k", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestMemoryStore_Reset(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	ctx := context.Background()

	config := ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute}

	_, _, err := store.ConsumeTokens(ctx, "k", 1, config)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "k"))

	remaining, _, err := store.ConsumeTokens(ctx, "k", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestMemoryStore_CleanupDiscardsIdleBuckets(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(
		ratelimit.WithCleanupInterval(20*time.Millisecond),
		ratelimit.WithStaleAfter(30*time.Millisecond),
	)
	defer store.Close()
	ctx := context.Background()

	config := ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute}

	_, _, err := store.ConsumeTokens(ctx, "idle", 1, config)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestKeyed_Allow(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	limiter, err := ratelimit.NewKeyed(store, ratelimit.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Minute,
	})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 2, res.Limit)
	assert.Equal(t, 1, res.Remaining)

	_, err = limiter.Allow(ctx, "user:7")
	require.NoError(t, err)

	res, err = limiter.Allow(ctx, "user:7")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Greater(t, res.RetryAfter(), time.Duration(0))
}

func TestKeyed_Validation(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))

	_, err := ratelimit.NewKeyed(nil, ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
	assert.ErrorIs(t, err, ratelimit.ErrInvalidConfig)

	_, err = ratelimit.NewKeyed(store, ratelimit.Config{})
	assert.ErrorIs(t, err, ratelimit.ErrInvalidConfig)

	limiter, err := ratelimit.NewKeyed(store, ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
	require.NoError(t, err)

	_, err = limiter.AllowN(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidTokenCount)
}
