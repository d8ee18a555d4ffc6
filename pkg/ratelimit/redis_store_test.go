package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/ratelimit"
)

func newRedisStore(t *testing.T) *ratelimit.RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := ratelimit.NewRedisStore(client)
	require.NoError(t, err)
	return store
}

func TestRedisStore_ConsumeTokens(t *testing.T) {
	t.Parallel()

	store := newRedisStore(t)
	ctx := context.Background()

	config := ratelimit.Config{
		Capacity:       3,
		RefillRate:     1,
		RefillInterval: time.Minute,
	}

	remaining, _, err := store.ConsumeTokens(ctx, "user:1", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	remaining, _, err = store.ConsumeTokens(ctx, "user:1", 2, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	remaining, _, err = store.ConsumeTokens(ctx, "user:1", 1, config)
	require.NoError(t, err)
	assert.Equal(t, -1, remaining)
}

func TestRedisStore_RefillAfterInterval(t *testing.T) {
	t.Parallel()

	store := newRedisStore(t)
	ctx := context.Background()

	// Refill math uses the wall-clock time passed into the script, so a
	// real elapsed interval is needed rather than miniredis FastForward.
	config := ratelimit.Config{Capacity: 2, RefillRate: 1, RefillInterval: 20 * time.Millisecond}

	_, _, err := store.ConsumeTokens(ctx, "k", 2, config)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	remaining, _, err := store.ConsumeTokens(ctx, "k", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestRedisStore_Reset(t *testing.T) {
	t.Parallel()

	store := newRedisStore(t)
	ctx := context.Background()

	config := ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute}

	_, _, err := store.ConsumeTokens(ctx, "k", 1, config)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "k"))

	remaining, _, err := store.ConsumeTokens(ctx, "k", 1, config)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestNewRedisStore_RequiresClient(t *testing.T) {
	t.Parallel()

	_, err := ratelimit.NewRedisStore(nil)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidConfig)
}
