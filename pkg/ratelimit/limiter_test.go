package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/ratelimit"
)

func TestNewLimiter_Validation(t *testing.T) {
	t.Parallel()

	_, err := ratelimit.NewLimiter(0, 1)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidConfig)

	_, err = ratelimit.NewLimiter(10, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidConfig)

	_, err = ratelimit.NewLimiter(10, 1)
	assert.NoError(t, err)
}

func TestLimiter_BurstThenBlock(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.NewLimiter(10, 1)
	require.NoError(t, err)
	ctx := context.Background()

	// Full bucket admits the burst without delay.
	start := time.Now()
	for n := 0; n < 10; n++ {
		require.NoError(t, l.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// The 11th acquisition blocks for roughly one refill period.
	start = time.Now()
	require.NoError(t, l.Wait(ctx))
	elapsed := time.Since(start)
	assert.InDelta(t, time.Second, elapsed, float64(200*time.Millisecond))
}

func TestLimiter_RefillOverTime(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.NewLimiter(2, 10)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))

	// 10 tokens/s refills one token in ~100ms.
	time.Sleep(150 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_ContextCancellation(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.NewLimiter(1, 0.1) // 10s per token
	require.NoError(t, err)

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = l.Wait(ctx)
	require.ErrorIs(t, err, ratelimit.ErrContextCancelled)

	// The reservation is returned so the deficit doesn't accumulate.
	assert.GreaterOrEqual(t, l.Tokens(), float64(0)-0.01)
}

func TestLimiter_TokensNeverExceedCapacity(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.NewLimiter(3, 1000)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, l.Tokens(), float64(3))
}
