package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/dispatch"
	"github.com/insightbot/subgate/pkg/ratelimit"
)

func newLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.NewLimiter(1000, 1000)
	require.NoError(t, err)
	return l
}

func TestDispatcher_Validation(t *testing.T) {
	t.Parallel()

	l := newLimiter(t)

	_, err := dispatch.New(nil, l)
	assert.ErrorIs(t, err, dispatch.ErrSendFuncRequired)

	send := func(context.Context, int64, string) error { return nil }
	_, err = dispatch.New(send, nil)
	assert.ErrorIs(t, err, dispatch.ErrLimiterRequired)
}

func TestDispatcher_SendSuccess(t *testing.T) {
	t.Parallel()

	var got []int64
	var mu sync.Mutex
	send := func(_ context.Context, id int64, msg string) error {
		mu.Lock()
		got = append(got, id)
		mu.Unlock()
		return nil
	}

	d, err := dispatch.New(send, newLimiter(t))
	require.NoError(t, err)

	require.NoError(t, d.Send(context.Background(), 42, "hello"))
	assert.Equal(t, []int64{42}, got)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	send := func(context.Context, int64, string) error {
		if calls.Add(1) < 3 {
			return errors.New("flaky")
		}
		return nil
	}

	d, err := dispatch.New(send, newLimiter(t),
		dispatch.WithMaxRetries(3),
		dispatch.WithBackoff(dispatch.FixedBackoff{Interval: time.Millisecond}))
	require.NoError(t, err)

	require.NoError(t, d.Send(context.Background(), 1, "m"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	upstream := errors.New("down")
	var calls atomic.Int32
	send := func(context.Context, int64, string) error {
		calls.Add(1)
		return upstream
	}

	d, err := dispatch.New(send, newLimiter(t),
		dispatch.WithMaxRetries(2),
		dispatch.WithBackoff(dispatch.FixedBackoff{Interval: time.Millisecond}))
	require.NoError(t, err)

	err = d.Send(context.Background(), 1, "m")
	require.ErrorIs(t, err, dispatch.ErrDeliveryFailed)
	require.ErrorIs(t, err, upstream)
	assert.Equal(t, int32(3), calls.Load()) // initial + 2 retries
}

func TestDispatcher_BroadcastIndependentResults(t *testing.T) {
	t.Parallel()

	bad := errors.New("blocked")
	send := func(_ context.Context, id int64, _ string) error {
		if id == -2 {
			return bad
		}
		return nil
	}

	d, err := dispatch.New(send, newLimiter(t),
		dispatch.WithMaxRetries(1),
		dispatch.WithBackoff(dispatch.FixedBackoff{Interval: time.Millisecond}))
	require.NoError(t, err)

	results := d.Broadcast(context.Background(), []int64{-1, -2, -3}, "news")
	require.Len(t, results, 3)

	assert.NoError(t, results[-1])
	assert.NoError(t, results[-3])
	assert.ErrorIs(t, results[-2], dispatch.ErrDeliveryFailed)
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var current, peak atomic.Int32
	send := func(context.Context, int64, string) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return nil
	}

	d, err := dispatch.New(send, newLimiter(t), dispatch.WithMaxConcurrent(2))
	require.NoError(t, err)

	targets := make([]int64, 10)
	for i := range targets {
		targets[i] = int64(i + 1)
	}

	results := d.Broadcast(context.Background(), targets, "m")
	for id, err := range results {
		assert.NoError(t, err, "target %d", id)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcher_ContextCancellation(t *testing.T) {
	t.Parallel()

	send := func(context.Context, int64, string) error {
		return errors.New("always fails")
	}

	d, err := dispatch.New(send, newLimiter(t),
		dispatch.WithMaxRetries(10),
		dispatch.WithBackoff(dispatch.FixedBackoff{Interval: time.Hour}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = d.Send(ctx, 1, "m")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
