package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/config"
	"github.com/insightbot/subgate/pkg/redis"
)

func TestConnect(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)

	client, err := redis.Connect(context.Background(), config.RedisConfig{
		URL:            "redis://" + srv.Addr(),
		RetryAttempts:  1,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	probe := redis.Healthcheck(client)
	assert.NoError(t, probe(context.Background()))
}

func TestConnect_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), config.RedisConfig{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionString)
}

func TestConnect_BadURL(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), config.RedisConfig{URL: "::bogus::"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseConnString)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), config.RedisConfig{
		URL:            "redis://127.0.0.1:1",
		RetryAttempts:  2,
		RetryInterval:  5 * time.Millisecond,
		ConnectTimeout: 500 * time.Millisecond,
	})
	assert.ErrorIs(t, err, redis.ErrNotReady)
}

func TestHealthcheck_Failure(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client, err := redis.Connect(context.Background(), config.RedisConfig{
		URL:            "redis://" + srv.Addr(),
		RetryAttempts:  1,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	srv.Close()

	probe := redis.Healthcheck(client)
	assert.ErrorIs(t, probe(context.Background()), redis.ErrHealthcheckFailed)
}
