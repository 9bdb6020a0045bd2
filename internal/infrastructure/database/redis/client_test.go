package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

func TestNewClient_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	cfg := &RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		PingTimeout: 500 * time.Millisecond,
	}

	client, err := NewClient(cfg, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestConfigFromCache(t *testing.T) {
	cfg := ConfigFromCache(config.CacheConfig{
		Addr:     "cache:6379",
		Password: "secret",
		DB:       2,
		PoolSize: 7,
	})
	assert.Equal(t, "cache:6379", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 7, cfg.PoolSize)
}

func TestClient_Operations(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "foo", "bar", time.Minute).Err())
	val, err := client.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	ttl, err := client.TTL(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	deleted, err := client.Del(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	exists, err := client.Exists(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestClient_Close(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	ctx := context.Background()
	assert.Equal(t, ErrClientClosed, client.Get(ctx, "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Set(ctx, "foo", "bar", 0).Err())
	assert.Equal(t, ErrClientClosed, client.Del(ctx, "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Ping(ctx))
}
