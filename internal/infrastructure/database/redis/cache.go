package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeCacheError, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

// Loader produces the value for a key that is not cached. A non-nil error
// is returned to the caller and nothing is stored.
type Loader func(ctx context.Context) (interface{}, error)

// Cache is a JSON key/value cache with a shared key prefix.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// GetOrSet fills dest from the cache, or from loader on a miss. Concurrent
	// misses for the same key share one loader call. hit reports whether dest
	// came from the cache. Read and write failures degrade to the loader.
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) (hit bool, err error)
	Ping(ctx context.Context) error
}

type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (s *jsonSerializer) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (s *jsonSerializer) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

type redisCache struct {
	client       *Client
	logger       logging.Logger
	prefix       string
	defaultTTL   time.Duration
	jitter       float64
	serializer   Serializer
	loadTimeout  time.Duration
	singleflight singleflight.Group
}

type CacheOption func(*redisCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

func WithSerializer(s Serializer) CacheOption {
	return func(c *redisCache) { c.serializer = s }
}

// WithTTLJitter spreads expirations by ±fraction of the TTL. Zero disables it.
func WithTTLJitter(fraction float64) CacheOption {
	return func(c *redisCache) {
		if fraction >= 0 && fraction < 1 {
			c.jitter = fraction
		}
	}
}

// WithLoadTimeout bounds a shared loader call. The loader does not inherit
// any single caller's cancellation.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *redisCache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &redisCache{
		client:      client,
		logger:      log,
		prefix:      config.DefaultCacheKeyPrefix,
		defaultTTL:  config.DefaultCacheTTL,
		jitter:      0.1,
		serializer:  &jsonSerializer{},
		loadTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) fullKey(key string) string {
	return c.prefix + key
}

func (c *redisCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || c.jitter == 0 {
		return ttl
	}
	delta := float64(ttl) * c.jitter * (rand.Float64()*2 - 1)
	return ttl + time.Duration(delta)
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write to cache")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	return c.client.Del(ctx, fullKeys...).Err()
}

func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) (bool, error) {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return true, nil
	}
	if err != ErrCacheMiss {
		c.logger.Warn("Cache read failed, loading directly",
			logging.String("key", key), logging.Err(err))
	}

	// The shared load outlives a cancelled leader; each caller waits on its
	// own ctx.
	ch := c.singleflight.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		v, loadErr := loader(loadCtx)
		if loadErr != nil {
			return nil, loadErr
		}
		if v == nil {
			return nil, nil
		}
		if setErr := c.Set(loadCtx, key, v, ttl); setErr != nil {
			c.logger.Warn("Failed to populate cache", logging.String("key", key), logging.Err(setErr))
		}
		return v, nil
	})

	var val interface{}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		val = res.Val
	}
	if val == nil {
		return false, ErrCacheMiss
	}

	// Shared singleflight results are copied into each caller's dest.
	data, err := c.serializer.Marshal(val)
	if err != nil {
		return false, ErrSerializationFailed.WithCause(err)
	}
	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return false, ErrSerializationFailed.WithCause(err)
	}
	return false, nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
