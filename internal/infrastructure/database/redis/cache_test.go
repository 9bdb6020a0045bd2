package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

type cachedProfile struct {
	Username  string `json:"username"`
	Followers int64  `json:"followers"`
}

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock

	client := &Client{
		rdb:    db,
		config: &RedisConfig{},
		logger: logging.NewNopLogger(),
	}
	s.cache = NewRedisCache(client, logging.NewNopLogger(), WithPrefix("test:"), WithTTLJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := cachedProfile{Username: "john_doe", Followers: 120}
	raw, _ := json.Marshal(val)
	s.mock.ExpectGet("test:john_doe").SetVal(string(raw))

	var dest cachedProfile
	err := s.cache.Get(context.Background(), "john_doe", &dest)

	s.NoError(err)
	s.Equal(val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:ghost").RedisNil()

	var dest cachedProfile
	err := s.cache.Get(context.Background(), "ghost", &dest)

	s.Equal(ErrCacheMiss, err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:john_doe").SetErr(stderrors.New("connection reset"))

	var dest cachedProfile
	err := s.cache.Get(context.Background(), "john_doe", &dest)

	s.Error(err)
	s.NotEqual(ErrCacheMiss, err)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptPayload() {
	s.mock.ExpectGet("test:john_doe").SetVal("{not json")

	var dest cachedProfile
	err := s.cache.Get(context.Background(), "john_doe", &dest)

	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet_UsesPrefixAndTTL() {
	val := cachedProfile{Username: "john_doe", Followers: 120}
	raw, _ := json.Marshal(val)
	s.mock.ExpectSet("test:john_doe", raw, time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "john_doe", val, time.Minute))
}

func (s *CacheTestSuite) TestDelete_Success() {
	s.mock.ExpectDel("test:a", "test:b").SetVal(2)

	s.NoError(s.cache.Delete(context.Background(), "a", "b"))
}

func (s *CacheTestSuite) TestDelete_NoKeys() {
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	val := cachedProfile{Username: "john_doe", Followers: 120}
	raw, _ := json.Marshal(val)
	s.mock.ExpectGet("test:john_doe").SetVal(string(raw))

	loader := func(ctx context.Context) (interface{}, error) {
		s.Fail("loader must not run on a hit")
		return nil, nil
	}

	var dest cachedProfile
	hit, err := s.cache.GetOrSet(context.Background(), "john_doe", &dest, time.Minute, loader)

	s.NoError(err)
	s.True(hit)
	s.Equal(val, dest)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func newMiniredisCache(t *testing.T, opts ...CacheOption) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, logging.NewNopLogger(), opts...), mr
}

func TestGetOrSet_MissPopulatesCache(t *testing.T) {
	cache, mr := newMiniredisCache(t, WithPrefix("p:"), WithTTLJitter(0))
	ctx := context.Background()

	var dest cachedProfile
	hit, err := cache.GetOrSet(ctx, "john_doe", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return &cachedProfile{Username: "john_doe", Followers: 120}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(120), dest.Followers)

	assert.True(t, mr.Exists("p:john_doe"))
	assert.Equal(t, time.Minute, mr.TTL("p:john_doe"))

	var again cachedProfile
	hit, err = cache.GetOrSet(ctx, "john_doe", &again, time.Minute, func(ctx context.Context) (interface{}, error) {
		t.Fatal("loader must not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, dest, again)
}

func TestGetOrSet_LoaderErrorNotCached(t *testing.T) {
	cache, mr := newMiniredisCache(t, WithPrefix("p:"))
	notFound := pkgerrors.ProfileNotFound("ghost")

	var dest cachedProfile
	hit, err := cache.GetOrSet(context.Background(), "ghost", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, notFound
	})

	assert.False(t, hit)
	assert.Same(t, notFound, err)
	assert.False(t, mr.Exists("p:ghost"))
}

func TestGetOrSet_NilValueIsMiss(t *testing.T) {
	cache, mr := newMiniredisCache(t, WithPrefix("p:"))

	var dest cachedProfile
	_, err := cache.GetOrSet(context.Background(), "empty", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})

	assert.Equal(t, ErrCacheMiss, err)
	assert.False(t, mr.Exists("p:empty"))
}

func TestGetOrSet_BackendDownFallsBackToLoader(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	mr.Close()

	var dest cachedProfile
	hit, err := cache.GetOrSet(context.Background(), "john_doe", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return cachedProfile{Username: "john_doe", Followers: 5}, nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(5), dest.Followers)
}

func TestGetOrSet_ConcurrentMissesShareLoader(t *testing.T) {
	cache, _ := newMiniredisCache(t)

	var calls int32
	release := make(chan struct{})
	loader := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return cachedProfile{Username: "john_doe", Followers: 1}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			var dest cachedProfile
			_, err := cache.GetOrSet(context.Background(), "john_doe", &dest, time.Minute, loader)
			assert.NoError(t, err)
			assert.Equal(t, "john_doe", dest.Username)
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestJitterTTL_WithinBounds(t *testing.T) {
	c := &redisCache{jitter: 0.1}
	for i := 0; i < 100; i++ {
		ttl := c.jitterTTL(10 * time.Minute)
		assert.GreaterOrEqual(t, ttl, 9*time.Minute)
		assert.LessOrEqual(t, ttl, 11*time.Minute)
	}
	assert.Equal(t, time.Duration(0), c.jitterTTL(0))
}
