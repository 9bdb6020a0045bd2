package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

const johnDoeBody = `{
  "data": {
    "user": {
      "username": "john_doe",
      "full_name": "John Doe",
      "biography": "",
      "profile_pic_url": "https://cdn.example.com/john.jpg",
      "external_url": null,
      "is_private": false,
      "is_verified": true,
      "is_business_account": false,
      "edge_owner_to_timeline_media": {"count": 10},
      "edge_followed_by": {"count": 500},
      "edge_follow": {"count": 300}
    }
  },
  "status": "ok"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:      srv.URL,
		AppID:        "test-app",
		SessionID:    "sess",
		RateLimit:    1000,
		Burst:        100,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
	opts = append([]Option{WithHTTPClient(srv.Client()), WithLogger(logging.NewNopLogger())}, opts...)
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return c, srv
}

func TestFetch_Success(t *testing.T) {
	var seen *http.Request
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(johnDoeBody))
	})

	p, err := c.Fetch(context.Background(), "@john_doe ")
	require.NoError(t, err)

	assert.Equal(t, "john_doe", p.Username)
	assert.Equal(t, "John Doe", p.FullName)
	assert.True(t, p.HasProfilePicture)
	assert.False(t, p.HasExternalURL)
	assert.False(t, p.IsPrivate)
	assert.True(t, p.IsVerified)
	assert.Equal(t, int64(10), p.PostCount)
	assert.Equal(t, int64(500), p.FollowerCount)
	assert.Equal(t, int64(300), p.FolloweeCount)

	require.NotNil(t, seen)
	assert.Equal(t, webProfilePath, seen.URL.Path)
	assert.Equal(t, "john_doe", seen.URL.Query().Get("username"))
	assert.Equal(t, "test-app", seen.Header.Get("X-IG-App-ID"))
	cookie, err := seen.Cookie("sessionid")
	require.NoError(t, err)
	assert.Equal(t, "sess", cookie.Value)
}

func TestFetch_NotFoundStatus(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Fetch(context.Background(), "ghost")
	assert.True(t, errors.IsProfileNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_NullUserIsNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"user":null},"status":"ok"}`))
	})

	_, err := c.Fetch(context.Background(), "ghost")
	assert.True(t, errors.IsProfileNotFound(err))
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(johnDoeBody))
		}
	})

	p, err := c.Fetch(context.Background(), "john_doe")
	require.NoError(t, err)
	assert.Equal(t, "john_doe", p.Username)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_RetriesExhausted(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Fetch(context.Background(), "john_doe")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDataSourceUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_AuthFailureNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Fetch(context.Background(), "john_doe")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDataSourceAuthFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_MalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})

	_, err := c.Fetch(context.Background(), "john_doe")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDataSourceParseError))
}

func TestFetch_BlankUsername(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.Fetch(context.Background(), "  @ ")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestFetch_ContextDeadline(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "john_doe")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestFetch_LimiterHonoursContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("limiter should block the request")
	}, WithLimiter(limiter))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "john_doe")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestFetch_RecordsMetrics(t *testing.T) {
	metrics := common.NewInMemoryIntelligenceMetrics()
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(johnDoeBody))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, WithMetrics(metrics))

	_, err := c.Fetch(context.Background(), "john_doe")
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "ghost")
	require.Error(t, err)

	fetches := metrics.GetRecordedFetches()
	require.Len(t, fetches, 2)
	assert.Equal(t, common.FetchOK, fetches[0].Outcome)
	assert.Equal(t, SourceName, fetches[0].Source)
	assert.Equal(t, 1, fetches[0].Attempts)
	assert.Equal(t, common.FetchNotFound, fetches[1].Outcome)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.com"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestConfigFromProfileSource(t *testing.T) {
	src := config.NewDefaultConfig().ProfileSource
	cfg := ConfigFromProfileSource(src)
	assert.Equal(t, src.BaseURL, cfg.BaseURL)
	assert.Equal(t, src.RateLimit, cfg.RateLimit)
	assert.Equal(t, src.MaxRetries, cfg.MaxRetries)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3", time.Minute))
	assert.Equal(t, 10*time.Second, parseRetryAfter("120", 10*time.Second))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", time.Minute))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", time.Minute))
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past, time.Minute))
}

func TestBackoff_Capped(t *testing.T) {
	c := &Client{cfg: Config{RetryWaitMin: 10 * time.Millisecond, RetryWaitMax: 40 * time.Millisecond}}
	for attempt := 1; attempt <= 6; attempt++ {
		d := c.backoff(attempt)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
}
