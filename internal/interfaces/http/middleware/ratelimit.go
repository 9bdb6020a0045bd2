package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Allow(key string) (bool, RateLimitInfo)
}

// RateLimitInfo describes the limiter state after a decision.
type RateLimitInfo struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// KeyFunc extracts the limiter key. Defaults to the client IP.
	KeyFunc   func(r *http.Request) string
	SkipPaths []string
	// IdleTimeout evicts limiters unused for this long.
	IdleTimeout time.Duration
	// OnLimited is called for every rejected request.
	OnLimited func(r *http.Request)
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		KeyFunc:           ClientIP,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		IdleTimeout:       10 * time.Minute,
	}
}

// RateLimitConfigFrom applies the rate_limit section on top of the defaults.
func RateLimitConfigFrom(cfg config.RateLimitConfig) RateLimitConfig {
	c := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond > 0 {
		c.RequestsPerSecond = cfg.RequestsPerSecond
	}
	if cfg.Burst > 0 {
		c.Burst = cfg.Burst
	}
	return c
}

// ClientIP returns the first X-Forwarded-For hop, or the host of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key.
type KeyedLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*keyedLimiter
	limit       rate.Limit
	burst       int
	idleTimeout time.Duration
	lastSweep   time.Time
	now         func() time.Time
}

// NewKeyedLimiter creates a limiter allowing rps sustained requests per key
// with bursts of up to burst.
func NewKeyedLimiter(rps float64, burst int, idleTimeout time.Duration) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		limiters:    make(map[string]*keyedLimiter),
		limit:       rate.Limit(rps),
		burst:       burst,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

func (l *KeyedLimiter) Allow(key string) (bool, RateLimitInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	info := RateLimitInfo{Limit: l.burst}
	if entry.limiter.AllowN(now, 1) {
		info.Remaining = int(math.Max(0, math.Floor(entry.limiter.TokensAt(now))))
		return true, info
	}

	r := entry.limiter.ReserveN(now, 1)
	if r.OK() {
		info.RetryAfter = r.DelayFrom(now)
	}
	r.CancelAt(now)
	return false, info
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *KeyedLimiter) sweep(now time.Time) {
	if l.idleTimeout <= 0 || now.Sub(l.lastSweep) < l.idleTimeout {
		return
	}
	l.lastSweep = now
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idleTimeout {
			delete(l.limiters, key)
		}
	}
}

// RateLimit rejects requests over the limit with 429 and a JSON error body.
func RateLimit(limiter RateLimiter, cfg RateLimitConfig, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			allowed, info := limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.OnLimited != nil {
				cfg.OnLimited(r)
			}
			retryAfter := int(math.Ceil(info.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.WithContext(r.Context()).Warn("Rate limit exceeded",
				logging.String("key", key),
				logging.String("path", r.URL.Path),
				logging.Int("retry_after_s", retryAfter))

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":      "rate limit exceeded",
				"code":       string(errors.CodeRateLimit),
				"request_id": logging.RequestIDFromContext(r.Context()),
			})
		})
	}
}
