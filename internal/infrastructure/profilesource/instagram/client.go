// Package instagram fetches public account data from the Instagram web
// profile endpoint and maps it onto profile.Profile.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// SourceName identifies this source in logs and metrics.
const SourceName = "instagram"

const webProfilePath = "/api/v1/users/web_profile_info/"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Config holds the client settings.
type Config struct {
	BaseURL        string
	AppID          string
	SessionID      string
	UserAgent      string
	RequestTimeout time.Duration
	RateLimit      float64
	Burst          int
	MaxRetries     int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
}

// ConfigFromProfileSource maps the service profile_source section onto Config.
func ConfigFromProfileSource(c config.ProfileSourceConfig) Config {
	return Config{
		BaseURL:        c.BaseURL,
		AppID:          c.AppID,
		SessionID:      c.SessionID,
		UserAgent:      c.UserAgent,
		RequestTimeout: c.RequestTimeout,
		RateLimit:      c.RateLimit,
		Burst:          c.Burst,
		MaxRetries:     c.MaxRetries,
		RetryWaitMin:   c.RetryWaitMin,
		RetryWaitMax:   c.RetryWaitMax,
	}
}

// Client implements profile.Source. It is safe for concurrent use.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    common.IntelligenceMetrics
	logger     logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter replaces the limiter built from Config.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithMetrics records one fetch observation per Fetch call.
func WithMetrics(m common.IntelligenceMetrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	applyDefaults(&cfg)

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, errors.Newf(errors.ErrCodeValidation, "invalid profile source base url %q", cfg.BaseURL)
	}
	if cfg.RateLimit <= 0 || cfg.Burst < 1 {
		return nil, errors.New(errors.ErrCodeValidation, "profile source rate limit and burst must be positive")
	}

	c := &Client{
		cfg:        cfg,
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + webProfilePath,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		metrics:    common.NewNoopIntelligenceMetrics(),
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("profilesource.instagram")
	return c, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultProfileBaseURL
	}
	if cfg.AppID == "" {
		cfg.AppID = config.DefaultProfileAppID
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultProfileUserAgent
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = config.DefaultProfileRequestTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = config.DefaultProfileRateLimit
	}
	if cfg.Burst == 0 {
		cfg.Burst = config.DefaultProfileBurst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = config.DefaultProfileRetryWaitMin
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = cfg.RetryWaitMin
	}
}

// Name implements profile.Source.
func (c *Client) Name() string { return SourceName }

// Fetch implements profile.Source. Unknown accounts yield a ProfileNotFound
// error; 429, 5xx and transport failures are retried up to MaxRetries times.
func (c *Client) Fetch(ctx context.Context, username string) (*profile.Profile, error) {
	username = profile.NormalizeUsername(username)
	if username == "" {
		return nil, errors.InvalidInput("username is required")
	}

	start := time.Now()
	p, attempts, err := c.fetch(ctx, username)

	outcome := common.FetchOK
	switch {
	case errors.IsProfileNotFound(err):
		outcome = common.FetchNotFound
	case err != nil:
		outcome = common.FetchError
	}
	c.metrics.RecordProfileFetch(ctx, &common.FetchMetricParams{
		Source:     SourceName,
		Outcome:    outcome,
		DurationMs: common.MillisecondsSince(start),
		Attempts:   attempts,
	})

	if err != nil {
		c.logger.WithContext(ctx).Debug("profile fetch failed",
			logging.String("username", username),
			logging.Int("attempts", attempts),
			logging.Err(err))
		return nil, err
	}
	return p, nil
}

func (c *Client) fetch(ctx context.Context, username string) (*profile.Profile, int, error) {
	var (
		lastErr    error
		retryAfter time.Duration
	)
	attempts := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			if retryAfter > 0 {
				wait = retryAfter
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, attempts, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "profile fetch cancelled")
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempts, errors.Wrap(err, errors.ErrCodeTimeout, "profile fetch cancelled")
		}

		attempts++
		p, retry, wait, err := c.attempt(ctx, username)
		if err == nil {
			return p, attempts, nil
		}
		if !retry {
			return nil, attempts, err
		}
		lastErr, retryAfter = err, wait
		c.logger.Debug("retrying profile fetch",
			logging.String("username", username),
			logging.Int("attempt", attempts),
			logging.Err(err))
	}
	return nil, attempts, lastErr
}

type webProfileResponse struct {
	Data struct {
		User *webUser `json:"user"`
	} `json:"data"`
	Status string `json:"status"`
}

type edgeCount struct {
	Count int64 `json:"count"`
}

type webUser struct {
	Username          string    `json:"username"`
	FullName          string    `json:"full_name"`
	Biography         string    `json:"biography"`
	ProfilePicURL     string    `json:"profile_pic_url"`
	ExternalURL       string    `json:"external_url"`
	IsPrivate         bool      `json:"is_private"`
	IsVerified        bool      `json:"is_verified"`
	IsBusinessAccount bool      `json:"is_business_account"`
	Media             edgeCount `json:"edge_owner_to_timeline_media"`
	FollowedBy        edgeCount `json:"edge_followed_by"`
	Follow            edgeCount `json:"edge_follow"`
}

// attempt performs one request. retry reports whether the failure is
// transient; wait carries a server-provided Retry-After delay.
func (c *Client) attempt(ctx context.Context, username string) (p *profile.Profile, retry bool, wait time.Duration, err error) {
	reqURL := c.endpoint + "?username=" + url.QueryEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to build profile request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-IG-App-ID", c.cfg.AppID)
	if c.cfg.SessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.cfg.SessionID})
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, 0, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "profile fetch cancelled")
		}
		return nil, true, 0, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "profile source request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, 0, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "failed to read profile response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, 0, errors.ProfileNotFound(username)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, parseRetryAfter(resp.Header.Get("Retry-After"), c.cfg.RetryWaitMax),
			errors.New(errors.ErrCodeDataSourceRateLimited, "profile source rate limited the request")
	case resp.StatusCode >= 500:
		return nil, true, parseRetryAfter(resp.Header.Get("Retry-After"), c.cfg.RetryWaitMax),
			errors.Newf(errors.ErrCodeDataSourceUnavailable, "profile source returned HTTP %d", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, 0, errors.Newf(errors.ErrCodeDataSourceAuthFailed, "profile source refused the request with HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, false, 0, errors.Newf(errors.ErrCodeExternalService, "profile source returned HTTP %d", resp.StatusCode)
	}

	var payload webProfileResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, 0, errors.Wrap(err, errors.ErrCodeDataSourceParseError, "failed to decode profile response")
	}
	if payload.Data.User == nil {
		return nil, false, 0, errors.ProfileNotFound(username)
	}
	return payload.Data.User.toProfile(), false, 0, nil
}

func (u *webUser) toProfile() *profile.Profile {
	p := profile.New(u.Username, u.FullName, u.Biography, u.ProfilePicURL, u.ExternalURL,
		u.IsPrivate, u.Media.Count, u.FollowedBy.Count, u.Follow.Count)
	p.IsVerified = u.IsVerified
	p.IsBusinessAccount = u.IsBusinessAccount
	return p
}

// backoff returns the exponential delay for attempt with up to 25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.RetryWaitMin * time.Duration(1<<uint(attempt-1))
	if d > c.cfg.RetryWaitMax || d <= 0 {
		d = c.cfg.RetryWaitMax
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return d
}

// parseRetryAfter accepts delta-seconds or an HTTP date and caps the result.
func parseRetryAfter(v string, max time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}

// String describes the client for startup logs.
func (c *Client) String() string {
	return fmt.Sprintf("instagram(%s, %.2f rps, burst %d, retries %d)",
		c.cfg.BaseURL, c.cfg.RateLimit, c.cfg.Burst, c.cfg.MaxRetries)
}
