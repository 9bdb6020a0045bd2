// Package profilesource holds decorators shared by every profile.Source
// implementation.
package profilesource

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// CacheName labels cache metrics emitted by CachedSource.
const CacheName = "profile"

// CachedSource stores fetched profiles in Redis. Only successful lookups are
// stored; errors, including not-found, always reach the caller uncached.
type CachedSource struct {
	upstream profile.Source
	cache    redis.Cache
	ttl      time.Duration
	metrics  common.IntelligenceMetrics
	logger   logging.Logger
}

// NewCachedSource wraps upstream. A nil metrics or logger falls back to no-op
// implementations.
func NewCachedSource(upstream profile.Source, cache redis.Cache, ttl time.Duration, metrics common.IntelligenceMetrics, logger logging.Logger) (*CachedSource, error) {
	if upstream == nil {
		return nil, errors.New(errors.ErrCodeValidation, "cached source requires an upstream source")
	}
	if cache == nil {
		return nil, errors.New(errors.ErrCodeValidation, "cached source requires a cache")
	}
	if metrics == nil {
		metrics = common.NewNoopIntelligenceMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedSource{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger.Named("profilesource.cache"),
	}, nil
}

// Name reports the upstream name so logs and metrics stay attributable.
func (s *CachedSource) Name() string { return s.upstream.Name() }

// Fetch implements profile.Source.
func (s *CachedSource) Fetch(ctx context.Context, username string) (*profile.Profile, error) {
	username = profile.NormalizeUsername(username)
	if username == "" {
		return s.upstream.Fetch(ctx, username)
	}

	var cached profile.Profile
	hit, err := s.cache.GetOrSet(ctx, s.key(username), &cached, s.ttl, func(ctx context.Context) (interface{}, error) {
		p, err := s.upstream.Fetch(ctx, username)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, errors.New(errors.ErrCodeExtractionFailed, "profile source returned no profile")
		}
		return p, nil
	})
	s.metrics.RecordCacheAccess(ctx, hit, CacheName)
	if err != nil {
		return nil, err
	}

	if hit {
		s.logger.WithContext(ctx).Debug("profile served from cache", logging.String("username", username))
	}
	return &cached, nil
}

// Invalidate drops any cached entry for username.
func (s *CachedSource) Invalidate(ctx context.Context, username string) error {
	return s.cache.Delete(ctx, s.key(profile.NormalizeUsername(username)))
}

// key is source-scoped and case-insensitive, since account handles are.
func (s *CachedSource) key(username string) string {
	return s.upstream.Name() + ":" + strings.ToLower(username)
}
