// Package app builds the shared runtime of the fpi binaries from configuration:
// logger, metrics, the classifier, the profile source and the optional Redis,
// MinIO and Kafka clients.
package app

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/turtacn/FakeProfile-Intelligence/internal/application/detection"
	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/profilesource"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/profilesource/instagram"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	classifier "github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/profile_classifier"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/messaging"
)

// Options selects which optional components New builds.
type Options struct {
	// Component names the binary in logs and event envelopes.
	Component string
	// Metrics registers a Prometheus collector when metrics are enabled.
	Metrics bool
	// Producer creates a Kafka producer when messaging is enabled.
	Producer bool
	// PublishResults attaches a Kafka result publisher to the detection
	// service. Requires Producer.
	PublishResults bool
}

// Runtime holds the built components. Optional ones are nil when disabled.
type Runtime struct {
	Config *config.Config
	Logger logging.Logger

	Collector    prometheus.MetricsCollector
	Metrics      *prometheus.AppMetrics
	IntelMetrics common.IntelligenceMetrics

	Redis    *redis.Client
	MinIO    *minio.MinIOClient
	Producer *kafka.Producer

	Classifier *classifier.Engine
	Source     profile.Source
	Publisher  *messaging.ResultPublisher
	Service    detection.Service

	closers []func() error
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config) (logging.Logger, error) {
	return logging.NewLogger(cfg.Log)
}

// New builds the runtime. On error every component built so far is closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts Options) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rt = &Runtime{Config: cfg, Logger: logger, IntelMetrics: common.NewNoopIntelligenceMetrics()}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	if opts.Metrics && cfg.Metrics.Enabled {
		if err = rt.initMetrics(opts.Component); err != nil {
			return rt, err
		}
	}
	if err = rt.initClassifier(ctx); err != nil {
		return rt, err
	}
	if err = rt.initSource(); err != nil {
		return rt, err
	}
	if opts.Producer && cfg.Messaging.Enabled {
		if err = rt.initProducer(opts.Component); err != nil {
			return rt, err
		}
	}

	var svcOpts []detection.Option
	if opts.PublishResults && rt.Publisher != nil {
		svcOpts = append(svcOpts, detection.WithPublisher(rt.Publisher))
	}
	rt.Service, err = detection.NewService(rt.Source, rt.Classifier, logger, detection.Config{
		FetchTimeout: cfg.ProfileSource.FetchTimeout,
		ModelVersion: rt.Classifier.ModelVersion(),
	}, svcOpts...)
	if err != nil {
		return rt, err
	}

	logger.Info("Runtime initialized",
		logging.String("component", opts.Component),
		logging.String("model_version", rt.Classifier.ModelVersion()),
		logging.Float64("threshold", rt.Classifier.Threshold()),
		logging.Bool("cache", rt.Redis != nil),
		logging.Bool("messaging", rt.Producer != nil),
		logging.Bool("metrics", rt.Collector != nil))
	return rt, nil
}

func (r *Runtime) initMetrics(component string) error {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            r.Config.Metrics.Namespace,
		EnableGoMetrics:      true,
		EnableProcessMetrics: true,
		ConstLabels:          map[string]string{"component": component},
	}, r.Logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	intel, err := common.NewPrometheusIntelligenceMetrics(collector.Registerer())
	if err != nil {
		return fmt.Errorf("intelligence metrics: %w", err)
	}
	r.Collector = collector
	r.Metrics = prometheus.NewAppMetrics(collector)
	r.IntelMetrics = intel
	r.Metrics.BuildInfo.WithLabelValues(Version, GitCommit).Set(1)
	return nil
}

func (r *Runtime) initClassifier(ctx context.Context) error {
	cc := r.Config.Classifier
	var fetcher classifier.ObjectFetcher
	if cc.ArtifactSource == config.ArtifactSourceMinIO {
		client, err := minio.NewMinIOClient(minio.ConfigFromStorage(r.Config.Storage.MinIO, cc.Bucket), r.Logger)
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		r.MinIO = client
		r.closers = append(r.closers, client.Close)
		fetcher = client
	}

	arts, err := classifier.NewArtifactLoader(fetcher, r.IntelMetrics, r.Logger).Load(ctx, classifier.ArtifactSpec{
		Source:       cc.ArtifactSource,
		ScalerPath:   cc.ScalerPath,
		ModelPath:    cc.ModelPath,
		Bucket:       cc.Bucket,
		ScalerObject: cc.ScalerObject,
		ModelObject:  cc.ModelObject,
		ModelName:    cc.ModelName,
		Dimension:    cc.Dimension,
	})
	if err != nil {
		return err
	}
	engine, err := classifier.NewEngineFromArtifacts(arts, cc.Threshold, r.IntelMetrics, r.Logger)
	if err != nil {
		return err
	}
	r.Classifier = engine
	return nil
}

func (r *Runtime) initSource() error {
	ig, err := instagram.NewClient(instagram.ConfigFromProfileSource(r.Config.ProfileSource),
		instagram.WithMetrics(r.IntelMetrics),
		instagram.WithLogger(r.Logger))
	if err != nil {
		return fmt.Errorf("profile source: %w", err)
	}
	r.Source = ig

	if !r.Config.Cache.Enabled {
		return nil
	}
	client, err := redis.NewClient(redis.ConfigFromCache(r.Config.Cache), r.Logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	r.Redis = client
	r.closers = append(r.closers, client.Close)

	cache := redis.NewRedisCache(client, r.Logger,
		redis.WithPrefix(r.Config.Cache.KeyPrefix),
		redis.WithLoadTimeout(r.Config.ProfileSource.FetchTimeout))
	cached, err := profilesource.NewCachedSource(ig, cache, r.Config.Cache.TTL, r.IntelMetrics, r.Logger)
	if err != nil {
		return err
	}
	r.Source = cached
	return nil
}

func (r *Runtime) initProducer(component string) error {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: r.Config.Messaging.Brokers}, r.Logger)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	r.Producer = producer
	r.closers = append(r.closers, producer.Close)

	r.Publisher, err = messaging.NewResultPublisher(producer, r.Config.Messaging.ResultTopic, "fpi-"+component, r.Logger)
	return err
}

// HealthCheckers returns one checker per built dependency.
func (r *Runtime) HealthCheckers() []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{
		handlers.NewChecker("classifier", func(context.Context) error {
			if r.Classifier == nil {
				return fmt.Errorf("classifier not loaded")
			}
			return nil
		}),
	}
	if r.Redis != nil {
		checkers = append(checkers, handlers.NewChecker("redis", r.Redis.Ping))
	}
	if r.Producer != nil {
		checkers = append(checkers, handlers.NewChecker("kafka", r.Producer.HealthCheck))
	}
	if r.MinIO != nil {
		checkers = append(checkers, handlers.NewChecker("minio", r.MinIO.HealthCheck))
	}
	return checkers
}

// HealthObserver feeds readiness results into the health gauge, or returns
// nil without metrics.
func (r *Runtime) HealthObserver() func(component string, healthy bool) {
	if r.Metrics == nil {
		return nil
	}
	return func(component string, healthy bool) {
		prometheus.SetHealthStatus(r.Metrics, component, healthy)
	}
}

// Close releases clients in reverse construction order.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	_ = r.Logger.Sync()
	return stderrors.Join(errs...)
}
