// Package config provides configuration loading, defaults, and validation for
// the FakeProfile-Intelligence service.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
)

// Config is the root configuration object. It is built once at startup and
// passed by pointer into constructors; nothing mutates it afterwards.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           logging.LogConfig   `mapstructure:"log"`
	Classifier    ClassifierConfig    `mapstructure:"classifier"`
	ProfileSource ProfileSourceConfig `mapstructure:"profile_source"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Messaging     MessagingConfig     `mapstructure:"messaging"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	CORS          CORSConfig          `mapstructure:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Artifact sources.
const (
	ArtifactSourceFile  = "file"
	ArtifactSourceMinIO = "minio"
)

// ClassifierConfig locates the scaler and network artifacts and fixes the
// decision threshold.
type ClassifierConfig struct {
	// Threshold is the probability at or above which a profile is reported fake.
	Threshold float64 `mapstructure:"threshold"`
	// Dimension is the feature-vector width the artifacts must accept.
	Dimension int `mapstructure:"dimension"`
	// ArtifactSource is "file" or "minio".
	ArtifactSource string `mapstructure:"artifact_source"`
	ScalerPath     string `mapstructure:"scaler_path"`
	ModelPath      string `mapstructure:"model_path"`
	Bucket         string `mapstructure:"bucket"`
	ScalerObject   string `mapstructure:"scaler_object"`
	ModelObject    string `mapstructure:"model_object"`
	ModelName      string `mapstructure:"model_name"`
}

// ProfileSourceConfig configures the remote profile lookup client.
type ProfileSourceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	AppID     string `mapstructure:"app_id"`
	SessionID string `mapstructure:"session_id"`
	UserAgent string `mapstructure:"user_agent"`
	// FetchTimeout bounds one whole lookup, retries included.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryWaitMin   time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax   time.Duration `mapstructure:"retry_wait_max"`
}

// CacheConfig configures the optional Redis profile cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	PoolSize  int           `mapstructure:"pool_size"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// MessagingConfig configures the Kafka request/result topics.
type MessagingConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Brokers           []string      `mapstructure:"brokers"`
	GroupID           string        `mapstructure:"group_id"`
	RequestTopic      string        `mapstructure:"request_topic"`
	ResultTopic       string        `mapstructure:"result_topic"`
	DeadLetterTopic   string        `mapstructure:"dead_letter_topic"`
	Workers           int           `mapstructure:"workers"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	HandlerTimeout    time.Duration `mapstructure:"handler_timeout"`
	HealthPort        int           `mapstructure:"health_port"`
	// EnsureTopics creates missing topics when the worker starts.
	EnsureTopics      bool          `mapstructure:"ensure_topics"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
}

// StorageConfig groups object storage settings.
type StorageConfig struct {
	MinIO MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig configures the MinIO artifact store.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// CORSConfig configures cross-origin access to the HTTP API.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RateLimitConfig configures inbound per-client rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Validate checks semantic constraints after defaults have been applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if err := c.Classifier.validate(); err != nil {
		return err
	}

	if _, err := parseHTTPURL(c.ProfileSource.BaseURL); err != nil {
		return fmt.Errorf("config: profile_source.base_url: %w", err)
	}
	if c.ProfileSource.RateLimit <= 0 {
		return fmt.Errorf("config: profile_source.rate_limit must be > 0, got %v", c.ProfileSource.RateLimit)
	}
	if c.ProfileSource.Burst < 1 {
		return fmt.Errorf("config: profile_source.burst must be ≥ 1, got %d", c.ProfileSource.Burst)
	}
	if c.ProfileSource.MaxRetries < 0 {
		return fmt.Errorf("config: profile_source.max_retries must be ≥ 0, got %d", c.ProfileSource.MaxRetries)
	}

	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			return fmt.Errorf("config: cache.addr is required when cache is enabled")
		}
		if c.Cache.DB < 0 {
			return fmt.Errorf("config: cache.db must be ≥ 0, got %d", c.Cache.DB)
		}
	}

	if c.Messaging.Enabled {
		if len(c.Messaging.Brokers) == 0 {
			return fmt.Errorf("config: messaging.brokers must contain at least one broker address")
		}
		if c.Messaging.GroupID == "" {
			return fmt.Errorf("config: messaging.group_id is required")
		}
		if c.Messaging.Workers < 1 {
			return fmt.Errorf("config: messaging.workers must be ≥ 1, got %d", c.Messaging.Workers)
		}
	}

	if c.Classifier.ArtifactSource == ArtifactSourceMinIO && c.Storage.MinIO.Endpoint == "" {
		return fmt.Errorf("config: storage.minio.endpoint is required when classifier.artifact_source is minio")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("config: metrics.path %q must start with /", c.Metrics.Path)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("config: ratelimit requires requests_per_second > 0 and burst ≥ 1")
	}
	return nil
}

func (c ClassifierConfig) validate() error {
	if !(c.Threshold > 0 && c.Threshold < 1) {
		return fmt.Errorf("config: classifier.threshold %v must be in (0, 1)", c.Threshold)
	}
	if c.Dimension != DefaultFeatureDimension {
		return fmt.Errorf("config: classifier.dimension %d is unsupported; the extractor produces %d features",
			c.Dimension, DefaultFeatureDimension)
	}
	switch c.ArtifactSource {
	case ArtifactSourceFile:
		if c.ScalerPath == "" || c.ModelPath == "" {
			return fmt.Errorf("config: classifier.scaler_path and classifier.model_path are required")
		}
	case ArtifactSourceMinIO:
		if c.Bucket == "" || c.ScalerObject == "" || c.ModelObject == "" {
			return fmt.Errorf("config: classifier.bucket, scaler_object and model_object are required for minio")
		}
	default:
		return fmt.Errorf("config: classifier.artifact_source %q is invalid; expected file|minio", c.ArtifactSource)
	}
	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("host is required, got %q", raw)
	}
	return u, nil
}
