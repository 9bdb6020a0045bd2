package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all service settings.
const envPrefix = "FPI"

// newViper builds a Viper instance with the standard settings: YAML file type,
// FPI_ env prefix, automatic env binding, and a "." → "_" key replacer so that
// "profile_source.base_url" resolves to FPI_PROFILE_SOURCE_BASE_URL.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// registerDefaults makes every key known to viper. AutomaticEnv only consults
// the environment for keys viper already knows about, so without this an
// env-only deployment would silently ignore most FPI_* variables.
func registerDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("classifier.threshold", d.Classifier.Threshold)
	v.SetDefault("classifier.dimension", d.Classifier.Dimension)
	v.SetDefault("classifier.artifact_source", d.Classifier.ArtifactSource)
	v.SetDefault("classifier.scaler_path", d.Classifier.ScalerPath)
	v.SetDefault("classifier.model_path", d.Classifier.ModelPath)
	v.SetDefault("classifier.bucket", d.Classifier.Bucket)
	v.SetDefault("classifier.scaler_object", d.Classifier.ScalerObject)
	v.SetDefault("classifier.model_object", d.Classifier.ModelObject)
	v.SetDefault("classifier.model_name", d.Classifier.ModelName)

	v.SetDefault("profile_source.base_url", d.ProfileSource.BaseURL)
	v.SetDefault("profile_source.app_id", d.ProfileSource.AppID)
	v.SetDefault("profile_source.session_id", "")
	v.SetDefault("profile_source.user_agent", d.ProfileSource.UserAgent)
	v.SetDefault("profile_source.fetch_timeout", d.ProfileSource.FetchTimeout)
	v.SetDefault("profile_source.request_timeout", d.ProfileSource.RequestTimeout)
	v.SetDefault("profile_source.rate_limit", d.ProfileSource.RateLimit)
	v.SetDefault("profile_source.burst", d.ProfileSource.Burst)
	v.SetDefault("profile_source.max_retries", d.ProfileSource.MaxRetries)
	v.SetDefault("profile_source.retry_wait_min", d.ProfileSource.RetryWaitMin)
	v.SetDefault("profile_source.retry_wait_max", d.ProfileSource.RetryWaitMax)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", d.Cache.Addr)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.pool_size", d.Cache.PoolSize)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.key_prefix", d.Cache.KeyPrefix)

	v.SetDefault("messaging.enabled", false)
	v.SetDefault("messaging.brokers", d.Messaging.Brokers)
	v.SetDefault("messaging.group_id", d.Messaging.GroupID)
	v.SetDefault("messaging.request_topic", d.Messaging.RequestTopic)
	v.SetDefault("messaging.result_topic", d.Messaging.ResultTopic)
	v.SetDefault("messaging.dead_letter_topic", d.Messaging.DeadLetterTopic)
	v.SetDefault("messaging.workers", d.Messaging.Workers)
	v.SetDefault("messaging.max_retries", d.Messaging.MaxRetries)
	v.SetDefault("messaging.retry_backoff", d.Messaging.RetryBackoff)
	v.SetDefault("messaging.handler_timeout", d.Messaging.HandlerTimeout)
	v.SetDefault("messaging.health_port", d.Messaging.HealthPort)
	v.SetDefault("messaging.ensure_topics", false)
	v.SetDefault("messaging.partitions", d.Messaging.Partitions)
	v.SetDefault("messaging.replication_factor", d.Messaging.ReplicationFactor)

	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key_id", "")
	v.SetDefault("storage.minio.secret_access_key", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.region", d.Storage.MinIO.Region)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	v.SetDefault("cors.allowed_origins", d.CORS.AllowedOrigins)
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", d.CORS.MaxAge)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
}

// loadDotEnv loads ./.env into the process environment if present. Variables
// already set in the environment take precedence.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: failed to load .env: %w", err)
	}
	return nil
}

// Load reads the YAML file at configPath, merges FPI_* environment overrides,
// applies defaults for unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from FPI_* environment variables and defaults,
// with no config file required.
//
//	FPI_<SECTION>_<FIELD>   e.g.  FPI_CLASSIFIER_THRESHOLD, FPI_CACHE_ADDR
func LoadFromEnv() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad wraps Load and panics on error. Intended for main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// LoadOrEnv loads configPath when it is non-empty and falls back to
// LoadFromEnv otherwise. The binaries use it for their --config flag.
func LoadOrEnv(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}
