package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 5000
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultThreshold        = 0.5
	DefaultFeatureDimension = 11
	DefaultArtifactSource   = ArtifactSourceFile
	DefaultScalerPath       = "configs/model/scaler.yaml"
	DefaultModelPath        = "configs/model/network.yaml"
	DefaultArtifactBucket   = "fpi-models"
	DefaultScalerObject     = "profile-classifier/scaler.yaml"
	DefaultModelObject      = "profile-classifier/network.yaml"
	DefaultModelName        = "profile-classifier"

	DefaultProfileBaseURL        = "https://i.instagram.com"
	DefaultProfileAppID          = "936619743392459"
	DefaultProfileUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultProfileFetchTimeout   = 20 * time.Second
	DefaultProfileRequestTimeout = 10 * time.Second
	DefaultProfileRateLimit      = 0.5
	DefaultProfileBurst          = 2
	DefaultProfileMaxRetries     = 3
	DefaultProfileRetryWaitMin   = 500 * time.Millisecond
	DefaultProfileRetryWaitMax   = 8 * time.Second

	DefaultCacheAddr      = "localhost:6379"
	DefaultCachePoolSize  = 10
	DefaultCacheTTL       = 15 * time.Minute
	DefaultCacheKeyPrefix = "fpi:profile:"

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaGroupID    = "fpi-classifier"
	DefaultRequestTopic    = "profile.classification.requested"
	DefaultResultTopic     = "profile.classification.completed"
	DefaultDeadLetterTopic = "profile.classification.dlq"
	DefaultWorkers         = 4
	DefaultWorkerRetries   = 3
	DefaultRetryBackoff    = time.Second
	DefaultHandlerTimeout  = time.Minute
	DefaultHealthPort      = 8081
	DefaultTopicPartitions = 4
	DefaultTopicReplicas   = 1

	DefaultMinIORegion = "us-east-1"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "fpi"

	DefaultCORSMaxAge = 86400

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10
)

// NewDefaultConfig returns a Config populated entirely with defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: true},
		CORS:    CORSConfig{AllowedOrigins: []string{"*"}},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with its default. Fields
// already set by the caller are left unchanged so explicit configuration wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Classifier ────────────────────────────────────────────────────────────
	c := &cfg.Classifier
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Dimension == 0 {
		c.Dimension = DefaultFeatureDimension
	}
	if c.ArtifactSource == "" {
		c.ArtifactSource = DefaultArtifactSource
	}
	if c.ScalerPath == "" {
		c.ScalerPath = DefaultScalerPath
	}
	if c.ModelPath == "" {
		c.ModelPath = DefaultModelPath
	}
	if c.Bucket == "" {
		c.Bucket = DefaultArtifactBucket
	}
	if c.ScalerObject == "" {
		c.ScalerObject = DefaultScalerObject
	}
	if c.ModelObject == "" {
		c.ModelObject = DefaultModelObject
	}
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}

	// ── Profile source ────────────────────────────────────────────────────────
	p := &cfg.ProfileSource
	if p.BaseURL == "" {
		p.BaseURL = DefaultProfileBaseURL
	}
	if p.AppID == "" {
		p.AppID = DefaultProfileAppID
	}
	if p.UserAgent == "" {
		p.UserAgent = DefaultProfileUserAgent
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = DefaultProfileFetchTimeout
	}
	if p.RequestTimeout == 0 {
		p.RequestTimeout = DefaultProfileRequestTimeout
	}
	if p.RateLimit == 0 {
		p.RateLimit = DefaultProfileRateLimit
	}
	if p.Burst == 0 {
		p.Burst = DefaultProfileBurst
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultProfileMaxRetries
	}
	if p.RetryWaitMin == 0 {
		p.RetryWaitMin = DefaultProfileRetryWaitMin
	}
	if p.RetryWaitMax == 0 {
		p.RetryWaitMax = DefaultProfileRetryWaitMax
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.Addr == "" {
		cfg.Cache.Addr = DefaultCacheAddr
	}
	if cfg.Cache.PoolSize == 0 {
		cfg.Cache.PoolSize = DefaultCachePoolSize
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}

	// ── Messaging ─────────────────────────────────────────────────────────────
	m := &cfg.Messaging
	if len(m.Brokers) == 0 {
		m.Brokers = []string{DefaultKafkaBroker}
	}
	if m.GroupID == "" {
		m.GroupID = DefaultKafkaGroupID
	}
	if m.RequestTopic == "" {
		m.RequestTopic = DefaultRequestTopic
	}
	if m.ResultTopic == "" {
		m.ResultTopic = DefaultResultTopic
	}
	if m.DeadLetterTopic == "" {
		m.DeadLetterTopic = DefaultDeadLetterTopic
	}
	if m.Workers == 0 {
		m.Workers = DefaultWorkers
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = DefaultWorkerRetries
	}
	if m.RetryBackoff == 0 {
		m.RetryBackoff = DefaultRetryBackoff
	}
	if m.HandlerTimeout == 0 {
		m.HandlerTimeout = DefaultHandlerTimeout
	}
	if m.HealthPort == 0 {
		m.HealthPort = DefaultHealthPort
	}
	if m.Partitions == 0 {
		m.Partitions = DefaultTopicPartitions
	}
	if m.ReplicationFactor == 0 {
		m.ReplicationFactor = DefaultTopicReplicas
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.MinIO.Region == "" {
		cfg.Storage.MinIO.Region = DefaultMinIORegion
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── CORS / rate limit ─────────────────────────────────────────────────────
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = DefaultCORSMaxAge
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = DefaultRateLimitBurst
	}
}
