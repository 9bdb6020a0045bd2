package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultThreshold, cfg.Classifier.Threshold)
	assert.Equal(t, DefaultFeatureDimension, cfg.Classifier.Dimension)
	assert.Equal(t, ArtifactSourceFile, cfg.Classifier.ArtifactSource)
	assert.Equal(t, DefaultProfileBaseURL, cfg.ProfileSource.BaseURL)
	assert.Equal(t, DefaultProfileFetchTimeout, cfg.ProfileSource.FetchTimeout)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Messaging.Brokers)
	assert.Equal(t, DefaultRequestTopic, cfg.Messaging.RequestTopic)
	assert.Equal(t, DefaultResultTopic, cfg.Messaging.ResultTopic)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Classifier.Threshold = 0.7
	cfg.ProfileSource.FetchTimeout = 3 * time.Second
	cfg.Messaging.Brokers = []string{"kafka:29092"}

	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 0.7, cfg.Classifier.Threshold)
	assert.Equal(t, 3*time.Second, cfg.ProfileSource.FetchTimeout)
	assert.Equal(t, []string{"kafka:29092"}, cfg.Messaging.Brokers)
}

func TestApplyDefaults_NilConfig(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Messaging.Enabled)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}
