package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  host: "127.0.0.1"
  port: 8088
  mode: "debug"
log:
  level: "debug"
  format: "console"
classifier:
  threshold: 0.6
  scaler_path: "testdata/scaler.yaml"
  model_path: "testdata/network.yaml"
profile_source:
  base_url: "http://profiles.local"
  fetch_timeout: 5s
  max_retries: 1
cache:
  enabled: true
  addr: "redis:6379"
  ttl: 2m
messaging:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  group_id: "fpi-test"
metrics:
  enabled: true
  path: "/prom"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 0.6, cfg.Classifier.Threshold)
	assert.Equal(t, "testdata/network.yaml", cfg.Classifier.ModelPath)
	assert.Equal(t, "http://profiles.local", cfg.ProfileSource.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.ProfileSource.FetchTimeout)
	assert.Equal(t, 1, cfg.ProfileSource.MaxRetries)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Messaging.Brokers)
	assert.Equal(t, "/prom", cfg.Metrics.Path)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server: [unterminated"))
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "classifier:\n  threshold: 1.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "classifier.threshold")
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, "log:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultThreshold, cfg.Classifier.Threshold)
	assert.Equal(t, DefaultFeatureDimension, cfg.Classifier.Dimension)
	assert.Equal(t, DefaultProfileAppID, cfg.ProfileSource.AppID)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FPI_SERVER_PORT", "9191")
	t.Setenv("FPI_CLASSIFIER_THRESHOLD", "0.8")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Classifier.Threshold)
}

func TestLoad_EnvOverride_NestedKey(t *testing.T) {
	t.Setenv("FPI_PROFILE_SOURCE_SESSION_ID", "abc123")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.ProfileSource.SessionID)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("FPI_CACHE_ENABLED", "true")
	t.Setenv("FPI_CACHE_ADDR", "cache:6380")
	t.Setenv("FPI_STORAGE_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("FPI_CLASSIFIER_ARTIFACT_SOURCE", "minio")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "cache:6380", cfg.Cache.Addr)
	assert.Equal(t, ArtifactSourceMinIO, cfg.Classifier.ArtifactSource)
	assert.Equal(t, "minio:9000", cfg.Storage.MinIO.Endpoint)
	assert.Equal(t, DefaultScalerObject, cfg.Classifier.ScalerObject)
}

func TestLoadFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("FPI_LOG_FORMAT", "yaml")

	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadOrEnv(t *testing.T) {
	cfg, err := LoadOrEnv("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)

	cfg, err = LoadOrEnv(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestMustLoad_Success(t *testing.T) {
	assert.NotPanics(t, func() {
		cfg := MustLoad(createTempConfigFile(t, validConfigYAML))
		assert.NotNil(t, cfg)
	})
}

func TestMustLoad_Panic(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
