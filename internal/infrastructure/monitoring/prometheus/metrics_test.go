package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "fpi"}, logging.NewNopLogger())
	require.NoError(t, err)
	return NewAppMetrics(c), c
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)
	RecordHTTPRequest(m, "POST", "/predict", 400, 20*time.Millisecond)
	RecordHTTPRequest(m, "POST", "/predict", 400, 30*time.Millisecond)

	out := scrape(t, c)
	assert.Contains(t, out, `fpi_http_requests_total{method="POST",path="/predict",status_code="400"} 2`)
	assert.Contains(t, out, `fpi_http_request_duration_seconds_count{method="POST",path="/predict"} 2`)
}

func TestRecordMessage(t *testing.T) {
	m, c := newTestAppMetrics(t)
	RecordMessage(m, "requests", OutcomeSuccess, time.Second)
	RecordMessage(m, "requests", OutcomeFailed, time.Second)
	RecordMessage(m, "requests", OutcomeSuccess, time.Second)

	out := scrape(t, c)
	assert.Contains(t, out, `fpi_messages_total{outcome="success",topic="requests"} 2`)
	assert.Contains(t, out, `fpi_messages_total{outcome="failed",topic="requests"} 1`)
}

func TestRecordErrorAndHealth(t *testing.T) {
	m, c := newTestAppMetrics(t)
	RecordError(m, "http", "PRF_002")
	SetHealthStatus(m, "redis", true)
	SetHealthStatus(m, "kafka", false)

	out := scrape(t, c)
	assert.Contains(t, out, `fpi_errors_total{code="PRF_002",component="http"} 1`)
	assert.Contains(t, out, `fpi_health_check_status{component="redis"} 1`)
	assert.Contains(t, out, `fpi_health_check_status{component="kafka"} 0`)
}

func TestHelpers_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordHTTPRequest(nil, "GET", "/healthz", 200, time.Millisecond)
		RecordMessage(nil, "t", OutcomeRetry, time.Millisecond)
		RecordError(nil, "c", "x")
		SetHealthStatus(nil, "c", true)
	})
}
