package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the service-level metrics shared by the API server and the
// worker. Classifier metrics live in intelligence/common and register on the
// same collector.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec
	HTTPRateLimited     CounterVec

	MessagesTotal          CounterVec
	MessageProcessDuration HistogramVec
	ActiveWorkers          GaugeVec

	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
	BuildInfo         GaugeVec
}

var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultMessageDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
)

// NewAppMetrics registers every metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests.", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration.", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests.", "method", "path")
	m.HTTPRateLimited = collector.RegisterCounter("http_rate_limited_total", "Requests rejected by the rate limiter.", "path")

	m.MessagesTotal = collector.RegisterCounter("messages_total", "Classification requests consumed, by outcome.", "topic", "outcome")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Classification request handling duration.", DefaultMessageDurationBuckets, "topic")
	m.ActiveWorkers = collector.RegisterGauge("active_workers", "Messages currently being handled.", "topic")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down).", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code.", "component", "code")
	m.BuildInfo = collector.RegisterGauge("build_info", "Build information.", "version", "commit")

	return m
}

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Message outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeRetry   = "retry"
)

func RecordMessage(metrics *AppMetrics, topic, outcome string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.MessagesTotal.WithLabelValues(topic, outcome).Inc()
	metrics.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func RecordError(metrics *AppMetrics, component, code string) {
	if metrics == nil {
		return
	}
	metrics.ErrorsTotal.WithLabelValues(component, code).Inc()
}

func SetHealthStatus(metrics *AppMetrics, component string, healthy bool) {
	if metrics == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	metrics.HealthCheckStatus.WithLabelValues(component).Set(v)
}
