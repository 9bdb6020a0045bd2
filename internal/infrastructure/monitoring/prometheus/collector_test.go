package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_RuntimeCollectors(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "fpi", EnableGoMetrics: true, EnableProcessMetrics: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, scrape(t, c), "go_goroutines")
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	counter := c.RegisterCounter("requests_total", "help", "path")
	counter.WithLabelValues("/predict").Inc()
	counter.WithLabelValues("/predict").Add(2)

	assert.Contains(t, scrape(t, c), `test_unit_requests_total{path="/predict"} 3`)
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	gauge := c.RegisterGauge("inflight", "help", "path")
	gauge.WithLabelValues("/predict").Inc()
	gauge.WithLabelValues("/predict").Inc()
	gauge.WithLabelValues("/predict").Dec()

	assert.Contains(t, scrape(t, c), `test_unit_inflight{path="/predict"} 1`)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("latency_seconds", "help", nil, "path")
	h.WithLabelValues("/predict").Observe(0.2)

	out := scrape(t, c)
	assert.Contains(t, out, `test_unit_latency_seconds_count{path="/predict"} 1`)
	assert.Contains(t, out, `le="0.25"`)
}

func TestRegister_Idempotent(t *testing.T) {
	c := newTestCollector(t)
	first := c.RegisterCounter("dup_total", "help", "l")
	second := c.RegisterCounter("dup_total", "help", "l")

	first.WithLabelValues("a").Inc()
	second.WithLabelValues("a").Inc()
	assert.Contains(t, scrape(t, c), `test_unit_dup_total{l="a"} 2`)
}

func TestRegister_TypeMismatchReturnsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("mixed", "help")
	g := c.RegisterGauge("mixed", "help")

	assert.NotPanics(t, func() { g.WithLabelValues().Set(5) })
	assert.IsType(t, noopGaugeVec{}, g)
}

func TestRegisterer_SharesRegistry(t *testing.T) {
	c := newTestCollector(t)
	external := prometheus.NewCounter(prometheus.CounterOpts{Name: "external_total", Help: "help"})
	require.NoError(t, c.Registerer().Register(external))
	external.Inc()

	assert.Contains(t, scrape(t, c), "external_total 1")
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "help", "k").WithLabelValues("v").Inc()
		}()
	}
	wg.Wait()
	assert.Contains(t, scrape(t, c), `test_unit_concurrent_total{k="v"} 16`)
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("timer_seconds", "help", nil)

	timer := NewTimer(h.WithLabelValues())
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Contains(t, scrape(t, c), "test_unit_timer_seconds_count 1")
	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}
