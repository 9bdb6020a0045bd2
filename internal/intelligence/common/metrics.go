// Package common holds the cross-model plumbing of the intelligence layer:
// telemetry interfaces and their Prometheus, no-op and in-memory backends.
package common

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// IntelligenceMetrics is the telemetry API of the classification pipeline.
// The engine, the artifact loader and the profile sources record through it so
// the backend (Prometheus, in-memory, noop) can be swapped without touching
// business code.
type IntelligenceMetrics interface {
	// RecordInference records one scaler+network evaluation.
	RecordInference(ctx context.Context, params *InferenceMetricParams)

	// RecordProfileFetch records one lookup against a profile source.
	RecordProfileFetch(ctx context.Context, params *FetchMetricParams)

	// RecordCacheAccess records a profile cache hit or miss.
	RecordCacheAccess(ctx context.Context, hit bool, cacheName string)

	// RecordModelLoad records an artifact load at startup.
	RecordModelLoad(ctx context.Context, modelName, version string, durationMs float64, success bool)

	// GetInferenceLatencyHistogram returns the latency histogram for SLO monitoring.
	GetInferenceLatencyHistogram() LatencyHistogram

	// GetCurrentStats returns a point-in-time statistics snapshot.
	GetCurrentStats() *IntelligenceStats
}

// LatencyHistogram provides percentile-based latency observation.
type LatencyHistogram interface {
	Observe(durationMs float64)
	// Percentile returns the value at the given percentile (0–100).
	Percentile(p float64) float64
	Count() int64
	Sum() float64
}

// ---------------------------------------------------------------------------
// Parameter structs
// ---------------------------------------------------------------------------

// Input modes of an inference.
const (
	ModeFeatures = "features"
	ModeUsername = "username"
)

// Verdict labels.
const (
	VerdictFake    = "fake"
	VerdictGenuine = "genuine"
	VerdictNone    = "none"
)

// Fetch outcomes.
const (
	FetchOK       = "ok"
	FetchNotFound = "not_found"
	FetchError    = "error"
)

// InferenceMetricParams carries the data for a single inference event.
type InferenceMetricParams struct {
	ModelName    string  `json:"model_name"`
	ModelVersion string  `json:"model_version"`
	Mode         string  `json:"mode"`
	DurationMs   float64 `json:"duration_ms"`
	Success      bool    `json:"success"`
	// Verdict is VerdictFake or VerdictGenuine on success, VerdictNone otherwise.
	Verdict     string  `json:"verdict"`
	Probability float64 `json:"probability"`
}

// FetchMetricParams carries the data for a profile source lookup.
type FetchMetricParams struct {
	Source     string  `json:"source"`
	Outcome    string  `json:"outcome"`
	DurationMs float64 `json:"duration_ms"`
	Attempts   int     `json:"attempts"`
}

// IntelligenceStats is a point-in-time snapshot of pipeline metrics.
type IntelligenceStats struct {
	TotalInferences       int64   `json:"total_inferences"`
	SuccessfulInferences  int64   `json:"successful_inferences"`
	FailedInferences      int64   `json:"failed_inferences"`
	FakeVerdicts          int64   `json:"fake_verdicts"`
	AvgInferenceLatencyMs float64 `json:"avg_inference_latency_ms"`
	P50LatencyMs          float64 `json:"p50_latency_ms"`
	P95LatencyMs          float64 `json:"p95_latency_ms"`
	P99LatencyMs          float64 `json:"p99_latency_ms"`
	CacheHitRate          float64 `json:"cache_hit_rate"`
	ProfileFetches        int64   `json:"profile_fetches"`
	ProfileFetchFailures  int64   `json:"profile_fetch_failures"`
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

const metricsPrefix = "fpi_intelligence_"

var defaultLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

type prometheusIntelligenceMetrics struct {
	inferenceLatency  *prometheus.HistogramVec
	inferenceTotal    *prometheus.CounterVec
	fakeProbability   prometheus.Histogram
	fetchDuration     *prometheus.HistogramVec
	fetchTotal        *prometheus.CounterVec
	cacheAccessTotal  *prometheus.CounterVec
	modelLoadDuration *prometheus.HistogramVec
	modelInfo         *prometheus.GaugeVec

	// in-memory tracking for GetCurrentStats / GetInferenceLatencyHistogram
	latencyHist   *latencyHistogram
	totalInf      atomic.Int64
	successInf    atomic.Int64
	failedInf     atomic.Int64
	fakeInf       atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	fetches       atomic.Int64
	fetchFailures atomic.Int64
}

// NewPrometheusIntelligenceMetrics creates a Prometheus-backed collector and
// registers all metrics with registerer (the default registerer when nil).
func NewPrometheusIntelligenceMetrics(registerer prometheus.Registerer) (IntelligenceMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &prometheusIntelligenceMetrics{
		latencyHist: newLatencyHistogram(),
	}

	m.inferenceLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "inference_duration_milliseconds",
		Help:    "Histogram of classification latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"model_name", "model_version", "mode"})

	m.inferenceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "inference_total",
		Help: "Total number of classifications by outcome and verdict.",
	}, []string{"model_name", "mode", "status", "verdict"})

	m.fakeProbability = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricsPrefix + "fake_probability",
		Help:    "Distribution of predicted fake probabilities.",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
	})

	m.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "profile_fetch_duration_milliseconds",
		Help:    "Histogram of profile source lookup latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"source", "outcome"})

	m.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "profile_fetch_total",
		Help: "Total number of profile source lookups.",
	}, []string{"source", "outcome"})

	m.cacheAccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "cache_access_total",
		Help: "Total number of profile cache accesses.",
	}, []string{"cache", "result"})

	m.modelLoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "model_load_duration_milliseconds",
		Help:    "Histogram of artifact load duration in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"model_name", "version", "status"})

	m.modelInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricsPrefix + "model_info",
		Help: "Set to 1 for the currently loaded model version.",
	}, []string{"model_name", "version"})

	collectors := []prometheus.Collector{
		m.inferenceLatency,
		m.inferenceTotal,
		m.fakeProbability,
		m.fetchDuration,
		m.fetchTotal,
		m.cacheAccessTotal,
		m.modelLoadDuration,
		m.modelInfo,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *prometheusIntelligenceMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	status := "success"
	verdict := p.Verdict
	if !p.Success {
		status = "failure"
		verdict = VerdictNone
	}
	if verdict == "" {
		verdict = VerdictNone
	}

	m.inferenceLatency.WithLabelValues(p.ModelName, p.ModelVersion, p.Mode).Observe(p.DurationMs)
	m.inferenceTotal.WithLabelValues(p.ModelName, p.Mode, status, verdict).Inc()
	if p.Success {
		m.fakeProbability.Observe(p.Probability)
	}

	m.latencyHist.Observe(p.DurationMs)
	m.totalInf.Add(1)
	if p.Success {
		m.successInf.Add(1)
		if verdict == VerdictFake {
			m.fakeInf.Add(1)
		}
	} else {
		m.failedInf.Add(1)
	}
}

func (m *prometheusIntelligenceMetrics) RecordProfileFetch(_ context.Context, p *FetchMetricParams) {
	if p == nil {
		return
	}
	m.fetchDuration.WithLabelValues(p.Source, p.Outcome).Observe(p.DurationMs)
	m.fetchTotal.WithLabelValues(p.Source, p.Outcome).Inc()
	m.fetches.Add(1)
	if p.Outcome == FetchError {
		m.fetchFailures.Add(1)
	}
}

func (m *prometheusIntelligenceMetrics) RecordCacheAccess(_ context.Context, hit bool, cacheName string) {
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
	m.cacheAccessTotal.WithLabelValues(cacheName, result).Inc()
}

func (m *prometheusIntelligenceMetrics) RecordModelLoad(_ context.Context, modelName, version string, durationMs float64, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.modelLoadDuration.WithLabelValues(modelName, version, status).Observe(durationMs)
	if success {
		m.modelInfo.WithLabelValues(modelName, version).Set(1)
	}
}

func (m *prometheusIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *prometheusIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	total := m.totalInf.Load()

	var avgLatency float64
	if total > 0 {
		avgLatency = m.latencyHist.Sum() / float64(total)
	}

	return &IntelligenceStats{
		TotalInferences:       total,
		SuccessfulInferences:  m.successInf.Load(),
		FailedInferences:      m.failedInf.Load(),
		FakeVerdicts:          m.fakeInf.Load(),
		AvgInferenceLatencyMs: avgLatency,
		P50LatencyMs:          m.latencyHist.Percentile(50),
		P95LatencyMs:          m.latencyHist.Percentile(95),
		P99LatencyMs:          m.latencyHist.Percentile(99),
		CacheHitRate:          hitRate(m.cacheHits.Load(), m.cacheMisses.Load()),
		ProfileFetches:        m.fetches.Load(),
		ProfileFetchFailures:  m.fetchFailures.Load(),
	}
}

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopIntelligenceMetrics struct{}

// NewNoopIntelligenceMetrics returns a no-op metrics implementation.
func NewNoopIntelligenceMetrics() IntelligenceMetrics {
	return noopIntelligenceMetrics{}
}

func (noopIntelligenceMetrics) RecordInference(context.Context, *InferenceMetricParams)       {}
func (noopIntelligenceMetrics) RecordProfileFetch(context.Context, *FetchMetricParams)        {}
func (noopIntelligenceMetrics) RecordCacheAccess(context.Context, bool, string)               {}
func (noopIntelligenceMetrics) RecordModelLoad(context.Context, string, string, float64, bool) {}

func (noopIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return newLatencyHistogram()
}

func (noopIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	return &IntelligenceStats{}
}

// ---------------------------------------------------------------------------
// In-memory implementation (for testing)
// ---------------------------------------------------------------------------

// InMemoryIntelligenceMetrics keeps every recorded event so tests can assert
// on them.
type InMemoryIntelligenceMetrics struct {
	mu sync.Mutex

	inferences  []*InferenceMetricParams
	fetches     []*FetchMetricParams
	cacheHits   int64
	cacheMisses int64
	modelLoads  []ModelLoadRecord
	latencyHist *latencyHistogram
}

// ModelLoadRecord is one RecordModelLoad call captured in memory.
type ModelLoadRecord struct {
	ModelName  string
	Version    string
	DurationMs float64
	Success    bool
	Timestamp  time.Time
}

// NewInMemoryIntelligenceMetrics returns an in-memory metrics implementation
// suitable for unit tests.
func NewInMemoryIntelligenceMetrics() *InMemoryIntelligenceMetrics {
	return &InMemoryIntelligenceMetrics{
		latencyHist: newLatencyHistogram(),
	}
}

func (m *InMemoryIntelligenceMetrics) RecordInference(_ context.Context, p *InferenceMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.inferences = append(m.inferences, &cp)
	m.latencyHist.Observe(p.DurationMs)
}

func (m *InMemoryIntelligenceMetrics) RecordProfileFetch(_ context.Context, p *FetchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.fetches = append(m.fetches, &cp)
}

func (m *InMemoryIntelligenceMetrics) RecordCacheAccess(_ context.Context, hit bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

func (m *InMemoryIntelligenceMetrics) RecordModelLoad(_ context.Context, modelName, version string, durationMs float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoads = append(m.modelLoads, ModelLoadRecord{
		ModelName:  modelName,
		Version:    version,
		DurationMs: durationMs,
		Success:    success,
		Timestamp:  time.Now(),
	})
}

func (m *InMemoryIntelligenceMetrics) GetInferenceLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *InMemoryIntelligenceMetrics) GetCurrentStats() *IntelligenceStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &IntelligenceStats{
		TotalInferences: int64(len(m.inferences)),
		P50LatencyMs:    m.latencyHist.Percentile(50),
		P95LatencyMs:    m.latencyHist.Percentile(95),
		P99LatencyMs:    m.latencyHist.Percentile(99),
		CacheHitRate:    hitRate(m.cacheHits, m.cacheMisses),
		ProfileFetches:  int64(len(m.fetches)),
	}
	var sumLatency float64
	for _, inf := range m.inferences {
		if inf.Success {
			stats.SuccessfulInferences++
			if inf.Verdict == VerdictFake {
				stats.FakeVerdicts++
			}
		} else {
			stats.FailedInferences++
		}
		sumLatency += inf.DurationMs
	}
	if stats.TotalInferences > 0 {
		stats.AvgInferenceLatencyMs = sumLatency / float64(stats.TotalInferences)
	}
	for _, f := range m.fetches {
		if f.Outcome == FetchError {
			stats.ProfileFetchFailures++
		}
	}
	return stats
}

// GetRecordedInferences returns a copy of all recorded inference params.
func (m *InMemoryIntelligenceMetrics) GetRecordedInferences() []*InferenceMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*InferenceMetricParams, len(m.inferences))
	for i, p := range m.inferences {
		cp := *p
		out[i] = &cp
	}
	return out
}

// GetRecordedFetches returns a copy of all recorded fetch params.
func (m *InMemoryIntelligenceMetrics) GetRecordedFetches() []*FetchMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*FetchMetricParams, len(m.fetches))
	for i, p := range m.fetches {
		cp := *p
		out[i] = &cp
	}
	return out
}

// GetCacheHits returns the number of cache hits recorded.
func (m *InMemoryIntelligenceMetrics) GetCacheHits() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheHits
}

// GetCacheMisses returns the number of cache misses recorded.
func (m *InMemoryIntelligenceMetrics) GetCacheMisses() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheMisses
}

// GetModelLoads returns a copy of all model load records.
func (m *InMemoryIntelligenceMetrics) GetModelLoads() []ModelLoadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ModelLoadRecord, len(m.modelLoads))
	copy(out, m.modelLoads)
	return out
}

// ---------------------------------------------------------------------------
// latencyHistogram keeps raw samples for percentile queries.
// ---------------------------------------------------------------------------

type latencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	sum     float64
	sorted  bool
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{
		samples: make([]float64, 0, 1024),
	}
}

func (h *latencyHistogram) Observe(durationMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, durationMs)
	h.sum += durationMs
	h.sorted = false
}

// Percentile returns the value at percentile p (0–100) using linear
// interpolation between the two nearest ranks (PERCENTILE.INC).
func (h *latencyHistogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.samples)
	if n == 0 {
		return 0
	}
	if !h.sorted {
		sort.Float64s(h.samples)
		h.sorted = true
	}
	if p <= 0 {
		return h.samples[0]
	}
	if p >= 100 {
		return h.samples[n-1]
	}

	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return h.samples[n-1]
	}
	frac := rank - float64(lower)
	return h.samples[lower] + frac*(h.samples[upper]-h.samples[lower])
}

func (h *latencyHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.samples))
}

func (h *latencyHistogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// MillisecondsSince returns the elapsed time since start in fractional
// milliseconds, the unit every duration in this package uses.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

var (
	_ IntelligenceMetrics = (*prometheusIntelligenceMetrics)(nil)
	_ IntelligenceMetrics = noopIntelligenceMetrics{}
	_ IntelligenceMetrics = (*InMemoryIntelligenceMetrics)(nil)
	_ LatencyHistogram    = (*latencyHistogram)(nil)
)
