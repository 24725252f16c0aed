package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics using a private Prometheus registry
type PrometheusMetrics struct {
	decisionsTotal       *prometheus.CounterVec
	permChecksTotal      *prometheus.CounterVec
	activeRequests       prometheus.Gauge
	decisionDuration     prometheus.Histogram
	contextBuildsTotal   prometheus.Counter
	contextBuildDuration prometheus.Histogram
	cacheHitsTotal       prometheus.Counter
	cacheMissesTotal     prometheus.Counter
	policyReloads        *prometheus.CounterVec
	policyCount          prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of policy decisions by effect and decisive category",
		},
		[]string{"effect", "category"},
	)

	permChecksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_checks_total",
			Help:      "Total number of direct permission checks by effect",
		},
		[]string{"effect"},
	)

	activeRequests := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of in-flight decision requests",
		},
	)

	// Decision latency: 1µs to 10ms (sub-millisecond expected)
	decisionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_microseconds",
			Help:      "Policy decision latency in microseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		},
	)

	contextBuildsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "context",
			Name:      "builds_total",
			Help:      "Total number of user context builds",
		},
	)

	// Context builds may hit the directory and Redis, so the
	// buckets reach into milliseconds.
	contextBuildDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "context",
			Name:      "build_duration_microseconds",
			Help:      "User context build latency in microseconds",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000},
		},
	)

	cacheHitsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of resolution cache hits",
		},
	)

	cacheMissesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of resolution cache misses",
		},
	)

	policyReloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "reloads_total",
			Help:      "Total number of policy reloads by status",
		},
		[]string{"status"},
	)

	policyCount := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "loaded",
			Help:      "Number of currently loaded policies",
		},
	)

	registry.MustRegister(
		decisionsTotal,
		permChecksTotal,
		activeRequests,
		decisionDuration,
		contextBuildsTotal,
		contextBuildDuration,
		cacheHitsTotal,
		cacheMissesTotal,
		policyReloads,
		policyCount,
	)

	return &PrometheusMetrics{
		decisionsTotal:       decisionsTotal,
		permChecksTotal:      permChecksTotal,
		activeRequests:       activeRequests,
		decisionDuration:     decisionDuration,
		contextBuildsTotal:   contextBuildsTotal,
		contextBuildDuration: contextBuildDuration,
		cacheHitsTotal:       cacheHitsTotal,
		cacheMissesTotal:     cacheMissesTotal,
		policyReloads:        policyReloads,
		policyCount:          policyCount,
		registry:             registry,
	}
}

// RecordDecision records a policy decision with its decisive category
func (m *PrometheusMetrics) RecordDecision(effect, category string, duration time.Duration) {
	if category == "" {
		category = "none"
	}
	m.decisionsTotal.WithLabelValues(effect, category).Inc()
	m.decisionDuration.Observe(float64(duration.Microseconds()))
}

// RecordPermissionCheck records a direct permission check
func (m *PrometheusMetrics) RecordPermissionCheck(effect string) {
	m.permChecksTotal.WithLabelValues(effect).Inc()
}

// IncActiveRequests increments the in-flight request gauge
func (m *PrometheusMetrics) IncActiveRequests() {
	m.activeRequests.Inc()
}

// DecActiveRequests decrements the in-flight request gauge
func (m *PrometheusMetrics) DecActiveRequests() {
	m.activeRequests.Dec()
}

// RecordContextBuild records a user context build
func (m *PrometheusMetrics) RecordContextBuild(duration time.Duration) {
	m.contextBuildsTotal.Inc()
	m.contextBuildDuration.Observe(float64(duration.Microseconds()))
}

// RecordCacheHit records a resolution cache hit
func (m *PrometheusMetrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a resolution cache miss
func (m *PrometheusMetrics) RecordCacheMiss() {
	m.cacheMissesTotal.Inc()
}

// RecordPolicyReload records a policy reload attempt
func (m *PrometheusMetrics) RecordPolicyReload(status string) {
	m.policyReloads.WithLabelValues(status).Inc()
}

// UpdatePolicyCount sets the loaded policy gauge
func (m *PrometheusMetrics) UpdatePolicyCount(count int) {
	m.policyCount.Set(float64(count))
}

// HTTPHandler returns the Prometheus scrape handler
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
