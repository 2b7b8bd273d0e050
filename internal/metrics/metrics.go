package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the admission gateway.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	admissions    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	storeLookups  *prometheus.CounterVec
	rateLimit     *prometheus.CounterVec
	usageTouches  *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "paygate"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "admissions_total",
			Help:      "Admission decisions by stage and outcome code",
		},
		[]string{"stage", "code"},
	)
	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "stage_duration_seconds",
			Help:      "Duration of admission stages in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"stage"},
	)
	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "cache_lookups_total",
			Help:      "API key cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
	m.storeLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "store_lookups_total",
			Help:      "API key store lookups by result (found, not_found, error)",
		},
		[]string{"result"},
	)
	m.rateLimit = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions (allowed, rejected, fail_open)",
		},
		[]string{"decision"},
	)
	m.usageTouches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "touches_total",
			Help:      "Usage recorder touches by result (ok, retry, dropped, overflow, shed)",
		},
		[]string{"result"},
	)

	m.registry.MustRegister(
		m.admissions,
		m.stageDuration,
		m.cacheLookups,
		m.storeLookups,
		m.rateLimit,
		m.usageTouches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAdmission counts a terminal decision (or "OK") for a stage.
func (m *Metrics) RecordAdmission(stage, code string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(stage, code).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCacheLookup counts an API key cache lookup.
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordStoreLookup counts an API key store lookup.
func (m *Metrics) RecordStoreLookup(result string) {
	if m == nil {
		return
	}
	m.storeLookups.WithLabelValues(result).Inc()
}

// RecordRateLimit counts a rate limit decision.
func (m *Metrics) RecordRateLimit(decision string) {
	if m == nil {
		return
	}
	m.rateLimit.WithLabelValues(decision).Inc()
}

// RecordUsageTouch counts a usage recorder outcome.
func (m *Metrics) RecordUsageTouch(result string) {
	if m == nil {
		return
	}
	m.usageTouches.WithLabelValues(result).Inc()
}
