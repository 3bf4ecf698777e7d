package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "replenish"

// Metrics holds the engine's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CoverageCalculations *prometheus.CounterVec
	CoverageDuration     prometheus.Histogram
	CacheLookups         *prometheus.CounterVec

	BatchDuration      *prometheus.HistogramVec
	BatchProducts      *prometheus.CounterVec
	PurchaseOutcomes   *prometheus.CounterVec
	LastBatchTimestamp prometheus.Gauge
}

// New creates a Metrics instance with Go and process collectors registered
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		CoverageCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coverage",
			Name:      "calculations_total",
			Help:      "Coverage calculations by outcome code.",
		}, []string{"outcome"}),
		CoverageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "coverage",
			Name:      "duration_seconds",
			Help:      "Time spent forecasting one SKU, history load included.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coverage",
			Name:      "cache_lookups_total",
			Help:      "Coverage cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Wall time of purchase requirement batches.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"method"}),
		BatchProducts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "products_total",
			Help:      "Products processed in batches by outcome code.",
		}, []string{"method", "outcome"}),
		PurchaseOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "recommendations_total",
			Help:      "Purchase recommendations by stockout risk level.",
		}, []string{"risk"}),
		LastBatchTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time of the last completed batch.",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CoverageCalculations,
		m.CoverageDuration,
		m.CacheLookups,
		m.BatchDuration,
		m.BatchProducts,
		m.PurchaseOutcomes,
		m.LastBatchTimestamp,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCoverage counts one calculation; outcome is "ok" or an error code
func (m *Metrics) RecordCoverage(outcome string, duration time.Duration) {
	m.CoverageCalculations.WithLabelValues(outcome).Inc()
	m.CoverageDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBatch(method string, duration time.Duration) {
	m.BatchDuration.WithLabelValues(method).Observe(duration.Seconds())
	m.LastBatchTimestamp.SetToCurrentTime()
}

func (m *Metrics) RecordBatchProduct(method, outcome string) {
	m.BatchProducts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) RecordRecommendation(risk string) {
	m.PurchaseOutcomes.WithLabelValues(risk).Inc()
}
