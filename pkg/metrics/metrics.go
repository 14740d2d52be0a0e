package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Assignment engine metrics
	AssignmentsTotal   *prometheus.CounterVec
	EscalationsTotal   prometheus.Counter
	AssignmentDuration prometheus.Histogram
	LeadsImported      prometheus.Counter
	CursorConflicts    prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		AssignmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignments_total",
				Help: "Total number of lead assignment attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"}, // outcome: assigned, escalated, unassigned, failed
		),
		EscalationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lead_escalations_total",
			Help: "Total number of leads escalated to a manager",
		}),
		AssignmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lead_assignment_duration_seconds",
			Help:    "Lead assignment pipeline duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		LeadsImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leads_imported_total",
			Help: "Total number of leads created through bulk import",
		}),
		CursorConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "round_robin_cursor_conflicts_total",
			Help: "Total number of round-robin cursor compare-and-swap conflicts",
		}),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw path

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// RecordAssignment records one assignment pipeline outcome.
func (m *Metrics) RecordAssignment(strategy, outcome string, duration time.Duration) {
	m.AssignmentsTotal.WithLabelValues(strategy, outcome).Inc()
	m.AssignmentDuration.Observe(duration.Seconds())
	if outcome == "escalated" {
		m.EscalationsTotal.Inc()
	}
}

// RecordLeadImported increments the bulk import counter.
func (m *Metrics) RecordLeadImported() {
	m.LeadsImported.Inc()
}

// RecordCursorConflict increments the cursor CAS conflict counter.
func (m *Metrics) RecordCursorConflict() {
	m.CursorConflicts.Inc()
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
