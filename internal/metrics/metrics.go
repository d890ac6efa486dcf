package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the insights service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Tool metrics
	ToolInvocations *prometheus.CounterVec
	ToolLatency     *prometheus.HistogramVec
	RowsAnalysed    *prometheus.CounterVec

	// Reporting API metrics
	APIRequests  *prometheus.CounterVec
	APILatency   *prometheus.HistogramVec
	PagesFetched *prometheus.CounterVec
	AsyncJobs    *prometheus.CounterVec

	// Storage metrics
	CacheLookups  *prometheus.CounterVec
	ArchiveWrites *prometheus.CounterVec
	AuditWrites   *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them through Handler.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		ToolInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_invocations_total",
				Help:      "Tool invocations by tool and outcome",
			},
			[]string{"tool", "status"},
		),
		ToolLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_latency_seconds",
				Help:      "End-to-end tool latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"tool"},
		),
		RowsAnalysed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_analysed_total",
				Help:      "Report rows folded into analyses",
			},
			[]string{"tool"},
		),

		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Reporting API requests by operation and status code",
			},
			[]string{"operation", "status"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "Reporting API request latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),
		PagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Result pages followed while fetching reports",
			},
			[]string{"operation"},
		),
		AsyncJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "async_jobs_total",
				Help:      "Async report jobs by terminal outcome",
			},
			[]string{"outcome"}, // completed, failed, timed_out, error
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Report cache lookups",
			},
			[]string{"result"}, // hit, miss, error
		),
		ArchiveWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_writes_total",
				Help:      "KPI snapshot archive writes",
			},
			[]string{"status"},
		),
		AuditWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_writes_total",
				Help:      "Tool run audit log writes",
			},
			[]string{"status"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}

	if reg == prometheus.DefaultRegisterer {
		DefaultMetrics = m
	}
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTool records one tool invocation.
func (m *Metrics) RecordTool(tool, status string, latency time.Duration, rows int) {
	if m == nil {
		return
	}
	m.ToolInvocations.WithLabelValues(tool, status).Inc()
	m.ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
	if rows > 0 {
		m.RowsAnalysed.WithLabelValues(tool).Add(float64(rows))
	}
}

// RecordAPIRequest records a reporting API call. status is the HTTP code or "error".
func (m *Metrics) RecordAPIRequest(operation, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(operation, status).Inc()
	m.APILatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordPage records one followed result page.
func (m *Metrics) RecordPage(operation string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(operation).Inc()
}

// RecordAsyncJob records the terminal outcome of an async job.
func (m *Metrics) RecordAsyncJob(outcome string) {
	if m == nil {
		return
	}
	m.AsyncJobs.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup records a cache hit, miss or error.
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordArchiveWrite records a KPI archive write.
func (m *Metrics) RecordArchiveWrite(ok bool) {
	if m == nil {
		return
	}
	m.ArchiveWrites.WithLabelValues(statusLabel(ok)).Inc()
}

// RecordAuditWrite records a tool-run audit write.
func (m *Metrics) RecordAuditWrite(ok bool) {
	if m == nil {
		return
	}
	m.AuditWrites.WithLabelValues(statusLabel(ok)).Inc()
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
