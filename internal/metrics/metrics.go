// Package metrics exposes Prometheus instruments for the analysis pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardspend/internal/ingest"
)

// Analysis outcome labels.
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusSchema  = "schema_error"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// Registry owns these metrics; the /metrics endpoint serves it.
	Registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	rowsIngested     prometheus.Counter
	rowsRejected     *prometheus.CounterVec
	sourcesFailed    prometheus.Counter
	recurringGauge   prometheus.Gauge
	reportsPublished *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	securityEvents   *prometheus.CounterVec
}

// New creates a private registry so that building Metrics more than once,
// as tests do, never collides with the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardspend_analyses_total",
				Help: "Total dashboard analyses by outcome.",
			},
			[]string{"status"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardspend_analysis_duration_seconds",
				Help:    "Duration of analyses by stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		rowsIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cardspend_rows_ingested_total",
				Help: "Total transaction rows accepted by ingestion.",
			},
		),
		rowsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardspend_rows_rejected_total",
				Help: "Total rows excluded by ingestion, by reason.",
			},
			[]string{"reason"},
		),
		sourcesFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cardspend_sources_failed_total",
				Help: "Total sources skipped because of schema errors.",
			},
		),
		recurringGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cardspend_recurring_merchants",
				Help: "Recurring merchants found by the latest analysis.",
			},
		),
		reportsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardspend_report_requests_total",
				Help: "Report requests published or processed, by outcome.",
			},
			[]string{"outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardspend_http_requests_total",
				Help: "Total HTTP requests by route, method and status code.",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardspend_http_request_duration_seconds",
				Help:    "HTTP request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		securityEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardspend_security_events_total",
				Help: "Rate-limited and suspicious requests.",
			},
			[]string{"kind"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// IncrAnalysis counts one analysis with its outcome.
func (m *Metrics) IncrAnalysis(status string) {
	m.analysesTotal.WithLabelValues(status).Inc()
}

// RecordDuration records how long a stage took.
func (m *Metrics) RecordDuration(stage string, d time.Duration) {
	m.analysisDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordIngest adds the counts of one load.
func (m *Metrics) RecordIngest(rep ingest.Report) {
	m.rowsIngested.Add(float64(rep.RowsIngested))
	m.rowsRejected.WithLabelValues("unparsed_amount").Add(float64(rep.UnparsedAmounts))
	m.rowsRejected.WithLabelValues("unparsed_date").Add(float64(rep.UnparsedDates))
	m.rowsRejected.WithLabelValues("missing_description").Add(float64(rep.MissingDescriptions))
	m.rowsRejected.WithLabelValues("credit_line").Add(float64(rep.SkippedCredits))
	m.sourcesFailed.Add(float64(rep.FailedSources))
}

// SetRecurring records the recurring merchants of the latest analysis.
func (m *Metrics) SetRecurring(n int) {
	m.recurringGauge.Set(float64(n))
}

// IncrReport counts a report request outcome.
func (m *Metrics) IncrReport(outcome string) {
	m.reportsPublished.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// IncrSecurityEvent counts a rate-limit hit or a suspicious request.
func (m *Metrics) IncrSecurityEvent(kind string) {
	m.securityEvents.WithLabelValues(kind).Inc()
}
