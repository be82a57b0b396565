// Package monitoring exposes Prometheus metrics for reconciliation passes,
// analyst actions and the HTTP surface.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fx-compliance-engine/internal/compliance"
	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/reconciler"
)

const namespace = "fxcompliance"

// Metrics holds every collector on its own registry so tests and multiple
// servers never collide on the default one
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	reconciliationsTotal   prometheus.Counter
	reconciliationDuration prometheus.Histogram
	discrepanciesTotal     *prometheus.CounterVec
	capitalFlightTotal     prometheus.Counter
	transactionsByStatus   *prometheus.GaugeVec
	complianceRate         prometheus.Gauge
	unmatchedRecords       *prometheus.GaugeVec

	resolutionUpdatesTotal *prometheus.CounterVec
	penaltyAssessments     prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		reconciliationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Total number of completed reconciliation passes",
		}),
		reconciliationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		discrepanciesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discrepancies_total",
			Help:      "Discrepancies detected, by type and severity",
		}, []string{"type", "severity"}),
		capitalFlightTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capital_flight_signals_total",
			Help:      "Discrepancies flagged as potential capital flight",
		}),
		transactionsByStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions",
			Help:      "Transactions in the latest pass, by compliance status",
		}, []string{"status"}),
		complianceRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compliance_rate_percent",
			Help:      "Compliance rate of the latest pass",
		}),
		unmatchedRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unmatched_records",
			Help:      "Records without a counterpart in the latest pass, by source",
		}, []string{"source"}),

		resolutionUpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_updates_total",
			Help:      "Analyst resolution updates, by new status",
		}, []string{"status"}),
		penaltyAssessments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalty_assessments_total",
			Help:      "Penalty calculations served",
		}),
	}
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveReconciliation implements reconciler.MetricsRecorder
func (m *Metrics) ObserveReconciliation(summary *reconciler.ResultSummary, analysis *compliance.ComplianceAnalysis) {
	m.reconciliationsTotal.Inc()
	if summary != nil {
		m.reconciliationDuration.Observe(summary.ProcessingDuration.Seconds())
		m.capitalFlightTotal.Add(float64(summary.CapitalFlightSignals))
		m.unmatchedRecords.WithLabelValues(string(models.SourceCustoms)).Set(float64(summary.UnmatchedCustoms))
		m.unmatchedRecords.WithLabelValues(string(models.SourceFinancial)).Set(float64(summary.UnmatchedFinancial))
	}
	if analysis == nil {
		return
	}

	m.transactionsByStatus.WithLabelValues(string(models.StatusCompliant)).Set(float64(analysis.CompliantCount))
	m.transactionsByStatus.WithLabelValues(string(models.StatusPending)).Set(float64(analysis.PendingCount))
	m.transactionsByStatus.WithLabelValues(string(models.StatusFlagged)).Set(float64(analysis.FlaggedCount))
	m.complianceRate.Set(analysis.ComplianceRate)

	for _, d := range analysis.DataDiscrepancies {
		m.discrepanciesTotal.WithLabelValues(string(d.Type), string(d.Severity)).Inc()
	}
}

// RecordResolutionUpdate counts an analyst status change
func (m *Metrics) RecordResolutionUpdate(status models.ResolutionStatus) {
	m.resolutionUpdatesTotal.WithLabelValues(string(status)).Inc()
}

// RecordPenaltyAssessment counts a penalty calculation
func (m *Metrics) RecordPenaltyAssessment() {
	m.penaltyAssessments.Inc()
}
