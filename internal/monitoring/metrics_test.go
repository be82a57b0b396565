package monitoring

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fx-compliance-engine/internal/compliance"
	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/reconciler"
)

func TestObserveReconciliation(t *testing.T) {
	m := NewMetrics()

	summary := &reconciler.ResultSummary{
		UnmatchedCustoms:     2,
		CapitalFlightSignals: 1,
		ProcessingDuration:   5 * time.Millisecond,
	}
	analysis := &compliance.ComplianceAnalysis{
		CompliantCount: 3,
		FlaggedCount:   1,
		ComplianceRate: 75,
		DataDiscrepancies: []*models.DiscrepancyRecord{
			{Type: models.DiscrepancyTotal, Severity: models.SeverityHigh},
			{Type: models.DiscrepancyTotal, Severity: models.SeverityHigh},
		},
	}

	m.ObserveReconciliation(summary, analysis)
	m.ObserveReconciliation(summary, analysis)

	body := scrape(t, m)
	for _, want := range []string{
		`fxcompliance_reconciliations_total 2`,
		`fxcompliance_capital_flight_signals_total 2`,
		`fxcompliance_discrepancies_total{severity="high",type="total"} 4`,
		`fxcompliance_transactions{status="compliant"} 3`,
		`fxcompliance_compliance_rate_percent 75`,
		`fxcompliance_unmatched_records{source="customs"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	return string(body)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
	m.RecordResolutionUpdate(models.ResolutionResolved)
	m.RecordPenaltyAssessment()

	body := scrape(t, m)
	for _, want := range []string{
		`fxcompliance_http_requests_total{method="GET",route="/healthz",status_code="200"} 1`,
		`fxcompliance_resolution_updates_total{status="resolved"} 1`,
		`fxcompliance_penalty_assessments_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
}
