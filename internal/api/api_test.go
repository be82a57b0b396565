package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fx-compliance-engine/internal/monitoring"
	"fx-compliance-engine/internal/penalty"
	"fx-compliance-engine/internal/reconciler"
	"fx-compliance-engine/internal/repository"
	"fx-compliance-engine/internal/resolution"
)

type testServer struct {
	handler http.Handler
	tracker *resolution.Tracker
	audit   *repository.AuditRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := repository.InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tracker := resolution.NewTracker(repository.NewResolutionRepo(db))
	service, err := reconciler.NewReconciliationService(reconciler.DefaultConfig(), reconciler.WithTracker(tracker))
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}
	audit := repository.NewAuditRepo(db)

	handler := NewRouter(Dependencies{
		Service:  service,
		Tracker:  tracker,
		Penalty:  penalty.NewCalculator(penalty.DefaultConfig()),
		Audit:    audit,
		AuditLog: audit,
		Metrics:  monitoring.NewMetrics(),
	})
	return &testServer{handler: handler, tracker: tracker, audit: audit}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(ActorHeader, "analyst@example.com")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

const analysisBody = `{
	"customs": [
		{"id":"C1","date":"2023-05-15","entity":"Acme","type":"import","currency":"USD","amount":85000,"product":"Widgets","bank":"First Bank"}
	],
	"financial": [
		{"id":"F1","date":"2023-05-15","entity":"Acme","type":"import","currency":"USD","amount":65000,"product":"Widgets","bank":"First Bank","status":"compliant"}
	]
}`

type analysisResponse struct {
	Analysis struct {
		TotalTransactions int `json:"totalTransactions"`
		FlaggedCount      int `json:"flaggedCount"`
		DataDiscrepancies []struct {
			Type             string  `json:"discrepancyType"`
			Pct              float64 `json:"percentageDifference"`
			Severity         string  `json:"severity"`
			ResolutionStatus string  `json:"resolutionStatus"`
			Annotations      string  `json:"annotations"`
		} `json:"dataDiscrepancies"`
	} `json:"analysis"`
}

func TestRunAnalysis(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/analysis", analysisBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var resp analysisResponse
	decode(t, rec, &resp)
	if resp.Analysis.TotalTransactions != 2 || resp.Analysis.FlaggedCount != 2 {
		t.Errorf("Unexpected analysis: %+v", resp.Analysis)
	}
	if len(resp.Analysis.DataDiscrepancies) != 1 || resp.Analysis.DataDiscrepancies[0].Severity != "medium" {
		t.Fatalf("Expected one medium discrepancy, got %+v", resp.Analysis.DataDiscrepancies)
	}

	records, err := s.audit.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 || records[0].Action != resolution.ActionAnalysisRun || records[0].Actor != "analyst@example.com" {
		t.Errorf("Expected analysis audit entry, got %+v", records)
	}
}

func TestRunAnalysis_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"records":`},
		{"invalid record", `{"records":[{"id":"X","date":"2023-05-15","entity":"Acme","type":"barter","currency":"USD","amount":1,"source":"customs"}]}`},
		{"bad start date", `{"records":[],"startDate":"15/05/2023"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/analysis", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestResolutionRoundTrip(t *testing.T) {
	s := newTestServer(t)

	update := `{"key":{"entity":"Acme","date":"2023-05-15","discrepancyType":"total","customsId":"C1","financialId":"F1"},
		"resolutionStatus":"investigating","annotations":"awaiting invoice"}`
	rec := s.do(t, http.MethodPut, "/api/v1/resolutions", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var state resolution.State
	decode(t, rec, &state)
	if state.UpdatedBy != "analyst@example.com" || state.Annotations != "awaiting invoice" {
		t.Errorf("Unexpected state: %+v", state)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/analysis", analysisBody)
	var resp analysisResponse
	decode(t, rec, &resp)
	d := resp.Analysis.DataDiscrepancies[0]
	if d.ResolutionStatus != "investigating" || d.Annotations != "awaiting invoice" {
		t.Errorf("Expected saved state on the fresh pass, got %+v", d)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/resolutions?status=investigating", "")
	var list struct {
		Total int `json:"total"`
	}
	decode(t, rec, &list)
	if list.Total != 1 {
		t.Errorf("Expected 1 investigating state, got %d", list.Total)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/resolutions?status=resolved", "")
	decode(t, rec, &list)
	if list.Total != 0 {
		t.Errorf("Expected no resolved states, got %d", list.Total)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/audit?limit=5", "")
	var audit struct {
		Total int `json:"total"`
	}
	decode(t, rec, &audit)
	if audit.Total != 2 {
		t.Errorf("Expected 2 audit entries, got %d", audit.Total)
	}
}

func TestUpdateResolution_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad status", `{"key":{"entity":"Acme","date":"2023-05-15","discrepancyType":"total"},"resolutionStatus":"closed"}`, http.StatusBadRequest},
		{"missing entity", `{"key":{"date":"2023-05-15","discrepancyType":"total"},"resolutionStatus":"resolved"}`, http.StatusBadRequest},
		{"malformed", `nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPut, "/api/v1/resolutions", tt.body)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCalculatePenalty(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantTotal string
	}{
		{"days late", `{"transaction":{"id":"T1","amount":10000},"receivedAmount":4000,"daysLate":10}`, http.StatusOK, "15000"},
		{"on time by days", `{"transaction":{"id":"T1","amount":10000},"receivedAmount":4000,"daysLate":0}`, http.StatusOK, "6000"},
		{"dates", `{"transaction":{"id":"T1","amount":10000},"receivedAmount":"4000","dueDate":"2023-06-01","receivedDate":"2023-06-11"}`, http.StatusOK, "15000"},
		{"missing timing", `{"transaction":{"id":"T1","amount":10000},"receivedAmount":4000}`, http.StatusBadRequest, ""},
		{"missing transaction", `{"receivedAmount":4000,"daysLate":1}`, http.StatusBadRequest, ""},
		{"negative received", `{"transaction":{"id":"T1","amount":10000},"receivedAmount":-1,"daysLate":1}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/penalty", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantTotal == "" {
				return
			}
			var result struct {
				TotalDue string `json:"totalDue"`
			}
			decode(t, rec, &result)
			if result.TotalDue != tt.wantTotal {
				t.Errorf("Expected total %s, got %s", tt.wantTotal, result.TotalDue)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("Unexpected health response: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `fxcompliance_http_requests_total{method="GET",route="/healthz",status_code="200"} 1`) {
		t.Errorf("Expected request metric for /healthz, got:\n%s", rec.Body.String())
	}
}

func TestListAudit_NotConfigured(t *testing.T) {
	handler := NewRouter(Dependencies{
		Tracker: resolution.NewTracker(resolution.NewMemoryStore()),
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", rec.Code)
	}
}
