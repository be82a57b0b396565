package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/monitoring"
	"fx-compliance-engine/internal/penalty"
	"fx-compliance-engine/internal/reconciler"
	"fx-compliance-engine/internal/resolution"
	"fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// ActorHeader names the analyst performing a state-changing request
const ActorHeader = "X-Actor"

const defaultActor = "api"

// Handlers groups all HTTP handler methods and their dependencies
type Handlers struct {
	service  *reconciler.ReconciliationService
	tracker  *resolution.Tracker
	penalty  *penalty.Calculator
	audit    resolution.AuditSink
	auditLog AuditReader
	metrics  *monitoring.Metrics
	logger   logger.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Warn("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps error categories to HTTP status codes
func (h *Handlers) writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		h.logger.WithError(err).Error("unexpected handler error")
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Category {
	case errors.CategoryInput, errors.CategoryParse, errors.CategoryValidation:
		status = http.StatusBadRequest
		if appErr.Code == errors.CodeUnknownKey {
			status = http.StatusNotFound
		}
	case errors.CategoryStorage:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}

	body := map[string]string{"error": appErr.Message, "code": string(appErr.Code)}
	if appErr.Suggestion != "" {
		body["suggestion"] = appErr.Suggestion
	}
	h.writeJSON(w, status, body)
}

func actor(r *http.Request) string {
	if a := r.Header.Get(ActorHeader); a != "" {
		return a
	}
	return defaultActor
}

// recordAudit writes an audit entry after a successful change. Sink
// failures are logged, never surfaced to the caller.
func (h *Handlers) recordAudit(r *http.Request, action, detail string) {
	if h.audit == nil {
		return
	}
	entry := resolution.AuditEntry{
		Actor:  actor(r),
		Action: action,
		Module: resolution.ModuleReconciliation,
		Detail: detail,
	}
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.logger.WithError(err).WithField("action", action).Warn("failed to record audit entry")
	}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- RunAnalysis ---

type analysisRequest struct {
	// Records is one combined list tagged by source
	Records []*models.TransactionRecord `json:"records"`
	// Customs and Financial default missing sources to their list
	Customs   []*models.TransactionRecord `json:"customs"`
	Financial []*models.TransactionRecord `json:"financial"`
	StartDate string                      `json:"startDate"`
	EndDate   string                      `json:"endDate"`
}

func (req *analysisRequest) records() []*models.TransactionRecord {
	out := make([]*models.TransactionRecord, 0, len(req.Records)+len(req.Customs)+len(req.Financial))
	add := func(records []*models.TransactionRecord, source models.Source) {
		for _, r := range records {
			if r == nil {
				continue
			}
			if r.Source == "" {
				r.Source = source
			}
			r.Status = ""
			r.FlagReason = ""
			out = append(out, r)
		}
	}
	add(req.Customs, models.SourceCustoms)
	add(req.Financial, models.SourceFinancial)
	add(req.Records, "")
	return out
}

func (h *Handlers) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var dateRange *reconciler.DateRange
	if start != nil || end != nil {
		dateRange = &reconciler.DateRange{Start: start, End: end}
	}

	result, err := h.service.Analyze(r.Context(), req.records(), dateRange)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	h.recordAudit(r, resolution.ActionAnalysisRun, fmt.Sprintf(
		"analyzed %d transactions: %d flagged, %d discrepancies",
		result.Analysis.TotalTransactions, result.Analysis.FlaggedCount, result.Summary.Discrepancies))

	h.writeJSON(w, http.StatusOK, result)
}

// --- CalculatePenalty ---

type penaltyRequest struct {
	Transaction    *models.TransactionRecord `json:"transaction"`
	ReceivedAmount decimal.Decimal           `json:"receivedAmount"`
	// DaysLate is used when DueDate and ReceivedDate are absent
	DaysLate     *int   `json:"daysLate"`
	DueDate      string `json:"dueDate"`
	ReceivedDate string `json:"receivedDate"`
}

func (h *Handlers) CalculatePenalty(w http.ResponseWriter, r *http.Request) {
	var req penaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Transaction == nil {
		h.writeError(w, http.StatusBadRequest, "transaction is required")
		return
	}
	if req.Transaction.Amount.IsNegative() || req.ReceivedAmount.IsNegative() {
		h.writeError(w, http.StatusBadRequest, "amounts cannot be negative")
		return
	}

	due, err := parseDate(req.DueDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	received, err := parseDate(req.ReceivedDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result penalty.Result
	switch {
	case due != nil && received != nil:
		result = h.penalty.Assess(req.Transaction, *due, *received, req.ReceivedAmount)
	case req.DaysLate != nil:
		result = h.penalty.ForDaysLate(req.Transaction, *req.DaysLate, req.ReceivedAmount)
	default:
		h.writeError(w, http.StatusBadRequest, "either dueDate and receivedDate or daysLate is required")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordPenaltyAssessment()
	}
	h.writeJSON(w, http.StatusOK, result)
}

// --- Resolutions ---

func (h *Handlers) ListResolutions(w http.ResponseWriter, r *http.Request) {
	states, err := h.tracker.List(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	if status := models.ResolutionStatus(r.URL.Query().Get("status")); status != "" {
		filtered := states[:0]
		for _, s := range states {
			if s.Status == status {
				filtered = append(filtered, s)
			}
		}
		states = filtered
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Key.String() < states[j].Key.String()
	})

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  states,
		"total": len(states),
	})
}

type resolutionUpdateRequest struct {
	Key         resolution.Key          `json:"key"`
	Status      models.ResolutionStatus `json:"resolutionStatus"`
	Annotations *string                 `json:"annotations"`
}

func (h *Handlers) UpdateResolution(w http.ResponseWriter, r *http.Request) {
	var req resolutionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	state, err := h.tracker.Update(r.Context(), req.Key, resolution.Change{
		Status:      req.Status,
		Annotations: req.Annotations,
		Actor:       actor(r),
	})
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordResolutionUpdate(state.Status)
	}
	h.recordAudit(r, resolution.ActionResolutionUpdated,
		fmt.Sprintf("%s set to %s", state.Key.String(), state.Status))

	h.writeJSON(w, http.StatusOK, state)
}

// --- ListAudit ---

func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		h.writeError(w, http.StatusNotImplemented, "audit log storage is not configured")
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	records, err := h.auditLog.Recent(r.Context(), limit)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": len(records),
	})
}
