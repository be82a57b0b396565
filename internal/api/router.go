// Package api serves the reconciliation engine over HTTP for the host
// dashboard.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fx-compliance-engine/internal/monitoring"
	"fx-compliance-engine/internal/penalty"
	"fx-compliance-engine/internal/reconciler"
	"fx-compliance-engine/internal/repository"
	"fx-compliance-engine/internal/resolution"
	"fx-compliance-engine/pkg/logger"
)

// AuditReader lists recorded audit entries
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]repository.AuditRecord, error)
}

// Dependencies are the collaborators the handlers need. Audit, AuditLog and
// Metrics are optional.
type Dependencies struct {
	Service  *reconciler.ReconciliationService
	Tracker  *resolution.Tracker
	Penalty  *penalty.Calculator
	Audit    resolution.AuditSink
	AuditLog AuditReader
	Metrics  *monitoring.Metrics
	Logger   logger.Logger
}

// NewRouter creates the Chi router with all API routes mounted
func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logger.GetGlobalLogger()
	}
	h := &Handlers{
		service:  deps.Service,
		tracker:  deps.Tracker,
		penalty:  deps.Penalty,
		audit:    deps.Audit,
		auditLog: deps.AuditLog,
		metrics:  deps.Metrics,
		logger:   deps.Logger.WithComponent("api"),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger, deps.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		// Analysis.
		r.Post("/analysis", h.RunAnalysis)

		// Penalty.
		r.Post("/penalty", h.CalculatePenalty)

		// Resolutions.
		r.Get("/resolutions", h.ListResolutions)
		r.Put("/resolutions", h.UpdateResolution)

		// Audit log.
		r.Get("/audit", h.ListAudit)
	})

	return r
}
