package cmd

import (
	"database/sql"

	"fx-compliance-engine/cmd/fxcompliance/config"
	"fx-compliance-engine/internal/repository"
	"fx-compliance-engine/internal/resolution"
	apperrors "fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// stateStore bundles resolution state and the audit trail of one process
type stateStore struct {
	db       *sql.DB
	tracker  *resolution.Tracker
	states   *repository.ResolutionRepo
	audit    resolution.AuditSink
	auditLog *repository.AuditRepo
}

// openState opens the SQLite state file, or an in-memory store when none is
// configured. The audit log file sink is added when log.audit_file is set.
func openState(cfg *config.Config, log logger.Logger) (*stateStore, error) {
	var sinks resolution.AuditSinks

	if cfg.Audit.File != "" {
		auditLogger, err := logger.NewAuditLogger(cfg.Audit)
		if err != nil {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, config.KeyAuditFile, cfg.Audit.File, err)
		}
		sinks = append(sinks, resolution.NewLogAuditSink(auditLogger))
	}

	if cfg.StateDB == "" {
		log.Debug("no state database configured, resolution state is kept in memory")
		state := &stateStore{tracker: resolution.NewTracker(resolution.NewMemoryStore())}
		if len(sinks) > 0 {
			state.audit = sinks
		}
		return state, nil
	}

	db, err := repository.InitDB(cfg.StateDB)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStorageUnavailable, "open "+cfg.StateDB, err)
	}
	log.WithField("path", cfg.StateDB).Debug("opened state database")

	states := repository.NewResolutionRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	sinks = append(sinks, auditRepo)

	return &stateStore{
		db:       db,
		tracker:  resolution.NewTracker(states),
		states:   states,
		audit:    sinks,
		auditLog: auditRepo,
	}, nil
}

func (s *stateStore) persistent() bool {
	return s.db != nil
}

func (s *stateStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
