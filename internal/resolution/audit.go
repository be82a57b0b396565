package resolution

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Audit actions recorded by callers
const (
	ActionResolutionUpdated = "resolution.updated"
	ActionAnalysisRun       = "analysis.run"
	ModuleReconciliation    = "reconciliation"
)

// AuditEntry is one audit trail line
type AuditEntry struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Module string `json:"module"`
	Detail string `json:"detail"`
}

// AuditSink records state-changing operations. The reconciliation core
// never calls it; the CLI and HTTP handlers do after a change succeeds.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// LogAuditSink writes entries to a dedicated logrus logger
type LogAuditSink struct {
	logger *logrus.Logger
}

// NewLogAuditSink wraps an audit logger
func NewLogAuditSink(logger *logrus.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger}
}

// Record writes the entry as one JSON line
func (s *LogAuditSink) Record(_ context.Context, entry AuditEntry) error {
	s.logger.WithFields(logrus.Fields{
		"actor":  entry.Actor,
		"action": entry.Action,
		"module": entry.Module,
	}).Info(entry.Detail)
	return nil
}

// AuditSinks fans an entry out to several sinks, stopping at the first error
type AuditSinks []AuditSink

// Record implements AuditSink
func (s AuditSinks) Record(ctx context.Context, entry AuditEntry) error {
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
