package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"fx-compliance-engine/internal/resolution"
	apperrors "fx-compliance-engine/pkg/errors"
)

// AuditRecord is a stored audit entry
type AuditRecord struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Module     string    `json:"module"`
	Detail     string    `json:"detail"`
	RecordedAt time.Time `json:"recordedAt"`
}

// AuditRepo implements resolution.AuditSink on SQLite
type AuditRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditRepo creates an audit log repository
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db, now: time.Now}
}

var _ resolution.AuditSink = (*AuditRepo)(nil)

// Record appends an entry to the audit log
func (r *AuditRepo) Record(ctx context.Context, entry resolution.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor, action, module, detail, recorded_at)
		VALUES (?,?,?,?,?,?)`,
		uuid.NewString(), entry.Actor, entry.Action, entry.Module, entry.Detail,
		r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "record audit entry", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor, action, module, detail, recorded_at
		FROM audit_log ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list audit entries", err)
	}
	defer rows.Close()

	records := []AuditRecord{}
	for rows.Next() {
		var rec AuditRecord
		var recordedAt string
		if err := rows.Scan(&rec.ID, &rec.Actor, &rec.Action, &rec.Module, &rec.Detail, &recordedAt); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "scan audit entry", err)
		}
		rec.RecordedAt, _ = time.Parse(timeLayout, recordedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
