package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/resolution"
	apperrors "fx-compliance-engine/pkg/errors"
)

// ResolutionRepo implements resolution.Store on SQLite
type ResolutionRepo struct {
	db *sql.DB
}

// NewResolutionRepo creates a resolution state repository
func NewResolutionRepo(db *sql.DB) *ResolutionRepo {
	return &ResolutionRepo{db: db}
}

var _ resolution.Store = (*ResolutionRepo)(nil)

const resolutionColumns = `entity, date, discrepancy_type, customs_id, financial_id,
	status, annotations, updated_by, updated_at`

// Get returns the saved state of key
func (r *ResolutionRepo) Get(ctx context.Context, key resolution.Key) (resolution.State, bool, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+resolutionColumns+" FROM resolution_states WHERE discrepancy_key = ?", key.String())

	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return resolution.State{}, false, nil
	}
	if err != nil {
		return resolution.State{}, false, apperrors.StorageError(apperrors.CodeQueryFailed, "get resolution state", err)
	}
	return state, true, nil
}

// Put inserts or replaces the state of its key
func (r *ResolutionRepo) Put(ctx context.Context, state resolution.State) error {
	k := state.Key
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resolution_states
		(discrepancy_key, entity, date, discrepancy_type, customs_id, financial_id,
		 status, annotations, updated_by, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(discrepancy_key) DO UPDATE SET
			status = excluded.status,
			annotations = excluded.annotations,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		k.String(), k.Entity, k.Date, string(k.Type), k.CustomsID, k.FinancialID,
		string(state.Status), state.Annotations, state.UpdatedBy, state.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "save resolution state", err)
	}
	return nil
}

// List returns every saved state ordered by key
func (r *ResolutionRepo) List(ctx context.Context) ([]resolution.State, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+resolutionColumns+" FROM resolution_states ORDER BY discrepancy_key")
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list resolution states", err)
	}
	defer rows.Close()

	states := []resolution.State{}
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "scan resolution state", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list resolution states", err)
	}
	return states, nil
}

// CountByStatus returns how many saved states are in each status
func (r *ResolutionRepo) CountByStatus(ctx context.Context) (map[models.ResolutionStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM resolution_states GROUP BY status")
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "count resolution states", err)
	}
	defer rows.Close()

	counts := make(map[models.ResolutionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "scan resolution count", err)
		}
		counts[models.ResolutionStatus(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(s scanner) (resolution.State, error) {
	var state resolution.State
	var dtype, status, updatedAt string

	err := s.Scan(
		&state.Key.Entity, &state.Key.Date, &dtype, &state.Key.CustomsID, &state.Key.FinancialID,
		&status, &state.Annotations, &state.UpdatedBy, &updatedAt,
	)
	if err != nil {
		return resolution.State{}, err
	}

	state.Key.Type = models.DiscrepancyType(dtype)
	state.Status = models.ResolutionStatus(status)
	state.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return state, nil
}
