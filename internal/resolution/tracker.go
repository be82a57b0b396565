// Package resolution carries analyst status and annotations across
// reconciliation passes. Discrepancies are recomputed on every pass, so
// state is attached through a composite key rather than an ID.
package resolution

import (
	"context"
	"strings"
	"sync"
	"time"

	"fx-compliance-engine/internal/models"
	apperrors "fx-compliance-engine/pkg/errors"
)

// Key identifies a discrepancy across passes
type Key struct {
	Entity      string                 `json:"entity"`
	Date        string                 `json:"date"`
	Type        models.DiscrepancyType `json:"discrepancyType"`
	CustomsID   string                 `json:"customsId,omitempty"`
	FinancialID string                 `json:"financialId,omitempty"`
}

// KeyOf derives the key of a discrepancy
func KeyOf(d *models.DiscrepancyRecord) Key {
	key := Key{Entity: d.Entity(), Date: d.Date(), Type: d.Type}
	if d.Customs != nil {
		key.CustomsID = d.Customs.ID
	}
	if d.Financial != nil {
		key.FinancialID = d.Financial.ID
	}
	return key
}

var keyPartEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// String renders the key as a storage identifier. Parts are joined with "|"
// and any "|" or "\" inside a part is backslash-escaped.
func (k Key) String() string {
	parts := []string{k.Entity, k.Date, string(k.Type), k.CustomsID, k.FinancialID}
	for i, part := range parts {
		parts[i] = keyPartEscaper.Replace(part)
	}
	return strings.Join(parts, "|")
}

// Validate checks the fields every key carries
func (k Key) Validate() error {
	if strings.TrimSpace(k.Entity) == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "entity", k.Entity, nil)
	}
	if strings.TrimSpace(k.Date) == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "date", k.Date, nil)
	}
	if strings.TrimSpace(string(k.Type)) == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "discrepancyType", k.Type, nil)
	}
	return nil
}

// State is the analyst-owned part of a discrepancy
type State struct {
	Key         Key                     `json:"key"`
	Status      models.ResolutionStatus `json:"resolutionStatus"`
	Annotations string                  `json:"annotations"`
	UpdatedBy   string                  `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// Change is one analyst action. A nil Annotations keeps the current notes.
type Change struct {
	Status      models.ResolutionStatus
	Annotations *string
	Actor       string
}

// Snapshot is the saved state keyed by Key.String()
type Snapshot map[string]State

// Store persists resolution state
type Store interface {
	Get(ctx context.Context, key Key) (State, bool, error)
	Put(ctx context.Context, state State) error
	List(ctx context.Context) ([]State, error)
}

// Tracker applies analyst changes to a store. Any status is reachable from
// any other; only the status value itself is validated. Updates are
// serialized so concurrent callers never overwrite each other's notes.
type Tracker struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

// NewTracker creates a tracker over store
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Update records a status change and optional annotations
func (t *Tracker) Update(ctx context.Context, key Key, change Change) (State, error) {
	if err := key.Validate(); err != nil {
		return State{}, err
	}
	if !change.Status.IsValid() {
		return State{}, apperrors.ValidationError(apperrors.CodeInvalidStatus, "resolutionStatus", change.Status, nil)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, _, err := t.store.Get(ctx, key)
	if err != nil {
		return State{}, err
	}

	next := State{
		Key:         key,
		Status:      change.Status,
		Annotations: current.Annotations,
		UpdatedBy:   change.Actor,
		UpdatedAt:   t.now().UTC(),
	}
	if change.Annotations != nil {
		next.Annotations = *change.Annotations
	}

	if err := t.store.Put(ctx, next); err != nil {
		return State{}, err
	}
	return next, nil
}

// Get returns the saved state of key
func (t *Tracker) Get(ctx context.Context, key Key) (State, error) {
	state, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, apperrors.ValidationError(apperrors.CodeUnknownKey, "key", key.String(), nil)
	}
	return state, nil
}

// List returns every saved state in store order
func (t *Tracker) List(ctx context.Context) ([]State, error) {
	return t.store.List(ctx)
}

// Snapshot loads every saved state
func (t *Tracker) Snapshot(ctx context.Context) (Snapshot, error) {
	states, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(Snapshot, len(states))
	for _, s := range states {
		snapshot[s.Key.String()] = s
	}
	return snapshot, nil
}

// Merge reattaches saved state to freshly detected discrepancies. Records
// without saved state start unresolved with no annotations. It returns the
// number of discrepancies that picked up saved state.
func Merge(discrepancies []*models.DiscrepancyRecord, snapshot Snapshot) int {
	merged := 0
	for _, d := range discrepancies {
		if d == nil {
			continue
		}
		state, ok := snapshot[KeyOf(d).String()]
		if !ok {
			d.ResolutionStatus = models.ResolutionUnresolved
			d.Annotations = ""
			continue
		}
		d.ResolutionStatus = state.Status
		d.Annotations = state.Annotations
		merged++
	}
	return merged
}
