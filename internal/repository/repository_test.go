package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/resolution"
)

func openTestDB(t *testing.T) *ResolutionRepo {
	t.Helper()
	db, err := InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewResolutionRepo(db)
}

func testKey(customsID string) resolution.Key {
	return resolution.Key{
		Entity:      "Acme",
		Date:        "2023-05-15",
		Type:        models.DiscrepancyTotal,
		CustomsID:   customsID,
		FinancialID: "F1",
	}
}

func TestResolutionRepo_PutGet(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, testKey("C1")); err != nil || ok {
		t.Fatalf("expected missing state, got ok=%v err=%v", ok, err)
	}

	updated := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	state := resolution.State{
		Key:         testKey("C1"),
		Status:      models.ResolutionInvestigating,
		Annotations: "asked for invoice",
		UpdatedBy:   "analyst",
		UpdatedAt:   updated,
	}
	if err := repo.Put(ctx, state); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := repo.Get(ctx, testKey("C1"))
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Key != state.Key || got.Status != state.Status || got.Annotations != state.Annotations || got.UpdatedBy != "analyst" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("updated at = %v, want %v", got.UpdatedAt, updated)
	}

	state.Status = models.ResolutionResolved
	state.Annotations = "invoice matched"
	if err := repo.Put(ctx, state); err != nil {
		t.Fatalf("Put upsert: %v", err)
	}
	got, _, _ = repo.Get(ctx, testKey("C1"))
	if got.Status != models.ResolutionResolved || got.Annotations != "invoice matched" {
		t.Errorf("upsert did not replace state: %+v", got)
	}
}

func TestResolutionRepo_ListAndCount(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"C2", "C1", "C3"} {
		status := models.ResolutionResolved
		if i == 0 {
			status = models.ResolutionInvestigating
		}
		if err := repo.Put(ctx, resolution.State{Key: testKey(id), Status: status, UpdatedAt: time.Now()}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	states, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 3 || states[0].Key.CustomsID != "C1" || states[2].Key.CustomsID != "C3" {
		t.Errorf("unexpected list order %+v", states)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[models.ResolutionResolved] != 2 || counts[models.ResolutionInvestigating] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestResolutionRepo_WithTracker(t *testing.T) {
	repo := openTestDB(t)
	tracker := resolution.NewTracker(repo)
	ctx := context.Background()
	note := "escalated"

	if _, err := tracker.Update(ctx, testKey("C1"), resolution.Change{Status: models.ResolutionInvestigating, Annotations: &note}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snapshot, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s, ok := snapshot[testKey("C1").String()]; !ok || s.Annotations != "escalated" {
		t.Errorf("snapshot missing saved state: %v", snapshot)
	}
}

func TestInitDB_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if err := NewResolutionRepo(db).Put(context.Background(), resolution.State{Key: testKey("C1"), Status: models.ResolutionResolved, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	db.Close()

	reopened, err := InitDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, _ := NewResolutionRepo(reopened).Get(context.Background(), testKey("C1")); !ok {
		t.Error("state did not survive reopening the database")
	}
}

func TestAuditRepo(t *testing.T) {
	db, err := InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer db.Close()

	repo := NewAuditRepo(db)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	ctx := context.Background()
	for _, detail := range []string{"first", "second", "third"} {
		err := repo.Record(ctx, resolution.AuditEntry{
			Actor:  "analyst",
			Action: resolution.ActionResolutionUpdated,
			Module: resolution.ModuleReconciliation,
			Detail: detail,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 || records[0].Detail != "third" || records[1].Detail != "second" {
		t.Errorf("unexpected records %+v", records)
	}
	if _, err := uuid.Parse(records[0].ID); err != nil {
		t.Errorf("expected uuid id, got %q", records[0].ID)
	}
}
