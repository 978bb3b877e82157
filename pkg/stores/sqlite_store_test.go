package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/floatingatoll/puppet/pkg/engine"
	"github.com/floatingatoll/puppet/pkg/transaction"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "reports.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func sampleReport(t *testing.T) *engine.Report {
	t.Helper()

	report := engine.NewReport("debian", false)

	changed := transaction.NewStatus(transaction.Identity{
		ResourceType:    "package",
		Title:           "nginx",
		File:            "site.cue",
		Line:            12,
		ContainmentPath: []string{"main", "web"},
		Tags:            []string{"web"},
	})
	if err := changed.RecordEvent(transaction.NewEvent("installed", transaction.StatusSuccess, "ensure: changed 'absent' to 'present'")); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	changed.SetEvaluationTime(42 * time.Millisecond)
	report.Append(changed.Snapshot())

	failed := transaction.NewStatus(transaction.Identity{
		ResourceType: "package",
		Title:        "broken",
	})
	if err := failed.RecordEvent(transaction.NewEvent("install", transaction.StatusFailure, "install exploded")); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	report.Append(failed.Snapshot())

	report.Finish()
	return report
}

func TestSaveAndGetReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report := sampleReport(t)
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := store.GetReport(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}

	if got.ID != report.ID || got.Platform != "debian" {
		t.Errorf("got id=%s platform=%s", got.ID, got.Platform)
	}
	if got.Status != engine.ReportStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ResourceCount != 2 || got.ChangedCount != 1 || got.FailedCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", got.ResourceCount, got.ChangedCount, got.FailedCount)
	}

	if len(got.Statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(got.Statuses))
	}

	first := got.Statuses[0]
	if first.Title != "nginx" || first.ResourceType != "package" {
		t.Errorf("first status = %s[%s]", first.ResourceType, first.Title)
	}
	if len(first.ContainmentPath) != 2 || first.ContainmentPath[0] != "main" {
		t.Errorf("containment path = %v", first.ContainmentPath)
	}
	if first.EvaluationTime != 42*time.Millisecond {
		t.Errorf("evaluation time = %v, want 42ms", first.EvaluationTime)
	}
	if len(first.Events) != 1 || first.Events[0].Status != transaction.StatusSuccess {
		t.Errorf("first events = %+v", first.Events)
	}

	second := got.Statuses[1]
	if !second.Failed || second.Changed {
		t.Errorf("second failed=%v changed=%v, want true/false", second.Failed, second.Changed)
	}
	if len(second.Events) != 1 || second.Events[0].Message != "install exploded" {
		t.Errorf("second events = %+v", second.Events)
	}
}

func TestGetReportNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetReport(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected an error for a missing report")
	}
}

func TestListReports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleReport(t)
	if err := store.SaveReport(ctx, first); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	second := engine.NewReport("fedora", true)
	second.StartedAt = first.StartedAt.Add(time.Minute)
	second.Finish()
	if err := store.SaveReport(ctx, second); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	summaries, err := store.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	// Newest first.
	if summaries[0].ID != second.ID {
		t.Errorf("first summary = %s, want %s", summaries[0].ID, second.ID)
	}
	if !summaries[0].Noop || summaries[0].Platform != "fedora" {
		t.Errorf("unexpected summary: %+v", summaries[0])
	}
}

func TestDeleteReportCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report := sampleReport(t)
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	if err := store.DeleteReport(ctx, report.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if _, err := store.GetReport(ctx, report.ID); err == nil {
		t.Fatal("deleted report should not be retrievable")
	}

	var count int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM report_resources").Scan(&count); err != nil {
		t.Fatalf("count resources: %v", err)
	}
	if count != 0 {
		t.Errorf("resource rows remain after cascade delete: %d", count)
	}

	if err := store.DeleteReport(ctx, report.ID); err == nil {
		t.Error("deleting a missing report should error")
	}
}
