package telemetry

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestSQLiteStore(t *testing.T) *SQLiteSummaryStore {
	t.Helper()
	store, err := OpenSQLiteSummaryStore(filepath.Join(t.TempDir(), "state", "summaries.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteSummaryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteSummaryStore_UpsertAndRead(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()

	if _, ok := store.Read(ctx, "2024-01-01"); ok {
		t.Fatal("Read hit on empty table")
	}

	first := sampleSummary("2024-01-01")
	if err := store.Write(ctx, "2024-01-01", first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	second := sampleSummary("2024-01-01")
	second.Summary.Total = 999
	if err := store.Write(ctx, "2024-01-01", second); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, ok := store.Read(ctx, "2024-01-01")
	if !ok {
		t.Fatal("Read miss after Write")
	}
	if got.Summary.Total != 999 {
		t.Fatalf("summary total = %d, want 999", got.Summary.Total)
	}

	var rows int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM daily_summaries`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
}

func TestSQLiteSummaryStore_StaleSchemaIsMiss(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()

	stale := sampleSummary("2024-01-01")
	stale.SchemaVersion = 1
	if err := store.Write(ctx, "2024-01-01", stale); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := store.Read(ctx, "2024-01-01"); ok {
		t.Fatal("Read hit on schema version 1")
	}

	if _, err := store.db.Exec(`UPDATE daily_summaries SET schema_version = 2, document = '{"schemaVersion":2' WHERE day = '2024-01-01'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	if _, ok := store.Read(ctx, "2024-01-01"); ok {
		t.Fatal("Read hit on truncated document")
	}
}

func TestSQLiteSummaryStore_StampTracksRowChanges(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()

	if _, ok := store.Stamp(ctx, "2024-01-01"); ok {
		t.Fatal("Stamp reported a row on empty table")
	}
	if err := store.Write(ctx, "2024-01-01", sampleSummary("2024-01-01")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first, ok := store.Stamp(ctx, "2024-01-01")
	if !ok {
		t.Fatal("Stamp miss after Write")
	}
	again, _ := store.Stamp(ctx, "2024-01-01")
	if again != first {
		t.Fatalf("Stamp changed without a write: %q then %q", first, again)
	}

	if _, err := store.db.Exec(`UPDATE daily_summaries SET document = '{}' WHERE day = '2024-01-01'`); err != nil {
		t.Fatalf("edit row: %v", err)
	}
	edited, ok := store.Stamp(ctx, "2024-01-01")
	if !ok || edited == first {
		t.Fatalf("Stamp after edit = %q, %v; want a new stamp", edited, ok)
	}

	if _, err := store.db.Exec(`UPDATE daily_summaries SET schema_version = 1 WHERE day = '2024-01-01'`); err != nil {
		t.Fatalf("downgrade row: %v", err)
	}
	if _, ok := store.Stamp(ctx, "2024-01-01"); ok {
		t.Fatal("Stamp reported a row with schema version 1")
	}
}
