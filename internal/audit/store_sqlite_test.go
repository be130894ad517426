package audit

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// createTestDB creates an in-memory SQLite database for testing.
func createTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestEntries(t *testing.T, store *SQLiteStore, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		entry := Build(RequestMeta{
			ID:     fmt.Sprintf("entry-%02d", i),
			Method: "GET",
			URL:    "/users",
		}, ResponseMeta{StatusCode: 200})
		entry.Timestamp = time.Now().Add(time.Duration(i) * time.Second)
		if err := store.Insert(ctx, entry); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}
}

func TestSQLiteStoreInsertAndCount(t *testing.T) {
	store, err := NewSQLiteStore(createTestDB(t))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	insertTestEntries(t, store, 3)

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestSQLiteStoreInsertDuplicateID(t *testing.T) {
	store, err := NewSQLiteStore(createTestDB(t))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	entry := Build(RequestMeta{ID: "dup", Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200})
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatal(err)
	}
	// A duplicate id is ignored, not an error.
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("duplicate insert should be ignored, got %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSQLiteStoreDeleteBefore(t *testing.T) {
	store, err := NewSQLiteStore(createTestDB(t))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	old := Build(RequestMeta{ID: "old", Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200})
	old.Timestamp = time.Now().AddDate(0, 0, -60)
	recent := Build(RequestMeta{ID: "recent", Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200})

	if err := store.Insert(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, recent); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.DeleteBefore(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1 after retention", count)
	}
}

// Stored timestamps are compared as text, so whole-second and fractional
// values must sort chronologically against each other.
func TestSQLiteStoreSubsecondOrdering(t *testing.T) {
	store, err := NewSQLiteStore(createTestDB(t))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	whole := Build(RequestMeta{ID: "whole", Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200})
	whole.Timestamp = base
	later := Build(RequestMeta{ID: "later", Method: "GET", URL: "/users"}, ResponseMeta{StatusCode: 200})
	later.Timestamp = base.Add(500 * time.Millisecond)

	if err := store.Insert(ctx, whole); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, later); err != nil {
		t.Fatal(err)
	}

	result, err := store.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(result.Entries))
	}
	if result.Entries[0].ID != "later" || result.Entries[1].ID != "whole" {
		t.Errorf("order = [%s %s], want [later whole]", result.Entries[0].ID, result.Entries[1].ID)
	}

	// A cutoff between the two must delete only the older entry.
	deleted, err := store.DeleteBefore(ctx, base.Add(250*time.Millisecond))
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSQLiteStoreList(t *testing.T) {
	store, err := NewSQLiteStore(createTestDB(t))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	insertTestEntries(t, store, 5)

	failed := Build(RequestMeta{ID: "failed", Method: "DELETE", URL: "/orders/1"}, ResponseMeta{StatusCode: 404})
	failed.Timestamp = time.Now().Add(time.Hour)
	if err := store.Insert(ctx, failed); err != nil {
		t.Fatal(err)
	}

	t.Run("newest first", func(t *testing.T) {
		result, err := store.List(ctx, ListParams{Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if result.Total != 6 {
			t.Errorf("total = %d, want 6", result.Total)
		}
		if len(result.Entries) != 6 {
			t.Fatalf("entries = %d, want 6", len(result.Entries))
		}
		if result.Entries[0].ID != "failed" {
			t.Errorf("first entry = %q, want newest (failed)", result.Entries[0].ID)
		}
	})

	t.Run("filter by action", func(t *testing.T) {
		result, err := store.List(ctx, ListParams{Action: "delete"})
		if err != nil {
			t.Fatal(err)
		}
		if result.Total != 1 || len(result.Entries) != 1 {
			t.Fatalf("total = %d, entries = %d, want 1/1", result.Total, len(result.Entries))
		}
		if result.Entries[0].Action != ActionDelete {
			t.Errorf("action = %q, want delete", result.Entries[0].Action)
		}
	})

	t.Run("filter by entity", func(t *testing.T) {
		result, err := store.List(ctx, ListParams{Entity: "orders"})
		if err != nil {
			t.Fatal(err)
		}
		if result.Total != 1 {
			t.Errorf("total = %d, want 1", result.Total)
		}
	})

	t.Run("filter by status code", func(t *testing.T) {
		code := 404
		result, err := store.List(ctx, ListParams{StatusCode: &code})
		if err != nil {
			t.Fatal(err)
		}
		if result.Total != 1 {
			t.Errorf("total = %d, want 1", result.Total)
		}
		if result.Entries[0].Error == nil || result.Entries[0].Error.Code != 404 {
			t.Error("error info should round-trip through the JSON blob")
		}
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := store.List(ctx, ListParams{Limit: 2, Offset: 1})
		if err != nil {
			t.Fatal(err)
		}
		if result.Total != 6 {
			t.Errorf("total = %d, want 6", result.Total)
		}
		if len(result.Entries) != 2 {
			t.Errorf("entries = %d, want 2", len(result.Entries))
		}
		if result.Limit != 2 || result.Offset != 1 {
			t.Errorf("limit/offset = %d/%d, want 2/1", result.Limit, result.Offset)
		}
	})

	t.Run("limit clamped", func(t *testing.T) {
		result, err := store.List(ctx, ListParams{Limit: 10000})
		if err != nil {
			t.Fatal(err)
		}
		if result.Limit != maxListLimit {
			t.Errorf("limit = %d, want clamped to %d", result.Limit, maxListLimit)
		}
	})
}

func TestSQLiteStoreNilEntry(t *testing.T) {
	store, err := NewSQLiteStore(createTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(context.Background(), nil); err != nil {
		t.Errorf("nil insert should be a no-op, got %v", err)
	}
}

func TestNewSQLiteStoreNilDB(t *testing.T) {
	if _, err := NewSQLiteStore(nil); err == nil {
		t.Error("expected error for nil database")
	}
}
