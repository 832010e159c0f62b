package postgres

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// openFake routes the postgres driver through an in-memory SQLite database.
// The SQL used by Records sticks to the syntax both engines accept, so the
// driver logic is exercised without a running server.
func openFake(t *testing.T) *DB {
	t.Helper()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite", "file::memory:?cache=shared")
	})
	t.Cleanup(restore)
	db, err := Open("postgres://fake")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecords_PutLoadDelete(t *testing.T) {
	db := openFake(t)
	teams, err := db.Records("teams")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	ctx := context.Background()

	if err := teams.Put(ctx, "eng", []byte(`{"remaining":2000}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := teams.Put(ctx, "eng", []byte(`{"remaining":1990}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := teams.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(records["eng"]) != `{"remaining":1990}` {
		t.Fatalf("unexpected payload %q", records["eng"])
	}

	if err := teams.Delete(ctx, "eng"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, err = teams.Load(ctx)
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty namespace, got %v", records)
	}
}

func TestRecords_EmptyNamespace(t *testing.T) {
	db := openFake(t)
	if _, err := db.Records(""); err == nil {
		t.Fatalf("expected error for empty namespace")
	}
}
