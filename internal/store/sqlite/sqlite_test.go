package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRecords_PutLoadDelete(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	teams, err := db.Records("teams")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	ctx := context.Background()

	if err := teams.Put(ctx, "eng", []byte(`{"remaining":2000}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := teams.Put(ctx, "eng", []byte(`{"remaining":1992}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := teams.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(records["eng"]) != `{"remaining":1992}` {
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

func TestRecords_NamespacesAreIsolated(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	teams, err := db.Records("teams")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	users, err := db.Records("users")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if err := teams.Put(ctx, "shared-key", []byte(`"team"`)); err != nil {
		t.Fatalf("put team: %v", err)
	}
	if err := users.Put(ctx, "shared-key", []byte(`"user"`)); err != nil {
		t.Fatalf("put user: %v", err)
	}

	got, err := teams.Load(ctx)
	if err != nil {
		t.Fatalf("load teams: %v", err)
	}
	if len(got) != 1 || string(got["shared-key"]) != `"team"` {
		t.Fatalf("team namespace polluted: %v", got)
	}

	if err := users.Delete(ctx, "shared-key"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err = teams.Load(ctx)
	if err != nil {
		t.Fatalf("reload teams: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("delete crossed namespaces: %v", got)
	}
}

func TestOpen_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	teams, err := db.Records("teams")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if err := teams.Put(ctx, "eng", []byte(`{"remaining":1500}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	teams, err = reopened.Records("teams")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	records, err := teams.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(records["eng"]) != `{"remaining":1500}` {
		t.Fatalf("record lost across reopen: %v", records)
	}
}

func TestRecords_EmptyNamespace(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Records(""); err == nil {
		t.Fatalf("expected error for empty namespace")
	}
}
