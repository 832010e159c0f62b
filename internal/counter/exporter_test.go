package counter

import (
	"context"
	"strings"
	"testing"

	"nuggetcore/internal/export"
)

func TestSnapshotExporter_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.svc.JoinTeam(ctx, "eng", "alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	f.increment(t, alice.ID, 5)

	blobs := export.NewMemory()
	exporter := NewSnapshotExporter(f.teams, f.users, blobs, nil)

	info, err := exporter.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(info.Key, snapshotPrefix) || !strings.HasSuffix(info.Key, ".json") {
		t.Fatalf("unexpected snapshot key %q", info.Key)
	}

	infos, err := exporter.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != info.Key {
		t.Fatalf("unexpected listing %#v", infos)
	}

	snap, err := exporter.Load(ctx, info.Key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Teams) != 1 || len(snap.Users) != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if snap.Teams["eng"].Remaining != 1995 {
		t.Fatalf("snapshot remaining = %d, want 1995", snap.Teams["eng"].Remaining)
	}
	if snap.Users[alice.ID].Count != 5 {
		t.Fatalf("snapshot count = %d, want 5", snap.Users[alice.ID].Count)
	}
}

func TestSnapshotExporter_DistinctKeysPerExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exporter := NewSnapshotExporter(f.teams, f.users, export.NewMemory(), nil)

	first, err := exporter.Export(ctx)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := exporter.Export(ctx)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first.Key == second.Key {
		t.Fatalf("exports collided on key %q", first.Key)
	}
}
