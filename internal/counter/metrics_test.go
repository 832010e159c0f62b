package counter

import (
	"errors"
	"testing"
	"time"
)

func TestExpvarRecorder_AggregatesByResult(t *testing.T) {
	rec := NewExpvarRecorder("")
	rec.RecordOperation("increment", 2*time.Millisecond, nil)
	rec.RecordOperation("increment", 3*time.Millisecond, nil)
	rec.RecordOperation("increment", time.Millisecond, errors.New("boom"))

	snap := rec.Snapshot()
	if snap.Results["increment"]["ok"] != 2 {
		t.Fatalf("ok count = %d, want 2", snap.Results["increment"]["ok"])
	}
	if snap.Results["increment"]["error"] != 1 {
		t.Fatalf("error count = %d, want 1", snap.Results["increment"]["error"])
	}
	if snap.DurationsMS["increment"] != 6 {
		t.Fatalf("durations = %v, want 6ms total", snap.DurationsMS["increment"])
	}
}

func TestExpvarRecorder_SnapshotIsACopy(t *testing.T) {
	rec := NewExpvarRecorder("")
	rec.RecordOperation("join_team", time.Millisecond, nil)

	snap := rec.Snapshot()
	snap.Results["join_team"]["ok"] = 99
	snap.DurationsMS["join_team"] = 99

	if again := rec.Snapshot(); again.Results["join_team"]["ok"] != 1 {
		t.Fatalf("snapshot mutation leaked into recorder: %#v", again)
	}
}

func TestExpvarRecorder_UniqueGeneratedNames(t *testing.T) {
	a := NewExpvarRecorder("")
	b := NewExpvarRecorder("")
	if a.Name() == b.Name() {
		t.Fatalf("generated names collided: %q", a.Name())
	}
}
