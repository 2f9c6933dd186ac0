package runregistry

import (
	"testing"
	"time"
)

func TestStore_WriteGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &RunRecord{
		RunID:        "run-1",
		Name:         "train",
		State:        RunStateSucceeded,
		SbatchArgs:   []string{"--time=02:00:00", "train.sbatch"},
		InitialJobID: "1001",
		CurrentJobID: "1003",
		Attempts:     3,
		MaxRestarts:  5,
		Outcome:      "SUCCEEDED",
		CreatedAt:    now,
		StartedAt:    &now,
	}

	if err := s.Write(rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.RunID != rec.RunID {
		t.Fatalf("run_id mismatch: got=%q want=%q", got.RunID, rec.RunID)
	}
	if got.State != rec.State {
		t.Fatalf("state mismatch: got=%q want=%q", got.State, rec.State)
	}
	if got.InitialJobID != "1001" || got.CurrentJobID != "1003" {
		t.Fatalf("job identities not persisted: %+v", got)
	}
	if got.Attempts != 3 {
		t.Fatalf("attempts mismatch: got=%d want=3", got.Attempts)
	}
}

func TestStore_ListSortsNewestFirst(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	if err := s.Write(&RunRecord{RunID: "run-1", State: RunStateSucceeded, CreatedAt: t1, StartedAt: &t1}); err != nil {
		t.Fatalf("Write run-1: %v", err)
	}
	if err := s.Write(&RunRecord{RunID: "run-2", State: RunStateSucceeded, CreatedAt: t2, StartedAt: &t2}); err != nil {
		t.Fatalf("Write run-2: %v", err)
	}

	runs, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-2" {
		t.Fatalf("expected run-2 first, got %s", runs[0].RunID)
	}
}

func TestStore_ZombieDetection(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	now := time.Now().UTC()
	// A pid far above any plausible live process.
	rec := &RunRecord{RunID: "run-z", State: RunStateRunning, PID: 1 << 22, CreatedAt: now, StartedAt: &now}
	if err := s.Write(rec); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := s.Get("run-z")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != RunStateUnknown {
		t.Fatalf("expected dead supervisor to demote state to unknown, got %q", got.State)
	}
}

func TestStore_ResolvePrefix(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	now := time.Now().UTC()
	for _, id := range []string{"abc123", "abd456"} {
		if err := s.Write(&RunRecord{RunID: id, State: RunStateSucceeded, CreatedAt: now}); err != nil {
			t.Fatalf("Write %s: %v", id, err)
		}
	}

	got, err := s.Resolve("abc")
	if err != nil {
		t.Fatalf("Resolve(abc) error: %v", err)
	}
	if got != "abc123" {
		t.Fatalf("Resolve(abc) = %q, want abc123", got)
	}

	if _, err := s.Resolve("ab"); err == nil {
		t.Fatal("Resolve(ab) should be ambiguous")
	}
	if _, err := s.Resolve("zzz"); err == nil {
		t.Fatal("Resolve(zzz) should not match")
	}
}

func TestStore_WriteValidation(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Write(nil); err == nil {
		t.Fatal("Write(nil) should fail")
	}
	if err := s.Write(&RunRecord{}); err == nil {
		t.Fatal("Write without run_id should fail")
	}
}
