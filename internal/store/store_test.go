package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"specdrift/internal/models"
)

func sampleState(specPath string) (*models.Snapshot, *models.TestSuite) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	key := models.Key("GET", "/pets")

	snapshot := &models.Snapshot{
		SpecPath:  specPath,
		CreatedAt: now,
		Fingerprints: map[models.OperationKey]models.Fingerprint{
			key: "abc123",
		},
	}
	suite := &models.TestSuite{
		SpecPath:  specPath,
		UpdatedAt: now,
		Entries: map[models.OperationKey]models.SuiteEntry{
			key: {
				Path:   "/pets",
				Method: "GET",
				Cases: []models.TestCase{
					{
						Name:           "GET /pets expects 200",
						ExpectedStatus: 200,
						ExpectedSchema: `{"type":"array"}`,
						GeneratedAt:    now,
					},
				},
			},
		},
	}
	return snapshot, suite
}

func TestLoadEmpty(t *testing.T) {
	s := New(t.TempDir())

	snapshot, suite, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snapshot != nil || suite != nil {
		t.Error("Expected nil state on first run")
	}
}

func TestCommitAndLoad(t *testing.T) {
	s := New(t.TempDir())
	snapshot, suite := sampleState("api.yaml")

	if err := s.Commit("run-1", snapshot, suite); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	gotSnapshot, gotSuite, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	key := models.Key("GET", "/pets")
	if gotSnapshot.Fingerprints[key] != "abc123" {
		t.Errorf("Snapshot did not round-trip: %+v", gotSnapshot)
	}
	entry, ok := gotSuite.Entries[key]
	if !ok {
		t.Fatal("Suite entry missing after round-trip")
	}
	if len(entry.Cases) != 1 || entry.Cases[0].ExpectedStatus != 200 {
		t.Errorf("Suite cases did not round-trip: %+v", entry.Cases)
	}
	if entry.Cases[0].ExpectedSchema != `{"type":"array"}` {
		t.Errorf("Schema assertion did not round-trip: %q", entry.Cases[0].ExpectedSchema)
	}
	if !entry.Cases[0].GeneratedAt.Equal(suite.Entries[key].Cases[0].GeneratedAt) {
		t.Errorf("Timestamp did not round-trip: %v", entry.Cases[0].GeneratedAt)
	}
}

func TestCommitSwapsPointer(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	snapshot, suite := sampleState("api.yaml")
	if err := s.Commit("run-1", snapshot, suite); err != nil {
		t.Fatalf("First commit failed: %v", err)
	}

	snapshot.Fingerprints[models.Key("GET", "/pets")] = "def456"
	if err := s.Commit("run-2", snapshot, suite); err != nil {
		t.Fatalf("Second commit failed: %v", err)
	}

	gotSnapshot, _, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if gotSnapshot.Fingerprints[models.Key("GET", "/pets")] != "def456" {
		t.Error("Load did not observe the second commit")
	}

	// The first run dir is pruned after the swap
	entries, err := os.ReadDir(filepath.Join(dir, "runs"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "run-2" {
		t.Errorf("Expected only run-2 to remain, got %v", entries)
	}
}

func TestStagedRunInvisibleUntilSwap(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	snapshot, suite := sampleState("api.yaml")
	if err := s.Commit("run-1", snapshot, suite); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Simulate a crash after staging but before the pointer swap
	staged := filepath.Join(dir, "runs", "run-half-done")
	if err := os.MkdirAll(staged, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(staged, "snapshot.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	gotSnapshot, _, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if gotSnapshot.Fingerprints[models.Key("GET", "/pets")] != "abc123" {
		t.Error("Staged run leaked into Load before commit")
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	snapshot, suite := sampleState("api.yaml")
	if err := s.Commit("run-1", snapshot, suite); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	path := filepath.Join(dir, "runs", "run-1", "snapshot.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, _, err := s.Load()
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
}

func TestDirFor(t *testing.T) {
	a := DirFor("state", "specs/api.yaml")
	b := DirFor("state", "other/api.yaml")

	if a == b {
		t.Error("Distinct spec paths mapped to the same state dir")
	}
	if filepath.Dir(a) != "state" {
		t.Errorf("State dir not under root: %s", a)
	}
}

func TestLockExcludes(t *testing.T) {
	s := New(t.TempDir())

	unlock, err := s.Lock()
	if err != nil {
		t.Fatalf("First lock failed: %v", err)
	}
	defer unlock()

	if _, err := s.Lock(); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}
}

func TestLockReleases(t *testing.T) {
	s := New(t.TempDir())

	unlock, err := s.Lock()
	if err != nil {
		t.Fatalf("First lock failed: %v", err)
	}
	unlock()

	unlock2, err := s.Lock()
	if err != nil {
		t.Fatalf("Relock after release failed: %v", err)
	}
	unlock2()
}
