// Package store persists the snapshot and test suite for a spec file. Each
// run writes an immutable runs/<id> directory holding both files and commits
// by atomically replacing a small CURRENT pointer, so a crash mid-write never
// leaves the suite inconsistent with its snapshot.
package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"specdrift/internal/models"
)

const (
	currentFile  = "CURRENT"
	runsDir      = "runs"
	suiteFile    = "suite.yaml"
	snapshotFile = "snapshot.json"
)

// PersistenceError wraps a fatal storage failure at commit or load time.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store manages the persisted state of one spec file.
type Store struct {
	dir string
}

// New creates a store rooted at the given state directory.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// DirFor derives the state directory for a spec file under the given root.
// The directory name combines the spec base name with a short path hash so
// distinct specs with the same file name do not collide.
func DirFor(root, specPath string) string {
	abs, err := filepath.Abs(specPath)
	if err != nil {
		abs = specPath
	}
	sum := sha256.Sum256([]byte(abs))
	base := strings.TrimSuffix(filepath.Base(specPath), filepath.Ext(specPath))
	return filepath.Join(root, fmt.Sprintf("%s-%x", base, sum[:4]))
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Load reads the committed snapshot and suite. On first run (no committed
// state) both return values are nil with no error.
func (s *Store) Load() (*models.Snapshot, *models.TestSuite, error) {
	pointer, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load", Err: err}
	}

	runDir := filepath.Join(s.dir, runsDir, strings.TrimSpace(string(pointer)))

	snapData, err := os.ReadFile(filepath.Join(runDir, snapshotFile))
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load", Err: err}
	}
	var snapshot models.Snapshot
	if err := json.Unmarshal(snapData, &snapshot); err != nil {
		return nil, nil, &PersistenceError{Op: "load", Err: fmt.Errorf("corrupt snapshot: %w", err)}
	}

	suiteData, err := os.ReadFile(filepath.Join(runDir, suiteFile))
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load", Err: err}
	}
	var suite models.TestSuite
	if err := yaml.Unmarshal(suiteData, &suite); err != nil {
		return nil, nil, &PersistenceError{Op: "load", Err: fmt.Errorf("corrupt suite: %w", err)}
	}

	return &snapshot, &suite, nil
}

// Commit persists both the snapshot and the suite under a new run id, then
// swaps the CURRENT pointer in one rename. Prior state stays authoritative
// until the swap; stale run directories are pruned afterwards.
func (s *Store) Commit(runID string, snapshot *models.Snapshot, suite *models.TestSuite) error {
	runDir := filepath.Join(s.dir, runsDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	snapData, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	if err := os.WriteFile(filepath.Join(runDir, snapshotFile), snapData, 0o644); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	suiteData, err := yaml.Marshal(suite)
	if err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	if err := os.WriteFile(filepath.Join(runDir, suiteFile), suiteData, 0o644); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	// Single commit point: replace the pointer atomically.
	tmp := filepath.Join(s.dir, currentFile+".tmp")
	if err := os.WriteFile(tmp, []byte(runID+"\n"), 0o644); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentFile)); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}

	s.prune(runID)
	return nil
}

// prune removes run directories other than the committed one. Failures are
// ignored: stale directories are garbage, not state.
func (s *Store) prune(keep string) {
	entries, err := os.ReadDir(filepath.Join(s.dir, runsDir))
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.Name() != keep {
			_ = os.RemoveAll(filepath.Join(s.dir, runsDir, entry.Name()))
		}
	}
}
