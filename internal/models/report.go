package models

import "time"

// ChangedOperation is one entry of the changed-operation list in a run report.
type ChangedOperation struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Kind   string `json:"kind"` // "modified" or "added"
}

// GenerationFailure records a per-operation generator failure. The run still
// commits; the operation keeps its prior test cases.
type GenerationFailure struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Error  string `json:"error"`
}

// RunReport summarizes a single engine run for display and export.
type RunReport struct {
	RunID      string    `json:"run_id"`
	SpecPath   string    `json:"spec_path"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Discovered   int `json:"discovered"`
	Preserved    int `json:"preserved"`
	Regenerated  int `json:"regenerated"`
	RemovedCount int `json:"removed_count"`

	Changed  []ChangedOperation  `json:"changed,omitempty"`
	Failures []GenerationFailure `json:"failures,omitempty"`
}
