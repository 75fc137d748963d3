package models

import "time"

// Fingerprint is the canonical content hash of an operation, rendered as a
// hex string so it survives JSON round-trips unchanged.
type Fingerprint string

// Snapshot records the fingerprint of every operation after the last
// successful run. It is the sole source of "what changed".
type Snapshot struct {
	SpecPath     string                       `json:"spec_path"`
	CreatedAt    time.Time                    `json:"created_at"`
	Fingerprints map[OperationKey]Fingerprint `json:"fingerprints"`
}

// TestCase is one generated test for an operation: concrete request inputs
// plus the expected status and response schema assertion.
type TestCase struct {
	Name           string            `yaml:"name" json:"name"`
	PathParams     map[string]string `yaml:"path_params,omitempty" json:"path_params,omitempty"`
	QueryParams    map[string]string `yaml:"query_params,omitempty" json:"query_params,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body           string            `yaml:"body,omitempty" json:"body,omitempty"` // JSON request body
	ExpectedStatus int               `yaml:"expected_status" json:"expected_status"`
	ExpectedSchema string            `yaml:"expected_schema,omitempty" json:"expected_schema,omitempty"` // JSON schema for the response body
	GeneratedAt    time.Time         `yaml:"generated_at" json:"generated_at"`
	Preserved      bool              `yaml:"preserved" json:"preserved"` // carried over from a prior run
}

// SuiteEntry holds the test cases for a single operation.
type SuiteEntry struct {
	Path   string     `yaml:"path" json:"path"`
	Method string     `yaml:"method" json:"method"`
	Cases  []TestCase `yaml:"cases" json:"cases"`
}

// TestSuite is the persisted set of test cases, one entry per operation
// currently in the spec.
type TestSuite struct {
	SpecPath  string                      `yaml:"spec_path" json:"spec_path"`
	UpdatedAt time.Time                   `yaml:"updated_at" json:"updated_at"`
	Entries   map[OperationKey]SuiteEntry `yaml:"entries" json:"entries"`
}

// TotalCases returns the number of test cases across all entries.
func (s *TestSuite) TotalCases() int {
	var n int
	for _, e := range s.Entries {
		n += len(e.Cases)
	}
	return n
}
