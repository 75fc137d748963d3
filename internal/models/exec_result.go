package models

import "time"

// ExecResult represents the outcome of executing a single test case against a
// live server.
type ExecResult struct {
	Path   string
	Method string
	Name   string

	Passed bool
	Error  string

	StatusCode   int
	ResponseTime time.Duration

	ValidationErrors []ValidationError
}

// ValidationError represents a specific response validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// ExecSummary represents the overall results of executing a suite.
type ExecSummary struct {
	TotalTests int
	Passed     int
	Failed     int
	Results    []ExecResult
}

// AddResult adds an execution result to the summary.
func (s *ExecSummary) AddResult(result ExecResult) {
	s.TotalTests++
	s.Results = append(s.Results, result)
	if result.Passed {
		s.Passed++
	} else {
		s.Failed++
	}
}
