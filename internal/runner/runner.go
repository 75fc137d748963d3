// Package runner executes a persisted test suite against a live server.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"specdrift/internal/models"
)

// EventType represents the type of execution event.
type EventType int

const (
	// EventStarting indicates a test case is about to run
	EventStarting EventType = iota
	// EventCompleted indicates a test case has completed
	EventCompleted
)

// ExecEvent represents an event during suite execution.
type ExecEvent struct {
	Type   EventType
	Case   models.TestCase
	Key    models.OperationKey
	Result *models.ExecResult // nil for Starting events
	Index  int                // current case index (0-based)
	Total  int                // total number of cases
}

// OnExecEvent is a callback function for execution events.
type OnExecEvent func(event ExecEvent)

// Runner executes test suites over HTTP.
type Runner struct {
	client *http.Client
}

// New creates a runner with a configurable request timeout.
func New(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		client: &http.Client{Timeout: timeout},
	}
}

// RunSuite executes every test case in the suite against baseURL. Entries are
// run in key order for stable output.
func (r *Runner) RunSuite(ctx context.Context, suite *models.TestSuite, baseURL string, onEvent OnExecEvent) models.ExecSummary {
	summary := models.ExecSummary{}

	keys := make([]models.OperationKey, 0, len(suite.Entries))
	for key := range suite.Entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	total := 0
	for _, key := range keys {
		total += len(suite.Entries[key].Cases)
	}

	index := 0
	for _, key := range keys {
		entry := suite.Entries[key]
		for _, tc := range entry.Cases {
			select {
			case <-ctx.Done():
				return summary
			default:
			}

			if onEvent != nil {
				onEvent(ExecEvent{Type: EventStarting, Case: tc, Key: key, Index: index, Total: total})
			}

			result := r.runCase(ctx, entry, tc, baseURL)
			summary.AddResult(result)

			if onEvent != nil {
				onEvent(ExecEvent{Type: EventCompleted, Case: tc, Key: key, Result: &result, Index: index, Total: total})
			}
			index++
		}
	}

	return summary
}

// runCase executes a single test case and validates the response.
func (r *Runner) runCase(ctx context.Context, entry models.SuiteEntry, tc models.TestCase, baseURL string) models.ExecResult {
	result := models.ExecResult{
		Path:   entry.Path,
		Method: entry.Method,
		Name:   tc.Name,
	}

	req, err := BuildRequest(ctx, entry, tc, baseURL)
	if err != nil {
		result.Error = fmt.Sprintf("failed to build request: %v", err)
		return result
	}

	startTime := time.Now()
	resp, err := r.client.Do(req)
	result.ResponseTime = time.Since(startTime)

	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	validationErrors, err := Validate(resp, tc)
	if err != nil {
		result.Error = fmt.Sprintf("validation error: %v", err)
		return result
	}
	result.ValidationErrors = validationErrors

	if len(validationErrors) == 0 {
		result.Passed = true
	} else {
		var errorMsgs []string
		for _, ve := range validationErrors {
			errorMsgs = append(errorMsgs, fmt.Sprintf("%s: %s", ve.Field, ve.Message))
		}
		result.Error = fmt.Sprintf("validation failed: %s", strings.Join(errorMsgs, "; "))
	}

	return result
}
