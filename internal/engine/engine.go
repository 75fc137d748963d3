// Package engine orchestrates a regeneration run: load the spec, fingerprint
// every operation, detect changes against the prior snapshot, regenerate test
// cases for modified and added operations only, merge with the preserved
// cases and commit the new state atomically.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"specdrift/internal/diff"
	"specdrift/internal/fingerprint"
	"specdrift/internal/generator"
	"specdrift/internal/models"
	"specdrift/internal/parser"
	"specdrift/internal/store"
)

// EventType represents the type of run event.
type EventType int

const (
	// EventLoaded indicates the spec was parsed and fingerprinted
	EventLoaded EventType = iota
	// EventDetected indicates change detection completed
	EventDetected
	// EventGenerating indicates generation started for one operation
	EventGenerating
	// EventGenerated indicates generation finished for one operation
	EventGenerated
	// EventCommitted indicates the new snapshot and suite were persisted
	EventCommitted
)

// RunEvent represents an event during run execution.
type RunEvent struct {
	Type      EventType
	Operation models.OperationKey
	Err       error // generation failure, for Generated events
	Index     int   // current operation index (0-based)
	Total     int   // total operations being generated
	ChangeSet *models.ChangeSet
	Report    *models.RunReport
}

// OnRunEvent is a callback function for run events.
type OnRunEvent func(event RunEvent)

// Config holds run configuration.
type Config struct {
	SpecPath    string
	StateRoot   string // root directory for persisted state
	Concurrency int    // generation worker count
}

// DefaultConfig returns default run configuration.
func DefaultConfig() Config {
	return Config{
		StateRoot:   ".specdrift",
		Concurrency: 4,
	}
}

// Engine drives selective test regeneration for one spec file.
type Engine struct {
	config Config
	gen    generator.Generator
	store  *store.Store
	log    *slog.Logger
}

// New creates an engine. A nil logger disables logging.
func New(config Config, gen generator.Generator, log *slog.Logger) *Engine {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		config: config,
		gen:    gen,
		store:  store.New(store.DirFor(config.StateRoot, config.SpecPath)),
		log:    log,
	}
}

// Store exposes the engine's state store, for callers that read back the
// committed suite.
func (e *Engine) Store() *store.Store { return e.store }

// Run executes one full regeneration cycle. Spec-level and persistence-level
// failures abort the run before any visible state change; per-operation
// generation failures are isolated, reported and do not block the commit.
func (e *Engine) Run(ctx context.Context, onEvent OnRunEvent) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		SpecPath:  e.config.SpecPath,
		StartedAt: time.Now().UTC(),
	}

	p, err := parser.ParseFile(e.config.SpecPath)
	if err != nil {
		return nil, err
	}
	operations, err := p.Operations()
	if err != nil {
		return nil, err
	}

	fresh, err := fingerprint.All(operations)
	if err != nil {
		return nil, err
	}
	report.Discovered = len(operations)

	if onEvent != nil {
		onEvent(RunEvent{Type: EventLoaded, Total: len(operations)})
	}

	// Only one run may touch this spec's state at a time.
	unlock, err := e.store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	snapshot, prior, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	var oldFingerprints map[models.OperationKey]models.Fingerprint
	if snapshot != nil {
		oldFingerprints = snapshot.Fingerprints
	}

	cs := diff.Detect(oldFingerprints, fresh)
	e.logChanges(&cs)

	if onEvent != nil {
		onEvent(RunEvent{Type: EventDetected, ChangeSet: &cs})
	}

	byKey := make(map[models.OperationKey]models.Operation, len(operations))
	for _, op := range operations {
		byKey[op.Key()] = op
	}

	generated, failures := e.generate(ctx, byKey, &cs, onEvent)

	suite := e.merge(&cs, prior, generated, failures, byKey)
	newSnapshot := &models.Snapshot{
		SpecPath:     e.config.SpecPath,
		CreatedAt:    time.Now().UTC(),
		Fingerprints: fresh,
	}

	if err := e.store.Commit(report.RunID, newSnapshot, suite); err != nil {
		return nil, err
	}

	e.fillReport(report, &cs, generated, failures)
	report.FinishedAt = time.Now().UTC()

	if onEvent != nil {
		onEvent(RunEvent{Type: EventCommitted, Report: report})
	}

	return report, nil
}

func (e *Engine) logChanges(cs *models.ChangeSet) {
	if !cs.HasChanges() {
		e.log.Info("no changes in spec", "spec", e.config.SpecPath)
		return
	}
	for _, key := range cs.Modified {
		e.log.Info("change detected", "kind", "modified", "method", key.Method(), "path", key.Path())
	}
	for _, key := range cs.Added {
		e.log.Info("change detected", "kind", "added", "method", key.Method(), "path", key.Path())
	}
	for _, key := range cs.Removed {
		e.log.Info("change detected", "kind", "removed", "method", key.Method(), "path", key.Path())
	}
}

// generate runs the generator for every modified and added operation on a
// bounded worker pool. All results are collected before merging begins.
func (e *Engine) generate(
	ctx context.Context,
	byKey map[models.OperationKey]models.Operation,
	cs *models.ChangeSet,
	onEvent OnRunEvent,
) (map[models.OperationKey][]models.TestCase, map[models.OperationKey]error) {
	targets := make([]models.OperationKey, 0, cs.TotalChanged())
	targets = append(targets, cs.Modified...)
	targets = append(targets, cs.Added...)

	generated := make(map[models.OperationKey][]models.TestCase, len(targets))
	failures := make(map[models.OperationKey]error)
	if len(targets) == 0 {
		return generated, failures
	}

	jobs := make(chan int, len(targets))
	var wg sync.WaitGroup
	var mu sync.Mutex

	workers := e.config.Concurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				key := targets[i]

				if onEvent != nil {
					onEvent(RunEvent{Type: EventGenerating, Operation: key, Index: i, Total: len(targets)})
				}

				var cases []models.TestCase
				var err error
				select {
				case <-ctx.Done():
					err = ctx.Err()
				default:
					cases, err = e.gen.Generate(ctx, byKey[key])
				}

				mu.Lock()
				if err != nil {
					failures[key] = err
				} else {
					generated[key] = cases
				}
				mu.Unlock()

				if onEvent != nil {
					onEvent(RunEvent{Type: EventGenerated, Operation: key, Err: err, Index: i, Total: len(targets)})
				}
			}
		}()
	}

	for i := range targets {
		jobs <- i
	}
	close(jobs)

	// Barrier: merging must not start before every result is in.
	wg.Wait()

	return generated, failures
}

// merge builds the new suite: unchanged entries are copied from the prior
// suite with their cases marked preserved, modified and added entries are
// replaced with fresh cases, removed entries are dropped. An operation whose
// generation failed keeps its prior cases; a new operation whose generation
// failed gets an empty entry so the suite stays one entry per operation.
func (e *Engine) merge(
	cs *models.ChangeSet,
	prior *models.TestSuite,
	generated map[models.OperationKey][]models.TestCase,
	failures map[models.OperationKey]error,
	byKey map[models.OperationKey]models.Operation,
) *models.TestSuite {
	suite := &models.TestSuite{
		SpecPath:  e.config.SpecPath,
		UpdatedAt: time.Now().UTC(),
		Entries:   make(map[models.OperationKey]models.SuiteEntry),
	}

	for _, key := range cs.Unchanged {
		if prior == nil {
			continue
		}
		entry := prior.Entries[key]
		for i := range entry.Cases {
			entry.Cases[i].Preserved = true
		}
		suite.Entries[key] = entry
	}

	regenerate := append(append([]models.OperationKey{}, cs.Modified...), cs.Added...)
	for _, key := range regenerate {
		if cases, ok := generated[key]; ok {
			suite.Entries[key] = models.SuiteEntry{
				Path:   key.Path(),
				Method: key.Method(),
				Cases:  cases,
			}
			continue
		}

		// Generation failed: retain prior content if any, else an empty entry.
		if prior != nil {
			if entry, ok := prior.Entries[key]; ok {
				suite.Entries[key] = entry
				continue
			}
		}
		suite.Entries[key] = models.SuiteEntry{
			Path:   key.Path(),
			Method: key.Method(),
		}
	}

	return suite
}

func (e *Engine) fillReport(
	report *models.RunReport,
	cs *models.ChangeSet,
	generated map[models.OperationKey][]models.TestCase,
	failures map[models.OperationKey]error,
) {
	report.Preserved = len(cs.Unchanged)
	report.RemovedCount = len(cs.Removed)

	for _, key := range cs.Modified {
		report.Changed = append(report.Changed, models.ChangedOperation{
			Path: key.Path(), Method: key.Method(), Kind: "modified",
		})
	}
	for _, key := range cs.Added {
		report.Changed = append(report.Changed, models.ChangedOperation{
			Path: key.Path(), Method: key.Method(), Kind: "added",
		})
	}

	for key := range generated {
		e.log.Info("regenerated tests", "method", key.Method(), "path", key.Path(), "cases", len(generated[key]))
		report.Regenerated++
	}

	for key, err := range failures {
		e.log.Warn("generation failed, prior tests retained",
			"method", key.Method(), "path", key.Path(), "error", err)
		report.Failures = append(report.Failures, models.GenerationFailure{
			Path: key.Path(), Method: key.Method(), Error: err.Error(),
		})
	}
}
