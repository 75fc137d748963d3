package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"specdrift/internal/store"
)

var debounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [openapi-spec-file]",
	Short: "Re-run selective regeneration whenever the spec file changes",
	Long: `Watch the spec file and run a regeneration cycle on every change.
Rapid successive edits are debounced into a single run. Triggers are
best-effort: a run that finds nothing changed is a no-op.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		specFile := args[0]

		ctx, cancel := signalContext()
		defer cancel()

		// Initial run so the suite exists before the first edit
		if report, err := runOnce(ctx, specFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		} else {
			displayRunReport(report)
		}

		if err := watchLoop(ctx, specFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func watchLoop(ctx context.Context, specFile string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which would drop
	// a watch on the file itself.
	dir := filepath.Dir(specFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	absSpec, err := filepath.Abs(specFile)
	if err != nil {
		return err
	}

	slog.Info("watching spec file", "spec", specFile)

	var timer *time.Timer
	runs := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if name != absSpec {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce rapid successive edits into one run
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case runs <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-runs:
			report, err := runOnce(ctx, specFile)
			if err != nil {
				if errors.Is(err, store.ErrLocked) {
					slog.Info("run already in progress, skipping trigger")
					continue
				}
				slog.Error("run failed, prior state retained", "error", err)
				continue
			}
			displayRunReport(report)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&stateRoot, "state-dir", ".specdrift", "Directory for persisted snapshots and suites")
	watchCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "Number of concurrent generation workers")
	watchCmd.Flags().BoolVar(&useLLM, "llm", false, "Generate test content with a local Ollama model")
	watchCmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before a change triggers a run")
}
