package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"specdrift/internal/engine"
	"specdrift/internal/generator"
	"specdrift/internal/models"
	"specdrift/internal/output"
)

var (
	stateRoot    string
	concurrency  int
	useLLM       bool
	ollamaURL    string
	ollamaModel  string
	llmRateLimit float64
	outputFormat string
	outputFile   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [openapi-spec-file]",
	Short: "Detect spec changes and regenerate affected tests",
	Long: `Run one regeneration cycle: parse the spec, compare operation
fingerprints against the last snapshot, regenerate test cases for modified
and added operations only, and persist the merged suite.

Examples:
  # Regenerate with the schema-driven generator
  specdrift run api-spec.yaml

  # Use a local Ollama model for test content
  specdrift run api-spec.yaml --llm --ollama-model llama3.2

  # Export the run report
  specdrift run api-spec.yaml -o json --output-file report.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		report, err := runOnce(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		displayRunReport(report)

		if outputFormat != "" {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if err := output.ExportRunReport(report, format, outputFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting report: %v\n", err)
				os.Exit(1)
			}
			if outputFile != "" {
				fmt.Printf("\nReport exported to: %s\n", outputFile)
			}
		}
	},
}

func runOnce(ctx context.Context, specFile string) (*models.RunReport, error) {
	gen, err := buildGenerator(ctx)
	if err != nil {
		return nil, err
	}

	config := engine.DefaultConfig()
	config.SpecPath = specFile
	config.StateRoot = stateRoot
	config.Concurrency = concurrency

	eng := engine.New(config, gen, slog.Default())

	var s *spinner.Spinner
	onEvent := func(event engine.RunEvent) {
		switch event.Type {
		case engine.EventDetected:
			cs := event.ChangeSet
			fmt.Printf("Changes: %d modified, %d added, %d removed, %d unchanged\n",
				len(cs.Modified), len(cs.Added), len(cs.Removed), len(cs.Unchanged))

		case engine.EventGenerating:
			if isTTY && s == nil {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Start()
			}
			if s != nil {
				s.Suffix = fmt.Sprintf(" [%d/%d] generating %s %s",
					event.Index+1, event.Total, event.Operation.Method(), event.Operation.Path())
			}

		case engine.EventGenerated:
			if !isTTY {
				status := green("✓")
				if event.Err != nil {
					status = red("✗")
				}
				fmt.Printf("[%d/%d] %s %s %s\n",
					event.Index+1, event.Total, status, event.Operation.Method(), event.Operation.Path())
			}

		case engine.EventCommitted:
			if s != nil {
				s.Stop()
				s = nil
			}
		}
	}

	report, err := eng.Run(ctx, onEvent)
	if s != nil {
		s.Stop()
	}
	return report, err
}

func buildGenerator(ctx context.Context) (generator.Generator, error) {
	if !useLLM {
		return generator.NewSchemaGenerator(), nil
	}

	config := generator.DefaultOllamaConfig()
	if ollamaURL != "" {
		config.BaseURL = ollamaURL
	}
	if ollamaModel != "" {
		config.Model = ollamaModel
	}
	config.APIKey = viper.GetString("ollama_api_key")
	config.RateLimit = llmRateLimit

	gen := generator.NewOllamaGenerator(config)
	if err := gen.CheckConnection(ctx); err != nil {
		return nil, fmt.Errorf("LLM generator unavailable: %w", err)
	}
	return gen, nil
}

func displayRunReport(report *models.RunReport) {
	fmt.Printf("\n%s\n", white("=== Run Report ==="))
	fmt.Printf("Discovered:  %d\n", report.Discovered)
	fmt.Printf("Preserved:   %s\n", green(fmt.Sprintf("%d", report.Preserved)))
	fmt.Printf("Regenerated: %s\n", cyan(fmt.Sprintf("%d", report.Regenerated)))
	fmt.Printf("Removed:     %d\n", report.RemovedCount)
	fmt.Printf("Duration:    %v\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	if len(report.Changed) > 0 {
		fmt.Printf("\n%s\n", white("Changed operations:"))
		for _, op := range report.Changed {
			fmt.Printf("  %s %-8s %s\n", yellow("●"), op.Method, op.Path+" ("+op.Kind+")")
		}
	}

	if len(report.Failures) > 0 {
		fmt.Printf("\n%s\n", white("Generation failures (prior tests retained):"))
		for _, f := range report.Failures {
			fmt.Printf("  %s %-8s %s - %s\n", red("✗"), f.Method, f.Path, f.Error)
		}
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return ctx, cancel
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&stateRoot, "state-dir", ".specdrift", "Directory for persisted snapshots and suites")
	runCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "Number of concurrent generation workers")
	runCmd.Flags().BoolVar(&useLLM, "llm", false, "Generate test content with a local Ollama model")
	runCmd.Flags().StringVar(&ollamaURL, "ollama-url", "", "Ollama base URL (default http://localhost:11434)")
	runCmd.Flags().StringVar(&ollamaModel, "ollama-model", "", "Ollama model name (default llama3.2)")
	runCmd.Flags().Float64Var(&llmRateLimit, "rate", 0, "Max LLM calls per second (0 = unlimited)")
	runCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, csv")
	runCmd.Flags().StringVar(&outputFile, "output-file", "", "Write output to file (default: stdout)")
}
