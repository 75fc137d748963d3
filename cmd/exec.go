package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"specdrift/internal/models"
	"specdrift/internal/output"
	"specdrift/internal/parser"
	"specdrift/internal/runner"
	"specdrift/internal/store"
)

var (
	serverURL   string
	execTimeout int
)

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec [openapi-spec-file]",
	Short: "Execute the persisted test suite against a live server",
	Long: `Execute the test suite last committed for the given spec file.
The server URL is taken from the spec unless overridden with --server.

Run 'specdrift run' first to generate the suite.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		specFile := args[0]

		st := store.New(store.DirFor(stateRoot, specFile))
		_, suite, err := st.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading suite: %v\n", err)
			os.Exit(1)
		}
		if suite == nil {
			fmt.Fprintln(os.Stderr, "No test suite found; run 'specdrift run' first")
			os.Exit(1)
		}

		baseURL := serverURL
		if baseURL == "" {
			p, err := parser.ParseFile(specFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing OpenAPI file: %v\n", err)
				os.Exit(1)
			}
			urls, err := p.ServerURLs()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting server URLs: %v\n", err)
				os.Exit(1)
			}
			if len(urls) > 0 {
				baseURL = urls[0]
			}
		}
		if baseURL == "" {
			baseURL = "http://localhost"
		}

		ctx, cancel := signalContext()
		defer cancel()

		r := runner.New(time.Duration(execTimeout) * time.Second)
		summary := r.RunSuite(ctx, suite, baseURL, nil)

		displayExecResults(summary)

		if outputFormat != "" {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if err := output.ExportExecSummary(summary, format, outputFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting results: %v\n", err)
				os.Exit(1)
			}
		}

		if summary.Failed > 0 {
			os.Exit(1)
		}
	},
}

func displayExecResults(summary models.ExecSummary) {
	fmt.Printf("\n%s\n", white("=== Test Results ==="))
	fmt.Printf("Total Tests: %d\n", summary.TotalTests)
	fmt.Printf("Passed: %s\n", green(fmt.Sprintf("%d", summary.Passed)))
	fmt.Printf("Failed: %s\n", red(fmt.Sprintf("%d", summary.Failed)))
	fmt.Println()

	for _, result := range summary.Results {
		status := green("✓ PASS")
		if !result.Passed {
			status = red("✗ FAIL")
		}

		fmt.Printf("%s %s %s - %s\n", status, result.Method, result.Path, result.Name)

		if verbose || !result.Passed {
			fmt.Printf("  Status Code: %d\n", result.StatusCode)
			fmt.Printf("  Response Time: %v\n", result.ResponseTime)
			if result.Error != "" {
				fmt.Printf("  Error: %s\n", result.Error)
			}
			for _, ve := range result.ValidationErrors {
				fmt.Printf("    - %s: %s\n", ve.Field, ve.Message)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().StringVar(&stateRoot, "state-dir", ".specdrift", "Directory for persisted snapshots and suites")
	execCmd.Flags().StringVar(&serverURL, "server", "", "Override server URL from OpenAPI spec")
	execCmd.Flags().IntVarP(&execTimeout, "timeout", "t", 30, "Request timeout in seconds")
	execCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, csv")
	execCmd.Flags().StringVar(&outputFile, "output-file", "", "Write output to file (default: stdout)")
}
