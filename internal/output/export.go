package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"specdrift/internal/models"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat parses a string into a Format, returning error if invalid
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be 'json' or 'csv'", s)
	}
}

// ExportRunReport exports a run report to the specified format
func ExportRunReport(report *models.RunReport, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	switch format {
	case FormatJSON:
		return exportJSON(w, report)
	case FormatCSV:
		return exportRunCSV(w, report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportExecSummary exports suite execution results to the specified format
func ExportExecSummary(summary models.ExecSummary, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	switch format {
	case FormatJSON:
		return exportJSON(w, summary)
	case FormatCSV:
		return exportExecCSV(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

func exportJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exportRunCSV exports the changed-operation list with the run counters
func exportRunCSV(w io.Writer, report *models.RunReport) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"run_id", "discovered", "preserved", "regenerated", "removed",
		"method", "path", "kind",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	counts := []string{
		report.RunID,
		strconv.Itoa(report.Discovered),
		strconv.Itoa(report.Preserved),
		strconv.Itoa(report.Regenerated),
		strconv.Itoa(report.RemovedCount),
	}

	if len(report.Changed) == 0 {
		return cw.Write(append(counts, "", "", ""))
	}

	for _, op := range report.Changed {
		row := append(append([]string{}, counts...), op.Method, op.Path, op.Kind)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	return cw.Error()
}

// exportExecCSV exports execution results as CSV
func exportExecCSV(w io.Writer, summary models.ExecSummary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"method", "path", "name", "passed", "status_code",
		"response_time_ms", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range summary.Results {
		row := []string{
			r.Method,
			r.Path,
			r.Name,
			strconv.FormatBool(r.Passed),
			strconv.Itoa(r.StatusCode),
			fmt.Sprintf("%.2f", float64(r.ResponseTime.Microseconds())/1000),
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	return cw.Error()
}
