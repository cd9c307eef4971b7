package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pandu874/webloganalyzer/pkg/models"
)

var (
	metricsJSON  bool
	metricsSince string
	metricsFile  string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display upload and analysis metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include analyses completed and failed, uploads saved and rejected,
requests parsed, malformed lines, and totals per HTTP status code.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (no event log)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.CalculateFile(sinceTime, metricsFile)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		// Table format.
		if metricsFile != "" {
			fmt.Fprintf(out, "Metrics for %s (since %s)\n\n", metricsFile, sinceTime.Format("2006-01-02"))
		} else {
			fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		}
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Analyses completed:", metrics.AnalysesCompleted)
		fmt.Fprintf(out, "  %-24s %d\n", "Analyses failed:", metrics.AnalysesFailed)
		fmt.Fprintf(out, "  %-24s %d\n", "Uploads saved:", metrics.UploadsSaved)
		fmt.Fprintf(out, "  %-24s %d\n", "Uploads rejected:", metrics.UploadsRejected)
		fmt.Fprintf(out, "  %-24s %d\n", "Requests parsed:", metrics.RequestsParsed)
		fmt.Fprintf(out, "  %-24s %d\n", "Malformed lines:", metrics.MalformedLines)

		if len(metrics.StatusCounts) > 0 {
			fmt.Fprintln(out, "\n  Status codes:")
			result := models.AnalysisResult{StatusCounts: metrics.StatusCounts}
			for _, sc := range result.SortedStatusCounts() {
				fmt.Fprintf(out, "    %-20d %d\n", sc.Code, sc.Count)
			}
		}

		if len(metrics.FilesAnalyzed) > 0 {
			fmt.Fprintln(out, "\n  Files analyzed:")
			files := make([]string, 0, len(metrics.FilesAnalyzed))
			for f := range metrics.FilesAnalyzed {
				files = append(files, f)
			}
			sort.Strings(files)
			for _, f := range files {
				fmt.Fprintf(out, "    %-20s %d\n", f+":", metrics.FilesAnalyzed[f])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	metricsCmd.Flags().StringVar(&metricsFile, "file", "", "Only count events about this log file (path or base name)")
	rootCmd.AddCommand(metricsCmd)
}
