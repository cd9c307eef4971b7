package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pandu874/webloganalyzer/pkg/models"
)

// Output formats accepted by analyze -o.
const (
	formatHuman = "human"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var analyzeOutput string

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Analyze a server log file",
	Long: `Parse a server log file and report the number of requests, the count
of every HTTP status code, and the lines that could not be parsed.

The status code is taken from the second-to-last whitespace-separated token
of each line. Empty lines are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Analyzer == nil {
			return fmt.Errorf("log analyzer not initialized")
		}

		format := strings.ToLower(strings.TrimSpace(analyzeOutput))
		switch format {
		case formatHuman, formatJSON, formatYAML:
		default:
			return fmt.Errorf("unsupported output format %q (use human, json or yaml)", analyzeOutput)
		}

		result, err := Analyzer.Analyze(args[0])
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", args[0], err)
		}

		return writeAnalysis(cmd.OutOrStdout(), format, args[0], result)
	},
}

func writeAnalysis(w io.Writer, format, path string, result *models.AnalysisResult) error {
	report := result.Report(filepath.Base(path))

	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting analysis as JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case formatYAML:
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("formatting analysis as YAML: %w", err)
		}
		fmt.Fprint(w, string(data))
	default:
		fmt.Fprint(w, renderAnalysis(report))
	}
	return nil
}

// renderAnalysis formats a report for the terminal.
func renderAnalysis(report models.AnalysisReport) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(" " + report.Filename + " "))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  %-18s %d\n", "Total requests:", report.TotalRequests)
	fmt.Fprintf(&b, "  %-18s %d\n", "Malformed lines:", len(report.MalformedLines))

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Status codes"))
	b.WriteString("\n")
	if len(report.StatusCounts) == 0 {
		b.WriteString("  No requests parsed.\n")
	}
	for _, sc := range report.StatusCounts {
		label := fmt.Sprintf("  %-6d %d", sc.Code, sc.Count)
		b.WriteString(styleForStatusClass(models.StatusClass(sc.Code)).Render(label))
		b.WriteString("\n")
	}

	if len(report.MalformedLines) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Malformed lines"))
		b.WriteString("\n")
		for _, m := range report.MalformedLines {
			fmt.Fprintf(&b, "  %s %s\n", lineNumberStyle.Render(fmt.Sprintf("%6d", m.LineNumber)), m.Preview)
			fmt.Fprintf(&b, "         %s\n", errorStyle.Render(m.Error))
		}
	}

	return b.String()
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", formatHuman, "Output format: human, json or yaml")
	rootCmd.AddCommand(analyzeCmd)
}
