package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pandu874/webloganalyzer/internal/core"
	"github.com/pandu874/webloganalyzer/internal/observability"
)

// --- Fake implementations ---

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
	err     error
	file    string
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, f.err
}

func (f *fakeMetricsCalculator) CalculateFile(_ time.Time, file string) (*observability.Metrics, error) {
	f.file = file
	return f.metrics, f.err
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

func (f *fakeAlertEngine) EvaluateAnalysis(_ observability.AnalysisSummary) []observability.Alert {
	return nil
}

// --- Test helpers ---

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing log: %v", err)
	}
	return path
}

// callTool is a helper that connects a client to the server and calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	result, err := call(t, srv, toolName, args)
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}
	return result
}

func call(t *testing.T, srv *Server, toolName string, args map[string]any) (*gomcp.CallToolResult, error) {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	return session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
}

// decodeOutput reads a tool's structured output, falling back to its text.
func decodeOutput(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()

	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			t.Fatalf("marshalling structured content: %v", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("unmarshalling structured content: %v", err)
		}
		return
	}
	text := extractText(result)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("unmarshalling output: %v (text was: %s)", err, text)
	}
}

// --- Tests ---

func TestAnalyzeLog(t *testing.T) {
	path := writeLog(t, strings.Join([]string{
		`127.0.0.1 - - [10/Oct/2021] "GET / HTTP/1.1" 200 512`,
		`127.0.0.1 - - [10/Oct/2021] "GET /x HTTP/1.1" 500 0`,
		``,
		`bad`,
		`127.0.0.1 - - [10/Oct/2021] "GET /y HTTP/1.1" 200 12`,
	}, "\n"))
	srv := NewServer(core.NewLogAnalyzer(nil, nil), nil, nil, "test")

	result := callTool(t, srv, "analyze_log", map[string]any{"path": path})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out analyzeLogOutput
	decodeOutput(t, result, &out)

	if out.TotalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", out.TotalRequests)
	}
	if len(out.StatusCounts) != 2 || out.StatusCounts[0] != (statusCountOutput{Code: 200, Count: 2}) {
		t.Errorf("unexpected status counts: %v", out.StatusCounts)
	}
	if out.MalformedCount != 1 || len(out.MalformedLines) != 1 {
		t.Fatalf("expected 1 malformed line, got %+v", out.MalformedLines)
	}
	if out.MalformedLines[0].LineNumber != 4 || out.MalformedLines[0].Error != core.ErrNotEnoughParts.Error() {
		t.Errorf("unexpected malformed line: %+v", out.MalformedLines[0])
	}
}

func TestAnalyzeLogMissingFile(t *testing.T) {
	srv := NewServer(core.NewLogAnalyzer(nil, nil), nil, nil, "test")

	result := callTool(t, srv, "analyze_log", map[string]any{
		"path": filepath.Join(t.TempDir(), "missing.log"),
	})

	if !result.IsError {
		t.Fatal("expected error result for missing file")
	}
	if !strings.Contains(extractText(result), "missing.log") {
		t.Errorf("error should name the file: %s", extractText(result))
	}
}

func TestAnalyzeLogMissingPath(t *testing.T) {
	srv := NewServer(core.NewLogAnalyzer(nil, nil), nil, nil, "test")

	// The SDK validates required fields at the schema level, so the call
	// may be rejected before it reaches the handler.
	result, err := call(t, srv, "analyze_log", map[string]any{})
	if err != nil {
		return
	}
	if !result.IsError {
		t.Fatal("expected error result for missing path")
	}
}

func TestGetMetrics(t *testing.T) {
	now := time.Now().UTC()
	mc := &fakeMetricsCalculator{
		metrics: &observability.Metrics{
			AnalysesCompleted: 5,
			AnalysesFailed:    1,
			RequestsParsed:    120,
			MalformedLines:    7,
			StatusCounts:      map[int]int{404: 20, 200: 100},
			FilesAnalyzed:     map[string]int{"access.log": 5},
			EventCount:        42,
			OldestEvent:       &now,
			NewestEvent:       &now,
		},
	}
	srv := NewServer(nil, mc, nil, "test")

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var m metricsOutput
	decodeOutput(t, result, &m)

	if m.AnalysesCompleted != 5 || m.AnalysesFailed != 1 {
		t.Errorf("analyses = %d/%d, want 5/1", m.AnalysesCompleted, m.AnalysesFailed)
	}
	if m.EventCount != 42 {
		t.Errorf("expected 42 events, got %d", m.EventCount)
	}
	if len(m.StatusCounts) != 2 || m.StatusCounts[0].Code != 200 {
		t.Errorf("status counts should be sorted by code: %v", m.StatusCounts)
	}
	if m.OldestEvent == "" {
		t.Error("expected oldest event timestamp")
	}
}

func TestGetMetricsForFile(t *testing.T) {
	mc := &fakeMetricsCalculator{metrics: &observability.Metrics{AnalysesCompleted: 1}}
	srv := NewServer(nil, mc, nil, "test")

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "24h", "file": "access.log"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if mc.file != "access.log" {
		t.Errorf("calculator got file %q, want access.log", mc.file)
	}
}

func TestGetMetricsInvalidSince(t *testing.T) {
	srv := NewServer(nil, &fakeMetricsCalculator{metrics: &observability.Metrics{}}, nil, "test")

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "7w"})
	if !result.IsError {
		t.Fatal("expected error for unsupported duration")
	}
}

func TestGetMetricsCalculatorError(t *testing.T) {
	srv := NewServer(nil, &fakeMetricsCalculator{err: errors.New("disk gone")}, nil, "test")

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "24h"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(extractText(result), "disk gone") {
		t.Errorf("unexpected error text: %s", extractText(result))
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	srv := NewServer(nil, nil, nil, "test")

	result := callTool(t, srv, "get_metrics", map[string]any{})

	if !result.IsError {
		t.Fatal("expected error when metrics calculator is nil")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result")
	}
}

func TestGetAlerts(t *testing.T) {
	now := time.Now().UTC()
	ae := &fakeAlertEngine{
		alerts: []observability.Alert{
			{
				ID:          "server-errors-access.log-1",
				Condition:   observability.ConditionServerErrorRatio,
				Severity:    observability.SeverityHigh,
				Message:     "access.log: 20.0% of requests returned 5xx (threshold: 5.0%)",
				TriggeredAt: now,
			},
		},
	}
	srv := NewServer(nil, nil, ae, "test")

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out getAlertsOutput
	decodeOutput(t, result, &out)

	if out.Count != 1 {
		t.Errorf("expected 1 alert, got %d", out.Count)
	}
	if len(out.Alerts) > 0 && out.Alerts[0].Severity != "high" {
		t.Errorf("expected high severity, got %s", out.Alerts[0].Severity)
	}
}

func TestGetAlertsDisabled(t *testing.T) {
	srv := NewServer(nil, nil, nil, "test")

	result := callTool(t, srv, "get_alerts", map[string]any{})

	if !result.IsError {
		t.Fatal("expected error when alert engine is nil")
	}
}

func TestGetAlertsEmpty(t *testing.T) {
	srv := NewServer(nil, nil, &fakeAlertEngine{alerts: []observability.Alert{}}, "test")

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out getAlertsOutput
	decodeOutput(t, result, &out)
	if out.Count != 0 {
		t.Errorf("expected 0 alerts, got %d", out.Count)
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"7d", false},
		{"30d", false},
		{"24h", false},
		{"1h", false},
		{"", true},
		{"x", true},
		{"7x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseSince(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
