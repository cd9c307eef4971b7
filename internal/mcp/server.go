// Package mcp provides an MCP (Model Context Protocol) server that exposes
// log analysis, metrics and alerts as MCP tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pandu874/webloganalyzer/internal/core"
	"github.com/pandu874/webloganalyzer/internal/observability"
	"github.com/pandu874/webloganalyzer/pkg/models"
)

// Server wraps the weblog services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	analyzer    core.LogAnalyzer
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server. metricsCalc and alertEngine may be nil
// when no event log is available.
func NewServer(analyzer core.LogAnalyzer, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		analyzer:    analyzer,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "weblog", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type analyzeLogInput struct {
	Path string `json:"path" jsonschema:"required,path of the server log file to analyze"`
}

type statusCountOutput struct {
	Code  int `json:"code"`
	Count int `json:"count"`
}

type malformedLineOutput struct {
	LineNumber int    `json:"line_number"`
	Preview    string `json:"preview"`
	Error      string `json:"error"`
}

type analyzeLogOutput struct {
	File           string                `json:"file"`
	TotalRequests  int                   `json:"total_requests"`
	StatusCounts   []statusCountOutput   `json:"status_counts"`
	MalformedCount int                   `json:"malformed_count"`
	MalformedLines []malformedLineOutput `json:"malformed_lines"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
	File  string `json:"file,omitempty" jsonschema:"only count events about this log file, by path or base name"`
}

type metricsOutput struct {
	AnalysesCompleted int                 `json:"analyses_completed"`
	AnalysesFailed    int                 `json:"analyses_failed"`
	UploadsSaved      int                 `json:"uploads_saved"`
	UploadsRejected   int                 `json:"uploads_rejected"`
	RequestsParsed    int                 `json:"requests_parsed"`
	MalformedLines    int                 `json:"malformed_lines"`
	StatusCounts      []statusCountOutput `json:"status_counts"`
	FilesAnalyzed     map[string]int      `json:"files_analyzed"`
	EventCount        int                 `json:"event_count"`
	OldestEvent       string              `json:"oldest_event,omitempty"`
	NewestEvent       string              `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "analyze_log",
		Description: "Analyze a server log file. Returns the number of parsed requests, counts per HTTP status code, and the lines that could not be parsed.",
	}, s.handleAnalyzeLog)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated metrics from the event log: analyses run and failed, uploads, requests parsed, malformed lines, and status code totals.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (malformed line ratio, server error ratio, failed analyses).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleAnalyzeLog(_ context.Context, _ *gomcp.CallToolRequest, input analyzeLogInput) (*gomcp.CallToolResult, analyzeLogOutput, error) {
	if input.Path == "" {
		return errorResult("path is required"), analyzeLogOutput{}, nil
	}
	if s.analyzer == nil {
		return errorResult("log analyzer not available"), analyzeLogOutput{}, nil
	}

	result, err := s.analyzer.Analyze(input.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("analyzing %s: %s", input.Path, err)), analyzeLogOutput{}, nil
	}

	return nil, resultToOutput(input.Path, result), nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (no event log)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.CalculateFile(sinceTime, input.File)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		AnalysesCompleted: metrics.AnalysesCompleted,
		AnalysesFailed:    metrics.AnalysesFailed,
		UploadsSaved:      metrics.UploadsSaved,
		UploadsRejected:   metrics.UploadsRejected,
		RequestsParsed:    metrics.RequestsParsed,
		MalformedLines:    metrics.MalformedLines,
		StatusCounts:      statusCountsToOutput(metrics.StatusCounts),
		FilesAnalyzed:     metrics.FilesAnalyzed,
		EventCount:        metrics.EventCount,
	}
	if out.FilesAnalyzed == nil {
		out.FilesAnalyzed = make(map[string]int)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (no event log)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func resultToOutput(path string, r *models.AnalysisResult) analyzeLogOutput {
	out := analyzeLogOutput{
		File:           path,
		TotalRequests:  r.TotalRequests,
		StatusCounts:   statusCountsToOutput(r.StatusCounts),
		MalformedCount: r.MalformedCount(),
		MalformedLines: make([]malformedLineOutput, len(r.MalformedLines)),
	}
	for i, m := range r.MalformedLines {
		out.MalformedLines[i] = malformedLineOutput{
			LineNumber: m.LineNumber,
			Preview:    m.Preview,
			Error:      m.Error,
		}
	}
	return out
}

func statusCountsToOutput(counts map[int]int) []statusCountOutput {
	sorted := (&models.AnalysisResult{StatusCounts: counts}).SortedStatusCounts()
	out := make([]statusCountOutput, len(sorted))
	for i, c := range sorted {
		out[i] = statusCountOutput{Code: c.Code, Count: c.Count}
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		StatusCounts:  []statusCountOutput{},
		FilesAnalyzed: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
