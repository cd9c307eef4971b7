// Package core contains the business logic of weblog: status-code
// extraction, log file analysis, upload storage, and configuration.
package core

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pandu874/webloganalyzer/pkg/models"
)

// LogAnalyzer produces aggregate statistics for a server log file.
type LogAnalyzer interface {
	Analyze(path string) (*models.AnalysisResult, error)
}

type logAnalyzer struct {
	logger *log.Logger
	events EventLogger
}

// NewLogAnalyzer creates a LogAnalyzer. Both logger and events may be nil.
func NewLogAnalyzer(logger *log.Logger, events EventLogger) LogAnalyzer {
	return &logAnalyzer{logger: logger, events: events}
}

// Analyze reads the file at path line by line and aggregates status codes.
// Malformed lines are recorded in the result and never abort the scan; only
// failing to open or read the file returns an error, a *FileAccessError.
func (a *logAnalyzer) Analyze(path string) (*models.AnalysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		a.logFailure(path, err)
		return nil, &FileAccessError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	result, err := a.scan(f)
	if err != nil {
		a.logFailure(path, err)
		return nil, &FileAccessError{Path: path, Err: err}
	}

	if a.logger != nil {
		a.logger.Info("analysis complete",
			"file", path,
			"total_requests", result.TotalRequests,
			"malformed", result.MalformedCount(),
		)
	}
	if a.events != nil {
		counts := make(map[string]any, len(result.StatusCounts))
		for code, n := range result.StatusCounts {
			counts[strconv.Itoa(code)] = n
		}
		_ = a.events.LogEvent(EventAnalysisCompleted, map[string]any{
			"file":           path,
			"total_requests": result.TotalRequests,
			"malformed":      result.MalformedCount(),
			"status_counts":  counts,
		})
	}

	return result, nil
}

func (a *logAnalyzer) scan(r io.Reader) (*models.AnalysisResult, error) {
	result := models.NewAnalysisResult()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), math.MaxInt)
	scanner.Split(ScanLines)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.ToValidUTF8(scanner.Text(), "")
		if line == "" {
			continue
		}
		code, err := ParseStatusCode(line)
		if err != nil {
			a.recordMalformed(result, lineNo, line, err)
			continue
		}
		result.StatusCounts[code]++
		result.TotalRequests++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ScanLines is a bufio.SplitFunc that ends a line at "\n", "\r\n" or a lone
// "\r". The terminator is not part of the returned line.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		switch {
		case i+1 < len(data) && data[i+1] == '\n':
			return i + 2, data[:i], nil
		case i+1 < len(data) || atEOF:
			return i + 1, data[:i], nil
		}
		// A trailing '\r' may be the first half of "\r\n".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (a *logAnalyzer) recordMalformed(result *models.AnalysisResult, lineNo int, line string, err error) {
	perr := &LineParseError{Line: lineNo, Err: err}
	entry := models.MalformedLine{
		LineNumber: lineNo,
		Preview:    Preview(line),
		Error:      perr.Error(),
	}
	result.MalformedLines = append(result.MalformedLines, entry)

	if a.logger != nil {
		a.logger.Warn("malformed line",
			"line", entry.LineNumber,
			"preview", entry.Preview,
			"error", entry.Error,
		)
	}
}

func (a *logAnalyzer) logFailure(path string, err error) {
	if a.logger != nil {
		a.logger.Error("analysis failed", "file", path, "error", err)
	}
	if a.events != nil {
		_ = a.events.LogEvent(EventAnalysisFailed, map[string]any{
			"file":  path,
			"error": err.Error(),
		})
	}
}

// ParseStatusCode extracts the status code from a log line. The code is the
// second-to-last whitespace-separated token, as in Common Log Format.
func ParseStatusCode(line string) (int, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return 0, ErrNotEnoughParts
	}
	return strconv.Atoi(parts[len(parts)-2])
}

// Preview returns at most models.PreviewWidth characters of line.
func Preview(line string) string {
	n := 0
	for i := range line {
		if n == models.PreviewWidth {
			return line[:i]
		}
		n++
	}
	return line
}
