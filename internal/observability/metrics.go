package observability

import (
	"fmt"
	"strconv"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	AnalysesCompleted int            `json:"analyses_completed"`
	AnalysesFailed    int            `json:"analyses_failed"`
	UploadsSaved      int            `json:"uploads_saved"`
	UploadsRejected   int            `json:"uploads_rejected"`
	RequestsParsed    int            `json:"requests_parsed"`
	MalformedLines    int            `json:"malformed_lines"`
	StatusCounts      map[int]int    `json:"status_counts"`
	FilesAnalyzed     map[string]int `json:"files_analyzed"`
	EventCount        int            `json:"event_count"`
	OldestEvent       *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent       *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log. CalculateFile
// restricts the events to one log file, matched by path or base name.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
	CalculateFile(since time.Time, file string) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	return mc.CalculateFile(since, "")
}

func (mc *metricsCalculator) CalculateFile(since time.Time, file string) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since, File: file})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		StatusCounts:  make(map[int]int),
		FilesAnalyzed: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case TypeAnalysisCompleted:
			m.AnalysesCompleted++
			m.RequestsParsed += intField(event.Data, "total_requests")
			m.MalformedLines += intField(event.Data, "malformed")
			for code, n := range statusCountsField(event.Data) {
				m.StatusCounts[code] += n
			}
			if file := event.File(); file != "" {
				m.FilesAnalyzed[file]++
			}
		case TypeAnalysisFailed:
			m.AnalysesFailed++
		case TypeUploadSaved:
			m.UploadsSaved++
		case TypeUploadRejected:
			m.UploadsRejected++
		}
	}

	return m, nil
}

// intField reads a numeric field that may have been decoded from JSON as
// float64 or written in-process as int.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// statusCountsField reads the "status_counts" object of an analysis event.
func statusCountsField(data map[string]any) map[int]int {
	out := make(map[int]int)
	raw, ok := data["status_counts"].(map[string]any)
	if !ok {
		return out
	}
	for key := range raw {
		code, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out[code] = intField(raw, key)
	}
	return out
}
