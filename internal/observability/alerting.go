package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionMalformedRatio   = "malformed_ratio_exceeded"
	ConditionServerErrorRatio = "server_error_ratio_exceeded"
	ConditionFailedAnalyses   = "failed_analyses_exceeded"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire. A zero ratio or count
// disables the corresponding check.
type AlertThresholds struct {
	MalformedRatio   float64 `yaml:"malformed_ratio" json:"malformed_ratio"`
	ServerErrorRatio float64 `yaml:"server_error_ratio" json:"server_error_ratio"`
	FailedAnalyses   int     `yaml:"failed_analyses" json:"failed_analyses"`
	WindowHours      int     `yaml:"window_hours" json:"window_hours"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MalformedRatio:   0.10,
		ServerErrorRatio: 0.05,
		FailedAnalyses:   3,
		WindowHours:      24,
	}
}

// AnalysisSummary is the part of an analysis the alert checks look at.
type AnalysisSummary struct {
	File          string
	TotalRequests int
	Malformed     int
	StatusCounts  map[int]int
}

// AlertEngine evaluates alert conditions.
type AlertEngine interface {
	// Evaluate checks every analysis recorded within the alert window.
	Evaluate() ([]Alert, error)
	// EvaluateAnalysis checks a single analysis that has just completed.
	EvaluateAnalysis(summary AnalysisSummary) []Alert
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	if thresholds.WindowHours <= 0 {
		thresholds.WindowHours = DefaultAlertThresholds().WindowHours
	}
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads analysis events in the window and checks all alert
// conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	since := now.Add(-time.Duration(ae.thresholds.WindowHours) * time.Hour)

	events, err := ae.eventLog.Read(EventFilter{Since: &since, TypePrefix: PrefixAnalysis})
	if err != nil {
		return nil, fmt.Errorf("reading analysis events: %w", err)
	}

	var alerts []Alert
	failed := 0
	for _, event := range events {
		switch event.Type {
		case TypeAnalysisCompleted:
			summary := AnalysisSummary{
				TotalRequests: intField(event.Data, "total_requests"),
				Malformed:     intField(event.Data, "malformed"),
				StatusCounts:  statusCountsField(event.Data),
			}
			summary.File = event.File()
			alerts = append(alerts, ae.checkAnalysis(summary, event.Time)...)
		case TypeAnalysisFailed:
			failed++
		}
	}

	if ae.thresholds.FailedAnalyses > 0 && failed > ae.thresholds.FailedAnalyses {
		alerts = append(alerts, Alert{
			ID:        fmt.Sprintf("failed-analyses-%d", now.Unix()),
			Condition: ConditionFailedAnalyses,
			Severity:  SeverityHigh,
			Message: fmt.Sprintf("%d analyses failed in the last %d hours (threshold: %d)",
				failed, ae.thresholds.WindowHours, ae.thresholds.FailedAnalyses),
			TriggeredAt: now,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].TriggeredAt.Before(alerts[j].TriggeredAt)
	})
	return alerts, nil
}

// EvaluateAnalysis checks the ratio conditions against one analysis.
func (ae *alertEngine) EvaluateAnalysis(summary AnalysisSummary) []Alert {
	return ae.checkAnalysis(summary, ae.now())
}

func (ae *alertEngine) checkAnalysis(s AnalysisSummary, at time.Time) []Alert {
	var alerts []Alert

	lines := s.TotalRequests + s.Malformed
	if ae.thresholds.MalformedRatio > 0 && lines > 0 {
		ratio := float64(s.Malformed) / float64(lines)
		if ratio > ae.thresholds.MalformedRatio {
			severity := SeverityMedium
			if ratio > 0.5 {
				severity = SeverityHigh
			}
			alerts = append(alerts, Alert{
				ID:        fmt.Sprintf("malformed-%s-%d", s.File, at.Unix()),
				Condition: ConditionMalformedRatio,
				Severity:  severity,
				Message: fmt.Sprintf("%s: %.1f%% of lines are malformed (threshold: %.1f%%)",
					s.File, ratio*100, ae.thresholds.MalformedRatio*100),
				TriggeredAt: at,
			})
		}
	}

	if ae.thresholds.ServerErrorRatio > 0 && s.TotalRequests > 0 {
		serverErrors := 0
		for code, n := range s.StatusCounts {
			if code >= 500 && code < 600 {
				serverErrors += n
			}
		}
		ratio := float64(serverErrors) / float64(s.TotalRequests)
		if ratio > ae.thresholds.ServerErrorRatio {
			alerts = append(alerts, Alert{
				ID:        fmt.Sprintf("server-errors-%s-%d", s.File, at.Unix()),
				Condition: ConditionServerErrorRatio,
				Severity:  SeverityHigh,
				Message: fmt.Sprintf("%s: %.1f%% of requests returned 5xx (threshold: %.1f%%)",
					s.File, ratio*100, ae.thresholds.ServerErrorRatio*100),
				TriggeredAt: at,
			})
		}
	}

	return alerts
}
