// Package internal provides the App struct that wires all components of the
// weblog analyzer together and initializes the CLI layer.
package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pandu874/webloganalyzer/internal/cli"
	"github.com/pandu874/webloganalyzer/internal/core"
	"github.com/pandu874/webloganalyzer/internal/observability"
	"github.com/pandu874/webloganalyzer/pkg/models"
)

// EventLogFile is the name of the JSONL event log inside the log dir.
const EventLogFile = "events.jsonl"

// App holds all service dependencies of weblog.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Logging
	Logger  *log.Logger
	logFile *os.File

	// Core services
	Analyzer core.LogAnalyzer
	Uploads  core.UploadStore

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components. basePath is the directory holding
// .weblogconfig; relative upload and log dirs resolve against it.
func NewApp(basePath string) (*App, error) {
	return newApp(basePath, os.Stderr)
}

func newApp(basePath string, stderr io.Writer) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	logDir := resolveDir(basePath, cfg.Log.Dir)
	uploadDir := resolveDir(basePath, cfg.Server.UploadDir)

	// --- Logging ---
	// The log file is best effort; stderr always receives output.
	var logOut io.Writer = stderr
	if f, err := observability.OpenLogFile(logDir); err == nil {
		app.logFile = f
		logOut = io.MultiWriter(stderr, f)
	}
	app.Logger = observability.NewLogger(logOut, cfg.Log.Level)
	if app.logFile == nil {
		app.Logger.Warn("debug log file unavailable, logging to stderr only", "dir", logDir)
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(logDir, EventLogFile))
	if err != nil {
		// Non-fatal: metrics and alerts are disabled without an event log.
		app.Logger.Warn("event log unavailable", "error", err)
		app.EventLog = nil
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}

		thresholds := observability.DefaultAlertThresholds()
		thresholds.MalformedRatio = cfg.Alerts.MalformedRatio
		thresholds.ServerErrorRatio = cfg.Alerts.ServerErrorRatio
		thresholds.FailedAnalyses = cfg.Alerts.FailedAnalyses
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	// --- Core services ---
	app.Analyzer = core.NewLogAnalyzer(app.Logger, events)
	app.Uploads = core.NewUploadStore(uploadDir, cfg.Server.MaxUploadBytes, events)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.ConfigMgr = app.ConfigMgr
	cli.Logger = app.Logger
	cli.Analyzer = app.Analyzer
	cli.Uploads = app.Uploads

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases the event log and debug log file handles.
func (a *App) Close() error {
	var firstErr error
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil {
			firstErr = err
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the weblog base directory. It checks the
// WEBLOG_HOME env var, then walks up from the current directory looking for
// a .weblogconfig file, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("WEBLOG_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

func resolveDir(basePath, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(basePath, dir)
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   eventLevel(eventType),
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}

func eventLevel(eventType string) string {
	switch eventType {
	case core.EventAnalysisFailed:
		return observability.LevelError
	case core.EventUploadRejected:
		return observability.LevelWarn
	default:
		return observability.LevelInfo
	}
}
