package cli

import (
	"github.com/charmbracelet/log"

	"github.com/pandu874/webloganalyzer/internal/core"
	"github.com/pandu874/webloganalyzer/internal/observability"
	"github.com/pandu874/webloganalyzer/pkg/models"
)

// Core service instances, set during app initialization in app.go.
var (
	BasePath  string
	Config    *models.GlobalConfig
	ConfigMgr core.ConfigurationManager
	Logger    *log.Logger
	Analyzer  core.LogAnalyzer
	Uploads   core.UploadStore
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
