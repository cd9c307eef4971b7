package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pandu874/webloganalyzer/pkg/models"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the base name of the global configuration file.
const ConfigFileName = ".weblogconfig"

// ConfigurationManager defines the interface for loading, validating, and
// writing the global .weblogconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
	SaveDefaultConfig() (string, error)
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .weblogconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Server: models.ServerConfig{
			Addr:           "127.0.0.1:5000",
			UploadDir:      "uploads",
			MaxUploadBytes: 32 << 20,
		},
		Log: models.LogConfig{
			Dir:   "logs",
			Level: "info",
		},
		Alerts: models.AlertConfig{
			MalformedRatio:   0.10,
			ServerErrorRatio: 0.05,
			FailedAnalyses:   3,
		},
	}
}

// LoadGlobalConfig reads the .weblogconfig file from the base path using Viper.
// If the file does not exist, defaults are returned. WEBLOG_* environment
// variables override file values (e.g. WEBLOG_SERVER_ADDR).
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("weblog")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.upload_dir", cfg.Server.UploadDir)
	v.SetDefault("server.max_upload_bytes", cfg.Server.MaxUploadBytes)
	v.SetDefault("log.dir", cfg.Log.Dir)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("alerts.malformed_ratio", cfg.Alerts.MalformedRatio)
	v.SetDefault("alerts.server_error_ratio", cfg.Alerts.ServerErrorRatio)
	v.SetDefault("alerts.failed_analyses", cfg.Alerts.FailedAnalyses)
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.slack.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Server.UploadDir = v.GetString("server.upload_dir")
	cfg.Server.MaxUploadBytes = v.GetInt64("server.max_upload_bytes")
	cfg.Log.Dir = v.GetString("log.dir")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Alerts.MalformedRatio = v.GetFloat64("alerts.malformed_ratio")
	cfg.Alerts.ServerErrorRatio = v.GetFloat64("alerts.server_error_ratio")
	cfg.Alerts.FailedAnalyses = v.GetInt("alerts.failed_analyses")
	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Slack.WebhookURL = v.GetString("notifications.slack.webhook_url")

	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// single error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if cfg.Server.UploadDir == "" {
		errs = append(errs, "server.upload_dir must not be empty")
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Sprintf("server.max_upload_bytes must be non-negative, got %d", cfg.Server.MaxUploadBytes))
	}
	if cfg.Log.Dir == "" {
		errs = append(errs, "log.dir must not be empty")
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error, fatal", cfg.Log.Level))
	}
	if cfg.Alerts.MalformedRatio < 0 || cfg.Alerts.MalformedRatio > 1 {
		errs = append(errs, fmt.Sprintf("alerts.malformed_ratio %v must be between 0 and 1", cfg.Alerts.MalformedRatio))
	}
	if cfg.Alerts.ServerErrorRatio < 0 || cfg.Alerts.ServerErrorRatio > 1 {
		errs = append(errs, fmt.Sprintf("alerts.server_error_ratio %v must be between 0 and 1", cfg.Alerts.ServerErrorRatio))
	}
	if cfg.Alerts.FailedAnalyses < 0 {
		errs = append(errs, fmt.Sprintf("alerts.failed_analyses must be non-negative, got %d", cfg.Alerts.FailedAnalyses))
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url is required when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SaveDefaultConfig writes the default configuration to
// <basePath>/.weblogconfig.yaml unless a file already exists there.
func (cm *viperConfigManager) SaveDefaultConfig() (string, error) {
	path := filepath.Join(cm.basePath, ConfigFileName+".yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	data, err := yaml.Marshal(DefaultGlobalConfig())
	if err != nil {
		return "", fmt.Errorf("marshalling default config: %w", err)
	}
	if err := os.MkdirAll(cm.basePath, 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
