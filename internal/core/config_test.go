package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pandu874/webloganalyzer/pkg/models"
	"gopkg.in/yaml.v3"
)

// --- LoadGlobalConfig tests ---

func TestLoadGlobalConfig_Defaults_WhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:5000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:5000")
	}
	if cfg.Server.UploadDir != "uploads" {
		t.Errorf("Server.UploadDir = %q, want %q", cfg.Server.UploadDir, "uploads")
	}
	if cfg.Log.Dir != "logs" {
		t.Errorf("Log.Dir = %q, want %q", cfg.Log.Dir, "logs")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Alerts.FailedAnalyses != 3 {
		t.Errorf("Alerts.FailedAnalyses = %d, want 3", cfg.Alerts.FailedAnalyses)
	}
	if cfg.Notifications.Enabled {
		t.Error("Notifications.Enabled should default to false")
	}
}

func TestLoadGlobalConfig_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".weblogconfig.yaml", `
server:
  addr: ":8080"
  upload_dir: /var/lib/weblog/uploads
  max_upload_bytes: 1024
log:
  dir: /var/log/weblog
  level: debug
alerts:
  malformed_ratio: 0.25
  server_error_ratio: 0.5
  failed_analyses: 7
notifications:
  enabled: true
  slack:
    webhook_url: https://hooks.slack.example/T000
`)

	cm := NewConfigurationManager(dir)
	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.UploadDir != "/var/lib/weblog/uploads" {
		t.Errorf("Server.UploadDir = %q", cfg.Server.UploadDir)
	}
	if cfg.Server.MaxUploadBytes != 1024 {
		t.Errorf("Server.MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Alerts.MalformedRatio != 0.25 {
		t.Errorf("Alerts.MalformedRatio = %v", cfg.Alerts.MalformedRatio)
	}
	if cfg.Alerts.FailedAnalyses != 7 {
		t.Errorf("Alerts.FailedAnalyses = %d", cfg.Alerts.FailedAnalyses)
	}
	if !cfg.Notifications.Enabled || cfg.Notifications.Slack.WebhookURL != "https://hooks.slack.example/T000" {
		t.Errorf("Notifications = %+v", cfg.Notifications)
	}
}

func TestLoadGlobalConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".weblogconfig.yaml", "log:\n  level: warn\n")

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Server.UploadDir != "uploads" {
		t.Errorf("Server.UploadDir = %q, want default", cfg.Server.UploadDir)
	}
}

func TestLoadGlobalConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WEBLOG_SERVER_ADDR", ":9999")

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want :9999", cfg.Server.Addr)
	}
}

func TestLoadGlobalConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".weblogconfig.yaml", "server: [unterminated\n")

	_, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), ConfigFileName) {
		t.Errorf("error should name the config file: %v", err)
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *models.GlobalConfig)
		wantErr string
	}{
		{"defaults are valid", func(cfg *models.GlobalConfig) {}, ""},
		{"empty addr", func(cfg *models.GlobalConfig) { cfg.Server.Addr = "" }, "server.addr"},
		{"empty upload dir", func(cfg *models.GlobalConfig) { cfg.Server.UploadDir = "" }, "server.upload_dir"},
		{"negative max upload", func(cfg *models.GlobalConfig) { cfg.Server.MaxUploadBytes = -1 }, "max_upload_bytes"},
		{"empty log dir", func(cfg *models.GlobalConfig) { cfg.Log.Dir = "" }, "log.dir"},
		{"bad log level", func(cfg *models.GlobalConfig) { cfg.Log.Level = "loud" }, "log.level"},
		{"ratio above one", func(cfg *models.GlobalConfig) { cfg.Alerts.MalformedRatio = 1.5 }, "malformed_ratio"},
		{"negative ratio", func(cfg *models.GlobalConfig) { cfg.Alerts.ServerErrorRatio = -0.1 }, "server_error_ratio"},
		{"negative failed", func(cfg *models.GlobalConfig) { cfg.Alerts.FailedAnalyses = -2 }, "failed_analyses"},
		{"notifications without webhook", func(cfg *models.GlobalConfig) { cfg.Notifications.Enabled = true }, "webhook_url"},
	}

	cm := NewConfigurationManager(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGlobalConfig()
			tt.mutate(cfg)
			err := cm.ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	if err := NewConfigurationManager(t.TempDir()).ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

// --- SaveDefaultConfig tests ---

func TestSaveDefaultConfig_WritesLoadableFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	path, err := cm.SaveDefaultConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != ".weblogconfig.yaml" {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	var parsed models.GlobalConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("parsing written config: %v", err)
	}
	if parsed.Server.UploadDir != "uploads" {
		t.Errorf("written upload_dir = %q", parsed.Server.UploadDir)
	}

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("loading written config: %v", err)
	}
	if err := cm.ValidateConfig(cfg); err != nil {
		t.Errorf("written config should validate: %v", err)
	}
}

func TestSaveDefaultConfig_KeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".weblogconfig.yaml", "log:\n  level: error\n")

	path, err := NewConfigurationManager(dir).SaveDefaultConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "level: error") {
		t.Errorf("existing config was overwritten: %s", data)
	}
}
