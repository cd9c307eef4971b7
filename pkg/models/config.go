package models

// ServerConfig holds settings for the upload web server.
type ServerConfig struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	UploadDir      string `yaml:"upload_dir" mapstructure:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// LogConfig holds application logging settings.
type LogConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Level string `yaml:"level" mapstructure:"level"`
}

// AlertConfig holds the thresholds evaluated against recent analyses.
type AlertConfig struct {
	MalformedRatio   float64 `yaml:"malformed_ratio" mapstructure:"malformed_ratio"`
	ServerErrorRatio float64 `yaml:"server_error_ratio" mapstructure:"server_error_ratio"`
	FailedAnalyses   int     `yaml:"failed_analyses" mapstructure:"failed_analyses"`
}

// SlackConfig holds Slack webhook settings.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig controls whether alerts are pushed after an analysis.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// GlobalConfig holds system-wide settings read from .weblogconfig via Viper.
type GlobalConfig struct {
	Server        ServerConfig       `yaml:"server" mapstructure:"server"`
	Log           LogConfig          `yaml:"log" mapstructure:"log"`
	Alerts        AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
}
