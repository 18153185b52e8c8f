// Package config loads the daemon configuration from a YAML file, with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Poll     PollConfig     `yaml:"poll"`
	Notify   NotifyConfig   `yaml:"notify"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Ops      OpsConfig      `yaml:"ops"`
}

type BackendConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

type PollConfig struct {
	TaskIntervalSeconds   int `yaml:"task_interval_seconds"`
	AlertIntervalSeconds  int `yaml:"alert_interval_seconds"`
	UnreadIntervalSeconds int `yaml:"unread_interval_seconds"`
	HTTPTimeoutSeconds    int `yaml:"http_timeout_seconds"`
	AlertPageLimit        int `yaml:"alert_page_limit"`
}

type NotifyConfig struct {
	HighSeverityThreshold int         `yaml:"high_severity_threshold"`
	MaxMessageLength      int         `yaml:"max_message_length"`
	Email                 EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FromName    string `yaml:"from_name"`
	FromAddress string `yaml:"from_address"`
	To          string `yaml:"to"`
	MinSeverity int    `yaml:"min_severity"`
	// APIKey comes from the EMAIL_API_KEY environment variable, never the file.
	APIKey string `yaml:"-"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type OpsConfig struct {
	Port string `yaml:"port"`
}

// Load reads the configuration file, applies defaults, and pulls secrets from
// the environment. An empty path yields the default configuration.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend.url is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Poll.TaskIntervalSeconds <= 0 {
		cfg.Poll.TaskIntervalSeconds = 3
	}
	if cfg.Poll.AlertIntervalSeconds <= 0 {
		cfg.Poll.AlertIntervalSeconds = 30
	}
	if cfg.Poll.UnreadIntervalSeconds <= 0 {
		cfg.Poll.UnreadIntervalSeconds = 60
	}
	if cfg.Poll.HTTPTimeoutSeconds <= 0 {
		cfg.Poll.HTTPTimeoutSeconds = 10
	}
	if cfg.Poll.AlertPageLimit <= 0 {
		cfg.Poll.AlertPageLimit = 20
	}
	if cfg.Notify.HighSeverityThreshold <= 0 {
		cfg.Notify.HighSeverityThreshold = 4
	}
	if cfg.Notify.MaxMessageLength <= 0 {
		cfg.Notify.MaxMessageLength = 140
	}
	if cfg.Ops.Port == "" {
		cfg.Ops.Port = "8080"
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VIGIL_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("VIGIL_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Ops.Port = v
	}
	cfg.Notify.Email.APIKey = os.Getenv("EMAIL_API_KEY")
}

func (c *PollConfig) TaskInterval() time.Duration {
	return time.Duration(c.TaskIntervalSeconds) * time.Second
}

func (c *PollConfig) AlertInterval() time.Duration {
	return time.Duration(c.AlertIntervalSeconds) * time.Second
}

func (c *PollConfig) UnreadInterval() time.Duration {
	return time.Duration(c.UnreadIntervalSeconds) * time.Second
}

func (c *PollConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
