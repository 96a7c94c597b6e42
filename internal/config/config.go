package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Values are read from an
// optional YAML file first, then overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Impact    ImpactConfig    `yaml:"impact"`
	Notify    NotifyConfig    `yaml:"notifications"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	Port         int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

// DatabaseConfig selects the persistence backend. An empty DSN runs the
// application on the in-memory stores.
type DatabaseConfig struct {
	Driver         string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN            string `yaml:"dsn" env:"DATABASE_URL"`
	MigrationsPath string `yaml:"migrations_path" env:"DATABASE_MIGRATIONS_PATH"`
	MaxOpenConns   int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
}

// LoggingConfig mirrors the logger package settings.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// AuthConfig holds the static bearer tokens accepted by the API. An empty
// list disables authentication.
type AuthConfig struct {
	Tokens []string `yaml:"tokens" env:"API_TOKENS"`
}

// DiscoveryConfig configures the external web-search collaborator.
type DiscoveryConfig struct {
	SearchURL         string  `yaml:"search_url" env:"DISCOVERY_SEARCH_URL"`
	SearchAPIKey      string  `yaml:"search_api_key" env:"DISCOVERY_SEARCH_KEY"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"DISCOVERY_SEARCH_RPS"`
}

// ImpactConfig controls the scheduled impact snapshot refresh.
type ImpactConfig struct {
	RefreshSchedule string `yaml:"refresh_schedule" env:"IMPACT_REFRESH_SCHEDULE"`
}

// NotifyConfig configures the connection-transition webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" env:"NOTIFY_WEBHOOK_URL"`
	APIKey     string `yaml:"webhook_key" env:"NOTIFY_WEBHOOK_KEY"`
}

// Load reads configuration from the file named by CONFIG_PATH (default
// config.yaml, silently skipped when absent) and then from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration.
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Discovery.RequestsPerSecond == 0 {
		c.Discovery.RequestsPerSecond = 1
	}
	if c.Impact.RefreshSchedule == "" {
		c.Impact.RefreshSchedule = "@every 15m"
	}
}
