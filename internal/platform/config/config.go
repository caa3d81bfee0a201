package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	SyncConfigPath string
	LegacyBaseURL  string
	LegacyAPIKey   string
	LegacyTimeout  time.Duration

	WorkerID            string
	BatchSize           int
	PollInterval        time.Duration
	MaintenanceInterval time.Duration
	Retention           time.Duration
	ReviewAge           time.Duration
	StaleTimeout        time.Duration
	BackoffBase         time.Duration
	BackoffMax          time.Duration
	MaxAttempts         int

	StatusStreamInterval time.Duration
	EnableStatusStream   bool
	EnsureSchema         bool
	// EmbeddedWorker runs the scheduler inside the API process.
	EmbeddedWorker       bool
	APIToken             string

	LogFormat string
	LogLevel  string
	LogFile   string
}

var defaults = map[string]any{
	"service_name":           "rentbridge",
	"http_port":              "8080",
	"legacy_timeout":         "15s",
	"worker_id":              "",
	"batch_size":             25,
	"poll_interval":          "5s",
	"maintenance_interval":   "10m",
	"retention":              "168h",
	"review_age":             "24h",
	"stale_timeout":          "15m",
	"backoff_base":           "30s",
	"backoff_max":            "30m",
	"max_attempts":           5,
	"status_stream_interval": "2s",
	"log_format":             "json",
	"log_level":              "info",
}

// Load reads configuration from the environment, overlaid on an optional
// file named by CONFIG_FILE. Environment variables win over the file.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		ServiceName: v.GetString("service_name"),
		HTTPPort:    v.GetString("http_port"),
		PostgresDSN: v.GetString("postgres_dsn"),

		SyncConfigPath: v.GetString("sync_config_path"),
		LegacyBaseURL:  v.GetString("legacy_base_url"),
		LegacyAPIKey:   v.GetString("legacy_api_key"),
		LegacyTimeout:  v.GetDuration("legacy_timeout"),

		WorkerID:            v.GetString("worker_id"),
		BatchSize:           v.GetInt("batch_size"),
		PollInterval:        v.GetDuration("poll_interval"),
		MaintenanceInterval: v.GetDuration("maintenance_interval"),
		Retention:           v.GetDuration("retention"),
		ReviewAge:           v.GetDuration("review_age"),
		StaleTimeout:        v.GetDuration("stale_timeout"),
		BackoffBase:         v.GetDuration("backoff_base"),
		BackoffMax:          v.GetDuration("backoff_max"),
		MaxAttempts:         v.GetInt("max_attempts"),

		StatusStreamInterval: v.GetDuration("status_stream_interval"),
		EnableStatusStream:   flag(v, "enable_status_stream", true),
		EnsureSchema:         flag(v, "ensure_schema", true),
		EmbeddedWorker:       flag(v, "embedded_worker", false),
		APIToken:             v.GetString("api_token"),

		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFile:   v.GetString("log_file"),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rentbridge"
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.BackoffMax < c.BackoffBase {
		errs = append(errs, errors.New("BACKOFF_MAX must not be below BACKOFF_BASE"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// flag accepts the usual spellings of on and off; anything else keeps the fallback.
func flag(v *viper.Viper, key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(v.GetString(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
