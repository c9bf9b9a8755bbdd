// Package config loads fleet-visualizer settings from a YAML file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fleet-visualizer/internal/logging"
)

// Poll sources.
const (
	SourceSummary = "summary"
	SourceRobots  = "robots"
	SourceGtfsRt  = "gtfsrt"
)

// Default values for Config.
const (
	DefaultBackendURL      = "http://localhost:5000"
	DefaultBackendTimeout  = 10 * time.Second
	DefaultPollInterval    = 5 * time.Second
	DefaultFetchTimeout    = 10 * time.Second
	DefaultServerPort      = 8080
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStaticDir       = "./static"
	DefaultLogLevel        = "info"
)

// Config is the full configuration.
type Config struct {
	Backend Backend `yaml:"backend"`
	Poll    Poll    `yaml:"poll"`
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
}

// Backend locates the robot dashboard API.
type Backend struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Poll controls snapshot polling and reconciliation.
type Poll struct {
	Interval      time.Duration `yaml:"interval"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	Source        string        `yaml:"source"`
	GtfsRtURL     string        `yaml:"gtfsrt_url"`
	DiscardStale  bool          `yaml:"discard_stale"`
	MinMoveMeters float64       `yaml:"min_move_meters"`
}

// Server controls the dashboard HTTP server.
type Server struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	StaticDir       string        `yaml:"static_dir"`
}

// Log controls logging.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Backend: Backend{BaseURL: DefaultBackendURL, Timeout: DefaultBackendTimeout},
		Poll: Poll{
			Interval:     DefaultPollInterval,
			FetchTimeout: DefaultFetchTimeout,
			Source:       SourceSummary,
			DiscardStale: true,
		},
		Server: Server{
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultShutdownTimeout,
			StaticDir:       DefaultStaticDir,
		},
		Log: Log{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults. An empty path means no file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all config values are usable.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{Field: "backend.base_url", Message: "must be an http(s) URL"}
	}
	if cfg.Backend.Timeout <= 0 {
		return ValidationError{Field: "backend.timeout", Message: "must be positive"}
	}
	if cfg.Poll.Interval <= 0 {
		return ValidationError{Field: "poll.interval", Message: "must be positive"}
	}
	if cfg.Poll.FetchTimeout <= 0 {
		return ValidationError{Field: "poll.fetch_timeout", Message: "must be positive"}
	}
	switch cfg.Poll.Source {
	case SourceSummary, SourceRobots:
	case SourceGtfsRt:
		if cfg.Poll.GtfsRtURL == "" {
			return ValidationError{Field: "poll.gtfsrt_url", Message: "required when poll.source is gtfsrt"}
		}
	default:
		return ValidationError{Field: "poll.source", Message: "must be one of summary, robots, gtfsrt"}
	}
	if cfg.Poll.MinMoveMeters < 0 {
		return ValidationError{Field: "poll.min_move_meters", Message: "must not be negative"}
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return ValidationError{Field: "server.port", Message: "must be between 0 and 65535"}
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return ValidationError{Field: "server.shutdown_timeout", Message: "must be positive"}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: "must be debug, info, warn or error"}
	}
	return nil
}
