package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the probemux supervisor
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Worker process configuration
	Worker WorkerConfig `json:"worker"`

	// Findings store configuration
	Store StoreConfig `json:"store"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Monitoring configuration
	Monitoring MonitoringConfig `json:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Debug   bool   `json:"debug"`
}

// WorkerConfig holds worker process supervision configuration
type WorkerConfig struct {
	// Executable is the path to the worker binary. Empty means the
	// supervisor launches a copy of its own executable.
	Executable string `json:"executable"`

	MaxSessions   int           `json:"max_sessions"`
	ShutdownGrace time.Duration `json:"shutdown_grace"`

	// MaxLineBytes bounds a single captured output line.
	MaxLineBytes int `json:"max_line_bytes"`
}

// StoreConfig holds findings index configuration
type StoreConfig struct {
	Enable bool `json:"enable"`

	// Path is the SQLite database location. Empty keeps the index
	// in memory so nothing survives a restart.
	Path string `json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "text"
	Output string `json:"output"` // "stderr", "stdout", or file path
}

// MonitoringConfig holds resource monitoring configuration
type MonitoringConfig struct {
	Enable   bool          `json:"enable"`
	Interval time.Duration `json:"interval"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "probemux",
			Version: "1.0.0",
			Debug:   false,
		},
		Worker: WorkerConfig{
			Executable:    "", // self
			MaxSessions:   32,
			ShutdownGrace: 5 * time.Second,
			MaxLineBytes:  1024 * 1024,
		},
		Store: StoreConfig{
			Enable: true,
			Path:   "", // in-memory
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Monitoring: MonitoringConfig{
			Enable:   true,
			Interval: 30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from an optional JSON file and
// environment variables, file first, environment last
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		if err := loadFromFile(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a JSON file
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, config)
}

// loadFromEnvironment overrides configuration with PROBEMUX_* variables
func loadFromEnvironment(config *Config) {
	if v := os.Getenv("PROBEMUX_DEBUG"); v != "" {
		config.Server.Debug = v == "true" || v == "1"
	}
	if v := os.Getenv("PROBEMUX_WORKER_EXECUTABLE"); v != "" {
		config.Worker.Executable = v
	}
	if v := os.Getenv("PROBEMUX_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.MaxSessions = n
		}
	}
	if v := os.Getenv("PROBEMUX_SHUTDOWN_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Worker.ShutdownGrace = d
		}
	}
	if v := os.Getenv("PROBEMUX_STORE_ENABLE"); v != "" {
		config.Store.Enable = v == "true" || v == "1"
	}
	if v := os.Getenv("PROBEMUX_STORE_PATH"); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv("PROBEMUX_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PROBEMUX_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
	if v := os.Getenv("PROBEMUX_LOG_OUTPUT"); v != "" {
		config.Logging.Output = v
	}
	if v := os.Getenv("PROBEMUX_MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Monitoring.Interval = d
		}
	}
}

// validateConfig checks configuration values for consistency
func validateConfig(config *Config) error {
	if config.Worker.MaxSessions <= 0 {
		return fmt.Errorf("worker.max_sessions must be positive, got %d", config.Worker.MaxSessions)
	}
	if config.Worker.ShutdownGrace < 0 {
		return fmt.Errorf("worker.shutdown_grace must not be negative")
	}
	if config.Worker.MaxLineBytes <= 0 {
		return fmt.Errorf("worker.max_line_bytes must be positive, got %d", config.Worker.MaxLineBytes)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", config.Logging.Format)
	}

	if config.Monitoring.Enable && config.Monitoring.Interval <= 0 {
		return fmt.Errorf("monitoring.interval must be positive when monitoring is enabled")
	}

	return nil
}
