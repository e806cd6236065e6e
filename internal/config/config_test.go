package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "probemux" {
		t.Errorf("expected server name probemux, got %q", cfg.Server.Name)
	}
	if cfg.Worker.MaxSessions <= 0 {
		t.Error("expected positive default max sessions")
	}
	if cfg.Worker.Executable != "" {
		t.Errorf("expected default executable to be self (empty), got %q", cfg.Worker.Executable)
	}
	if cfg.Store.Path != "" {
		t.Errorf("expected default store path to be in-memory (empty), got %q", cfg.Store.Path)
	}
	if err := validateConfig(cfg); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("MissingFileFails", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/probemux.json"); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{"worker": {"executable": "/usr/bin/probe-worker", "max_sessions": 4, "shutdown_grace": 1000000000, "max_line_bytes": 65536}}`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if cfg.Worker.Executable != "/usr/bin/probe-worker" {
			t.Errorf("expected executable from file, got %q", cfg.Worker.Executable)
		}
		if cfg.Worker.MaxSessions != 4 {
			t.Errorf("expected max_sessions=4, got %d", cfg.Worker.MaxSessions)
		}
		if cfg.Worker.ShutdownGrace != time.Second {
			t.Errorf("expected shutdown_grace=1s, got %v", cfg.Worker.ShutdownGrace)
		}
		// Untouched sections keep defaults.
		if cfg.Logging.Level != "info" {
			t.Errorf("expected default logging level, got %q", cfg.Logging.Level)
		}
	})

	t.Run("EnvironmentOverridesFile", func(t *testing.T) {
		t.Setenv("PROBEMUX_MAX_SESSIONS", "2")
		t.Setenv("PROBEMUX_LOG_LEVEL", "debug")
		t.Setenv("PROBEMUX_STORE_ENABLE", "false")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if cfg.Worker.MaxSessions != 2 {
			t.Errorf("expected env max sessions 2, got %d", cfg.Worker.MaxSessions)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected env log level debug, got %q", cfg.Logging.Level)
		}
		if cfg.Store.Enable {
			t.Error("expected store disabled by env")
		}
	})
}

func TestValidateConfig(t *testing.T) {
	t.Run("RejectsZeroMaxSessions", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Worker.MaxSessions = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("expected validation error for zero max sessions")
		}
	})

	t.Run("RejectsBadLogLevel", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "loud"
		if err := validateConfig(cfg); err == nil {
			t.Error("expected validation error for bad log level")
		}
	})

	t.Run("RejectsBadLogFormat", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Format = "xml"
		if err := validateConfig(cfg); err == nil {
			t.Error("expected validation error for bad log format")
		}
	})

	t.Run("RejectsZeroMonitorInterval", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Monitoring.Interval = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("expected validation error for zero monitor interval")
		}
	})
}
