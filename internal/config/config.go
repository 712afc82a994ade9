package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Scan      ScanConfig      `yaml:"scan"`
	Selection SelectionConfig `yaml:"selection"`
	LogLevel  string          `yaml:"log_level"`
	SocketDir string          `yaml:"socket_dir"`
}

// ScanConfig holds device discovery settings.
type ScanConfig struct {
	PollIntervalMs int64 `yaml:"poll_interval_ms"`
	TimeoutMs      int64 `yaml:"timeout_ms"`
}

// SelectionConfig holds device selection settings.
type SelectionConfig struct {
	Mode            string `yaml:"mode"` // "first-match" or "dialog"
	DialogTimeoutMs int64  `yaml:"dialog_timeout_ms"`
	FullScan        bool   `yaml:"full_scan"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "webble")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			PollIntervalMs: 250,
			TimeoutMs:      10000,
		},
		Selection: SelectionConfig{
			Mode:            "first-match",
			DialogTimeoutMs: 30000,
			FullScan:        false,
		},
		LogLevel:  "info",
		SocketDir: "",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in socket_dir is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.SocketDir = expandTilde(cfg.SocketDir)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Scan.PollIntervalMs <= 0 {
		return fmt.Errorf("scan.poll_interval_ms must be > 0")
	}

	if c.Scan.TimeoutMs <= 0 {
		return fmt.Errorf("scan.timeout_ms must be > 0")
	}

	switch c.Selection.Mode {
	case "first-match", "dialog":
	default:
		return fmt.Errorf("selection.mode must be \"first-match\" or \"dialog\", got %q", c.Selection.Mode)
	}

	if c.Selection.DialogTimeoutMs <= 0 {
		return fmt.Errorf("selection.dialog_timeout_ms must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// PollInterval returns the scan poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Scan.PollIntervalMs) * time.Millisecond
}

// DialogTimeout returns the selection dialog deadline as a duration.
func (c *Config) DialogTimeout() time.Duration {
	return time.Duration(c.Selection.DialogTimeoutMs) * time.Millisecond
}

// ParseLogLevel maps a config log level string to a slog level. Unknown
// values default to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
