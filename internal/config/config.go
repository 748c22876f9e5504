// Package config loads the optional YAML configuration file controlling
// history retention, sandbox timeouts, and logging.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/carlhannes/agent-zip-sandbox/internal/timemachine"
)

// SandboxConfig bounds guest execution.
type SandboxConfig struct {
	// TimeoutMs is the per-script budget enforced inside the sandbox.
	TimeoutMs int `yaml:"timeoutMs"`
	// WallSlackMs is added on top of TimeoutMs for the host's wall clock
	// before the child process is killed.
	WallSlackMs int `yaml:"wallSlackMs"`
}

// Config is the application configuration.
type Config struct {
	Retention timemachine.Retention `yaml:"retention"`
	Sandbox   SandboxConfig         `yaml:"sandbox"`
	LogLevel  string                `yaml:"logLevel"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Retention: timemachine.DefaultRetention(),
		Sandbox:   SandboxConfig{TimeoutMs: 1500, WallSlackMs: 2000},
		LogLevel:  "info",
	}
}

// DefaultPath returns {UserConfigDir}/agent-zip-sandbox/config.yaml.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "agent-zip-sandbox", "config.yaml"), nil
}

// Load reads the configuration at path, falling back to defaults when the
// file does not exist. Unset fields take their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	def := Default()
	if cfg.Sandbox.TimeoutMs <= 0 {
		cfg.Sandbox.TimeoutMs = def.Sandbox.TimeoutMs
	}
	if cfg.Sandbox.WallSlackMs <= 0 {
		cfg.Sandbox.WallSlackMs = def.Sandbox.WallSlackMs
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	return cfg, nil
}

// LoadDefault loads from the default path.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	return Load(path)
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
