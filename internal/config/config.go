// Package config handles opsdesk configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for opsdesk.
type Config struct {
	// Backend settings for the support-automation API.
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Email compose settings
	Email EmailConfig `yaml:"email" mapstructure:"email"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// BackendConfig identifies the support backend and the operator.
type BackendConfig struct {
	// URL is the base URL of the support-automation backend.
	URL string `yaml:"url" mapstructure:"url"`

	// UserID identifies the operator in chat and history requests.
	UserID string `yaml:"user_id" mapstructure:"user_id"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GlobalConfig contains global opsdesk settings.
type GlobalConfig struct {
	// DataDir is where opsdesk stores its data (default: ~/.local/share/opsdesk).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/opsdesk).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path (default: DataDir/opsdesk.db).
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeout is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`
}

// EmailConfig contains email compose settings.
type EmailConfig struct {
	// HistoryLimit caps the in-memory dispatch history shown in the console.
	HistoryLimit int `yaml:"history_limit" mapstructure:"history_limit"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// ShowTimestamps shows message timestamps in the UI.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8080",
			UserID:  "operator",
			Timeout: 30 * time.Second,
		},
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "opsdesk"),
			ConfigDir: filepath.Join(homeDir, ".config", "opsdesk"),
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/opsdesk.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Email: EmailConfig{
			HistoryLimit: 10,
		},
		TUI: TUIConfig{
			ShowTimestamps: true,
			CompactMode:    false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	url := strings.TrimSpace(c.Backend.URL)
	if url == "" {
		return fmt.Errorf("backend.url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("backend.url must start with http:// or https://")
	}
	if strings.TrimSpace(c.Backend.UserID) == "" {
		return fmt.Errorf("backend.user_id is required")
	}
	if c.Backend.Timeout < time.Second {
		return fmt.Errorf("backend.timeout must be at least 1s")
	}
	if c.Email.HistoryLimit < 1 {
		return fmt.Errorf("email.history_limit must be at least 1")
	}
	return nil
}

// DatabasePath returns the database path, derived from DataDir when unset.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "opsdesk.db")
}

// EnsureDirectories creates the data and config directories if needed.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Global.DataDir, c.Global.ConfigDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
