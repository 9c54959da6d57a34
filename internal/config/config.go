// Package config handles configuration loading and validation for xdrop.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"xdrop/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Tracking strategies.
const (
	// TrackingGrab captures the pointer at start-up; a button press drops.
	TrackingGrab = "grab"
	// TrackingPress waits for a button press to capture the pointer; the
	// release drops.
	TrackingPress = "press"
)

// Config holds the complete configuration of the drop tool.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Display is the X display name. Empty means $DISPLAY.
	Display string `toml:"display" json:"display" yaml:"display"`

	// Tracking configures how pointer samples and the triggers are captured.
	Tracking TrackingConfig `toml:"tracking" json:"tracking" yaml:"tracking"`

	// Payload configuration for the offered files.
	Payload PayloadConfig `toml:"payload" json:"payload" yaml:"payload"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// TrackingConfig holds input capture configuration.
type TrackingConfig struct {
	// Mode is "grab" or "press".
	Mode string `toml:"mode" json:"mode" yaml:"mode"`

	// DropButton is the pointer button that commits the drop (1-5).
	DropButton int `toml:"drop_button" json:"drop_button" yaml:"drop_button"`

	// CancelKey is the keysym name that aborts the drag.
	CancelKey string `toml:"cancel_key" json:"cancel_key" yaml:"cancel_key"`
}

// PayloadConfig holds options for the offered files.
type PayloadConfig struct {
	// Watch warns when an offered file disappears during the drag.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig controls the end-of-session metrics dump.
type MetricsConfig struct {
	// Dump writes session metrics to stderr on exit.
	Dump bool `toml:"dump" json:"dump" yaml:"dump"`

	// Format is "prometheus" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	logDefaults := logging.DefaultConfig()
	return &Config{
		Version: Version,
		Tracking: TrackingConfig{
			Mode:       TrackingGrab,
			DropButton: 1,
			CancelKey:  "Escape",
		},
		Logging: LoggingConfig{
			Level:      logging.LevelString(logDefaults.Level),
			Format:     "text",
			Output:     "stderr",
			FilePath:   logDefaults.FilePath,
			MaxSizeMB:  int(logDefaults.MaxSize),
			MaxBackups: logDefaults.MaxBackups,
			MaxAgeDays: logDefaults.MaxAge,
		},
		Metrics: MetricsConfig{
			Format: "prometheus",
		},
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/xdrop or ~/.config/xdrop.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "xdrop")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "xdrop")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with XDROP_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("XDROP_DISPLAY"); v != "" {
		c.Display = v
	}
	if v := os.Getenv("XDROP_TRACKING_MODE"); v != "" {
		c.Tracking.Mode = v
	}
	if v := os.Getenv("XDROP_DROP_BUTTON"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tracking.DropButton = n
		}
	}
	if v := os.Getenv("XDROP_CANCEL_KEY"); v != "" {
		c.Tracking.CancelKey = v
	}
	if v := os.Getenv("XDROP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("XDROP_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// LoggerConfig converts the logging section for the logging package.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	lc.MaxSize = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAge = c.Logging.MaxAgeDays
	return lc, nil
}
