package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// ValidateConfig validates the entire configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (supported: 1-%d)", c.Version, Version),
		})
	}

	errs = append(errs, validateTracking(&c.Tracking)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateTracking(c *TrackingConfig) ValidationErrors {
	var errs ValidationErrors

	switch c.Mode {
	case TrackingGrab, TrackingPress:
	default:
		errs = append(errs, ValidationError{
			Field:   "tracking.mode",
			Message: fmt.Sprintf("invalid mode %q (valid: %s, %s)", c.Mode, TrackingGrab, TrackingPress),
		})
	}

	if c.DropButton < 1 || c.DropButton > 5 {
		errs = append(errs, ValidationError{
			Field:   "tracking.drop_button",
			Message: fmt.Sprintf("button %d out of range (1-5)", c.DropButton),
		})
	}

	if strings.TrimSpace(c.CancelKey) == "" {
		errs = append(errs, ValidationError{
			Field:   "tracking.cancel_key",
			Message: "cancel key is required",
		})
	}

	return errs
}

func validateLogging(c *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q (valid: debug, info, warn, error)", c.Level),
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q (valid: text, json)", c.Format),
		})
	}

	validOutputs := map[string]bool{"stderr": true, "file": true, "both": true}
	if !validOutputs[strings.ToLower(c.Output)] {
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid output %q (valid: stderr, file, both)", c.Output),
		})
	}

	if c.Output == "file" || c.Output == "both" {
		if c.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output includes file",
			})
		}
		if c.MaxSizeMB <= 0 {
			errs = append(errs, ValidationError{
				Field:   "logging.max_size_mb",
				Message: "max size must be positive",
			})
		}
	}

	if c.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if c.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateMetrics(c *MetricsConfig) ValidationErrors {
	switch c.Format {
	case "prometheus", "json":
		return nil
	}
	return ValidationErrors{{
		Field:   "metrics.format",
		Message: fmt.Sprintf("invalid format %q (valid: prometheus, json)", c.Format),
	}}
}
