package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Iron-Ham/deskvm/internal/logging"
	"github.com/Iron-Ham/deskvm/internal/rdp"
	"github.com/Iron-Ham/deskvm/internal/schedule"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "save_timeout.hours_end")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateVirtualBox()...)
	errors = append(errors, c.validateRDP()...)
	errors = append(errors, c.validateSaveTimeout()...)
	errors = append(errors, c.validateLocks()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateVirtualBox() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.VirtualBox.VMName) == "" {
		errors = append(errors, ValidationError{
			Field:   "virtualbox.vmname",
			Value:   c.VirtualBox.VMName,
			Message: "is required",
		})
	}

	if c.VirtualBox.Command == "" {
		errors = append(errors, ValidationError{
			Field:   "virtualbox.command",
			Value:   c.VirtualBox.Command,
			Message: "must not be empty",
		})
	}

	if !slices.Contains(ValidStartTypes(), c.VirtualBox.StartType) {
		errors = append(errors, ValidationError{
			Field:   "virtualbox.start_type",
			Value:   c.VirtualBox.StartType,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStartTypes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateRDP() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.RDP.Host) == "" {
		errors = append(errors, ValidationError{
			Field:   "rdp.host",
			Value:   c.RDP.Host,
			Message: "is required",
		})
	}

	if c.RDP.Port < 1 || c.RDP.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "rdp.port",
			Value:   c.RDP.Port,
			Message: "must be between 1 and 65535",
		})
	}

	if _, err := rdp.SplitOptions(c.RDP.Options); err != nil {
		errors = append(errors, ValidationError{
			Field:   "rdp.options",
			Value:   c.RDP.Options,
			Message: err.Error(),
		})
	}

	if c.RDP.Command == "" {
		errors = append(errors, ValidationError{
			Field:   "rdp.command",
			Value:   c.RDP.Command,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateSaveTimeout() []ValidationError {
	var errors []ValidationError
	st := c.SaveTimeout

	if st.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "save_timeout.timeout",
			Value:   st.Timeout,
			Message: "must be non-negative",
		})
	}

	if _, err := schedule.ParseDays(st.Days); err != nil {
		errors = append(errors, ValidationError{
			Field:   "save_timeout.days",
			Value:   st.Days,
			Message: "must be a comma-separated list of weekdays 1 (Monday) to 7 (Sunday)",
		})
	}

	start, startErr := schedule.ParseTimeOfDay(st.HoursStart)
	if startErr != nil {
		errors = append(errors, ValidationError{
			Field:   "save_timeout.hours_start",
			Value:   st.HoursStart,
			Message: "must be a time of day in HH:MM form",
		})
	}
	end, endErr := schedule.ParseTimeOfDay(st.HoursEnd)
	if endErr != nil {
		errors = append(errors, ValidationError{
			Field:   "save_timeout.hours_end",
			Value:   st.HoursEnd,
			Message: "must be a time of day in HH:MM form",
		})
	}

	// Overnight windows are not supported
	if startErr == nil && endErr == nil && end.Before(start) {
		errors = append(errors, ValidationError{
			Field:   "save_timeout.hours_end",
			Value:   st.HoursEnd,
			Message: fmt.Sprintf("must not be before hours_start (%s)", st.HoursStart),
		})
	}

	if st.PollIntervalSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "save_timeout.poll_interval_seconds",
			Value:   st.PollIntervalSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLocks() []ValidationError {
	var errors []ValidationError

	for _, lock := range []struct{ field, name string }{
		{"locks.session", c.Locks.Session},
		{"locks.control", c.Locks.Control},
	} {
		if lock.name == "" || lock.name != filepath.Base(lock.name) {
			errors = append(errors, ValidationError{
				Field:   lock.field,
				Value:   lock.name,
				Message: "must be a plain file name",
			})
		}
	}

	if c.Locks.Session != "" && c.Locks.Session == c.Locks.Control {
		errors = append(errors, ValidationError{
			Field:   "locks.control",
			Value:   c.Locks.Control,
			Message: "must differ from locks.session",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if !slices.Contains(logging.ValidLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(logging.ValidLevels(), ", ")),
		})
	}

	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
