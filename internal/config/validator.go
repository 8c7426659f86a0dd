package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "scheduler.high_workers")
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

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Scheduler.HighWorkers < 1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.high_workers",
			Value:   c.Scheduler.HighWorkers,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.LowWorkers < 1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.low_workers",
			Value:   c.Scheduler.LowWorkers,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.IdleIntervalMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.idle_interval_ms",
			Value:   c.Scheduler.IdleIntervalMs,
			Message: "must be at least 1",
		})
	}
	if c.Scheduler.HistoryCapacity < 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.history_capacity",
			Value:   c.Scheduler.HistoryCapacity,
			Message: "must not be negative",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}

	if c.Metrics.PollIntervalMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "metrics.poll_interval_ms",
			Value:   c.Metrics.PollIntervalMs,
			Message: "must be at least 1",
		})
	}

	return errs
}
