package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates missing or malformed settings. Configuration
	// errors are fatal to a run and are never silently defaulted.
	ErrConfiguration = errors.New("configuration error")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNoAccounts indicates that no outbound mail account is configured.
	ErrNoAccounts = errors.New("no outbound mail accounts configured")

	// ErrAlreadyRunning indicates that a daily run is already in progress.
	ErrAlreadyRunning = errors.New("daily run already in progress")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ConfigError describes a configuration problem found while loading settings.
type ConfigError struct {
	Key     string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewConfigError creates a new ConfigError.
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{
		Key:     key,
		Message: message,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
