package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeConfiguration   ErrorType = "configuration"
	ErrorTypeBackend         ErrorType = "backend"
)

// BackendKind narrows a backend failure down to its cause.
type BackendKind string

const (
	BackendKindAuthentication BackendKind = "authentication"
	BackendKindQuota          BackendKind = "quota"
	BackendKindTimeout        BackendKind = "timeout"
	BackendKindMalformed      BackendKind = "malformed"
	BackendKindNotFound       BackendKind = "not_found"
	BackendKindUnavailable    BackendKind = "unavailable"
)

// InvalidArgumentError is returned when a tool argument is unusable.
// No backend call is made when this error is produced.
type InvalidArgumentError struct {
	Argument string
	Message  string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Argument, e.Message)
}

// ConfigurationError reports missing or invalid startup configuration.
// It is fatal: the server never reaches a ready state.
type ConfigurationError struct {
	Keys    []string
	Message string
}

func (e *ConfigurationError) Error() string {
	if len(e.Keys) == 0 {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error (%s): %s", strings.Join(e.Keys, ", "), e.Message)
}

// BackendError represents a failed call to the search backend.
type BackendError struct {
	Kind       BackendKind `json:"kind"`
	Message    string      `json:"message"`
	StatusCode int         `json:"status_code,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Err        error       `json:"-"`
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend error [%s] (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error [%s]: %s", e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewInvalidArgument builds an InvalidArgumentError.
func NewInvalidArgument(argument, message string) error {
	return &InvalidArgumentError{Argument: argument, Message: message}
}

// NewConfigurationError builds a ConfigurationError naming the offending keys.
func NewConfigurationError(message string, keys ...string) error {
	return &ConfigurationError{Keys: keys, Message: message}
}

// ClassifyError maps any error onto the error taxonomy.
// Unknown errors are reported as backend failures.
func ClassifyError(err error) ErrorType {
	var invalid *InvalidArgumentError
	var cfgErr *ConfigurationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return ErrorTypeInvalidArgument
	case errors.As(err, &cfgErr):
		return ErrorTypeConfiguration
	default:
		return ErrorTypeBackend
	}
}

// IsInvalidArgument reports whether err is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var invalid *InvalidArgumentError
	return errors.As(err, &invalid)
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// AsBackendError extracts a BackendError from err.
func AsBackendError(err error) (*BackendError, bool) {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr, true
	}
	return nil, false
}
