// Package errors provides standardized error types for the probemux supervisor.
// This enables consistent error categorization across the registry, the
// supervisor, and the MCP tool surface.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents standardized error categories
type ErrorCode string

const (
	// Creation errors, surfaced before any worker process exists
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeSpawnFailed         ErrorCode = "SPAWN_FAILED"
	ErrCodeSessionLimitReached ErrorCode = "SESSION_LIMIT_REACHED"

	// Lifecycle errors
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSignalFailed    ErrorCode = "SIGNAL_FAILED"
	ErrCodeWaitFailed      ErrorCode = "WAIT_FAILED"

	// Supporting infrastructure errors
	ErrCodeStoreFailed  ErrorCode = "STORE_FAILED"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// SupervisorError is the standardized error type for the application
type SupervisorError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface
func (e *SupervisorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause
func (e *SupervisorError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *SupervisorError) WithContext(key string, value any) *SupervisorError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new SupervisorError
func New(code ErrorCode, message string) *SupervisorError {
	return &SupervisorError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(cause error, code ErrorCode, message string) *SupervisorError {
	return &SupervisorError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Is checks if the error carries the given error code
func Is(err error, code ErrorCode) bool {
	var supErr *SupervisorError
	if errors.As(err, &supErr) {
		return supErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, or ErrCodeInternal for
// errors that did not originate here
func GetCode(err error) ErrorCode {
	var supErr *SupervisorError
	if errors.As(err, &supErr) {
		return supErr.Code
	}
	return ErrCodeInternal
}
