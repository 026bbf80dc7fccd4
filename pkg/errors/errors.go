package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeProcessing   ErrorType = "processing"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeTooLarge     ErrorType = "too_large"
)

// AppError represents a structured application error.
// Code is the stable identifier clients see in erro_codigo.
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode sets the client-facing error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause records the error behind e
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Details:    detail,
		StatusCode: http.StatusBadRequest,
	}
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProcessing,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewTooLargeError creates an error for uploads over the size limit
func NewTooLargeError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeTooLarge,
		Message:    message,
		StatusCode: http.StatusRequestEntityTooLarge,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetCode returns the client-facing code for an error, or fallback
func GetCode(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return fallback
}
