package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Workflow error codes
const (
	ErrWorkflowNotFound ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrVersionNotFound  ErrorCode = "VERSION_NOT_FOUND"
	ErrVersionActive    ErrorCode = "VERSION_ACTIVE"
	ErrInvalidGraph     ErrorCode = "INVALID_GRAPH"
)

// Execution error codes
const (
	ErrTraceTooLarge       ErrorCode = "TRACE_TOO_LARGE"
	ErrSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrSessionBusy         ErrorCode = "SESSION_BUSY"
	ErrSessionClosed       ErrorCode = "SESSION_CLOSED"
	ErrSessionLimit        ErrorCode = "SESSION_LIMIT"
	ErrInterpreterFailure  ErrorCode = "INTERPRETER_FAILURE"
	ErrInterpreterNotReady ErrorCode = "INTERPRETER_NOT_READY"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatusFor maps an error code to its default HTTP status.
func HTTPStatusFor(code ErrorCode) int {
	switch code {
	case ErrInvalidRequest, ErrInvalidGraph:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrWorkflowNotFound, ErrVersionNotFound, ErrSessionNotFound:
		return http.StatusNotFound
	case ErrSessionBusy, ErrVersionActive:
		return http.StatusConflict
	case ErrSessionClosed:
		return http.StatusGone
	case ErrTraceTooLarge:
		return http.StatusUnprocessableEntity
	case ErrRateLimited, ErrSessionLimit:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrServiceUnavailable, ErrInterpreterNotReady:
		return http.StatusServiceUnavailable
	case ErrInterpreterFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
