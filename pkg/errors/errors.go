// Package errors defines structured error types for the Sentra security engine.
// Errors carry a stable reason code, an HTTP status for the transport layer,
// and optional metadata for audit trails.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ================================================================================
// Reason Codes
// ================================================================================

// Code is a stable, machine-readable failure reason.
type Code string

const (
	// CodeNotFound indicates the referenced entity does not exist
	CodeNotFound Code = "not_found"

	// CodeInactive indicates the referenced session was already invalidated
	CodeInactive Code = "inactive"

	// CodeExpired indicates the referenced session passed its expiry
	CodeExpired Code = "expired"

	// CodeInvalidConfig indicates a rejected configuration update
	CodeInvalidConfig Code = "invalid_config"

	// CodeInvalidRequest indicates a malformed input
	CodeInvalidRequest Code = "invalid_request"

	// CodeRateLimitExceeded indicates a denied rate-limited request
	CodeRateLimitExceeded Code = "rate_limit_exceeded"

	// CodeLockedOut indicates the principal is locked out
	CodeLockedOut Code = "locked_out"

	// CodeProcessingFailure indicates the orchestrator pipeline failed
	CodeProcessingFailure Code = "processing_failure"

	// CodeInternal indicates an unexpected engine error
	CodeInternal Code = "internal_error"
)

// ================================================================================
// AppError
// ================================================================================

// AppError is the structured error returned by engine components.
type AppError struct {
	code       Code
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the stable reason code.
func (e *AppError) Code() Code {
	return e.code
}

// HTTPStatus returns the HTTP status code for the transport layer.
func (e *AppError) HTTPStatus() int {
	return e.httpStatus
}

// Unwrap returns the underlying cause for error-chain support.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying cause.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// WithMetadata attaches a metadata key/value pair.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all attached metadata.
func (e *AppError) Metadata() map[string]interface{} {
	return e.metadata
}

// New creates a new AppError.
func New(code Code, httpStatus int, message string) *AppError {
	return &AppError{
		code:       code,
		httpStatus: httpStatus,
		message:    message,
	}
}

// ================================================================================
// Predefined Constructors
// ================================================================================

// ErrSessionNotFound reports an unknown session id.
func ErrSessionNotFound(sessionID string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, fmt.Sprintf("session not found: %s", sessionID)).
		WithMetadata("session_id", sessionID)
}

// ErrSessionInactive reports a session that was already invalidated.
func ErrSessionInactive(sessionID string) *AppError {
	return New(CodeInactive, http.StatusUnauthorized, fmt.Sprintf("session is inactive: %s", sessionID)).
		WithMetadata("session_id", sessionID)
}

// ErrSessionExpired reports a session past its expiry time.
func ErrSessionExpired(sessionID string) *AppError {
	return New(CodeExpired, http.StatusUnauthorized, fmt.Sprintf("session has expired: %s", sessionID)).
		WithMetadata("session_id", sessionID)
}

// ErrProfileNotFound reports an unknown behavioral profile.
func ErrProfileNotFound(principalID string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, fmt.Sprintf("behavioral profile not found: %s", principalID)).
		WithMetadata("principal_id", principalID)
}

// ErrRateLimitExceeded reports a denied rate-limited request.
func ErrRateLimitExceeded(key string, limit int) *AppError {
	return New(CodeRateLimitExceeded, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded for key %q (%d requests)", key, limit)).
		WithMetadata("key", key).
		WithMetadata("limit", limit)
}

// ErrPrincipalLocked reports a principal under lockout.
func ErrPrincipalLocked(principalID string) *AppError {
	return New(CodeLockedOut, http.StatusForbidden, fmt.Sprintf("principal is locked out: %s", principalID)).
		WithMetadata("principal_id", principalID)
}

// ErrInvalidConfig reports a rejected configuration update.
func ErrInvalidConfig(reason string) *AppError {
	return New(CodeInvalidConfig, http.StatusBadRequest, fmt.Sprintf("invalid configuration: %s", reason))
}

// ErrInvalidRequest reports a malformed input.
func ErrInvalidRequest(reason string) *AppError {
	return New(CodeInvalidRequest, http.StatusBadRequest, reason)
}

// ErrProcessingFailure wraps a failure inside the event-processing pipeline.
func ErrProcessingFailure(stage string, cause error) *AppError {
	return New(CodeProcessingFailure, http.StatusInternalServerError,
		fmt.Sprintf("event processing failed at stage %q", stage)).
		WithCause(cause).
		WithMetadata("stage", stage)
}

// ErrInternal reports an unexpected engine error.
func ErrInternal(message string) *AppError {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// ================================================================================
// Inspection Utilities
// ================================================================================

// AsAppError attempts to cast an error to *AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code Code) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.code == code
	}
	return false
}

// HTTPStatusOf resolves the HTTP status for any error, defaulting to 500.
func HTTPStatusOf(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.httpStatus
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON structure for HTTP error responses.
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error to an ErrorResponse.
func ToErrorResponse(err error) *ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		return &ErrorResponse{
			Error:            string(appErr.code),
			ErrorDescription: appErr.message,
			Metadata:         appErr.metadata,
		}
	}
	return &ErrorResponse{
		Error:            string(CodeInternal),
		ErrorDescription: "an unexpected error occurred",
	}
}
