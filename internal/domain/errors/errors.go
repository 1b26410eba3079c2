// Package errors defines the application-level error taxonomy shared by the
// auth, session and persistence layers. Errors carry an HTTP status and a
// stable business code; the original cause is always preserved for logs and
// never serialized to clients.
package errors

import (
	"net/http"

	"tally/internal/errors"
)

// AppError is implemented by every error the delivery layer knows how to render.
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Stable business error code
	Message() string   // Client-safe message
	Details() string   // Optional diagnostic detail
}

// BaseError is the value type behind the predefined sentinel errors below.
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error.
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message and a stack trace.
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code.
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code.
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the client-safe error message.
func (e *BaseError) Message() string {
	return e.message
}

// Details returns diagnostic detail.
func (e *BaseError) Details() string {
	return e.details
}

// Predefined error values. Authentication failures deliberately share one
// client-facing message so callers cannot distinguish "no such user" from
// "wrong password".
var (
	ErrAuthenticationFailed = NewBaseError(
		http.StatusUnauthorized,
		"AUTHENTICATION_FAILED",
		"Authentication failed",
		"",
	)

	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"Authentication failed",
		"",
	)

	ErrInvalidDeviceID = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_DEVICE_ID",
		"Authentication failed",
		"",
	)

	ErrUserNotFound = NewBaseError(
		http.StatusNotFound,
		"USER_NOT_FOUND",
		"User not found",
		"",
	)

	ErrUserAlreadyExists = NewBaseError(
		http.StatusConflict,
		"USER_ALREADY_EXISTS",
		"This email address is already registered",
		"",
	)

	ErrUserCreationFailed = NewBaseError(
		http.StatusInternalServerError,
		"USER_CREATION_FAILED",
		"Failed to create user",
		"",
	)

	ErrSessionNotFound = NewBaseError(
		http.StatusUnauthorized,
		"SESSION_NOT_FOUND",
		"Authentication failed",
		"",
	)

	ErrSessionExpired = NewBaseError(
		http.StatusUnauthorized,
		"SESSION_EXPIRED",
		"Authentication failed",
		"",
	)

	ErrInvalidRefreshToken = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_REFRESH_TOKEN",
		"Authentication failed",
		"",
	)

	ErrSessionCreationFailed = NewBaseError(
		http.StatusInternalServerError,
		"SESSION_CREATION_FAILED",
		"Failed to create session",
		"",
	)

	ErrSessionCleanupFailed = NewBaseError(
		http.StatusInternalServerError,
		"SESSION_CLEANUP_FAILED",
		"Failed to clean up sessions",
		"",
	)

	ErrSessionLimitExceeded = NewBaseError(
		http.StatusInternalServerError,
		"SESSION_LIMIT_FAILED",
		"Failed to enforce session limit",
		"",
	)

	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed",
		"",
	)

	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal server error",
		"",
	)
)

// TokenValidationError is the single wrapper every token validation failure
// collapses into before leaving the auth service. TokenType is "access" or
// "refresh"; the cause stays attached for logs. NewTokenValidationError
// checks for an existing wrapper first so the same failure is never wrapped
// twice by re-entrant catches.
type TokenValidationError struct {
	TokenType string
	cause     error
}

// NewTokenValidationError wraps cause for the given token type. If cause is
// already a TokenValidationError it is returned unchanged.
func NewTokenValidationError(tokenType string, cause error) error {
	var existing *TokenValidationError
	if errors.As(cause, &existing) {
		return cause
	}

	return &TokenValidationError{TokenType: tokenType, cause: cause}
}

// Error implements the error interface.
func (e *TokenValidationError) Error() string {
	if e.cause == nil {
		return e.TokenType + " token validation failed"
	}

	return e.TokenType + " token validation failed: " + e.cause.Error()
}

// Unwrap exposes the original cause to errors.Is / errors.As.
func (e *TokenValidationError) Unwrap() error {
	return e.cause
}

// HTTPCode returns the HTTP status code.
func (e *TokenValidationError) HTTPCode() int {
	return http.StatusUnauthorized
}

// ErrorCode returns the business error code.
func (e *TokenValidationError) ErrorCode() string {
	return "TOKEN_VALIDATION_FAILED"
}

// Message returns the client-safe error message.
func (e *TokenValidationError) Message() string {
	return "Authentication failed"
}

// Details returns diagnostic detail.
func (e *TokenValidationError) Details() string {
	return ""
}

// RepositoryError tags a storage-layer failure with the attempted operation
// and the identifier it was operating on, for diagnostics.
type RepositoryError struct {
	Op         string // e.g. "create", "find_by_email", "delete"
	Entity     string // "user" or "session"
	Identifier string // email, user id, or a "userID/deviceID" pair
	cause      error
}

// NewRepositoryError wraps a storage failure with operation metadata.
func NewRepositoryError(op, entity, identifier string, cause error) error {
	return &RepositoryError{Op: op, Entity: entity, Identifier: identifier, cause: cause}
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	msg := e.Entity + " repository " + e.Op + " failed (" + e.Identifier + ")"
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}

	return msg
}

// Unwrap exposes the original cause to errors.Is / errors.As.
func (e *RepositoryError) Unwrap() error {
	return e.cause
}

// HTTPCode returns the HTTP status code.
func (e *RepositoryError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code.
func (e *RepositoryError) ErrorCode() string {
	return "REPOSITORY_ERROR"
}

// Message returns the client-safe error message.
func (e *RepositoryError) Message() string {
	return "Internal server error"
}

// Details returns diagnostic detail.
func (e *RepositoryError) Details() string {
	return ""
}
