// Package apperror defines the error kinds shared by every layer of the service.
//
// ERROR KINDS:
// Services never talk HTTP. They return one of three kinds and the boundary
// (internal/handler, internal/auth) decides what the caller sees:
//
//	ErrValidation   → 400 VALIDATION_ERROR  (input malformed or conflicting)
//	ErrUnauthorized → 401 UNAUTHORIZED      (bad credentials, no session)
//	ErrNotFound     → 404 NOT_FOUND         (referenced entity absent)
//
// Anything else is an internal failure and maps to 500 INTERNAL_ERROR with a
// generic message.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
)

// Machine-readable codes carried in the JSON error envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeAuthRequired = "AUTH_REQUIRED"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Code    string // Optional: overrides the kind's default code
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound returns an AppError for a missing entity, e.g. NotFound("User not found").
func NotFound(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unauthorized is returned for failed logins and for callers without a session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AuthRequired is the error the session gate emits for programmatic callers.
// It is an ErrUnauthorized with the AUTH_REQUIRED code.
func AuthRequired() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "Authentication required",
		Code:    CodeAuthRequired,
	}
}

// Status maps an error to its HTTP status code. Unclassified errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code maps an error to the machine code used in the JSON envelope.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// PublicMessage returns the message that is safe to show to a caller.
// Only AppErrors carry caller-facing text; everything else is hidden.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
