package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so that cloned errors still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the drive domain.
var (
	ErrUnauthorized         = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrAccessDenied         = New("ACCESS_DENIED", http.StatusForbidden, "access denied")
	ErrForbidden            = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound             = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrAlreadyProcessed     = New("ALREADY_PROCESSED", http.StatusConflict, "request already processed")
	ErrConflict             = New("CONFLICT", http.StatusConflict, "resource changed concurrently, retry")
	ErrNotInTrash           = New("NOT_IN_TRASH", http.StatusConflict, "item is not in trash")
	ErrNamingConflict       = New("NAMING_CONFLICT", http.StatusConflict, "an item with this name already exists")
	ErrInvalidMove          = New("INVALID_MOVE", http.StatusBadRequest, "folder cannot be moved into itself or its descendants")
	ErrInsufficientStorage  = New("INSUFFICIENT_STORAGE", http.StatusInsufficientStorage, "insufficient storage")
	ErrUnsupportedOperation = New("UNSUPPORTED_OPERATION", http.StatusBadRequest, "unsupported operation")
	ErrInternalStorage      = New("INTERNAL_STORAGE_ERROR", http.StatusInternalServerError, "content storage failure")
	ErrValidation           = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrRateLimited          = New("RATE_LIMITED", http.StatusTooManyRequests, "bandwidth limit exceeded")
	ErrInternal             = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss            = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying extra response details.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// Internal wraps an unexpected failure with a caller-facing message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// CodeOf returns the error code for any error, defaulting to INTERNAL_ERROR.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}
