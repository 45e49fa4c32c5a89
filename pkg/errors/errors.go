package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
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

// Is matches errors sharing the same code, so clones and wrapped copies of a
// predefined error compare equal under errors.Is.
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

// WrapAs wraps err using the code and status of a predefined error.
func WrapAs(err error, kind *Error, message string) *Error {
	if message == "" {
		message = kind.Message
	}
	return Wrap(err, kind.Code, kind.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound      = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden     = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized  = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict      = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation    = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal      = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyChecks = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")

	ErrUpstreamRead  = New("UPSTREAM_READ_ERROR", http.StatusServiceUnavailable, "data store read failed, please retry")
	ErrUpstreamWrite = New("UPSTREAM_WRITE_ERROR", http.StatusServiceUnavailable, "data store write failed, please retry")
	ErrNotification  = New("NOTIFICATION_ERROR", http.StatusAccepted, "notification could not be delivered")
	ErrCacheMiss     = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Check-in rejections. InvalidCode is returned for unknown and deleted codes alike.
var (
	ErrInvalidCode      = New("INVALID_CODE", http.StatusNotFound, "attendance code is not valid")
	ErrSessionExpired   = New("SESSION_EXPIRED", http.StatusGone, "attendance session has ended")
	ErrSessionNotOpen   = New("SESSION_NOT_OPEN", http.StatusConflict, "attendance session has not started yet")
	ErrLocationRequired = New("LOCATION_REQUIRED", http.StatusUnprocessableEntity, "location is required for this session")
	ErrOutOfRange       = New("OUT_OF_RANGE", http.StatusForbidden, "you are outside the allowed check-in area")
	ErrDuplicateCheckin = New("DUPLICATE_CHECKIN", http.StatusConflict, "attendance already recorded for this session")
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
