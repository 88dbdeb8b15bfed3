package roomlog

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine failures.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota
	ErrorInvalidConfig
	ErrorAlreadyOpen
	ErrorNotConnected
	ErrorClosed
	ErrorConnectionFailed
	ErrorFetchFailed
	ErrorSendFailed
	ErrorSerialization
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorAlreadyOpen:
		return "already_open"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorClosed:
		return "closed"
	case ErrorConnectionFailed:
		return "connection_failed"
	case ErrorFetchFailed:
		return "fetch_failed"
	case ErrorSendFailed:
		return "send_failed"
	case ErrorSerialization:
		return "serialization_error"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// Error is a structured engine error with code and context. All engine
// failures are local to one room session; none are fatal to the
// application, and every one of them may be retried by re-triggering
// the operation.
type Error struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is comparison by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with an Error.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Wrapped: err}
}

// CodeOf extracts the ErrorCode from err, or ErrorUnknown when err does
// not carry one.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorUnknown
}

// IsConnectionError reports whether err is a transport-level failure.
func IsConnectionError(err error) bool {
	switch CodeOf(err) {
	case ErrorConnectionFailed, ErrorNotConnected:
		return true
	default:
		return false
	}
}

// IsClosed reports whether err means the room session was torn down.
func IsClosed(err error) bool {
	return CodeOf(err) == ErrorClosed
}
