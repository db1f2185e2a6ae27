package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeAuthRequired ErrorType = "auth_required"
	ErrorTypeHTTP         ErrorType = "http"
	ErrorTypeTransport    ErrorType = "transport"
	ErrorTypeStorage      ErrorType = "storage"
	ErrorTypePermanent    ErrorType = "permanent"
	ErrorTypeListing      ErrorType = "listing"
)

// Error represents a harvest error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, msg string) *Error {
	return &Error{Type: t, Code: code, Message: msg}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, msg string) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// FromStatus maps a non-success HTTP status to its error type
func FromStatus(statusCode int) *Error {
	if statusCode == http.StatusUnauthorized {
		return New(ErrorTypeAuthRequired, statusCode, "authorization required")
	}
	return New(ErrorTypeHTTP, statusCode, fmt.Sprintf("unexpected status %d", statusCode))
}

// TypeOf returns the error type, or transport for untyped errors
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeTransport
}

// IsAuth reports whether err is an authorization failure
func IsAuth(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeAuthRequired
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeAuthRequired, ErrorTypeHTTP, ErrorTypeTransport:
		return true
	default:
		return false
	}
}

// IsSuccessStatus reports whether the status code is 2xx
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
