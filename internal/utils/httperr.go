// Package utils provides the JSON response helpers and the error taxonomy
// shared by every HTTP handler.
package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError carries the status an operation failure maps to. Message is what
// the client sees; Err (optional) is the wrapped cause for server-side logs.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Validation reports missing or malformed input (400).
func Validation(message string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: message}
}

// Unauthenticated reports bad credentials, a bad or expired 2FA code, or a
// bad bearer token (401).
func Unauthenticated(message string) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Message: message}
}

// NotFound reports a missing profile or record (404).
func NotFound(message string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Message: message}
}

// Conflict reports a duplicate account (409).
func Conflict(message string) *HTTPError {
	return &HTTPError{Status: http.StatusConflict, Message: message}
}

// Unavailable reports missing upstream configuration (503).
func Unavailable(message string) *HTTPError {
	return &HTTPError{Status: http.StatusServiceUnavailable, Message: message}
}

// Upstream reports an unexpected identity-provider status. The upstream
// status is propagated where safe, otherwise callers should pass 500.
func Upstream(status int, message string, err error) *HTTPError {
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	return &HTTPError{Status: status, Message: message, Err: err}
}

// Internal wraps an unexpected failure (500) behind a generic client message.
func Internal(err error) *HTTPError {
	return &HTTPError{Status: http.StatusInternalServerError, Message: "Internal server error", Err: err}
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
