package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by AppError.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTimeout      = "TIMEOUT"
	CodeServer       = "SERVER_ERROR"
	CodeNetwork      = "NETWORK_ERROR"
	CodeHTTP         = "HTTP_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
	CodeMalformed    = "MALFORMED_RESPONSE"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Status is the HTTP status that produced the error, 0 when no response was received.
	Status int
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
		Status:  http.StatusNotFound,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func NewTimeoutError(op string, err error) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: op + " timed out",
		Err:     err,
	}
}

func NewNetworkError(op string, err error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: op + " failed: backend unreachable",
		Err:     err,
	}
}

func NewServerError(op string, status int) *AppError {
	return &AppError{
		Code:    CodeServer,
		Message: fmt.Sprintf("%s failed with status %d", op, status),
		Status:  status,
	}
}

// NewHTTPError classifies a non-2xx response. 404 and 5xx get their own codes.
func NewHTTPError(op string, status int, body string) *AppError {
	switch {
	case status == http.StatusNotFound:
		return &AppError{Code: CodeNotFound, Message: op + " target not found", Status: status}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AppError{Code: CodeUnauthorized, Message: op + " not authorized", Status: status}
	case status >= http.StatusInternalServerError:
		return NewServerError(op, status)
	}
	msg := fmt.Sprintf("%s failed with status %d", op, status)
	if body != "" {
		msg += ": " + body
	}
	return &AppError{Code: CodeHTTP, Message: msg, Status: status}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal error",
		Err:     err,
	}
}

// NewMalformedError reports a 2xx response whose body could not be used.
// The backend did process the request.
func NewMalformedError(op string, err error) *AppError {
	return &AppError{
		Code:    CodeMalformed,
		Message: op + " returned an unusable body",
		Err:     err,
	}
}

// ErrorCode returns the AppError code in err's chain, or "" if there is none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsValidation reports whether err is a caller-side validation failure.
func IsValidation(err error) bool {
	return ErrorCode(err) == CodeValidation
}

// IsNotFound reports whether err is a 404 or a locally missing entity.
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}

// IsMalformed reports whether err is a processed request with an unusable body.
func IsMalformed(err error) bool {
	return ErrorCode(err) == CodeMalformed
}

// IsIndeterminate reports whether err leaves the remote outcome unknown:
// a timeout, a 5xx or an unreachable backend. Mutations that fail this way
// may well have been applied server-side.
func IsIndeterminate(err error) bool {
	switch ErrorCode(err) {
	case CodeTimeout, CodeServer, CodeNetwork:
		return true
	}
	return false
}

// IsExplicitFailure reports whether the backend answered with a 4xx, i.e. it
// definitely did not apply the request.
func IsExplicitFailure(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500
}
