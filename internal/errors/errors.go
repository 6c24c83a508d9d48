package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound              = New(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists         = New(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation            = New(ErrCodeValidation, "validation error")
	ErrInvalidOrderReference = New(ErrCodeInvalidOrderReference, "invalid order reference")
	ErrPermissionDenied      = New(ErrCodePermissionDenied, "permission denied")
	ErrUnauthorized          = New(ErrCodeUnauthorized, "unauthorized")
	ErrStorageUnavailable    = New(ErrCodeStorageUnavailable, "storage unavailable")
	ErrUpstreamAPI           = New(ErrCodeUpstreamAPI, "upstream api failure")
	ErrHTTPClient            = New(ErrCodeHTTPClient, "http client error")
	ErrDatabase              = New(ErrCodeDatabase, "database error")
	ErrSystem                = New(ErrCodeSystemError, "system error")
	// maps errors to http status codes, checked in order so the most specific sentinel wins
	statusCodes = []struct {
		err    error
		status int
	}{
		{ErrInvalidOrderReference, http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrStorageUnavailable, http.StatusServiceUnavailable},
		{ErrUpstreamAPI, http.StatusBadGateway},
		{ErrHTTPClient, http.StatusInternalServerError},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeHTTPClient            = "http_client_error"
	ErrCodeSystemError           = "system_error"
	ErrCodeNotFound              = "not_found"
	ErrCodeAlreadyExists         = "already_exists"
	ErrCodeValidation            = "validation_error"
	ErrCodeInvalidOrderReference = "invalid_order_reference"
	ErrCodePermissionDenied      = "permission_denied"
	ErrCodeUnauthorized          = "unauthorized"
	ErrCodeStorageUnavailable    = "storage_unavailable"
	ErrCodeUpstreamAPI           = "upstream_api_failure"
	ErrCodeDatabase              = "database_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// New creates a new InternalError
func New(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOrderReference checks if an error is an invalid order reference error
func IsInvalidOrderReference(err error) bool {
	return errors.Is(err, ErrInvalidOrderReference)
}

// IsStorageUnavailable checks if an error is a transient storage error
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsUpstreamAPI checks if an error is an upstream api failure
func IsUpstreamAPI(err error) bool {
	return errors.Is(err, ErrUpstreamAPI)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

// IsRetryable reports whether the caller may retry the same request later
func IsRetryable(err error) bool {
	return IsStorageUnavailable(err) || IsUpstreamAPI(err)
}

func HTTPStatusFromErr(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}

// CodeFromErr returns the machine-readable code of the first sentinel the error is marked with
func CodeFromErr(err error) string {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			if ie, ok := sc.err.(*InternalError); ok {
				return ie.Code
			}
		}
	}
	return ErrCodeSystemError
}
