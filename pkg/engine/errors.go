package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: network timeouts, 5xx responses.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting or quota exhaustion.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates a resource state conflict.
	// Examples: duplicate handles, an operation already in flight.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid input, permission denied, resource not found.
	ErrorClassPermanent ErrorClass = "permanent"
)

// RequestError is the error returned by a Transport and by boundary
// validation. Message is always safe to show to a user.
type RequestError struct {
	Class   ErrorClass `json:"class"`
	Message string     `json:"message"`

	// Code is the backend error code, or one of the ErrCode constants.
	Code string `json:"code,omitempty"`

	// StatusCode is 0 when no response was received.
	StatusCode       int                    `json:"status_code,omitempty"`
	ExceptionContext map[string]interface{} `json:"exception_context,omitempty"`

	Resource  string `json:"resource,omitempty"`
	Operation string `json:"operation,omitempty"` // e.g. "POST /accounts/:envId/databases"

	Err error `json:"-"`
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	switch {
	case e.Resource != "" && e.Operation != "":
		fmt.Fprintf(&b, " (resource=%s, operation=%s)", e.Resource, e.Operation)
	case e.Resource != "":
		fmt.Fprintf(&b, " (resource=%s)", e.Resource)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *RequestError) Is(target error) bool {
	t, ok := target.(*RequestError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *RequestError {
	return &RequestError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *RequestError {
	return &RequestError{Class: ErrorClassThrottled, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *RequestError {
	return &RequestError{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *RequestError {
	return &RequestError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// NewValidationError creates a permanent error raised before any request is sent.
func NewValidationError(message string) *RequestError {
	return NewPermanentError(message, nil).WithCode(ErrCodeValidation)
}

// NewHTTPError classifies a non-2xx response by its status code.
func NewHTTPError(statusCode int, code, message string) *RequestError {
	if message == "" {
		message = http.StatusText(statusCode)
	}

	var e *RequestError
	switch {
	case statusCode == http.StatusTooManyRequests:
		e = NewThrottledError(message, nil)
	case statusCode == http.StatusConflict:
		e = NewConflictError(message, nil)
	case statusCode >= 500 || statusCode == http.StatusRequestTimeout:
		e = NewTransientError(message, nil)
	default:
		e = NewPermanentError(message, nil)
	}
	e.StatusCode = statusCode

	if code == "" {
		code = codeForStatus(statusCode)
	}
	return e.WithCode(code)
}

func codeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrCodeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrCodePermissionDenied
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrCodeTimeout
	default:
		return ErrCodeInternal
	}
}

// WithResource adds resource context to an error.
func (e *RequestError) WithResource(resourceID string) *RequestError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *RequestError) WithOperation(operation string) *RequestError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *RequestError) WithCode(code string) *RequestError {
	e.Code = code
	return e
}

// WithStatusCode records the HTTP status of the failed response.
func (e *RequestError) WithStatusCode(status int) *RequestError {
	e.StatusCode = status
	return e
}

// WithContext adds a field to the exception context.
func (e *RequestError) WithContext(key string, value interface{}) *RequestError {
	if e.ExceptionContext == nil {
		e.ExceptionContext = make(map[string]interface{})
	}
	e.ExceptionContext[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *RequestError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsThrottled returns true if the error is classified as throttled.
func IsThrottled(err error) bool {
	var e *RequestError
	if errors.As(err, &e) {
		return e.Class == ErrorClassThrottled
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *RequestError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *RequestError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable returns true if the error can be retried.
// Transient, throttled, and conflict errors are retryable.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err) || IsConflict(err)
}

// IsNotFound returns true if the backend reported the resource as missing.
func IsNotFound(err error) bool {
	var e *RequestError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound || e.Code == ErrCodeNotFound
	}
	return false
}

// IsValidation returns true if the error was raised by input validation.
func IsValidation(err error) bool {
	var e *RequestError
	if errors.As(err, &e) {
		return e.Code == ErrCodeValidation
	}
	return false
}

// AsRequestError returns the first RequestError in err's chain.
func AsRequestError(err error) (*RequestError, bool) {
	var e *RequestError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Message returns the user-facing message of err: the RequestError message
// when one is in the chain, otherwise err.Error(). A nil error yields "".
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *RequestError
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeNetwork          = "NETWORK_ERROR"
	ErrCodeDecode           = "DECODE_ERROR"
	ErrCodePolicyDenied     = "POLICY_DENIED"
)
