package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyToken is returned when the token endpoint answers 2xx without an access token.
	ErrEmptyToken = errors.New("token response did not contain an access token")
	// ErrEmptyBatchID is returned when a batch session was created without a batch id.
	ErrEmptyBatchID = errors.New("batch init response did not contain a batch id")
	// ErrPaginationStalled is returned when a listing page adds no records before the reported total is reached.
	ErrPaginationStalled = errors.New("pagination stalled before reported total")
	// ErrNotFound is returned by the local store for missing keys.
	ErrNotFound = errors.New("not found")
)

// HTTPError represents a non-2xx response from the API
type HTTPError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Body       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(method, url string, statusCode int, status string, body []byte) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
		Method:     method,
		URL:        url,
		Body:       string(body),
	}
}

// UnsupportedMethodError is returned for verbs other than GET and POST
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("%s method is not supported", e.Method)
}

// DecodeError wraps a failure to decode a response body
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (field: %s, value: %v)", e.Message, e.Field, e.Value)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
