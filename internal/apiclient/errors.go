package apiclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrDecode is wrapped by Do when a 2xx response body does not match the
// expected shape.
var ErrDecode = errors.New("apiclient: decode response")

// APIError is a sanitized summary of a non-2xx provider response.
type APIError struct {
	Provider   string
	Op         string
	StatusCode int
	Status     string

	// Snippet is a redacted, truncated hint of the response body.
	Snippet string
}

func (e *APIError) Error() string {
	if e == nil {
		return "api error"
	}
	parts := []string{
		fmt.Sprintf("%s api error: op=%s status=%s", e.Provider, strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// Retryable reports whether the status indicates the provider may succeed on
// a later attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

// TransientError marks an error as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether err, or anything it wraps, is marked transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// StatusCode returns the provider status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Retryable() {
		return &TransientError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransientError{Err: err}
	}
	return err
}
