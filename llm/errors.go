package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/c360studio/yearclue/logging"
)

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// HTTPError is a non-2xx response from a generation endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("generation API error (status %d): %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err carries an HTTP 429.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}

// SchemaError means the response text could not be decoded into, or did
// not validate against, the expected shape. It is always fatal.
type SchemaError struct {
	Schema string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("schema %s: %s", e.Schema, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NewSchemaError builds a fatal SchemaError.
func NewSchemaError(schema, reason string, err error) error {
	return NewFatalError(&SchemaError{Schema: schema, Reason: reason, Err: err})
}

// IsSchemaError reports whether err is a SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// CircuitOpenError is returned without any network I/O while the breaker
// is open.
type CircuitOpenError struct {
	OpenedAt time.Time
	RetryAt  time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open since %s, retry after %s",
		e.OpenedAt.Format(time.RFC3339), e.RetryAt.Format(time.RFC3339))
}

// IsCircuitOpen reports whether err is a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var open *CircuitOpenError
	return errors.As(err, &open)
}

// retryableMessage matches network-level failures worth retrying.
var retryableMessage = regexp.MustCompile(`(?i)timeout|timed out|deadline exceeded|network|fetch failed|failed to fetch|connection reset|connection refused|ECONNRESET|EOF`)

// classifyHTTPError wraps a non-2xx status. 429 and 5xx are transient,
// every other status is fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := &HTTPError{StatusCode: statusCode, Body: bodyStr}
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}

// classifyTransportError wraps an error that happened before a status was
// received. Only network-shaped failures are retried.
func classifyTransportError(err error) error {
	if retryableMessage.MatchString(err.Error()) {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}

// sanitizedError carries a redacted message while keeping the original
// chain reachable for errors.As and errors.Is.
type sanitizedError struct {
	msg string
	err error
}

func (e *sanitizedError) Error() string { return e.msg }

func (e *sanitizedError) Unwrap() error { return e.err }

// SanitizeError redacts credentials from err's message. The returned error
// still unwraps to err, so classification helpers keep working.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*sanitizedError); ok {
		return err
	}
	msg := err.Error()
	redacted := logging.Redact(msg)
	if redacted == msg {
		return err
	}
	return &sanitizedError{msg: redacted, err: err}
}
