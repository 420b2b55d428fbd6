package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{599, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := classifyHTTPError(tt.status, []byte("body"))
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsFatal(err))

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
		})
	}
}

func TestClassifyHTTPError_TruncatesBody(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	var httpErr *HTTPError
	require.True(t, errors.As(classifyHTTPError(500, long), &httpErr))
	assert.Len(t, httpErr.Body, 203)
}

func TestClassifyTransportError(t *testing.T) {
	retryable := []string{
		"dial tcp 127.0.0.1:1: connect: connection refused",
		"read: connection reset by peer",
		"Client.Timeout exceeded while awaiting headers",
		"context deadline exceeded",
		"unexpected EOF",
		"network is unreachable",
		"i/o timed out",
	}
	for _, msg := range retryable {
		assert.True(t, IsTransient(classifyTransportError(errors.New(msg))), msg)
	}

	assert.True(t, IsFatal(classifyTransportError(errors.New("context canceled"))))
	assert.True(t, IsFatal(classifyTransportError(errors.New("unsupported protocol scheme"))))
}

func TestSchemaError(t *testing.T) {
	inner := errors.New("unexpected end of JSON input")
	err := NewSchemaError("generator", "decode payload", inner)

	assert.True(t, IsFatal(err))
	assert.True(t, IsSchemaError(err))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "schema generator: decode payload: unexpected end of JSON input", err.Error())
}

func TestSanitizeError(t *testing.T) {
	assert.Nil(t, SanitizeError(nil))

	clean := errors.New("plain failure")
	assert.Same(t, clean, SanitizeError(clean))

	inner := NewFatalError(&HTTPError{StatusCode: 401, Body: "bad key sk-abcdefghijklmnop"})
	wrapped := fmt.Errorf("call failed: %w", inner)

	got := SanitizeError(wrapped)
	assert.NotContains(t, got.Error(), "sk-abcdefghijklmnop")
	assert.Contains(t, got.Error(), "call failed")
	assert.True(t, IsFatal(got))
	assert.ErrorIs(t, got, inner)

	var httpErr *HTTPError
	require.True(t, errors.As(got, &httpErr))
	assert.Equal(t, 401, httpErr.StatusCode)

	// Idempotent.
	assert.Same(t, got, SanitizeError(got))
}

func TestAttemptOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, attemptOutcome(nil))
	assert.Equal(t, OutcomeRateLimited, attemptOutcome(classifyHTTPError(429, nil)))
	assert.Equal(t, OutcomeServerError, attemptOutcome(classifyHTTPError(503, nil)))
	assert.Equal(t, OutcomeClientError, attemptOutcome(classifyHTTPError(400, nil)))
	assert.Equal(t, OutcomeNetworkError, attemptOutcome(classifyTransportError(errors.New("connection refused"))))
	assert.Equal(t, OutcomeInvalidResponse, attemptOutcome(NewSchemaError("x", "y", nil)))
	assert.Equal(t, OutcomeCircuitOpen, attemptOutcome(NewFatalError(&CircuitOpenError{})))
}
