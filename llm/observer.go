package llm

import (
	"errors"
	"net/http"
	"time"
)

// Attempt outcomes reported to an Observer.
const (
	OutcomeSuccess         = "success"
	OutcomeRateLimited     = "rate_limited"
	OutcomeServerError     = "server_error"
	OutcomeClientError     = "client_error"
	OutcomeNetworkError    = "network_error"
	OutcomeInvalidResponse = "invalid_response"
	OutcomeCircuitOpen     = "circuit_open"
)

// Observer receives per-attempt telemetry from a Client.
type Observer interface {
	ObserveAttempt(capability, model, outcome string, duration time.Duration)
	ObserveUsage(capability, model string, usage TokenUsage)
	ObserveBreakerState(state BreakerState)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, string, string, time.Duration) {}
func (nopObserver) ObserveUsage(string, string, TokenUsage)              {}
func (nopObserver) ObserveBreakerState(BreakerState)                     {}

// attemptOutcome maps an attempt error to an Observer outcome label.
func attemptOutcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if IsCircuitOpen(err) {
		return OutcomeCircuitOpen
	}
	if IsSchemaError(err) {
		return OutcomeInvalidResponse
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return OutcomeNetworkError
	}
	switch {
	case httpErr.StatusCode == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case httpErr.StatusCode >= 500:
		return OutcomeServerError
	default:
		return OutcomeClientError
	}
}
