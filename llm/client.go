// Package llm provides the resilient generation client used by every
// pipeline stage: retries with backoff, rate-limit failover along the
// model registry's priority list, a shared circuit breaker, schema
// validated decoding and token/cost accounting.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/c360studio/yearclue/model"
	"github.com/google/uuid"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client is a provider-agnostic generation client.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	breaker     *Breaker
	sleep       SleepFunc
	logger      *slog.Logger
	observer    Observer

	// recorder optionally persists one record per call.
	recorder CallRecorder
}

// ResponseFormat asks the provider for structured JSON output.
type ResponseFormat struct {
	Name   string
	Schema map[string]any
}

// Request defines one generation call.
type Request struct {
	// Capability selects the registry's model priority list.
	Capability model.Capability

	// PreferredModel is where failover starts. Empty or unknown means the
	// head of the list.
	PreferredModel string

	System string
	User   string

	// Temperature is nil to use the provider default.
	Temperature *float64

	// MaxOutputTokens limits response length. 0 uses the endpoint default.
	MaxOutputTokens int

	// ResponseFormat is optional.
	ResponseFormat *ResponseFormat
}

// Response contains the generation result.
type Response struct {
	// RequestID uniquely identifies the call across all its attempts.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the registry name of the model that answered.
	Model string

	// Usage is always populated, estimated where the provider was silent.
	Usage TokenUsage

	// Attempts is how many HTTP attempts the call took.
	Attempts int

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient = &http.Client{Timeout: d}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithBreaker shares an existing breaker.
func WithBreaker(b *Breaker) ClientOption {
	return func(client *Client) {
		client.breaker = b
	}
}

// WithSleep replaces the backoff sleep. Tests use it to avoid real delays.
func WithSleep(fn SleepFunc) ClientOption {
	return func(client *Client) {
		client.sleep = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithObserver attaches telemetry.
func WithObserver(o Observer) ClientOption {
	return func(client *Client) {
		client.observer = o
	}
}

// WithCallRecorder persists a record of every call.
func WithCallRecorder(r CallRecorder) ClientOption {
	return func(client *Client) {
		client.recorder = r
	}
}

// NewClient creates a client that resolves models through registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
		sleep:    SleepContext,
		logger:   slog.Default(),
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retryConfig.MaxAttempts < 1 {
		c.retryConfig.MaxAttempts = 1
	}
	if c.breaker == nil {
		c.breaker = NewBreaker(DefaultBreakerConfig())
	}
	c.breaker.OnStateChange(c.observer.ObserveBreakerState)

	return c
}

// Breaker returns the client's circuit breaker.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Complete sends a generation request, handling retry, failover and the
// circuit breaker. Errors are sanitized of credentials.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.complete(ctx, req)
	if err != nil {
		return nil, SanitizeError(err)
	}
	return resp, nil
}

func (c *Client) complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, NewFatalError(fmt.Errorf("capability is required"))
	}
	if req.User == "" {
		return nil, NewFatalError(fmt.Errorf("user prompt is required"))
	}

	chain := c.registry.GetFallbackChain(req.Capability)
	if len(chain) == 0 {
		return nil, NewFatalError(fmt.Errorf("no models configured for capability %s", req.Capability))
	}

	idx := max(0, slices.Index(chain, req.PreferredModel))

	requestID := uuid.New().String()
	startedAt := time.Now()
	var modelsTried []string

	finish := func(resp *Response, attempts int, modelName string, err error) {
		record := &CallRecord{
			RequestID:   requestID,
			Trace:       GetTraceContext(ctx),
			Capability:  string(req.Capability),
			Model:       modelName,
			ModelsTried: modelsTried,
			Attempts:    attempts,
			StartedAt:   startedAt,
			CompletedAt: time.Now(),
			DurationMs:  time.Since(startedAt).Milliseconds(),
		}
		if resp != nil {
			record.Usage = resp.Usage
			record.FinishReason = resp.FinishReason
		}
		if err != nil {
			record.Error = SanitizeError(err).Error()
		}
		c.recordCall(ctx, record)
	}

	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		modelName := chain[idx]

		if err := c.breaker.Allow(); err != nil {
			c.observer.ObserveAttempt(string(req.Capability), modelName, OutcomeCircuitOpen, 0)
			c.logger.Warn("Circuit open, refusing generation call",
				"capability", req.Capability,
				"model", modelName)
			wrapped := NewFatalError(err)
			finish(nil, attempt, modelName, wrapped)
			return nil, wrapped
		}

		if !slices.Contains(modelsTried, modelName) {
			modelsTried = append(modelsTried, modelName)
		}

		attemptStart := time.Now()
		resp, err := c.attempt(ctx, modelName, req)
		c.observer.ObserveAttempt(string(req.Capability), modelName, attemptOutcome(err), time.Since(attemptStart))

		if err == nil {
			resp.RequestID = requestID
			resp.Attempts = attempt + 1
			c.observer.ObserveUsage(string(req.Capability), modelName, resp.Usage)
			c.logger.Debug("Generation call succeeded",
				"request_id", requestID,
				"capability", req.Capability,
				"model", modelName,
				"attempts", resp.Attempts,
				"input_tokens", resp.Usage.InputTokens,
				"output_tokens", resp.Usage.OutputTokens)
			finish(resp, resp.Attempts, modelName, nil)
			return resp, nil
		}

		lastErr = err
		final := attempt == c.retryConfig.MaxAttempts-1
		if !IsTransient(err) || final {
			finish(nil, attempt+1, modelName, err)
			return nil, fmt.Errorf("generation call %s failed after %d attempt(s) on %s: %w",
				req.Capability, attempt+1, modelName, err)
		}

		if IsRateLimited(err) && idx < len(chain)-1 {
			idx++
			c.logger.Warn("Rate limited, failing over",
				"capability", req.Capability,
				"from", modelName,
				"to", chain[idx])
		}

		delay := ComputeDelay(attempt, c.retryConfig.BackoffBase, c.retryConfig.MaxBackoff, c.retryConfig.Jitter)
		c.logger.Warn("Generation attempt failed, retrying",
			"capability", req.Capability,
			"model", modelName,
			"attempt", attempt+1,
			"max_attempts", c.retryConfig.MaxAttempts,
			"backoff", delay,
			"error", err)

		if err := c.sleep(ctx, delay); err != nil {
			finish(nil, attempt+1, modelName, err)
			return nil, err
		}
	}

	// Unreachable with MaxAttempts >= 1.
	return nil, lastErr
}

// attempt performs one HTTP round trip against modelName.
func (c *Client) attempt(ctx context.Context, modelName string, req Request) (*Response, error) {
	ep := c.registry.GetEndpoint(modelName)
	if ep == nil {
		return nil, NewFatalError(fmt.Errorf("no endpoint configured for model %s", modelName))
	}
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider %q (registered: %v)", ep.Provider, ListProviders()))
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = ep.MaxTokens
	}
	body, err := provider.BuildRequestBody(ep.Model, req, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	respBody, err := c.send(ctx, provider, ep, body)
	if err != nil {
		// The caller gave up; the endpoint did not fail.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, NewFatalError(ctxErr)
		}
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()

	resp, err := provider.ParseResponse(respBody)
	if err != nil {
		return nil, err
	}
	resp.Model = modelName
	resp.Usage = completeUsage(resp.Usage, req.System+req.User, resp.Content, ep.Pricing)
	return resp, nil
}

// send executes the HTTP request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, provider Provider, ep *model.EndpointConfig, body []byte) ([]byte, error) {
	url := provider.BuildURL(ep.URL)

	c.logger.Debug("Sending generation request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransportError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}
	return respBody, nil
}

// recordCall stores a call record if a recorder is configured. Failures are
// logged and never affect the call.
func (c *Client) recordCall(ctx context.Context, record *CallRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, record); err != nil {
		c.logger.Warn("Failed to record generation call",
			"request_id", record.RequestID,
			"capability", record.Capability,
			"error", err)
	}
}
