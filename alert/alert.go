// Package alert watches the attempt log for a rising failure rate.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/yearclue/storage"
)

// DefaultSubject is the NATS subject alerts are published on.
const DefaultSubject = "yearclue.alerts.failure_rate"

// RecentSource returns the newest attempt records.
type RecentSource interface {
	Recent(ctx context.Context, limit int) ([]storage.AttemptRecord, error)
}

// Publisher sends an alert payload. *natsclient.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Config controls when an alert fires.
type Config struct {
	// Window is how many recent attempts are inspected.
	Window int `json:"window" yaml:"window"`

	// FailureRateThreshold fires the alert when failures/samples reaches it.
	FailureRateThreshold float64 `json:"failure_rate_threshold" yaml:"failure_rate_threshold"`

	// MinSamples is the fewest records needed before alerting.
	MinSamples int `json:"min_samples" yaml:"min_samples"`

	Subject string `json:"subject" yaml:"subject"`
}

// DefaultConfig returns the default alert configuration.
func DefaultConfig() Config {
	return Config{
		Window:               20,
		FailureRateThreshold: 0.5,
		MinSamples:           5,
		Subject:              DefaultSubject,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("window must be positive")
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		return fmt.Errorf("failure_rate_threshold %.2f out of range (0, 1]", c.FailureRateThreshold)
	}
	if c.MinSamples < 1 || c.MinSamples > c.Window {
		return fmt.Errorf("min_samples must be between 1 and window")
	}
	return nil
}

// Alert is the published payload.
type Alert struct {
	Kind        string    `json:"kind"`
	FailureRate float64   `json:"failure_rate"`
	Threshold   float64   `json:"threshold"`
	Failures    int       `json:"failures"`
	Samples     int       `json:"samples"`
	FailedYears []int     `json:"failed_years"`
	RaisedAt    time.Time `json:"raised_at"`
}

// Checker evaluates the failure rate after a batch.
type Checker struct {
	source    RecentSource
	publisher Publisher
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewChecker creates a checker. A nil publisher only logs alerts.
func NewChecker(source RecentSource, publisher Publisher, cfg Config, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		source:    source,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate computes the alert for the current window, or nil when the
// failure rate is below threshold or there are too few samples.
func (c *Checker) Evaluate(ctx context.Context) (*Alert, error) {
	records, err := c.source.Recent(ctx, c.config.Window)
	if err != nil {
		return nil, fmt.Errorf("read recent attempts: %w", err)
	}
	if len(records) < c.config.MinSamples {
		c.logger.Debug("Not enough attempts for alerting", "samples", len(records), "min", c.config.MinSamples)
		return nil, nil
	}

	var failed []int
	for _, r := range records {
		if r.Status == storage.AttemptFailed {
			failed = append(failed, r.Year)
		}
	}
	rate := float64(len(failed)) / float64(len(records))
	if rate < c.config.FailureRateThreshold {
		return nil, nil
	}

	return &Alert{
		Kind:        "failure_rate",
		FailureRate: rate,
		Threshold:   c.config.FailureRateThreshold,
		Failures:    len(failed),
		Samples:     len(records),
		FailedYears: failed,
		RaisedAt:    c.now().UTC(),
	}, nil
}

// Check implements batch.Alerter.
func (c *Checker) Check(ctx context.Context) error {
	a, err := c.Evaluate(ctx)
	if err != nil || a == nil {
		return err
	}

	c.logger.Warn("Failure rate above threshold",
		"failure_rate", a.FailureRate,
		"threshold", a.Threshold,
		"failures", a.Failures,
		"samples", a.Samples,
		"failed_years", a.FailedYears)

	if c.publisher == nil {
		return nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := c.publisher.Publish(ctx, c.config.Subject, data); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
