// Package generator implements the first pipeline stage: it asks the model
// for candidate events that happened in a target year.
package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
)

// Input is the generator request.
type Input struct {
	Year int
	Era  clue.Era
}

// Output is the sanitized candidate set.
type Output struct {
	Events    []clue.CandidateEvent
	Year      clue.YearSummary
	Usage     llm.TokenUsage
	Model     string
	RequestID string
}

// Stage generates candidate events.
type Stage struct {
	client llm.Completer
	config Config
	logger *slog.Logger
}

// Option configures a Stage.
type Option func(*Stage)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Stage) {
		s.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// New creates a generator stage calling client.
func New(client llm.Completer, opts ...Option) *Stage {
	s := &Stage{
		client: client,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces candidates for in.Year. The requested year is
// authoritative: a mismatching echo from the model is only logged.
func (s *Stage) Generate(ctx context.Context, in Input) (*Output, error) {
	summary := clue.SummarizeYear(in.Year)
	if in.Era != "" && in.Era != summary.Era {
		s.logger.Warn("Requested era disagrees with year sign, using derived era",
			"year", in.Year,
			"requested_era", in.Era,
			"era", summary.Era)
	}

	temp := s.config.Temperature
	req := llm.Request{
		Capability:      s.config.Capability,
		PreferredModel:  s.config.PreferredModel,
		System:          SystemPrompt(),
		User:            UserPrompt(summary, s.config.MinEvents, s.config.MaxEvents),
		Temperature:     &temp,
		MaxOutputTokens: s.config.MaxOutputTokens,
	}

	result, err := llm.Generate(llm.WithStage(ctx, "generator"), s.client, req,
		newSchema(s.config.MinEvents, s.config.MaxEvents))
	if err != nil {
		return nil, fmt.Errorf("generate candidates for %s: %w", summary.Label(), err)
	}

	s.checkEcho(summary, result.Data.Year)

	s.logger.Info("Generated candidates",
		"year", summary.Value,
		"era", summary.Era,
		"count", len(result.Data.Events),
		"model", result.Model,
		"request_id", result.RequestID)

	return &Output{
		Events:    result.Data.Events,
		Year:      summary,
		Usage:     result.Usage,
		Model:     result.Model,
		RequestID: result.RequestID,
	}, nil
}

func (s *Stage) checkEcho(want clue.YearSummary, got yearEcho) {
	era, err := clue.ParseEra(got.Era)
	if got.Value == want.Value && err == nil && era == want.Era {
		return
	}
	s.logger.Warn("Model echoed a different year",
		"year", want.Value,
		"era", want.Era,
		"echo_year", got.Value,
		"echo_era", got.Era)
}
