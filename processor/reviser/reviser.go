// Package reviser rewrites clues that failed critique.
package reviser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/processor/generator"
)

// Input is the failing subset of a critique.
type Input struct {
	Failing []clue.CritiqueResult
	Year    clue.YearSummary
}

// Output holds one rewrite per failing result, in order.
type Output struct {
	Events []clue.CandidateEvent
	Usage  llm.TokenUsage
}

type payload struct {
	Events []clue.CandidateEvent `json:"events"`
}

// Stage rewrites failing candidates.
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

// New creates a reviser stage calling client.
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

// Revise asks for exactly len(in.Failing) rewrites. An empty input returns
// immediately without a call.
func (s *Stage) Revise(ctx context.Context, in Input) (*Output, error) {
	n := len(in.Failing)
	if n == 0 {
		return &Output{Events: []clue.CandidateEvent{}}, nil
	}

	temp := s.config.Temperature
	req := llm.Request{
		Capability:      s.config.Capability,
		PreferredModel:  s.config.PreferredModel,
		System:          SystemPrompt(),
		User:            UserPrompt(in.Year, in.Failing),
		Temperature:     &temp,
		MaxOutputTokens: s.config.MaxOutputTokens,
	}

	result, err := llm.Generate(llm.WithStage(ctx, "reviser"), s.client, req, newSchema(n))
	if err != nil {
		return nil, fmt.Errorf("revise %d candidates for %s: %w", n, in.Year.Label(), err)
	}

	s.logger.Info("Revised candidates",
		"year", in.Year.Value,
		"count", n,
		"model", result.Model,
		"request_id", result.RequestID)

	return &Output{Events: result.Data.Events, Usage: result.Usage}, nil
}

func newSchema(n int) llm.Schema[payload] {
	return llm.Schema[payload]{
		Name: "revised_events",
		JSONSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"events": map[string]any{
					"type":     "array",
					"minItems": n,
					"maxItems": n,
					"items":    generator.EventJSONSchema(),
				},
			},
			"required":             []any{"events"},
			"additionalProperties": false,
		},
		Validate: func(p *payload) error {
			if len(p.Events) != n {
				return fmt.Errorf("expected %d rewrites, got %d", n, len(p.Events))
			}
			for i := range p.Events {
				p.Events[i] = p.Events[i].Sanitized()
				if err := p.Events[i].Validate(); err != nil {
					return fmt.Errorf("rewrite %d: %w", i, err)
				}
			}
			return nil
		},
	}
}
