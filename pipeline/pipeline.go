// Package pipeline runs the bounded generate, critique and revise loop for
// one year and selects the final clue set.
//
// Each outer attempt regenerates from scratch. Within an attempt the critic
// runs up to MaxCriticCycles times, with a revision of the failing
// candidates between passes. A run ends with a *Success as soon as a
// critique yields enough passing candidates for selection, or with a
// *Failure once every attempt is spent. Stage errors abort the run and are
// returned to the caller.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/processor/critic"
	"github.com/c360studio/yearclue/processor/generator"
	"github.com/c360studio/yearclue/processor/reviser"
	"github.com/google/uuid"
)

// Generator proposes candidates for a year.
type Generator interface {
	Generate(ctx context.Context, in generator.Input) (*generator.Output, error)
}

// Critic reviews a candidate set.
type Critic interface {
	Critique(ctx context.Context, in critic.Input) (*critic.Output, error)
}

// Reviser rewrites failing candidates.
type Reviser interface {
	Revise(ctx context.Context, in reviser.Input) (*reviser.Output, error)
}

// Orchestrator runs the pipeline for one year at a time.
type Orchestrator struct {
	generator Generator
	critic    Critic
	reviser   Reviser
	config    Config
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default bounds.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an orchestrator over the three stages.
func New(g Generator, c Critic, r Reviser, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator: g,
		critic:    c,
		reviser:   r,
		config:    DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewFromClient wires the default stages to one client.
func NewFromClient(client llm.Completer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(
		generator.New(client, generator.WithLogger(logger)),
		critic.New(client, critic.WithLogger(logger)),
		reviser.New(client, reviser.WithLogger(logger)),
		opts...,
	)
}

// Config returns the orchestrator's bounds.
func (o *Orchestrator) Config() Config {
	return o.config
}

// Run executes the pipeline for year. Exhausting every attempt is not an
// error: it returns a *Failure. Errors are stage errors.
func (o *Orchestrator) Run(ctx context.Context, year int) (RunResult, error) {
	summary := clue.SummarizeYear(year)

	tc := llm.GetTraceContext(ctx)
	if tc.RunID == "" {
		tc.RunID = uuid.New().String()
	}
	tc.Year = year
	ctx = llm.WithTraceContext(ctx, tc)

	var (
		meta  Metadata
		usage UsageSummary
	)

	for attempt := 1; attempt <= o.config.MaxTotalAttempts; attempt++ {
		meta.Attempts = attempt

		gen, err := o.generator.Generate(ctx, generator.Input{Year: summary.Value, Era: summary.Era})
		if err != nil {
			return nil, fmt.Errorf("run %s attempt %d: %w", summary.Label(), attempt, err)
		}
		usage.addGenerator(gen.Usage)
		candidates := gen.Events

		for cycle := 1; cycle <= o.config.MaxCriticCycles; cycle++ {
			crit, err := o.critic.Critique(ctx, critic.Input{Events: candidates, Year: summary})
			if err != nil {
				return nil, fmt.Errorf("run %s attempt %d: %w", summary.Label(), attempt, err)
			}
			meta.CriticCycles++
			meta.DeterministicFailures += crit.DeterministicFailures
			usage.addCritic(crit.Usage)

			passing := crit.Passing()
			o.logger.Debug("Critique cycle",
				"run_id", tc.RunID,
				"year", year,
				"attempt", attempt,
				"cycle", cycle,
				"candidates", len(candidates),
				"passing", len(passing))

			if len(passing) >= o.config.MinRequiredEvents {
				selected := Select(passing, o.config)
				if len(selected) >= o.config.MinRequiredEvents {
					events := make([]clue.CandidateEvent, len(selected))
					for i, r := range selected {
						events[i] = r.Event
					}
					o.logger.Info("Run succeeded",
						"run_id", tc.RunID,
						"year", year,
						"selected", len(events),
						"attempts", meta.Attempts,
						"critic_cycles", meta.CriticCycles,
						"revisions", meta.Revisions,
						"cost_usd", usage.Total.CostUSD)
					return &Success{
						Year:          summary,
						Events:        events,
						SelectedCount: len(events),
						Metadata:      meta,
						Usage:         usage,
					}, nil
				}
			}

			failingIdx := failingIndexes(crit.Results)
			if len(failingIdx) == 0 || cycle == o.config.MaxCriticCycles {
				break
			}

			failing := make([]clue.CritiqueResult, len(failingIdx))
			for i, idx := range failingIdx {
				failing[i] = crit.Results[idx]
			}
			rev, err := o.reviser.Revise(ctx, reviser.Input{Failing: failing, Year: summary})
			if err != nil {
				return nil, fmt.Errorf("run %s attempt %d: %w", summary.Label(), attempt, err)
			}
			meta.Revisions++
			usage.addReviser(rev.Usage)

			candidates = substitute(crit.Results, failingIdx, rev.Events)
		}

		o.logger.Info("Attempt exhausted without enough passing candidates",
			"run_id", tc.RunID,
			"year", year,
			"attempt", attempt)
	}

	o.logger.Warn("Run failed",
		"run_id", tc.RunID,
		"year", year,
		"reason", ReasonInsufficientQuality,
		"attempts", meta.Attempts,
		"critic_cycles", meta.CriticCycles,
		"revisions", meta.Revisions)

	return &Failure{
		Year:     summary,
		Reason:   ReasonInsufficientQuality,
		Metadata: meta,
		Usage:    usage,
	}, nil
}

func failingIndexes(results []clue.CritiqueResult) []int {
	var idx []int
	for i, r := range results {
		if !r.Passed {
			idx = append(idx, i)
		}
	}
	return idx
}

// substitute rebuilds the candidate list in critique order, replacing each
// failing position with its rewrite. A missing rewrite keeps the original.
func substitute(results []clue.CritiqueResult, failingIdx []int, rewrites []clue.CandidateEvent) []clue.CandidateEvent {
	out := make([]clue.CandidateEvent, len(results))
	for i, r := range results {
		out[i] = r.Event
	}
	for j, idx := range failingIdx {
		if j < len(rewrites) {
			out[idx] = rewrites[j]
		}
	}
	return out
}
