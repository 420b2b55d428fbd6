// Package critic implements the quality gate. Every candidate goes through
// deterministic checks and one scored model pass; the stricter of the two
// decides.
package critic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
)

const schemaName = "critique_results"

// Input is the candidate set to review.
type Input struct {
	Events []clue.CandidateEvent
	Year   clue.YearSummary
}

// Output holds one result per input candidate, in input order.
type Output struct {
	Results []clue.CritiqueResult

	// DeterministicFailures counts candidates with at least one
	// deterministic issue.
	DeterministicFailures int

	Usage llm.TokenUsage
}

// Passing returns the results that passed.
func (o *Output) Passing() []clue.CritiqueResult {
	var out []clue.CritiqueResult
	for _, r := range o.Results {
		if r.Passed {
			out = append(out, r)
		}
	}
	return out
}

type scoredResult struct {
	Passed       bool        `json:"passed"`
	Scores       clue.Scores `json:"scores"`
	Issues       []string    `json:"issues"`
	RewriteHints []string    `json:"rewrite_hints"`
}

type scoredPayload struct {
	Results []scoredResult `json:"results"`
}

// Stage reviews candidate sets.
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

// New creates a critic stage calling client.
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

// Critique reviews in.Events. A response with fewer results than candidates
// is a fatal *llm.SchemaError; surplus results are dropped.
func (s *Stage) Critique(ctx context.Context, in Input) (*Output, error) {
	if len(in.Events) == 0 {
		return &Output{}, nil
	}

	checks := checkEvents(in.Events, s.config.MaxWords, s.config.MaxDomainDuplicates)

	scored, usage, err := s.score(ctx, in)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Results: make([]clue.CritiqueResult, len(in.Events)),
		Usage:   usage,
	}
	for i, e := range in.Events {
		det := checks[i]
		thr := checkThresholds(scored[i].Scores, s.config.Thresholds)
		if len(det) > 0 {
			out.DeterministicFailures++
		}

		out.Results[i] = clue.CritiqueResult{
			Event:        e,
			Passed:       scored[i].Passed && len(det) == 0 && len(thr) == 0,
			Scores:       scored[i].Scores,
			Issues:       union(issues(det), scored[i].Issues, issues(thr)),
			RewriteHints: union(hints(det), scored[i].RewriteHints, hints(thr)),
		}
	}

	s.logger.Info("Critique complete",
		"year", in.Year.Value,
		"candidates", len(in.Events),
		"passed", len(out.Passing()),
		"deterministic_failures", out.DeterministicFailures)

	return out, nil
}

func (s *Stage) score(ctx context.Context, in Input) ([]scoredResult, llm.TokenUsage, error) {
	n := len(in.Events)
	temp := s.config.Temperature
	req := llm.Request{
		Capability:      s.config.Capability,
		PreferredModel:  s.config.PreferredModel,
		System:          SystemPrompt(),
		User:            UserPrompt(in.Year, in.Events),
		Temperature:     &temp,
		MaxOutputTokens: s.config.MaxOutputTokens,
	}

	result, err := llm.Generate(llm.WithStage(ctx, "critic"), s.client, req, newSchema(n))
	if err != nil {
		return nil, llm.TokenUsage{}, fmt.Errorf("critique candidates for %s: %w", in.Year.Label(), err)
	}

	got := result.Data.Results
	if len(got) < n {
		err := llm.NewSchemaError(schemaName, fmt.Sprintf("expected %d results, got %d", n, len(got)), nil)
		return nil, llm.TokenUsage{}, fmt.Errorf("critique candidates for %s: %w", in.Year.Label(), err)
	}
	if len(got) > n {
		s.logger.Warn("Critic returned surplus results, truncating",
			"expected", n,
			"got", len(got),
			"request_id", result.RequestID)
		got = got[:n]
	}
	return got, result.Usage, nil
}

func newSchema(n int) llm.Schema[scoredPayload] {
	score := map[string]any{"type": "number", "minimum": 0, "maximum": 1}
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return llm.Schema[scoredPayload]{
		Name: schemaName,
		JSONSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"results": map[string]any{
					"type":     "array",
					"minItems": n,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"passed": map[string]any{"type": "boolean"},
							"scores": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"factual":      score,
									"leak_risk":    score,
									"ambiguity":    score,
									"guessability": score,
									"diversity":    score,
								},
								"required":             []any{"factual", "leak_risk", "ambiguity", "guessability", "diversity"},
								"additionalProperties": false,
							},
							"issues":        stringList,
							"rewrite_hints": stringList,
						},
						"required":             []any{"passed", "scores", "issues", "rewrite_hints"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []any{"results"},
			"additionalProperties": false,
		},
		Validate: func(p *scoredPayload) error {
			for i, r := range p.Results {
				if err := r.Scores.Validate(); err != nil {
					return fmt.Errorf("result %d: %w", i, err)
				}
			}
			return nil
		},
	}
}
