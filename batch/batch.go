// Package batch runs the pipeline over a list of years. Each year gets
// exactly one attempt record, and successful years are imported. A failing
// year never stops the batch.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/pipeline"
	"github.com/c360studio/yearclue/storage"
	"github.com/google/uuid"
)

// Runner runs the pipeline for one year.
type Runner interface {
	Run(ctx context.Context, year int) (pipeline.RunResult, error)
}

// AttemptLogger persists one record per run.
type AttemptLogger interface {
	RecordAttempt(ctx context.Context, record storage.AttemptRecord) error
}

// ClueImporter receives the final clues of a successful run.
type ClueImporter interface {
	ImportClues(ctx context.Context, year int, clues []string) error
}

// WorkSource supplies the years to run, in order.
type WorkSource interface {
	Years(ctx context.Context) ([]int, error)
}

// Alerter is checked once after every batch.
type Alerter interface {
	Check(ctx context.Context) error
}

// RunObserver receives the outcome of each year.
type RunObserver interface {
	ObserveRun(status string, usage pipeline.UsageSummary, d time.Duration)
}

// Summary describes a completed batch.
type Summary struct {
	BatchID   string               `json:"batch_id"`
	Years     []int                `json:"years"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Errored   int                  `json:"errored"`
	Usage     pipeline.UsageTotals `json:"usage"`
	Duration  time.Duration        `json:"duration"`
}

// StatusErrored marks a run that ended in a stage error rather than a
// pipeline result.
const StatusErrored = "error"

// Batch wires a runner to its collaborators.
type Batch struct {
	runner   Runner
	attempts AttemptLogger
	importer ClueImporter
	alerter  Alerter
	observer RunObserver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Batch.
type Option func(*Batch)

// WithAlerter sets the post-batch alert check.
func WithAlerter(a Alerter) Option {
	return func(b *Batch) {
		b.alerter = a
	}
}

// WithObserver sets the per-run observer.
func WithObserver(o RunObserver) Option {
	return func(b *Batch) {
		b.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Batch) {
		b.logger = logger
	}
}

// New creates a batch runner. attempts and importer are required.
func New(runner Runner, attempts AttemptLogger, importer ClueImporter, opts ...Option) *Batch {
	b := &Batch{
		runner:   runner,
		attempts: attempts,
		importer: importer,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunSource runs every year from src.
func (b *Batch) RunSource(ctx context.Context, src WorkSource) (*Summary, error) {
	years, err := src.Years(ctx)
	if err != nil {
		return nil, fmt.Errorf("select years: %w", err)
	}
	return b.Run(ctx, years)
}

// Run processes years in order, then runs the alert check. It returns an
// error only when the context is cancelled.
func (b *Batch) Run(ctx context.Context, years []int) (*Summary, error) {
	start := b.now()
	summary := &Summary{
		BatchID: uuid.New().String(),
		Years:   years,
	}

	b.logger.Info("Batch started", "batch_id", summary.BatchID, "years", len(years))

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			summary.Duration = b.now().Sub(start)
			return summary, fmt.Errorf("batch %s cancelled: %w", summary.BatchID, err)
		}
		status, usage := b.runYear(ctx, summary.BatchID, year)
		switch status {
		case pipeline.StatusSuccess:
			summary.Succeeded++
		case pipeline.StatusFailed:
			summary.Failed++
		default:
			summary.Errored++
		}
		addTotals(&summary.Usage, usage.Total)
	}

	if b.alerter != nil {
		if err := b.alerter.Check(ctx); err != nil {
			b.logger.Warn("Alert check failed", "batch_id", summary.BatchID, "error", llm.SanitizeError(err))
		}
	}

	summary.Duration = b.now().Sub(start)
	b.logger.Info("Batch complete",
		"batch_id", summary.BatchID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"errored", summary.Errored,
		"cost_usd", summary.Usage.CostUSD,
		"duration", summary.Duration)
	return summary, nil
}

func (b *Batch) runYear(ctx context.Context, batchID string, year int) (string, pipeline.UsageSummary) {
	runID := uuid.New().String()
	runCtx := llm.WithTraceContext(ctx, llm.TraceContext{RunID: runID, Year: year})
	start := b.now()

	record := storage.AttemptRecord{
		ID:   runID,
		Year: year,
		Era:  string(clue.EraOf(year)),
	}

	result, err := b.runner.Run(runCtx, year)
	if err == nil && result == nil {
		err = fmt.Errorf("pipeline returned no result for year %d", year)
	}
	var (
		status string
		usage  pipeline.UsageSummary
	)
	switch {
	case err != nil:
		sanitized := llm.SanitizeError(err)
		b.logger.Error("Pipeline run failed",
			"batch_id", batchID,
			"run_id", runID,
			"year", year,
			"error", sanitized)
		status = StatusErrored
		record.Status = storage.AttemptFailed
		record.ErrorMessage = sanitized.Error()

	default:
		status = result.Status()
		usage = result.Totals()
		record.AttemptCount = result.Meta().Attempts
		record.TokenUsage = storage.TokenTotals{
			Input:  usage.Total.InputTokens,
			Output: usage.Total.OutputTokens,
			Total:  usage.Total.TotalTokens,
		}
		record.CostUSD = usage.Total.CostUSD

		switch r := result.(type) {
		case *pipeline.Success:
			record.Status = storage.AttemptSuccess
			record.EventsGenerated = len(r.Events)
		case *pipeline.Failure:
			record.Status = storage.AttemptFailed
			record.ErrorMessage = r.Reason
		}
	}

	if err := b.attempts.RecordAttempt(ctx, record); err != nil {
		b.logger.Error("Failed to record attempt",
			"batch_id", batchID,
			"run_id", runID,
			"year", year,
			"error", llm.SanitizeError(err))
	}

	if success, ok := result.(*pipeline.Success); ok && err == nil {
		if err := b.importer.ImportClues(ctx, year, success.Texts()); err != nil {
			b.logger.Error("Failed to import clues",
				"batch_id", batchID,
				"year", year,
				"error", llm.SanitizeError(err))
		} else {
			b.logger.Info("Imported clues", "year", year, "count", len(success.Events))
		}
	}

	if b.observer != nil {
		b.observer.ObserveRun(status, usage, b.now().Sub(start))
	}
	return status, usage
}

func addTotals(dst *pipeline.UsageTotals, src pipeline.UsageTotals) {
	dst.InputTokens += src.InputTokens
	dst.OutputTokens += src.OutputTokens
	dst.ReasoningTokens += src.ReasoningTokens
	dst.TotalTokens += src.TotalTokens
	dst.CostUSD += src.CostUSD
	dst.Calls += src.Calls
}
