package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/pipeline"
	"github.com/c360studio/yearclue/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner maps years to scripted outcomes.
type fakeRunner struct {
	results map[int]pipeline.RunResult
	errs    map[int]error
	years   []int
	ctxs    []context.Context
}

func (r *fakeRunner) Run(ctx context.Context, year int) (pipeline.RunResult, error) {
	r.years = append(r.years, year)
	r.ctxs = append(r.ctxs, ctx)
	if err := r.errs[year]; err != nil {
		return nil, err
	}
	return r.results[year], nil
}

type memAttempts struct {
	mu      sync.Mutex
	records []storage.AttemptRecord
	err     error
}

func (m *memAttempts) RecordAttempt(_ context.Context, r storage.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return m.err
}

type memImporter struct {
	imports map[int][]string
	calls   int
}

func (m *memImporter) ImportClues(_ context.Context, year int, clues []string) error {
	m.calls++
	if m.imports == nil {
		m.imports = make(map[int][]string)
	}
	m.imports[year] = clues
	return nil
}

type countingAlerter struct {
	calls      int
	seenBefore int
	attempts   *memAttempts
}

func (a *countingAlerter) Check(context.Context) error {
	a.calls++
	a.seenBefore = len(a.attempts.records)
	return nil
}

type staticSource []int

func (s staticSource) Years(context.Context) ([]int, error) { return s, nil }

type recordingObserver struct {
	statuses []string
}

func (o *recordingObserver) ObserveRun(status string, _ pipeline.UsageSummary, _ time.Duration) {
	o.statuses = append(o.statuses, status)
}

func successFor(year int, n int) *pipeline.Success {
	events := make([]clue.CandidateEvent, n)
	for i := range events {
		events[i] = clue.CandidateEvent{Text: fmt.Sprintf("clue %d", i)}
	}
	return &pipeline.Success{
		Year:          clue.SummarizeYear(year),
		Events:        events,
		SelectedCount: n,
		Metadata:      pipeline.Metadata{Attempts: 2, CriticCycles: 3, Revisions: 1},
		Usage: pipeline.UsageSummary{Total: pipeline.UsageTotals{
			InputTokens: 100, OutputTokens: 40, TotalTokens: 140, CostUSD: 0.25, Calls: 6,
		}},
	}
}

func TestBatch_RecordsOnePerYearAndImportsSuccesses(t *testing.T) {
	runner := &fakeRunner{
		results: map[int]pipeline.RunResult{
			1969: successFor(1969, 7),
			-44: &pipeline.Failure{
				Reason:   pipeline.ReasonInsufficientQuality,
				Metadata: pipeline.Metadata{Attempts: 4},
			},
		},
		errs: map[int]error{
			1066: llm.NewFatalError(errors.New("upstream said api_key=sk-abcdefghijklmnop is invalid")),
		},
	}
	attempts := &memAttempts{}
	importer := &memImporter{}
	alerter := &countingAlerter{attempts: attempts}
	observer := &recordingObserver{}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	b := New(runner, attempts, importer, WithAlerter(alerter), WithObserver(observer), WithLogger(logger))
	summary, err := b.RunSource(context.Background(), staticSource{1969, 1066, -44})
	require.NoError(t, err)

	assert.Equal(t, []int{1969, 1066, -44}, runner.years)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Errored)
	assert.NotEmpty(t, summary.BatchID)
	assert.InDelta(t, 0.25, summary.Usage.CostUSD, 1e-9)

	require.Len(t, attempts.records, 3)

	ok := attempts.records[0]
	assert.Equal(t, storage.AttemptSuccess, ok.Status)
	assert.Equal(t, 7, ok.EventsGenerated)
	assert.Equal(t, 2, ok.AttemptCount)
	assert.Equal(t, storage.TokenTotals{Input: 100, Output: 40, Total: 140}, ok.TokenUsage)
	assert.Equal(t, "CE", ok.Era)

	errored := attempts.records[1]
	assert.Equal(t, storage.AttemptFailed, errored.Status)
	assert.Equal(t, 0, errored.EventsGenerated)
	assert.NotContains(t, errored.ErrorMessage, "sk-abcdefghijklmnop")
	assert.Contains(t, errored.ErrorMessage, "[REDACTED]")
	assert.NotContains(t, logs.String(), "sk-abcdefghijklmnop")

	failed := attempts.records[2]
	assert.Equal(t, storage.AttemptFailed, failed.Status)
	assert.Equal(t, pipeline.ReasonInsufficientQuality, failed.ErrorMessage)
	assert.Equal(t, 4, failed.AttemptCount)
	assert.Equal(t, "BCE", failed.Era)

	assert.Equal(t, 1, importer.calls)
	assert.Len(t, importer.imports[1969], 7)

	assert.Equal(t, 1, alerter.calls)
	assert.Equal(t, 3, alerter.seenBefore)

	assert.Equal(t, []string{pipeline.StatusSuccess, StatusErrored, pipeline.StatusFailed}, observer.statuses)
}

func TestBatch_RunIDMatchesRecord(t *testing.T) {
	runner := &fakeRunner{results: map[int]pipeline.RunResult{1969: successFor(1969, 6)}}
	attempts := &memAttempts{}

	_, err := New(runner, attempts, &memImporter{}).Run(context.Background(), []int{1969})
	require.NoError(t, err)

	tc := llm.GetTraceContext(runner.ctxs[0])
	assert.Equal(t, tc.RunID, attempts.records[0].ID)
	assert.Equal(t, 1969, tc.Year)
}

func TestBatch_RecordFailureDoesNotStopBatch(t *testing.T) {
	runner := &fakeRunner{results: map[int]pipeline.RunResult{
		1: successFor(1, 6),
		2: successFor(2, 6),
	}}
	attempts := &memAttempts{err: errors.New("disk full")}
	importer := &memImporter{}

	summary, err := New(runner, attempts, importer).Run(context.Background(), []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, importer.calls)
}

func TestBatch_NilResultCountsAsError(t *testing.T) {
	runner := &fakeRunner{}
	attempts := &memAttempts{}

	summary, err := New(runner, attempts, &memImporter{}).Run(context.Background(), []int{5})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, storage.AttemptFailed, attempts.records[0].Status)
}

func TestBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	alerter := &countingAlerter{attempts: &memAttempts{}}
	_, err := New(runner, &memAttempts{}, &memImporter{}, WithAlerter(alerter)).Run(ctx, []int{1969})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, runner.years)
	assert.Equal(t, 0, alerter.calls)
}

type failingSource struct{}

func (failingSource) Years(context.Context) ([]int, error) { return nil, errors.New("no queue") }

func TestBatch_SourceError(t *testing.T) {
	_, err := New(&fakeRunner{}, &memAttempts{}, &memImporter{}).RunSource(context.Background(), failingSource{})
	assert.Error(t, err)
}
