package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAttempt(t *testing.T) {
	m := New()
	m.ObserveAttempt("generation", "gpt", llm.OutcomeSuccess, time.Second)
	m.ObserveAttempt("generation", "gpt", llm.OutcomeRateLimited, time.Second)
	m.ObserveAttempt("generation", "gpt", llm.OutcomeRateLimited, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmAttempts.WithLabelValues("generation", "gpt", llm.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.llmAttempts.WithLabelValues("generation", "gpt", llm.OutcomeRateLimited)))
}

func TestObserveUsage(t *testing.T) {
	m := New()
	cost := 0.02
	m.ObserveUsage("critique", "claude", llm.TokenUsage{InputTokens: 100, OutputTokens: 40, ReasoningTokens: 10, CostUSD: &cost})
	m.ObserveUsage("critique", "claude", llm.TokenUsage{InputTokens: 50, OutputTokens: 10})

	assert.Equal(t, 150.0, testutil.ToFloat64(m.llmTokens.WithLabelValues("critique", "claude", "input")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.llmTokens.WithLabelValues("critique", "claude", "output")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.llmTokens.WithLabelValues("critique", "claude", "reasoning")))
	assert.InDelta(t, 0.02, testutil.ToFloat64(m.llmCost.WithLabelValues("critique", "claude")), 1e-9)
}

func TestObserveBreakerState(t *testing.T) {
	m := New()
	m.ObserveBreakerState(llm.BreakerOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState))
	m.ObserveBreakerState(llm.BreakerHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState))
}

func TestObserveRun(t *testing.T) {
	m := New()
	usage := pipeline.UsageSummary{Total: pipeline.UsageTotals{TotalTokens: 500, CostUSD: 0.1}}
	m.ObserveRun(pipeline.StatusSuccess, usage, 30*time.Second)
	m.ObserveRun(pipeline.StatusFailed, usage, 90*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(pipeline.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(pipeline.StatusFailed)))
	assert.InDelta(t, 0.2, testutil.ToFloat64(m.runCost), 1e-9)
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.runTokens))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccessTime), 0.0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestServer_Endpoints(t *testing.T) {
	m := New()
	m.ObserveRun(pipeline.StatusSuccess, pipeline.UsageSummary{}, time.Second)

	srv := httptest.NewServer(NewServer(":0", m).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `yearclue_runs_total{status="success"} 1`)
}

var _ llm.Observer = (*Metrics)(nil)
