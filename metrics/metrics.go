// Package metrics exposes pipeline and generation-client telemetry to
// Prometheus.
package metrics

import (
	"time"

	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "yearclue"

// Metrics holds every collector. It implements llm.Observer and
// batch.RunObserver.
type Metrics struct {
	registry *prometheus.Registry

	llmAttempts     *prometheus.CounterVec
	llmDuration     *prometheus.HistogramVec
	llmTokens       *prometheus.CounterVec
	llmCost         *prometheus.CounterVec
	breakerState    prometheus.Gauge
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	runCost         prometheus.Counter
	runTokens       prometheus.Counter
	lastSuccessTime prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.llmAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "attempts_total",
		Help:      "Generation HTTP attempts by capability, model and outcome",
	}, []string{"capability", "model", "outcome"})
	m.llmDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of generation HTTP attempts",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
	}, []string{"capability"})
	m.llmTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by capability, model and kind",
	}, []string{"capability", "model", "kind"})
	m.llmCost = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "cost_usd_total",
		Help:      "Priced generation cost in USD",
	}, []string{"capability", "model"})
	m.breakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	})
	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by final status",
	}, []string{"status"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of one pipeline run",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
	})
	m.runCost = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_cost_usd_total",
		Help:      "Cost of pipeline runs in USD",
	})
	m.runTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_tokens_total",
		Help:      "Tokens consumed by pipeline runs",
	})
	m.lastSuccessTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run",
	})

	m.registry.MustRegister(
		m.llmAttempts, m.llmDuration, m.llmTokens, m.llmCost, m.breakerState,
		m.runsTotal, m.runDuration, m.runCost, m.runTokens, m.lastSuccessTime,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAttempt implements llm.Observer.
func (m *Metrics) ObserveAttempt(capability, model, outcome string, d time.Duration) {
	m.llmAttempts.WithLabelValues(capability, model, outcome).Inc()
	if outcome != llm.OutcomeCircuitOpen {
		m.llmDuration.WithLabelValues(capability).Observe(d.Seconds())
	}
}

// ObserveUsage implements llm.Observer.
func (m *Metrics) ObserveUsage(capability, model string, u llm.TokenUsage) {
	m.llmTokens.WithLabelValues(capability, model, "input").Add(float64(u.InputTokens))
	m.llmTokens.WithLabelValues(capability, model, "output").Add(float64(u.OutputTokens))
	if u.ReasoningTokens > 0 {
		m.llmTokens.WithLabelValues(capability, model, "reasoning").Add(float64(u.ReasoningTokens))
	}
	if u.CostUSD != nil {
		m.llmCost.WithLabelValues(capability, model).Add(*u.CostUSD)
	}
}

// ObserveBreakerState implements llm.Observer.
func (m *Metrics) ObserveBreakerState(state llm.BreakerState) {
	m.breakerState.Set(float64(state))
}

// ObserveRun implements batch.RunObserver.
func (m *Metrics) ObserveRun(status string, usage pipeline.UsageSummary, d time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	m.runCost.Add(usage.Total.CostUSD)
	m.runTokens.Add(float64(usage.Total.TotalTokens))
	if status == pipeline.StatusSuccess {
		m.lastSuccessTime.SetToCurrentTime()
	}
}
