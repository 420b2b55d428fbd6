package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
	"github.com/c360studio/yearclue/llm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents(n int) []map[string]any {
	events := make([]map[string]any, n)
	for i := range events {
		events[i] = map[string]any{
			"title":            fmt.Sprintf("Event %c", 'A'+i),
			"text":             fmt.Sprintf("  Explorers   reach Island %c ", 'A'+i),
			"domain":           " Science ",
			"geo":              "Pacific  Ocean",
			"difficulty_guess": 3,
			"confidence":       0.8,
			"leak_flags":       map[string]any{},
		}
	}
	return events
}

func TestGenerate_SanitizesAndSummarizes(t *testing.T) {
	mock := &testutil.MockCompleter{}
	mock.PushJSON(map[string]any{
		"year":   map[string]any{"value": -44, "era": "BCE"},
		"events": sampleEvents(12),
	})

	out, err := New(mock).Generate(context.Background(), Input{Year: -44, Era: clue.EraBCE})
	require.NoError(t, err)

	require.Len(t, out.Events, 12)
	assert.Equal(t, "Explorers reach Island A", out.Events[0].Text)
	assert.Equal(t, clue.DomainScience, out.Events[0].Domain)
	assert.Equal(t, "Pacific Ocean", out.Events[0].Geo)
	assert.Equal(t, clue.YearSummary{Value: -44, Era: clue.EraBCE, Digits: 2}, out.Year)
	assert.Equal(t, 150, out.Usage.TotalTokens)
	assert.Equal(t, "mock-model", out.Model)
}

func TestGenerate_RequestShape(t *testing.T) {
	mock := &testutil.MockCompleter{}
	mock.PushJSON(map[string]any{
		"year":   map[string]any{"value": 1969, "era": "CE"},
		"events": sampleEvents(12),
	})

	_, err := New(mock).Generate(context.Background(), Input{Year: 1969, Era: clue.EraCE})
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, DefaultConfig().Capability, req.Capability)
	assert.Contains(t, req.User, "1969 CE")
	assert.Contains(t, req.System, "Never reveal the year")
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "candidate_events", req.ResponseFormat.Name)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, "generator", llm.GetTraceContext(mock.LastContext()).Stage)
}

func TestGenerate_EchoMismatchOnlyWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mock := &testutil.MockCompleter{}
	mock.PushJSON(map[string]any{
		"year":   map[string]any{"value": 1970, "era": "CE"},
		"events": sampleEvents(12),
	})

	out, err := New(mock, WithLogger(logger)).Generate(context.Background(), Input{Year: 1969, Era: clue.EraCE})
	require.NoError(t, err)
	assert.Equal(t, 1969, out.Year.Value)
	assert.Contains(t, buf.String(), "Model echoed a different year")
}

func TestGenerate_TooFewEventsIsSchemaError(t *testing.T) {
	mock := &testutil.MockCompleter{}
	mock.PushJSON(map[string]any{
		"year":   map[string]any{"value": 1969, "era": "CE"},
		"events": sampleEvents(5),
	})

	_, err := New(mock).Generate(context.Background(), Input{Year: 1969})
	require.Error(t, err)
	assert.True(t, llm.IsSchemaError(err))
	assert.Equal(t, 1, mock.Calls())
}

func TestGenerate_InvalidEventIsSchemaError(t *testing.T) {
	events := sampleEvents(12)
	events[3]["text"] = strings.Repeat("x", clue.MaxTextLength+1)
	events[5]["domain"] = "fashion"

	mock := &testutil.MockCompleter{}
	mock.PushJSON(map[string]any{"year": map[string]any{"value": 1969, "era": "CE"}, "events": events})

	_, err := New(mock).Generate(context.Background(), Input{Year: 1969})
	require.Error(t, err)
	assert.True(t, llm.IsSchemaError(err))
}

func TestGenerate_PropagatesClientError(t *testing.T) {
	mock := &testutil.MockCompleter{}
	mock.PushError(llm.NewFatalError(errors.New("upstream unavailable")))

	_, err := New(mock).Generate(context.Background(), Input{Year: 1969})
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxEvents = 4
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Capability = "painting"
	assert.Error(t, cfg.Validate())
}

func TestUserPrompt(t *testing.T) {
	p := UserPrompt(clue.SummarizeYear(-753), 12, 18)
	assert.Contains(t, p, "753 BCE")
	assert.Contains(t, p, "between 12 and 18")
	assert.Contains(t, p, "before the common era")
}
