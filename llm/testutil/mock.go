// Package testutil provides a scripted llm.Completer for stage and
// pipeline tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360studio/yearclue/llm"
)

// Step is one scripted reply: a response or an error.
type Step struct {
	Response *llm.Response
	Err      error
}

// MockCompleter replays Steps in order and records every request.
//
// Usage:
//
//	mock := &testutil.MockCompleter{}
//	mock.PushJSON(map[string]any{"events": events})
//	mock.PushError(llm.NewFatalError(errors.New("boom")))
type MockCompleter struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
	contexts []context.Context
	next     int
}

// Push appends a raw step.
func (m *MockCompleter) Push(step Step) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
	return m
}

// PushText appends a response with the given content and fixed usage.
func (m *MockCompleter) PushText(content string) *MockCompleter {
	cost := 0.001
	return m.Push(Step{Response: &llm.Response{
		Content:   content,
		Model:     "mock-model",
		RequestID: fmt.Sprintf("mock-%d", m.stepCount()+1),
		Attempts:  1,
		Usage: llm.TokenUsage{
			InputTokens:  100,
			OutputTokens: 50,
			TotalTokens:  150,
			CostUSD:      &cost,
		},
	}})
}

// PushJSON marshals v and appends it as a response.
func (m *MockCompleter) PushJSON(v any) *MockCompleter {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal scripted response: %v", err))
	}
	return m.PushText(string(data))
}

// PushError appends a failing step.
func (m *MockCompleter) PushError(err error) *MockCompleter {
	return m.Push(Step{Err: err})
}

// Complete implements llm.Completer. It fails the call when the script
// is exhausted.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	m.contexts = append(m.contexts, ctx)

	if m.next >= len(m.steps) {
		return nil, fmt.Errorf("testutil: no scripted response for call %d", m.next+1)
	}
	step := m.steps[m.next]
	m.next++

	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

// Calls returns the number of Complete calls.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// LastContext returns the context of the most recent call.
func (m *MockCompleter) LastContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.contexts) == 0 {
		return nil
	}
	return m.contexts[len(m.contexts)-1]
}

// Remaining returns the number of unconsumed steps.
func (m *MockCompleter) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps) - m.next
}

func (m *MockCompleter) stepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}
