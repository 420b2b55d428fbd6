package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		leaks string
	}{
		{"openai key", "invalid key sk-proj1234567890abcdef", "sk-proj1234567890abcdef"},
		{"anthropic key", "key sk-ant-api03-abcdefghijkl rejected", "sk-ant-api03-abcdefghijkl"},
		{"google key", "AIzaSyA1234567890abcdefghijklmnop", "AIzaSyA1234567890abcdefghijklmnop"},
		{"bearer", "Authorization: Bearer abc.def.ghi", "abc.def.ghi"},
		{"query param", "GET /v1?api_key=supersecret&x=1", "supersecret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.in)
			assert.NotContains(t, got, tt.leaks)
			assert.Contains(t, got, Redacted)
		})
	}

	assert.Equal(t, "nothing to hide", Redact("nothing to hide"))
}

func TestRedact_KeepsPrefix(t *testing.T) {
	assert.Equal(t, "Bearer "+Redacted, Redact("Bearer abc123"))
	assert.Equal(t, "api_key="+Redacted+"&x=1", Redact("api_key=secret&x=1"))
}

func TestRedactingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "text")

	logger.With("auth", "Bearer token123").Error("call failed sk-abcdefghijkl",
		"error", errors.New("401: api_key=topsecret"),
		slog.Group("req", slog.String("header", "sk-ant-zzzzzzzzzzzz")))

	out := buf.String()
	assert.NotContains(t, out, "token123")
	assert.NotContains(t, out, "sk-abcdefghijkl")
	assert.NotContains(t, out, "topsecret")
	assert.NotContains(t, out, "sk-ant-zzzzzzzzzzzz")
	assert.Contains(t, out, "call failed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
