package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Chat completions wire types, as sent by the openai provider.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema *struct {
			Name string `json:"name"`
		} `json:"json_schema,omitempty"`
	} `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// capturedRequest is one served call, kept for /requests.
type capturedRequest struct {
	Model     string        `json:"model"`
	Schema    string        `json:"schema,omitempty"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"`
	Status    int           `json:"status"`
	Timestamp int64         `json:"timestamp"`
}

// server answers chat completions from fixtures routed by model. The first
// rateLimitFirst calls per model get a 429 so retry and failover paths can
// be exercised against it.
type server struct {
	fixtures       map[string][]string
	rateLimitFirst int
	logger         *slog.Logger

	mu       sync.Mutex
	total    int
	calls    map[string]int
	requests map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, rateLimitFirst int, logger *slog.Logger) *server {
	return &server{
		fixtures:       fixtures,
		rateLimitFirst: rateLimitFirst,
		logger:         logger,
		calls:          make(map[string]int),
		requests:       make(map[string][]capturedRequest),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)
	return mux
}

// resolve finds the fixture sequence for model, also trying it without a
// "mock-" prefix.
func (s *server) resolve(model string) ([]string, bool) {
	if seq, ok := s.fixtures[model]; ok {
		return seq, true
	}
	seq, ok := s.fixtures[strings.TrimPrefix(model, "mock-")]
	return seq, ok
}

// next records the call and returns its 1-based per-model index.
func (s *server) next(req chatRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.calls[req.Model]++
	return s.calls[req.Model]
}

func (s *server) capture(req chatRequest, callIndex, status int) {
	schema := ""
	if req.ResponseFormat != nil && req.ResponseFormat.JSONSchema != nil {
		schema = req.ResponseFormat.JSONSchema.Name
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.Model] = append(s.requests[req.Model], capturedRequest{
		Model:     req.Model,
		Schema:    schema,
		Messages:  req.Messages,
		CallIndex: callIndex,
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	seq, ok := s.resolve(req.Model)
	if !ok {
		s.logger.Warn("No fixture for model", "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	callIndex := s.next(req)
	if callIndex <= s.rateLimitFirst {
		s.capture(req, callIndex, http.StatusTooManyRequests)
		s.logger.Info("Injected rate limit", "model", req.Model, "call", callIndex)
		w.Header().Set("Retry-After", "1")
		http.Error(w, `{"error":{"message":"rate limited by mock"}}`, http.StatusTooManyRequests)
		return
	}
	s.capture(req, callIndex, http.StatusOK)

	served := callIndex - s.rateLimitFirst
	content := seq[len(seq)-1]
	if served <= len(seq) {
		content = seq[served-1]
	}

	prompt := 0
	for _, m := range req.Messages {
		prompt += len(m.Content) / 4
	}
	completion := len(content) / 4

	resp := chatResponse{
		ID:      "mock-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}

	s.logger.Debug("Served fixture",
		"model", req.Model,
		"call", callIndex,
		"fixtures", len(seq),
		"bytes", len(content))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	models := make([]modelEntry, 0, len(s.fixtures))
	for name := range s.fixtures {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": models})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byModel := make(map[string]int, len(s.calls))
	for m, n := range s.calls {
		byModel[m] = n
	}
	total := s.total
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    total,
		"calls_by_model": byModel,
	})
}

// handleRequests returns captured calls, optionally filtered by ?model= and
// ?call= (1-based).
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.requests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		for _, req := range reqs {
			if callFilter == 0 || req.CallIndex == callFilter {
				result[model] = append(result[model], req)
			}
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"requests_by_model": result})
}
