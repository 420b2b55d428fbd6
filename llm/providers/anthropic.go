// Package providers implements generation API adapters. Each registers
// itself with the llm package on import.
package providers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/yearclue/llm"
)

// AnthropicProvider implements the Anthropic messages API.
type AnthropicProvider struct{}

// anthropicVersion is the API version to use.
const anthropicVersion = "2023-06-01"

// defaultAnthropicMaxTokens is sent when neither request nor endpoint sets
// a limit; the API requires one.
const defaultAnthropicMaxTokens = 4096

func init() {
	llm.RegisterProvider(&AnthropicProvider{})
}

// Name returns the provider identifier.
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// BuildURL constructs the Anthropic messages endpoint.
func (a *AnthropicProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return baseURL + "/v1/messages"
}

// SetHeaders adds Anthropic-specific authentication headers.
func (a *AnthropicProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// BuildRequestBody creates the Anthropic request body. The messages API
// has no JSON response format; the prompts already demand JSON.
func (a *AnthropicProvider) BuildRequestBody(model string, req llm.Request, maxTokens int) ([]byte, error) {
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    []chatMessage{{Role: "user", Content: req.User}},
		System:      req.System,
		Temperature: req.Temperature,
	})
}

// ParseResponse extracts content from an Anthropic response.
func (a *AnthropicProvider) ParseResponse(body []byte) (*llm.Response, error) {
	env, err := llm.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}
	return env.Response(), nil
}
