package providers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/c360studio/yearclue/llm"
)

// ResponsesProvider implements the structured-output responses API.
type ResponsesProvider struct{}

func init() {
	llm.RegisterProvider(&ResponsesProvider{})
}

// Name returns the provider identifier.
func (r *ResponsesProvider) Name() string {
	return "responses"
}

// BuildURL constructs the responses endpoint.
func (r *ResponsesProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/responses") {
		return baseURL
	}
	return baseURL + "/responses"
}

// SetHeaders adds OpenAI authentication headers.
func (r *ResponsesProvider) SetHeaders(req *http.Request) {
	setOpenAIHeaders(req)
}

type responsesRequest struct {
	Model           string            `json:"model"`
	Input           []chatMessage     `json:"input"`
	Temperature     *float64          `json:"temperature,omitempty"`
	MaxOutputTokens *int              `json:"max_output_tokens,omitempty"`
	Text            *responsesTextCfg `json:"text,omitempty"`
}

type responsesTextCfg struct {
	Format responsesFormat `json:"format"`
}

type responsesFormat struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Schema map[string]any `json:"schema,omitempty"`
}

// BuildRequestBody creates the responses request body.
func (r *ResponsesProvider) BuildRequestBody(model string, req llm.Request, maxTokens int) ([]byte, error) {
	input := make([]chatMessage, 0, 2)
	if req.System != "" {
		input = append(input, chatMessage{Role: "system", Content: req.System})
	}
	input = append(input, chatMessage{Role: "user", Content: req.User})

	body := responsesRequest{
		Model:       model,
		Input:       input,
		Temperature: req.Temperature,
	}
	if maxTokens > 0 {
		body.MaxOutputTokens = &maxTokens
	}

	if rf := req.ResponseFormat; rf != nil {
		format := responsesFormat{Type: "json_object"}
		if rf.Schema != nil {
			format = responsesFormat{Type: "json_schema", Name: rf.Name, Schema: rf.Schema}
		}
		body.Text = &responsesTextCfg{Format: format}
	}

	return json.Marshal(body)
}

// ParseResponse extracts content from a responses API body.
func (r *ResponsesProvider) ParseResponse(body []byte) (*llm.Response, error) {
	env, err := llm.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}
	return env.Response(), nil
}
