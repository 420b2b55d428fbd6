package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the provider-neutral content of a generation response.
type Envelope struct {
	Text         string
	Model        string
	Usage        TokenUsage
	FinishReason string
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rawEnvelope struct {
	Model string `json:"model"`

	// Chat completions shape.
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`

	// Structured-output (responses) shape.
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string        `json:"type"`
		Content []contentPart `json:"content"`
	} `json:"output"`
	Status string `json:"status"`

	// Messages shape.
	Content    []contentPart `json:"content"`
	StopReason string        `json:"stop_reason"`

	Usage struct {
		PromptTokens            int `json:"prompt_tokens"`
		CompletionTokens        int `json:"completion_tokens"`
		InputTokens             int `json:"input_tokens"`
		OutputTokens            int `json:"output_tokens"`
		TotalTokens             int `json:"total_tokens"`
		CompletionTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"completion_tokens_details"`
		OutputTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"output_tokens_details"`
	} `json:"usage"`
}

// ParseEnvelope extracts the generated text and usage from a response body.
// It accepts the chat shape (choices[0].message.content), the
// structured-output shape (output_text or output[].content[].text) and the
// messages shape (content[].text). A body with no text is a SchemaError.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewSchemaError("envelope", "response body is not JSON", err)
	}

	env := &Envelope{Model: raw.Model}

	switch {
	case len(raw.Choices) > 0:
		env.Text = raw.Choices[0].Message.Content
		env.FinishReason = raw.Choices[0].FinishReason
	case raw.OutputText != "":
		env.Text = raw.OutputText
		env.FinishReason = raw.Status
	case len(raw.Output) > 0:
		var sb strings.Builder
		for _, item := range raw.Output {
			for _, part := range item.Content {
				if part.Type == "" || part.Type == "output_text" || part.Type == "text" {
					sb.WriteString(part.Text)
				}
			}
		}
		env.Text = sb.String()
		env.FinishReason = raw.Status
	case len(raw.Content) > 0:
		var sb strings.Builder
		for _, part := range raw.Content {
			if part.Type == "text" {
				sb.WriteString(part.Text)
			}
		}
		env.Text = sb.String()
		env.FinishReason = raw.StopReason
	}

	if strings.TrimSpace(env.Text) == "" {
		return nil, NewSchemaError("envelope", "response contained no text", nil)
	}

	u := raw.Usage
	env.Usage = TokenUsage{
		InputTokens:     firstNonZero(u.PromptTokens, u.InputTokens),
		OutputTokens:    firstNonZero(u.CompletionTokens, u.OutputTokens),
		ReasoningTokens: firstNonZero(u.CompletionTokensDetails.ReasoningTokens, u.OutputTokensDetails.ReasoningTokens),
		TotalTokens:     u.TotalTokens,
	}
	return env, nil
}

// Response converts the envelope into a client Response.
func (e *Envelope) Response() *Response {
	return &Response{
		Content:      e.Text,
		Model:        e.Model,
		Usage:        e.Usage,
		FinishReason: e.FinishReason,
	}
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// String is used in debug logs.
func (e *Envelope) String() string {
	return fmt.Sprintf("model=%s finish=%s chars=%d", e.Model, e.FinishReason, len(e.Text))
}
