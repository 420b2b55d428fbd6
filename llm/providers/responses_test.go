package providers

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/yearclue/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponsesProvider_BuildURL(t *testing.T) {
	p := &ResponsesProvider{}

	assert.Equal(t, "https://api.openai.com/v1/responses", p.BuildURL(""))
	assert.Equal(t, "http://gw.local/v1/responses", p.BuildURL("http://gw.local/v1/"))
	assert.Equal(t, "http://gw.local/v1/responses", p.BuildURL("http://gw.local/v1/responses"))
}

func TestResponsesProvider_BuildRequestBody(t *testing.T) {
	p := &ResponsesProvider{}

	body, err := p.BuildRequestBody("gpt-test", llm.Request{
		System: "sys",
		User:   "usr",
		ResponseFormat: &llm.ResponseFormat{
			Name:   "critique",
			Schema: map[string]any{"type": "object"},
		},
	}, 2048)
	require.NoError(t, err)

	var parsed struct {
		Input           []chatMessage `json:"input"`
		MaxOutputTokens int           `json:"max_output_tokens"`
		Text            struct {
			Format struct {
				Type string `json:"type"`
				Name string `json:"name"`
			} `json:"format"`
		} `json:"text"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))

	require.Len(t, parsed.Input, 2)
	assert.Equal(t, 2048, parsed.MaxOutputTokens)
	assert.Equal(t, "json_schema", parsed.Text.Format.Type)
	assert.Equal(t, "critique", parsed.Text.Format.Name)
}

func TestResponsesProvider_ParseResponse(t *testing.T) {
	p := &ResponsesProvider{}

	t.Run("output_text shortcut", func(t *testing.T) {
		resp, err := p.ParseResponse([]byte(`{"output_text": "{\"a\":1}", "status": "completed",
			"usage": {"input_tokens": 3, "output_tokens": 4, "output_tokens_details": {"reasoning_tokens": 1}}}`))
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, resp.Content)
		assert.Equal(t, "completed", resp.FinishReason)
		assert.Equal(t, 3, resp.Usage.InputTokens)
		assert.Equal(t, 1, resp.Usage.ReasoningTokens)
	})

	t.Run("output content parts", func(t *testing.T) {
		resp, err := p.ParseResponse([]byte(`{"output": [
			{"type": "reasoning", "content": []},
			{"type": "message", "content": [{"type": "output_text", "text": "{\"b\":2}"}]}
		]}`))
		require.NoError(t, err)
		assert.Equal(t, `{"b":2}`, resp.Content)
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := p.ParseResponse([]byte(`<html>bad gateway</html>`))
		assert.True(t, llm.IsSchemaError(err))
	})
}
