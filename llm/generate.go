package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Completer is the network half of a generation call. *Client implements
// it; stage tests substitute a scripted mock.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Schema describes the JSON payload a call must produce.
type Schema[T any] struct {
	// Name labels the schema in errors and in the provider's response
	// format.
	Name string

	// JSONSchema, when set, is sent as the request's ResponseFormat unless
	// the request already carries one.
	JSONSchema map[string]any

	// Validate checks the decoded value. It may normalize it in place.
	Validate func(*T) error
}

// Result is a validated generation result.
type Result[T any] struct {
	Data      T
	RawText   string
	Model     string
	Usage     TokenUsage
	RequestID string
	Attempts  int
}

// Generate performs one call through c and decodes the response into T.
// Extraction, decoding and validation failures are returned as a fatal
// *SchemaError and are never retried.
func Generate[T any](ctx context.Context, c Completer, req Request, schema Schema[T]) (*Result[T], error) {
	if req.ResponseFormat == nil && schema.JSONSchema != nil {
		req.ResponseFormat = &ResponseFormat{Name: schema.Name, Schema: schema.JSONSchema}
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	payload := ExtractJSON(resp.Content)
	if payload == "" {
		return nil, SanitizeError(NewSchemaError(schema.Name, "no JSON payload in response", nil))
	}

	var data T
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&data); err != nil {
		return nil, SanitizeError(NewSchemaError(schema.Name, "decode payload", err))
	}

	if schema.Validate != nil {
		if err := schema.Validate(&data); err != nil {
			return nil, SanitizeError(NewSchemaError(schema.Name, "validate payload", err))
		}
	}

	return &Result[T]{
		Data:      data,
		RawText:   resp.Content,
		Model:     resp.Model,
		Usage:     resp.Usage,
		RequestID: resp.RequestID,
		Attempts:  resp.Attempts,
	}, nil
}
