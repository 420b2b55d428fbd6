package generator

import (
	"fmt"

	"github.com/c360studio/yearclue/clue"
	"github.com/c360studio/yearclue/llm"
)

// yearEcho is the model's echo of the requested year.
type yearEcho struct {
	Value int    `json:"value"`
	Era   string `json:"era"`
}

// payload is the structured output expected from the model.
type payload struct {
	Year   yearEcho              `json:"year"`
	Events []clue.CandidateEvent `json:"events"`
}

func domainEnum() []any {
	out := make([]any, len(clue.Domains))
	for i, d := range clue.Domains {
		out[i] = string(d)
	}
	return out
}

// EventJSONSchema returns the JSON schema of one candidate event.
func EventJSONSchema() map[string]any {
	boolean := map[string]any{"type": "boolean"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":            map[string]any{"type": "string"},
			"text":             map[string]any{"type": "string", "maxLength": clue.MaxTextLength},
			"domain":           map[string]any{"type": "string", "enum": domainEnum()},
			"geo":              map[string]any{"type": "string"},
			"difficulty_guess": map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
			"confidence":       map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"leak_flags": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"has_digits":        boolean,
					"has_century_terms": boolean,
					"has_spelled_year":  boolean,
				},
				"required":             []any{"has_digits", "has_century_terms", "has_spelled_year"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"title", "text", "domain", "geo", "difficulty_guess", "confidence", "leak_flags"},
		"additionalProperties": false,
	}
}

func newSchema(minEvents, maxEvents int) llm.Schema[payload] {
	return llm.Schema[payload]{
		Name: "candidate_events",
		JSONSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"year": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value": map[string]any{"type": "integer"},
						"era":   map[string]any{"type": "string", "enum": []any{"BCE", "CE"}},
					},
					"required":             []any{"value", "era"},
					"additionalProperties": false,
				},
				"events": map[string]any{
					"type":     "array",
					"minItems": minEvents,
					"maxItems": maxEvents,
					"items":    EventJSONSchema(),
				},
			},
			"required":             []any{"year", "events"},
			"additionalProperties": false,
		},
		Validate: func(p *payload) error {
			return validatePayload(p, minEvents, maxEvents)
		},
	}
}

// validatePayload sanitizes every event in place and checks the bounds.
func validatePayload(p *payload, minEvents, maxEvents int) error {
	if n := len(p.Events); n < minEvents || n > maxEvents {
		return fmt.Errorf("expected %d..%d events, got %d", minEvents, maxEvents, n)
	}
	for i := range p.Events {
		p.Events[i] = p.Events[i].Sanitized()
		if err := p.Events[i].Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}
