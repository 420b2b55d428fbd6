package pipeline

import "github.com/c360studio/yearclue/llm"

// UsageTotals aggregates token usage and cost over several calls.
type UsageTotals struct {
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	ReasoningTokens int     `json:"reasoning_tokens"`
	TotalTokens     int     `json:"total_tokens"`
	CostUSD         float64 `json:"cost_usd"`
	Calls           int     `json:"calls"`
}

// Add accumulates one call's usage.
func (t *UsageTotals) Add(u llm.TokenUsage) {
	t.InputTokens += u.InputTokens
	t.OutputTokens += u.OutputTokens
	t.ReasoningTokens += u.ReasoningTokens
	t.TotalTokens += u.TotalTokens
	t.CostUSD += u.Cost()
	t.Calls++
}

// UsageSummary splits usage by stage.
type UsageSummary struct {
	Generator UsageTotals `json:"generator"`
	Critic    UsageTotals `json:"critic"`
	Reviser   UsageTotals `json:"reviser"`
	Total     UsageTotals `json:"total"`
}

func (s *UsageSummary) addGenerator(u llm.TokenUsage) {
	s.Generator.Add(u)
	s.Total.Add(u)
}

func (s *UsageSummary) addCritic(u llm.TokenUsage) {
	s.Critic.Add(u)
	s.Total.Add(u)
}

func (s *UsageSummary) addReviser(u llm.TokenUsage) {
	s.Reviser.Add(u)
	s.Total.Add(u)
}
