package llm

import (
	"unicode/utf8"

	"github.com/c360studio/yearclue/model"
)

// charsPerToken is the estimate used when a provider omits token counts.
const charsPerToken = 4

// TokenUsage represents token consumption for one generation call.
type TokenUsage struct {
	InputTokens     int      `json:"input_tokens"`
	OutputTokens    int      `json:"output_tokens"`
	ReasoningTokens int      `json:"reasoning_tokens,omitempty"`
	TotalTokens     int      `json:"total_tokens"`
	CostUSD         *float64 `json:"cost_usd,omitempty"`
}

// Cost returns the call cost, or 0 when it is unknown.
func (u TokenUsage) Cost() float64 {
	if u.CostUSD == nil {
		return 0
	}
	return *u.CostUSD
}

// EstimateTokens approximates the token count of s as ceil(chars/4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// completeUsage fills counts the provider left at zero and prices the call.
func completeUsage(u TokenUsage, prompt, output string, pricing *model.Pricing) TokenUsage {
	if u.InputTokens == 0 {
		u.InputTokens = EstimateTokens(prompt)
	}
	if u.OutputTokens == 0 {
		u.OutputTokens = EstimateTokens(output)
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens + u.ReasoningTokens
	}
	if pricing != nil {
		cost := EstimateCost(u, *pricing)
		u.CostUSD = &cost
	}
	return u
}

// EstimateCost prices u. Reasoning tokens are billed at ReasoningCostPer1K
// only; providers that fold them into output tokens should leave that
// price at zero.
func EstimateCost(u TokenUsage, p model.Pricing) float64 {
	return float64(u.InputTokens)/1000*p.InputCostPer1K +
		float64(u.OutputTokens)/1000*p.OutputCostPer1K +
		float64(u.ReasoningTokens)/1000*p.ReasoningCostPer1K
}
