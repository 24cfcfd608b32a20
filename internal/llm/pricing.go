package llm

import "sort"

// Rate is the price in USD per million tokens
type Rate struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Pricing maps a model identifier to its rate
type Pricing map[string]Rate

// DefaultPricing returns the published rates for the supported Anthropic models
func DefaultPricing() Pricing {
	return Pricing{
		"claude-3-5-haiku-20241022":  {Input: 0.80, Output: 4.00},
		"claude-3-5-sonnet-20241022": {Input: 3.00, Output: 15.00},
		"claude-sonnet-4-20250514":   {Input: 3.00, Output: 15.00},
		"claude-opus-4-20250514":     {Input: 15.00, Output: 75.00},
		"claude-opus-4-1-20250805":   {Input: 15.00, Output: 75.00},
	}
}

// Cost estimates the USD cost of a run. ok is false when the model has no known rate.
func (p Pricing) Cost(model string, inputTokens, outputTokens int) (cost float64, ok bool) {
	rate, ok := p[model]
	if !ok {
		return 0, false
	}
	in := float64(inputTokens) / 1_000_000 * rate.Input
	out := float64(outputTokens) / 1_000_000 * rate.Output
	return in + out, true
}

// Models lists the priced model identifiers
func (p Pricing) Models() []string {
	models := make([]string, 0, len(p))
	for m := range p {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
