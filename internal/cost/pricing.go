package cost

import "math"

// ModelPricing is the per-million-token USD price of one model
type ModelPricing struct {
	InputPerM  float64
	OutputPerM float64
}

// pricingTable holds the built-in model prices
var pricingTable = map[string]ModelPricing{
	"zai:glm-4.5":                 {InputPerM: 0.55, OutputPerM: 2.19},
	"zai:glm-5":                   {InputPerM: 0.95, OutputPerM: 3.79},
	"anthropic:claude-haiku-4-5":  {InputPerM: 0.80, OutputPerM: 4.00},
	"anthropic:claude-sonnet-4-6": {InputPerM: 3.00, OutputPerM: 15.00},
	"anthropic:claude-opus-4-6":   {InputPerM: 5.00, OutputPerM: 25.00},
}

// Pricing looks up a model's prices. Unknown models price at zero.
func Pricing(model string) (ModelPricing, bool) {
	p, ok := pricingTable[model]
	return p, ok
}

// Calculate computes the USD cost of a call, rounded to 8 decimals
func Calculate(model string, inputTokens, outputTokens int) float64 {
	p, ok := pricingTable[model]
	if !ok {
		return 0
	}
	cost := float64(inputTokens)/1e6*p.InputPerM + float64(outputTokens)/1e6*p.OutputPerM
	return math.Round(cost*1e8) / 1e8
}
