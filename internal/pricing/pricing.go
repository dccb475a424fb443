// Package pricing holds the static per-model pricing table used for cost
// accounting and pre-flight estimates.
package pricing

// ModelPricing holds the dollar rates for one model, per million tokens.
type ModelPricing struct {
	InputPerMtok  float64
	OutputPerMtok float64
}

// table maps model IDs to their published rates. Rates are maintained by
// hand when vendors change pricing; entries here are authoritative for the
// cost ledger.
var table = map[string]ModelPricing{
	// DeepSeek
	"deepseek-chat":     {InputPerMtok: 0.14, OutputPerMtok: 0.28},
	"deepseek-reasoner": {InputPerMtok: 0.55, OutputPerMtok: 2.19},

	// OpenAI
	"gpt-4o":       {InputPerMtok: 2.50, OutputPerMtok: 10.00},
	"gpt-4o-mini":  {InputPerMtok: 0.15, OutputPerMtok: 0.60},
	"gpt-4.1-mini": {InputPerMtok: 0.40, OutputPerMtok: 1.60},

	// Gemini
	"gemini-2.0-flash":      {InputPerMtok: 0.10, OutputPerMtok: 0.40},
	"gemini-2.0-flash-lite": {InputPerMtok: 0.075, OutputPerMtok: 0.30},
	"gemini-1.5-pro":        {InputPerMtok: 1.25, OutputPerMtok: 5.00},

	// Anthropic (stubbed provider; priced for estimates only)
	"claude-3-5-haiku": {InputPerMtok: 0.80, OutputPerMtok: 4.00},
}

// Lookup returns the pricing for a model and whether it is known.
func Lookup(model string) (ModelPricing, bool) {
	p, ok := table[model]
	return p, ok
}

// Cost computes the dollar cost for the given token counts. Unknown models
// price at zero rather than blocking the call.
func Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := table[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)*p.InputPerMtok/1_000_000 +
		float64(outputTokens)*p.OutputPerMtok/1_000_000
}

// Models returns the IDs of all priced models.
func Models() []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	return ids
}
