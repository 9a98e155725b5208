package usage

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps a model identifier to its pricing.
type Rates map[string]ModelRate

// Cost computes the USD cost of a call. Unknown models cost nothing.
func (r Rates) Cost(model string, input, output int) float64 {
	rate, ok := r[model]
	if !ok {
		return 0
	}
	return (float64(input)*rate.Input + float64(output)*rate.Output) / 1e6
}

var defaultRates = Rates{
	"gemini-flash-latest":     {Input: 0.075, Output: 0.30},
	"gemini-1.5-flash":        {Input: 0.075, Output: 0.30},
	"gpt-4o-mini":             {Input: 0.15, Output: 0.60},
	"claude-3-haiku-20240307": {Input: 0.25, Output: 1.25},
	"sonar":                   {Input: 1.0, Output: 1.0},
}

// DefaultRates returns a copy of the built-in pricing table.
func DefaultRates() Rates {
	out := make(Rates, len(defaultRates))
	for k, v := range defaultRates {
		out[k] = v
	}
	return out
}
