package graph

import "strings"

var dividendSignals = []string{
	"dividend yield",
	"annual dividend",
	"dividend per share",
	"ex-dividend",
	"dividend payout",
	"pays a dividend",
	"quarterly dividend",
	"dividend growth",
}

var dividendNegations = []string{
	"does not pay a dividend",
	"no dividend",
	"does not pay dividends",
	"non-dividend",
	"does not currently pay",
}

// DetectDividend reports whether research text signals a dividend payer.
// Any negation phrase overrides the signals.
func DetectDividend(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, dividendSignals) && !containsAny(lower, dividendNegations)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
