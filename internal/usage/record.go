// Package usage accounts for the tokens, latency, and estimated cost of every
// provider call made during a run.
package usage

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Record is one accounting entry for a single completed provider call.
type Record struct {
	Provider     string
	Agent        string
	Model        string
	InputTokens  int
	OutputTokens int
	LatencyMs    float64
	// Timestamp is unix seconds, set by NewRecord.
	Timestamp float64
}

// NewRecord builds a Record stamped with the current time. Negative token
// counts and latencies are clamped to zero.
func NewRecord(provider, agent, model string, inputTokens, outputTokens int, latency time.Duration) Record {
	return Record{
		Provider:     provider,
		Agent:        agent,
		Model:        model,
		InputTokens:  max(inputTokens, 0),
		OutputTokens: max(outputTokens, 0),
		LatencyMs:    math.Max(float64(latency.Microseconds())/1000, 0),
		Timestamp:    float64(time.Now().UnixNano()) / 1e9,
	}
}

// TotalTokens is input plus output tokens.
func (r Record) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// EstimatedCostUSD prices the record against the default rate table.
func (r Record) EstimatedCostUSD() float64 {
	return defaultRates.Cost(r.Model, r.InputTokens, r.OutputTokens)
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time {
	sec, frac := math.Modf(r.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// CallDetail is the per-call JSON shape reported in a Summary.
type CallDetail struct {
	Provider         string  `json:"provider"`
	Agent            string  `json:"agent"`
	Model            string  `json:"model"`
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	LatencyMs        float64 `json:"latency_ms"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Detail renders the record for reporting, rounding latency to one decimal
// and cost to seven.
func (r Record) Detail() CallDetail {
	return CallDetail{
		Provider:         r.Provider,
		Agent:            r.Agent,
		Model:            r.Model,
		InputTokens:      r.InputTokens,
		OutputTokens:     r.OutputTokens,
		TotalTokens:      r.TotalTokens(),
		LatencyMs:        Round(r.LatencyMs, 1),
		EstimatedCostUSD: Round(r.EstimatedCostUSD(), 7),
	}
}

// LogFields returns structured zap fields describing the record.
func (r Record) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("provider", r.Provider),
		zap.String("agent", r.Agent),
		zap.String("model", r.Model),
		zap.Int("input_tokens", r.InputTokens),
		zap.Int("output_tokens", r.OutputTokens),
		zap.Float64("latency_ms", Round(r.LatencyMs, 1)),
		zap.Float64("estimated_cost_usd", r.EstimatedCostUSD()),
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
