package usage

// AgentTotals aggregates usage for one agent.
type AgentTotals struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Calls        int     `json:"calls"`
}

// Summary is the per-run token breakdown reported with a graph result.
type Summary struct {
	TotalInputTokens  int                    `json:"total_input_tokens"`
	TotalOutputTokens int                    `json:"total_output_tokens"`
	TotalTokens       int                    `json:"total_tokens"`
	TotalCostUSD      float64                `json:"total_cost_usd"`
	ByAgent           map[string]AgentTotals `json:"by_agent"`
	Calls             []CallDetail           `json:"calls"`
}

// Summarize aggregates records into a Summary. The total cost is the sum of
// each record's EstimatedCostUSD.
func Summarize(records []Record) Summary {
	s := Summary{
		ByAgent: make(map[string]AgentTotals),
		Calls:   make([]CallDetail, 0, len(records)),
	}

	var totalCost float64
	for _, r := range records {
		cost := r.EstimatedCostUSD()
		s.TotalInputTokens += r.InputTokens
		s.TotalOutputTokens += r.OutputTokens
		totalCost += cost

		a := s.ByAgent[r.Agent]
		a.InputTokens += r.InputTokens
		a.OutputTokens += r.OutputTokens
		a.CostUSD = Round(a.CostUSD+cost, 7)
		a.Calls++
		s.ByAgent[r.Agent] = a

		s.Calls = append(s.Calls, r.Detail())
	}

	s.TotalTokens = s.TotalInputTokens + s.TotalOutputTokens
	s.TotalCostUSD = Round(totalCost, 7)
	return s
}
