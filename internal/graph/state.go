package graph

import (
	"github.com/finsurf/finsurf/internal/agent"
	"github.com/finsurf/finsurf/internal/usage"
)

// Input holds the values a run starts from.
type Input struct {
	Ticker        string  `json:"ticker"`
	PurchaseDate  string  `json:"purchaseDate"`
	SellDate      string  `json:"sellDate"`
	Shares        float64 `json:"shares"`
	Years         int     `json:"years"`
	SkipGuardrail bool    `json:"skipGuardrail"`
}

// Input defaults.
const (
	DefaultShares = 1.0
	DefaultYears  = 3
)

// WithDefaults fills zero share and year counts.
func (in Input) WithDefaults() Input {
	if in.Shares <= 0 {
		in.Shares = DefaultShares
	}
	if in.Years <= 0 {
		in.Years = DefaultYears
	}
	return in
}

// State is the shared record a run reads and patches.
type State struct {
	Ticker        string  `json:"ticker"`
	PurchaseDate  string  `json:"purchaseDate"`
	SellDate      string  `json:"sellDate"`
	Shares        float64 `json:"shares"`
	Years         int     `json:"years"`
	SkipGuardrail bool    `json:"-"`

	IsSafe          bool `json:"isSafe"`
	IsDividendStock bool `json:"isDividendStock"`

	ResearchOutput  *string         `json:"researchOutput"`
	TaxOutput       *string         `json:"taxOutput"`
	SentimentOutput *string         `json:"sentimentOutput"`
	DividendOutput  *agent.Dividend `json:"dividendOutput"`

	Errors []string `json:"errors"`

	// TokenSummary is filled by the run driver after the graph finishes.
	TokenSummary *usage.Summary `json:"tokenSummary"`

	writers map[string]string
}

// NewState returns the initial state for in.
func NewState(in Input) *State {
	in = in.WithDefaults()
	return &State{
		Ticker:        in.Ticker,
		PurchaseDate:  in.PurchaseDate,
		SellDate:      in.SellDate,
		Shares:        in.Shares,
		Years:         in.Years,
		SkipGuardrail: in.SkipGuardrail,
		Errors:        []string{},
		writers:       make(map[string]string),
	}
}

// Patch is a node's partial update. Nil fields are left alone.
type Patch struct {
	IsSafe          *bool
	IsDividendStock *bool
	ResearchOutput  *string
	TaxOutput       *string
	SentimentOutput *string
	DividendOutput  *agent.Dividend
	Errors          []string
}

type mergeKind int

const (
	lastWriteWins mergeKind = iota
	concat
)

type reducer struct {
	field string
	kind  mergeKind
	apply func(s *State, p *Patch) bool
}

// reducers is the merge rule for every Patch field. apply reports whether
// the patch touched the field.
var reducers = []reducer{
	{"isSafe", lastWriteWins, func(s *State, p *Patch) bool {
		if p.IsSafe == nil {
			return false
		}
		s.IsSafe = *p.IsSafe
		return true
	}},
	{"isDividendStock", lastWriteWins, func(s *State, p *Patch) bool {
		if p.IsDividendStock == nil {
			return false
		}
		s.IsDividendStock = *p.IsDividendStock
		return true
	}},
	{"researchOutput", lastWriteWins, func(s *State, p *Patch) bool {
		if p.ResearchOutput == nil {
			return false
		}
		s.ResearchOutput = p.ResearchOutput
		return true
	}},
	{"taxOutput", lastWriteWins, func(s *State, p *Patch) bool {
		if p.TaxOutput == nil {
			return false
		}
		s.TaxOutput = p.TaxOutput
		return true
	}},
	{"sentimentOutput", lastWriteWins, func(s *State, p *Patch) bool {
		if p.SentimentOutput == nil {
			return false
		}
		s.SentimentOutput = p.SentimentOutput
		return true
	}},
	{"dividendOutput", lastWriteWins, func(s *State, p *Patch) bool {
		if p.DividendOutput == nil {
			return false
		}
		s.DividendOutput = p.DividendOutput
		return true
	}},
	{"errors", concat, func(s *State, p *Patch) bool {
		if len(p.Errors) == 0 {
			return false
		}
		s.Errors = append(s.Errors, p.Errors...)
		return true
	}},
}

// merge applies p on behalf of node and returns the last-write fields that
// a different node had already written.
func (s *State) merge(node string, p Patch) []string {
	if s.writers == nil {
		s.writers = make(map[string]string)
	}
	var conflicts []string
	for _, r := range reducers {
		if !r.apply(s, &p) || r.kind == concat {
			continue
		}
		if prev, ok := s.writers[r.field]; ok && prev != node {
			conflicts = append(conflicts, r.field)
		}
		s.writers[r.field] = node
	}
	return conflicts
}

// snapshot copies the state for a branch to read.
func (s *State) snapshot() State {
	c := *s
	c.Errors = append([]string(nil), s.Errors...)
	c.writers = nil
	return c
}

func ptr[T any](v T) *T { return &v }
