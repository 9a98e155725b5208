package graph

import (
	"context"
	"fmt"

	"github.com/finsurf/finsurf/internal/agent"
)

func (g *Graph) guardrail(ctx context.Context, s State) (Patch, error) {
	if s.SkipGuardrail {
		return Patch{IsSafe: ptr(true)}, nil
	}
	return Patch{IsSafe: ptr(g.guard.IsSafe(ctx, s.Ticker))}, nil
}

func (g *Graph) research(ctx context.Context, s State) (Patch, error) {
	if !s.IsSafe {
		return Patch{ResearchOutput: ptr(agent.BlockedEnvelope()), IsDividendStock: ptr(false)}, nil
	}
	raw, err := g.agents.Research(ctx, s.Ticker, true)
	if err != nil {
		return Patch{}, err
	}
	return Patch{ResearchOutput: ptr(raw), IsDividendStock: ptr(DetectDividend(raw))}, nil
}

// blocked reports whether downstream nodes must not call their agent.
func blocked(s State) bool {
	return !s.IsSafe && !s.SkipGuardrail
}

func (g *Graph) tax(ctx context.Context, s State) (Patch, error) {
	if blocked(s) {
		return Patch{TaxOutput: ptr(agent.BlockedEnvelope())}, nil
	}
	out, err := g.agents.Tax(ctx, s.Ticker, s.PurchaseDate, s.SellDate, true)
	if err != nil {
		return Patch{}, err
	}
	return Patch{TaxOutput: ptr(out)}, nil
}

func (g *Graph) sentiment(ctx context.Context, s State) (Patch, error) {
	if blocked(s) {
		return Patch{SentimentOutput: ptr(agent.BlockedEnvelope())}, nil
	}
	out, err := g.agents.Sentiment(ctx, s.Ticker, true)
	if err != nil {
		return Patch{}, err
	}
	return Patch{SentimentOutput: ptr(out)}, nil
}

func (g *Graph) dividend(ctx context.Context, s State) (Patch, error) {
	if blocked(s) {
		return Patch{DividendOutput: ptr(agent.BlockedDividend())}, nil
	}
	d := g.agents.Dividend(ctx, s.Ticker, s.Shares, s.Years, true)
	return Patch{DividendOutput: &d}, nil
}

func dividendSkip(_ context.Context, s State) (Patch, error) {
	if blocked(s) {
		return Patch{DividendOutput: ptr(agent.BlockedDividend())}, nil
	}
	return Patch{DividendOutput: &agent.Dividend{
		Analysis: fmt.Sprintf("### No Dividend Data\n\n**%s** does not appear to pay dividends.", s.Ticker),
	}}, nil
}

func failGuardrail(State, string) Patch {
	return Patch{IsSafe: ptr(false)}
}

func failResearch(_ State, msg string) Patch {
	return Patch{
		ResearchOutput:  ptr(agent.NewEnvelope("Research failed: "+msg, nil).String()),
		IsDividendStock: ptr(false),
	}
}

func failTax(_ State, msg string) Patch {
	return Patch{TaxOutput: ptr(agent.NewEnvelope("### Tax Analysis Unavailable\n\nReason: "+msg, nil).String())}
}

func failSentiment(_ State, msg string) Patch {
	return Patch{SentimentOutput: ptr(agent.NewEnvelope("Sentiment failed: "+msg, nil).String())}
}

func failDividend(_ State, msg string) Patch {
	return Patch{DividendOutput: &agent.Dividend{
		Analysis: "### Dividend Analysis Unavailable\n\nReason: " + msg,
	}}
}
