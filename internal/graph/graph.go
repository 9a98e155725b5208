// Package graph runs one ticker through the guardrail, research, tax,
// sentiment and dividend nodes. Nodes read a State and return a Patch;
// the runner merges patches with a fixed reducer table.
//
//	guardrail -> research -> tax -> (dividend | dividend_skip)
//	                      -> sentiment
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finsurf/finsurf/internal/agent"
)

// Node names.
const (
	NodeGuardrail    = "guardrail"
	NodeResearch     = "research"
	NodeTax          = "tax"
	NodeSentiment    = "sentiment"
	NodeDividend     = "dividend"
	NodeDividendSkip = "dividend_skip"
)

// Agents is the agent surface the graph drives.
type Agents interface {
	Research(ctx context.Context, ticker string, skipGuardrail bool) (string, error)
	Tax(ctx context.Context, ticker, purchase, sell string, skipGuardrail bool) (string, error)
	Sentiment(ctx context.Context, ticker string, skipGuardrail bool) (string, error)
	Dividend(ctx context.Context, ticker string, shares float64, years int, skipGuardrail bool) agent.Dividend
}

// Graph wires the nodes to their agents.
type Graph struct {
	agents Agents
	guard  agent.Guard
}

// New creates a Graph.
func New(agents Agents, guard agent.Guard) *Graph {
	return &Graph{agents: agents, guard: guard}
}

type nodeFunc func(ctx context.Context, s State) (Patch, error)

// failFunc builds the placeholder patch written when a node fails.
type failFunc func(s State, msg string) Patch

// Invoke runs the graph to completion. It always returns a state with every
// output populated; node failures are recorded in Errors.
func (g *Graph) Invoke(ctx context.Context, in Input) *State {
	s := NewState(in)
	log := zap.L().With(zap.String("ticker", s.Ticker))

	g.apply(log, s, NodeGuardrail, g.run(ctx, NodeGuardrail, s.snapshot(), g.guardrail, failGuardrail))
	g.apply(log, s, NodeResearch, g.run(ctx, NodeResearch, s.snapshot(), g.research, failResearch))

	// tax and sentiment read the same post-research snapshot.
	branch := s.snapshot()
	var taxPatch, divPatch, sentPatch Patch
	var divNode string

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		taxPatch = g.run(egCtx, NodeTax, branch, g.tax, failTax)
		divNode = route(branch)
		if divNode == NodeDividend {
			divPatch = g.run(egCtx, NodeDividend, branch, g.dividend, failDividend)
		} else {
			divPatch = g.run(egCtx, NodeDividendSkip, branch, dividendSkip, failDividend)
		}
		return nil
	})
	eg.Go(func() error {
		sentPatch = g.run(egCtx, NodeSentiment, branch, g.sentiment, failSentiment)
		return nil
	})
	_ = eg.Wait()

	g.apply(log, s, NodeTax, taxPatch)
	g.apply(log, s, divNode, divPatch)
	g.apply(log, s, NodeSentiment, sentPatch)

	return s
}

func (g *Graph) apply(log *zap.Logger, s *State, node string, p Patch) {
	if conflicts := s.merge(node, p); len(conflicts) > 0 {
		log.Warn("graph: field written by more than one node",
			zap.String("node", node),
			zap.Strings("fields", conflicts),
		)
	}
}

// route picks the dividend branch from the research flag.
func route(s State) string {
	if s.IsDividendStock {
		return NodeDividend
	}
	return NodeDividendSkip
}

// run executes fn inside a failure boundary. An error or panic becomes the
// node's placeholder patch plus one "<node> error: <msg>" entry.
func (g *Graph) run(ctx context.Context, name string, s State, fn nodeFunc, fail failFunc) (patch Patch) {
	start := time.Now()
	log := zap.L().With(zap.String("node", name), zap.String("ticker", s.Ticker))

	defer func() {
		if r := recover(); r != nil {
			err := eris.Errorf("panic: %v", r)
			log.Error("graph: node panicked", zap.Any("panic", r))
			patch = failed(name, s, err, fail)
		}
	}()

	p, err := fn(ctx, s)
	if err != nil {
		log.Warn("graph: node failed",
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return failed(name, s, err, fail)
	}
	log.Info("graph: node complete", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return p
}

func failed(name string, s State, err error, fail failFunc) Patch {
	msg := err.Error()
	p := fail(s, msg)
	p.Errors = append(p.Errors, fmt.Sprintf("%s error: %s", name, msg))
	return p
}
