// Package pipeline drives one graph run end to end: it scopes a usage
// ledger to the run, summarizes token spend, and persists the events.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsurf/finsurf/internal/graph"
	"github.com/finsurf/finsurf/internal/telemetry"
	"github.com/finsurf/finsurf/internal/usage"
)

// Invoker runs the orchestration graph.
type Invoker interface {
	Invoke(ctx context.Context, in graph.Input) *graph.State
}

// Pipeline runs graph invocations and records their usage.
type Pipeline struct {
	graph Invoker
	store telemetry.Store
	newID func() string
}

// New creates a Pipeline. A nil store disables persistence.
func New(g Invoker, st telemetry.Store) *Pipeline {
	if st == nil {
		st = telemetry.Noop{}
	}
	return &Pipeline{graph: g, store: st, newID: func() string { return uuid.New().String() }}
}

// Result is a finished run.
type Result struct {
	RunID string
	State *graph.State
}

// Run executes the graph for in. Persistence failures are logged, never
// returned; the only error is an empty ticker.
func (p *Pipeline) Run(ctx context.Context, in graph.Input) (*Result, error) {
	if in.Ticker == "" {
		return nil, eris.New("pipeline: ticker is required")
	}

	runID := p.newID()
	log := zap.L().With(zap.String("run_id", runID), zap.String("ticker", in.Ticker))
	log.Info("pipeline: starting run")
	start := time.Now()

	ledger := usage.NewLedger()
	defer ledger.Clear()
	runCtx := usage.WithLedger(ctx, ledger)

	state := p.graph.Invoke(runCtx, in)
	for _, e := range state.Errors {
		log.Warn("pipeline: graph error", zap.String("error", e))
	}

	records := ledger.Records()
	summary := usage.Summarize(records)
	state.TokenSummary = &summary

	if err := p.store.WriteRun(ctx, runID, in.Ticker, records); err != nil {
		log.Warn("pipeline: could not persist telemetry", zap.Error(err))
	}

	log.Info("pipeline: run complete",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int("calls", len(records)),
		zap.Int("total_tokens", summary.TotalTokens),
		zap.Float64("total_cost_usd", summary.TotalCostUSD),
		zap.Any("by_agent", summary.ByAgent),
	)

	return &Result{RunID: runID, State: state}, nil
}
