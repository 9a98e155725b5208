// Package telemetry persists per-call usage records and answers the spend
// queries behind the usage commands and monitoring.
package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/finsurf/finsurf/internal/config"
	"github.com/finsurf/finsurf/internal/usage"
)

// AgentStat aggregates stored events for one agent.
type AgentStat struct {
	Agent        string  `json:"agent"`
	Calls        int64   `json:"calls"`
	AvgInput     float64 `json:"avg_input"`
	AvgOutput    float64 `json:"avg_output"`
	TotalCost    float64 `json:"total_cost"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Total is the spend inside a trailing window.
type Total struct {
	WindowHours  float64 `json:"window_hours"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Store persists token events.
type Store interface {
	Migrate(ctx context.Context) error
	// WriteRun stores every record of a run in one batch.
	WriteRun(ctx context.Context, runID, ticker string, records []usage.Record) error
	// AgentStats groups events at or after since by agent, most expensive
	// first. A zero since covers all events.
	AgentStats(ctx context.Context, since time.Time) ([]AgentStat, error)
	TotalSince(ctx context.Context, window time.Duration) (*Total, error)
	Close() error
}

const table = "token_events"

var eventColumns = []string{
	"run_id", "ticker", "agent", "provider", "model",
	"input_tok", "output_tok", "latency_ms", "cost_usd", "ts",
}

// eventRow renders a record in eventColumns order.
func eventRow(runID, ticker string, r usage.Record) []any {
	return []any{
		runID, ticker, r.Agent, r.Provider, r.Model,
		int64(r.InputTokens), int64(r.OutputTokens),
		usage.Round(r.LatencyMs, 1),
		usage.Round(r.EstimatedCostUSD(), 7),
		r.Timestamp,
	}
}

func sinceUnix(since time.Time) float64 {
	if since.IsZero() {
		return 0
	}
	return float64(since.UnixNano()) / 1e9
}

func newTotal(window time.Duration, tokens int64, cost float64) *Total {
	return &Total{
		WindowHours:  window.Hours(),
		TotalTokens:  tokens,
		TotalCostUSD: usage.Round(cost, 6),
	}
}

// Open returns the store selected by cfg, migrated and ready for writes.
func Open(ctx context.Context, cfg config.TelemetryConfig) (Store, error) {
	if cfg.Disabled {
		return Noop{}, nil
	}

	var (
		st  Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		st, err = NewSQLite(cfg.Path)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("telemetry: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Noop is the store used when telemetry is disabled.
type Noop struct{}

func (Noop) Migrate(context.Context) error { return nil }

func (Noop) WriteRun(context.Context, string, string, []usage.Record) error { return nil }

func (Noop) AgentStats(context.Context, time.Time) ([]AgentStat, error) {
	return []AgentStat{}, nil
}

func (Noop) TotalSince(_ context.Context, window time.Duration) (*Total, error) {
	return newTotal(window, 0, 0), nil
}

func (Noop) Close() error { return nil }
