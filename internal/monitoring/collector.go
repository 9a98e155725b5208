// Package monitoring watches stored token spend and raises alerts when a
// trailing window crosses its cost or token thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/finsurf/finsurf/internal/telemetry"
)

// SpendSnapshot is token spend inside the lookback window.
type SpendSnapshot struct {
	TotalTokens  int64                 `json:"total_tokens"`
	TotalCostUSD float64               `json:"total_cost_usd"`
	Agents       []telemetry.AgentStat `json:"agents"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StatsReader is the part of telemetry.Store the collector reads.
type StatsReader interface {
	AgentStats(ctx context.Context, since time.Time) ([]telemetry.AgentStat, error)
	TotalSince(ctx context.Context, window time.Duration) (*telemetry.Total, error)
}

// Collector gathers spend from the telemetry store.
type Collector struct {
	store StatsReader
	now   func() time.Time
}

// NewCollector creates a collector over st.
func NewCollector(st StatsReader) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect returns the spend over the last lookbackHours.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*SpendSnapshot, error) {
	window := time.Duration(lookbackHours) * time.Hour
	now := c.now().UTC()

	total, err := c.store.TotalSince(ctx, window)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: total since")
	}
	agents, err := c.store.AgentStats(ctx, now.Add(-window))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: agent stats")
	}

	return &SpendSnapshot{
		TotalTokens:   total.TotalTokens,
		TotalCostUSD:  total.TotalCostUSD,
		Agents:        agents,
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}, nil
}
