package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/finsurf/finsurf/internal/config"
)

// Checker runs spend checks on an interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a Checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

// Run checks once per interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalMins) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting spend checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("spend checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot, evaluates it, and sends any alerts. It
// returns the alerts that fired.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackHours)
	if err != nil {
		log.Error("monitoring: failed to collect spend", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered",
			zap.Float64("cost_usd", snap.TotalCostUSD),
			zap.Int64("tokens", snap.TotalTokens),
		)
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: spend check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
