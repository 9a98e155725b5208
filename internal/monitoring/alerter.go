package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsurf/finsurf/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCostOverrun  AlertType = "cost_overrun"
	AlertTokenOverrun AlertType = "token_overrun"
	AlertAgentCost    AlertType = "agent_cost_overrun"
)

// Alert is a single threshold breach.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter compares snapshots with the configured thresholds and posts
// breaches to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	timeout := time.Duration(cfg.WebhookTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Alerter{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Evaluate returns the alerts snap triggers. A zero threshold is off.
func (a *Alerter) Evaluate(snap *SpendSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.CostThresholdUSD > 0 && snap.TotalCostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf("LLM spend $%.4f exceeds threshold $%.2f in last %dh",
				snap.TotalCostUSD, a.cfg.CostThresholdUSD, snap.LookbackHours),
			Details: map[string]any{
				"cost_usd":      snap.TotalCostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
			},
			Timestamp: now,
		})
	}

	if a.cfg.TokenThreshold > 0 && snap.TotalTokens > a.cfg.TokenThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertTokenOverrun,
			Severity: "medium",
			Message: fmt.Sprintf("%d tokens used in last %dh, threshold %d",
				snap.TotalTokens, snap.LookbackHours, a.cfg.TokenThreshold),
			Details: map[string]any{
				"total_tokens": snap.TotalTokens,
				"threshold":    a.cfg.TokenThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.AgentCostThreshold > 0 {
		for _, ag := range snap.Agents {
			if ag.TotalCost <= a.cfg.AgentCostThreshold {
				continue
			}
			alerts = append(alerts, Alert{
				Type:     AlertAgentCost,
				Severity: "medium",
				Message: fmt.Sprintf("agent %s spent $%.4f over %d calls in last %dh",
					ag.Agent, ag.TotalCost, ag.Calls, snap.LookbackHours),
				Details: map[string]any{
					"agent":         ag.Agent,
					"cost_usd":      ag.TotalCost,
					"calls":         ag.Calls,
					"threshold_usd": a.cfg.AgentCostThreshold,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts posts each alert to the webhook and returns how many were
// delivered. Without a webhook alerts are only logged.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("monitoring: alert", zap.String("type", string(alert.Type)), zap.String("message", alert.Message))
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
