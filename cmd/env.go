package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsurf/finsurf/internal/agent"
	"github.com/finsurf/finsurf/internal/config"
	"github.com/finsurf/finsurf/internal/gateway"
	"github.com/finsurf/finsurf/internal/graph"
	"github.com/finsurf/finsurf/internal/guardrail"
	"github.com/finsurf/finsurf/internal/pipeline"
	"github.com/finsurf/finsurf/internal/telemetry"
)

// appEnv holds everything the agent, graph and serve commands need.
type appEnv struct {
	Guard    *guardrail.Guardrail
	Agents   *agent.Set
	Store    telemetry.Store
	Pipeline *pipeline.Pipeline
}

// Close releases the telemetry store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the gateway, guardrail, agents and telemetry store for
// mode ("run" or "serve"). Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	gw, err := gateway.NewFromConfig(ctx, cfg, os.LookupEnv)
	if err != nil {
		return nil, eris.Wrap(err, "init gateway")
	}
	zap.L().Debug("gateway ready", zap.Any("providers", gw.Policy().Enabled()))

	guard := guardrail.New(gw,
		guardrail.WithModel(cfg.Guardrail.Model),
		guardrail.WithMaxTokens(cfg.Guardrail.MaxTokens),
	)
	agents := agent.New(gw, guard, agent.WithModels(modelsFromConfig(cfg)))

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	return &appEnv{
		Guard:    guard,
		Agents:   agents,
		Store:    st,
		Pipeline: pipeline.New(graph.New(agents, guard), st),
	}, nil
}

// initStore opens and migrates the telemetry store.
func initStore(ctx context.Context) (telemetry.Store, error) {
	st, err := telemetry.Open(ctx, cfg.Telemetry)
	if err != nil {
		return nil, eris.Wrap(err, "open telemetry store")
	}
	return st, nil
}

func modelsFromConfig(c *config.Config) agent.Models {
	return agent.Models{
		Gemini:     c.Gemini.Model,
		OpenAI:     c.OpenAI.Model,
		Anthropic:  c.Anthropic.Model,
		Perplexity: c.Perplexity.Model,
	}
}
