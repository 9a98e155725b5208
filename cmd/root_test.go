package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsurf/finsurf/internal/agent"
	"github.com/finsurf/finsurf/internal/config"
	"github.com/finsurf/finsurf/internal/graph"
	"github.com/finsurf/finsurf/internal/pipeline"
	"github.com/finsurf/finsurf/internal/telemetry"
	"github.com/finsurf/finsurf/internal/usage"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"research", "tax", "dividend", "sentiment", "guardrail", "graph", "usage", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "finsurf", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name string
		args cobra.PositionalArgs
		ok   [][]string
		bad  [][]string
	}{
		{"research", researchCmd.Args, [][]string{{"AAPL"}}, [][]string{{}, {"AAPL", "MSFT"}}},
		{"tax", taxCmd.Args, [][]string{{"AAPL", "2022-01-01", "2023-01-01"}}, [][]string{{"AAPL"}, {"AAPL", "2022-01-01"}}},
		{"dividend", dividendCmd.Args, [][]string{{"KO", "10", "3"}}, [][]string{{"KO", "10"}}},
		{"guardrail", guardrailCmd.Args, [][]string{{"AAPL"}}, [][]string{{}}},
		{"graph", graphCmd.Args, [][]string{{"AAPL"}, {"AAPL", "a", "b", "1", "3"}}, [][]string{{}, {"1", "2", "3", "4", "5", "6"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, args := range tt.ok {
				assert.NoError(t, tt.args(nil, args), "%v", args)
			}
			for _, args := range tt.bad {
				assert.Error(t, tt.args(nil, args), "%v", args)
			}
		})
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestUsageTotal_Flags(t *testing.T) {
	flag := usageTotalCmd.Flags().Lookup("hours")
	require.NotNil(t, flag)
	assert.Equal(t, "24", flag.DefValue)
}

func TestParseGraphArgs(t *testing.T) {
	in, err := parseGraphArgs([]string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, graph.Input{Ticker: "AAPL", Shares: 1.0, Years: 3}, in)

	in, err = parseGraphArgs([]string{"KO", "2022-01-01", "2024-01-01", "25.5", "10"})
	require.NoError(t, err)
	assert.Equal(t, graph.Input{Ticker: "KO", PurchaseDate: "2022-01-01", SellDate: "2024-01-01", Shares: 25.5, Years: 10}, in)

	_, err = parseGraphArgs([]string{"KO", "", "", "many"})
	assert.Error(t, err)
	_, err = parseGraphArgs([]string{"KO", "", "", "1", "3.5"})
	assert.Error(t, err)
}

func TestParseHolding(t *testing.T) {
	shares, years, err := parseHolding("100", "5")
	require.NoError(t, err)
	assert.Equal(t, 100.0, shares)
	assert.Equal(t, 5, years)

	_, _, err = parseHolding("x", "5")
	assert.Error(t, err)
	_, _, err = parseHolding("1", "five")
	assert.Error(t, err)
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printVerdict(&buf, true))
	require.NoError(t, printVerdict(&buf, false))
	assert.Equal(t, "SAFE\nBLOCKED\n", buf.String())

	buf.Reset()
	require.NoError(t, printEnvelope(&buf, "research", `{"content":"Research failed: x","citations":[]}`, errors.New("x")))
	assert.JSONEq(t, `{"content":"Research failed: x","citations":[]}`, buf.String())

	buf.Reset()
	require.NoError(t, printDividend(&buf, agent.Dividend{IsDividendStock: true, Analysis: "ok"}))
	assert.JSONEq(t, `{"isDividendStock":true,"hasDividendHistory":false,"analysis":"ok"}`, buf.String())
}

type stubPipeline struct {
	err error
}

func (p stubPipeline) Run(_ context.Context, in graph.Input) (*pipeline.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	s := graph.NewState(in)
	s.IsSafe = true
	return &pipeline.Result{RunID: "r", State: s}, nil
}

func TestRunGraph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runGraph(context.Background(), &buf, stubPipeline{}, graph.Input{Ticker: "AAPL", Shares: 1, Years: 3}))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "AAPL", out["ticker"])
	assert.Equal(t, true, out["isSafe"])
	assert.Contains(t, out, "errors")

	err := runGraph(context.Background(), &buf, stubPipeline{err: errors.New("boom")}, graph.Input{Ticker: "AAPL"})
	assert.Error(t, err)
}

func TestUsagePrinters(t *testing.T) {
	ctx := context.Background()
	st, err := telemetry.Open(ctx, config.TelemetryConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "u.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.WriteRun(ctx, "run-1", "AAPL", []usage.Record{
		usage.NewRecord("perplexity", "research", "sonar", 100, 50, time.Millisecond),
	}))

	var buf bytes.Buffer
	require.NoError(t, printAgentStats(ctx, &buf, st))
	var stats []telemetry.AgentStat
	require.NoError(t, json.Unmarshal(buf.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "research", stats[0].Agent)

	buf.Reset()
	require.NoError(t, printTotal(ctx, &buf, st, 24))
	var total telemetry.Total
	require.NoError(t, json.Unmarshal(buf.Bytes(), &total))
	assert.Equal(t, int64(150), total.TotalTokens)
	assert.Equal(t, 24.0, total.WindowHours)
}

func TestModelsFromConfig(t *testing.T) {
	c := &config.Config{}
	c.Gemini.Model = "gemini-2.5-flash"
	c.Perplexity.Model = "sonar-pro"

	m := modelsFromConfig(c)
	assert.Equal(t, "gemini-2.5-flash", m.Gemini)
	assert.Equal(t, "sonar-pro", m.Perplexity)
	assert.Empty(t, m.OpenAI)
}
