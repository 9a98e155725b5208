package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/finsurf/finsurf/internal/telemetry"
)

var usageHours float64

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Query stored token usage",
}

var usageAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Print per-agent call counts, token averages and cost",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st telemetry.Store) error {
			return printAgentStats(ctx, cmd.OutOrStdout(), st)
		})
	},
}

var usageTotalCmd = &cobra.Command{
	Use:   "total",
	Short: "Print total tokens and cost for a trailing window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if usageHours <= 0 {
			return eris.Errorf("--hours must be positive, got %v", usageHours)
		}
		return withStore(cmd, func(ctx context.Context, st telemetry.Store) error {
			return printTotal(ctx, cmd.OutOrStdout(), st, usageHours)
		})
	},
}

func init() {
	usageTotalCmd.Flags().Float64Var(&usageHours, "hours", 24, "trailing window in hours")
	usageCmd.AddCommand(usageAgentsCmd, usageTotalCmd)
	rootCmd.AddCommand(usageCmd)
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, st telemetry.Store) error) error {
	if err := cfg.Validate("usage"); err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	return fn(ctx, st)
}

func printAgentStats(ctx context.Context, w io.Writer, st telemetry.Store) error {
	stats, err := st.AgentStats(ctx, time.Time{})
	if err != nil {
		return err
	}
	return eris.Wrap(json.NewEncoder(w).Encode(stats), "encode agent stats")
}

func printTotal(ctx context.Context, w io.Writer, st telemetry.Store, hours float64) error {
	total, err := st.TotalSince(ctx, time.Duration(hours*float64(time.Hour)))
	if err != nil {
		return err
	}
	return eris.Wrap(json.NewEncoder(w).Encode(total), "encode total")
}
