package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/finsurf/finsurf/internal/graph"
	"github.com/finsurf/finsurf/internal/pipeline"
)

var graphCmd = &cobra.Command{
	Use:   "graph <ticker> [purchaseDate] [sellDate] [shares] [years]",
	Short: "Run every agent for a ticker and print the run state as JSON",
	Args:  cobra.RangeArgs(1, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := parseGraphArgs(args)
		if err != nil {
			return err
		}
		in.SkipGuardrail = cfg.Guardrail.Skip

		return withEnv(cmd, func(ctx context.Context, env *appEnv) error {
			return runGraph(ctx, cmd.OutOrStdout(), env.Pipeline, in)
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

type graphRunner interface {
	Run(ctx context.Context, in graph.Input) (*pipeline.Result, error)
}

func runGraph(ctx context.Context, w io.Writer, p graphRunner, in graph.Input) error {
	res, err := p.Run(ctx, in)
	if err != nil {
		return eris.Wrap(err, "graph run")
	}
	return eris.Wrap(json.NewEncoder(w).Encode(res.State), "encode run state")
}
