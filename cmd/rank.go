package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/pipeline"
)

// newRankCmd creates the 'rank' subcommand, which aggregates courses into
// regions and publishes the scored city ranking.
func newRankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Score and rank regions by golf quality",
		Long: `Aggregates deduplicated courses into city/state regions, joins the
year-round golfability reference, computes the composite score, and writes
the ranked table as Parquet and CSV.`,

		RunE: runRankCommand,
	}
}

func runRankCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	r := pipeline.NewRanker(app.Cfg.Consolidate, app.Cfg.Rank, app.Logger)
	sum, err := r.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	app.Logger.Info("rank finished",
		zap.Int("regions", sum.Regions),
		zap.Strings("outputs", sum.Outputs),
	)
	return nil
}
