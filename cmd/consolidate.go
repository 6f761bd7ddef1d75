package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/pipeline"
)

// newConsolidateCmd creates the 'consolidate' subcommand, which merges
// raw captures into the canonical deduplicated course table.
func newConsolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Merge raw captures into the canonical course table",
		Long: `Reads every capture file under the raw data directory, flattens the
course observations, keeps the freshest row per course identity, and
publishes the result as Parquet (plus optional NDJSON and Postgres copies).`,

		RunE: runConsolidateCommand,
	}
}

func runConsolidateCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	c := pipeline.NewConsolidator(app.Cfg.Consolidate, app.Cfg.Postgres, app.Logger)
	sum, err := c.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	app.Logger.Info("consolidate finished",
		zap.Int("files", sum.Files),
		zap.Int("read", sum.Read),
		zap.Int("kept", sum.Kept),
	)
	return nil
}
