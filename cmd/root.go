package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/config"
	"github.com/teeradar/golfmetrics/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App carries the services every subcommand needs: the loaded
// configuration and a logger.
type App struct {
	Cfg    config.Config
	Logger *zap.Logger
}

// Close flushes buffered log entries.
func (a *App) Close() {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// newApp is the application factory. It is a variable so tests can
// replace it with a factory that injects canned config.
var newApp = func(_ context.Context) (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return &App{Cfg: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "golfmetrics",
		Short: "Golf course listing pipeline for the TeeRadar dataset",
		Long: `golfmetrics fetches paginated golf course listings from the TeeRadar
API, consolidates the raw captures into a deduplicated canonical table,
and ranks cities by a composite golf-quality score.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*App); ok && app != nil {
				app.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default reads GOLFMETRICS_* environment)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newConsolidateCmd())
	cmd.AddCommand(newRankCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey).(*App)
	if !ok || app == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return app, nil
}

// Execute is the main entry point. It wires SIGINT/SIGTERM into the
// command context so a long fetch can stop between pages.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "golfmetrics:", err)
		os.Exit(1)
	}
}
