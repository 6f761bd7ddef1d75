// Package cmd defines and implements the CLI commands for the golfmetrics
// executable.
package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/config"
	"github.com/teeradar/golfmetrics/internal/fetcher"
	"github.com/teeradar/golfmetrics/internal/metrics"
)

// newFetchCmd creates the 'fetch' subcommand, which pulls course pages
// from the TeeRadar API into the raw capture directory.
func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch course listing pages from the TeeRadar API",
		Long: `Walks the TeeRadar course listing endpoint page by page, filtering to
the configured country, and saves each page as an idempotent capture file
under the raw data directory. Stops when the API returns a short page.`,

		RunE: runFetchCommand,
	}
}

func runFetchCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := app.Cfg.Fetch

	apiKey, err := loadAPIKey(cfg, app.Logger)
	if err != nil {
		return err
	}

	if addr := app.Cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Router(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				app.Logger.Warn("metrics listener failed", zap.Error(serr))
			}
		}()
		defer srv.Close() //nolint:errcheck // best-effort shutdown
		app.Logger.Info("metrics listener started", zap.String("addr", addr))
	}

	client := fetcher.New(fetcher.Config{
		BaseURL:            cfg.BaseURL,
		APIKey:             apiKey,
		Country:            cfg.Country,
		MinRating:          cfg.MinRating,
		Limit:              cfg.Limit,
		StartOffset:        cfg.StartOffset,
		MaxPages:           cfg.MaxPages,
		OutDir:             cfg.OutDir,
		Timeout:            cfg.FetchTimeout(),
		RateLimitBackoff:   time.Duration(cfg.RateLimitBackoffSeconds) * time.Second,
		ServerErrorBackoff: time.Duration(cfg.ServerErrorBackoffSeconds) * time.Second,
		PageDelay:          time.Duration(cfg.PageDelayMs) * time.Millisecond,
	}, clockwork.NewRealClock(), app.Logger)

	pages, err := client.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	app.Logger.Info("fetch finished", zap.Int("pages", pages))
	return nil
}

// loadAPIKey resolves the API key from config or the key file. An absent
// key is a warning, not an error: the listing endpoint serves anonymous
// callers at a lower rate limit.
func loadAPIKey(cfg config.FetchConfig, logger *zap.Logger) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyFile == "" {
		logger.Warn("no API key configured; fetching anonymously")
		return "", nil
	}
	data, err := os.ReadFile(cfg.APIKeyFile)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("API key file not found; fetching anonymously", zap.String("file", cfg.APIKeyFile))
			return "", nil
		}
		return "", fmt.Errorf("read API key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
