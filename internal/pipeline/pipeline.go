// Package pipeline wires the capture, deduplication, aggregation,
// enrichment and scoring stages into the two batch entry points the CLI
// exposes: consolidate and rank.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/capture"
	"github.com/teeradar/golfmetrics/internal/config"
	"github.com/teeradar/golfmetrics/internal/course"
	"github.com/teeradar/golfmetrics/internal/dedupe"
	"github.com/teeradar/golfmetrics/internal/enrich"
	"github.com/teeradar/golfmetrics/internal/export"
	"github.com/teeradar/golfmetrics/internal/metrics"
	"github.com/teeradar/golfmetrics/internal/region"
	"github.com/teeradar/golfmetrics/internal/score"
	"github.com/teeradar/golfmetrics/internal/storage/postgres"
)

// Summary reports what a pipeline run produced.
type Summary struct {
	RunID   string
	Files   int
	Read    int
	Kept    int
	Regions int
	Outputs []string
}

// Consolidator turns raw capture files into the canonical course table.
type Consolidator struct {
	cfg    config.ConsolidateConfig
	pg     config.PostgresConfig
	logger *zap.Logger
}

// NewConsolidator builds a Consolidator. A nil logger is replaced with a
// no-op one.
func NewConsolidator(cfg config.ConsolidateConfig, pg config.PostgresConfig, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consolidator{cfg: cfg, pg: pg, logger: logger}
}

// Run reads every capture under the raw directory, deduplicates by the
// configured identity key and publishes the canonical table. Zero captured
// courses is a clean no-op: nothing is written and no error is returned.
func (c *Consolidator) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	logger := c.logger.With(zap.String("run_id", sum.RunID))

	set, records, err := readAndDedupe(c.cfg, logger)
	if err != nil {
		return sum, err
	}
	sum.Files = set.Files
	sum.Read = len(set.Courses)
	sum.Kept = len(records)

	if len(records) == 0 {
		logger.Info("no courses captured; nothing to consolidate")
		return sum, nil
	}

	if err := timedWrite("parquet", c.cfg.OutParquet, func() error {
		return export.CoursesParquet(c.cfg.OutParquet, records)
	}); err != nil {
		return sum, err
	}
	sum.Outputs = append(sum.Outputs, c.cfg.OutParquet)

	if c.cfg.OutNDJSON != "" {
		if err := timedWrite("ndjson", c.cfg.OutNDJSON, func() error {
			return export.CoursesNDJSON(c.cfg.OutNDJSON, records, set.Fields)
		}); err != nil {
			return sum, err
		}
		sum.Outputs = append(sum.Outputs, c.cfg.OutNDJSON)
	}

	if c.pg.DSN != "" {
		if err := c.replaceTable(ctx, records, set.Fields); err != nil {
			return sum, err
		}
		sum.Outputs = append(sum.Outputs, "postgres:"+c.pg.Table)
	}

	logger.Info("consolidation complete",
		zap.Int("files", sum.Files),
		zap.Int("read", sum.Read),
		zap.Int("kept", sum.Kept),
		zap.Strings("outputs", sum.Outputs),
	)
	return sum, nil
}

func (c *Consolidator) replaceTable(ctx context.Context, records []course.Record, fields course.FieldSet) error {
	store, err := postgres.NewCourseStore(ctx, postgres.Config{
		DSN:             c.pg.DSN,
		Table:           c.pg.Table,
		MaxConns:        c.pg.MaxConns,
		MinConns:        c.pg.MinConns,
		MaxConnLifetime: c.pg.MaxConnLifetime,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	if err := store.Replace(ctx, records, fields.Has(c.cfg.DedupeKey)); err != nil {
		return err
	}
	metrics.ObserveTableWrite("postgres", time.Since(start))
	return nil
}

// Ranker turns raw capture files into the scored, ranked region table.
// It re-reads the captures rather than the consolidated parquet so that
// schema presence (a column missing entirely versus present but null)
// survives into aggregation.
type Ranker struct {
	cfg    config.ConsolidateConfig
	rank   config.RankConfig
	logger *zap.Logger
}

// NewRanker builds a Ranker.
func NewRanker(cfg config.ConsolidateConfig, rank config.RankConfig, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{cfg: cfg, rank: rank, logger: logger}
}

// Run aggregates deduplicated courses into regions, joins the golfability
// reference when configured, scores and ranks the regions, and writes the
// parquet and CSV outputs. Zero captured courses is a clean no-op.
func (r *Ranker) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	logger := r.logger.With(zap.String("run_id", sum.RunID))

	set, records, err := readAndDedupe(r.cfg, logger)
	if err != nil {
		return sum, err
	}
	sum.Files = set.Files
	sum.Read = len(set.Courses)
	sum.Kept = len(records)

	if len(records) == 0 {
		logger.Info("no courses captured; nothing to rank")
		return sum, nil
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	table, err := region.Aggregate(records, set.Fields, r.cfg.DedupeKey)
	if err != nil {
		return sum, err
	}

	if r.rank.StateGolfableCSV != "" {
		ref, err := enrich.Load(r.rank.StateGolfableCSV, logger)
		if err != nil {
			return sum, err
		}
		if ref != nil {
			if err := enrich.Apply(table, ref, logger); err != nil {
				return sum, err
			}
		}
		logger.Debug("golfability reference", zap.String("reference", ref.Describe()))
	}

	active := score.Apply(table, score.Weights(r.rank.Weights), logger)
	sum.Regions = len(table.Rows)
	metrics.RegionsRanked(len(table.Rows))

	if err := timedWrite("parquet", r.rank.OutParquet, func() error {
		return export.RegionsParquet(r.rank.OutParquet, table)
	}); err != nil {
		return sum, err
	}
	sum.Outputs = append(sum.Outputs, r.rank.OutParquet)

	if err := timedWrite("csv", r.rank.OutCSV, func() error {
		return export.RegionsCSV(r.rank.OutCSV, table)
	}); err != nil {
		return sum, err
	}
	sum.Outputs = append(sum.Outputs, r.rank.OutCSV)

	logger.Info("ranking complete",
		zap.Int("regions", sum.Regions),
		zap.Strings("region_keys", table.Keys),
		zap.Strings("scored_metrics", active),
		zap.Strings("outputs", sum.Outputs),
	)
	return sum, nil
}

// readAndDedupe is the shared front half of both pipelines: glob the raw
// directory, coerce every course, and keep the freshest row per identity.
func readAndDedupe(cfg config.ConsolidateConfig, logger *zap.Logger) (capture.RawSet, []course.Record, error) {
	reader := capture.NewReader(cfg.Pattern, logger)
	set, err := reader.Read(cfg.RawDir)
	if err != nil {
		return set, nil, fmt.Errorf("read captures: %w", err)
	}
	metrics.CaptureFilesRead(set.Files)
	metrics.CoursesRead(len(set.Courses))

	records := dedupe.New(cfg.DedupeKey, logger).Run(set)
	metrics.DuplicatesDropped(len(set.Courses) - len(records))
	return set, records, nil
}

func timedWrite(format, path string, write func() error) error {
	start := time.Now()
	if err := write(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	metrics.ObserveTableWrite(format, time.Since(start))
	return nil
}
