// Package postgres provides the optional relational copy of the canonical
// course table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teeradar/golfmetrics/internal/course"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for the course table.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// CourseStore replaces the canonical course table wholesale on each run.
type CourseStore struct {
	pool  execCloser
	table string
}

// NewCourseStore creates a Postgres-backed CourseStore using the provided config.
func NewCourseStore(ctx context.Context, cfg Config) (*CourseStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "teeradar_courses"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CourseStore{pool: pool, table: table}, nil
}

// NewCourseStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCourseStoreWithPool(pool execCloser, table string) (*CourseStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "teeradar_courses"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CourseStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *CourseStore) Close() {
	s.pool.Close()
}

// Replace drops and recreates the course table, loads the canonical records,
// and indexes the identity column when the identity key survived the run.
// The table is replaced, never appended to.
func (s *CourseStore) Replace(ctx context.Context, records []course.Record, indexIdentity bool) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("drop course table: %w", err)
	}

	createSQL := fmt.Sprintf(`CREATE TABLE %s (
		course_id TEXT,
		name TEXT,
		city TEXT,
		state TEXT,
		country TEXT,
		rating DOUBLE PRECISION,
		ratings_count BIGINT,
		tee_fee DOUBLE PRECISION,
		length_yards DOUBLE PRECISION,
		_fetched_at TIMESTAMPTZ,
		_offset BIGINT,
		_raw_file TEXT
	)`, s.table)
	if _, err := s.pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create course table: %w", err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s
		(course_id, name, city, state, country, rating, ratings_count, tee_fee, length_yards, _fetched_at, _offset, _raw_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, s.table)
	for _, r := range records {
		var fetchedAt *time.Time
		if r.FetchedAt != nil {
			t := r.FetchedAt.UTC()
			fetchedAt = &t
		}
		if _, err := s.pool.Exec(ctx, insertSQL,
			r.CourseID,
			r.Name,
			r.City,
			r.State,
			r.Country,
			r.Rating,
			r.RatingsCount,
			r.TeeFee,
			r.LengthYards,
			fetchedAt,
			int64(r.Offset),
			r.RawFile,
		); err != nil {
			return fmt.Errorf("insert course %q: %w", r.CourseID, err)
		}
	}

	if indexIdentity {
		indexSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_course_id ON %s (course_id)`, s.table, s.table)
		if _, err := s.pool.Exec(ctx, indexSQL); err != nil {
			return fmt.Errorf("index course table: %w", err)
		}
	}
	return nil
}
