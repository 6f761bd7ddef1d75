// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Consolidate ConsolidateConfig `mapstructure:"consolidate"`
	Rank        RankConfig        `mapstructure:"rank"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FetchConfig governs the TeeRadar API acquisition stage.
type FetchConfig struct {
	BaseURL                   string  `mapstructure:"base_url"`
	APIKey                    string  `mapstructure:"api_key"`
	APIKeyFile                string  `mapstructure:"api_key_file"`
	Country                   string  `mapstructure:"country"`
	MinRating                 float64 `mapstructure:"min_rating"`
	Limit                     int     `mapstructure:"limit"`
	StartOffset               int     `mapstructure:"start_offset"`
	MaxPages                  int     `mapstructure:"max_pages"`
	OutDir                    string  `mapstructure:"out_dir"`
	TimeoutSeconds            int     `mapstructure:"timeout_seconds"`
	RateLimitBackoffSeconds   int     `mapstructure:"rate_limit_backoff_seconds"`
	ServerErrorBackoffSeconds int     `mapstructure:"server_error_backoff_seconds"`
	PageDelayMs               int     `mapstructure:"page_delay_ms"`
}

// ConsolidateConfig controls capture reading, deduplication and the
// canonical course outputs.
type ConsolidateConfig struct {
	RawDir     string `mapstructure:"raw_dir"`
	Pattern    string `mapstructure:"pattern"`
	DedupeKey  string `mapstructure:"dedupe_key"`
	OutParquet string `mapstructure:"out_parquet"`
	OutNDJSON  string `mapstructure:"out_ndjson"`
}

// RankConfig controls aggregation, enrichment and scoring outputs.
type RankConfig struct {
	OutParquet       string             `mapstructure:"out_parquet"`
	OutCSV           string             `mapstructure:"out_csv"`
	StateGolfableCSV string             `mapstructure:"state_golfable_csv"`
	Weights          map[string]float64 `mapstructure:"weights"`
}

// PostgresConfig controls the optional relational copy of the canonical
// course table. An empty DSN disables it.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// MetricsConfig controls the optional Prometheus scrape listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOLFMETRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)

	v.SetDefault("fetch.base_url", "http://teeradar.online/api/v1/courses.php")
	v.SetDefault("fetch.country", "United States")
	v.SetDefault("fetch.limit", 100)
	v.SetDefault("fetch.start_offset", 0)
	v.SetDefault("fetch.max_pages", 0)
	v.SetDefault("fetch.out_dir", "data/raw")
	v.SetDefault("fetch.api_key_file", "secrets/TEERADAR_API_KEY.txt")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.rate_limit_backoff_seconds", 60)
	v.SetDefault("fetch.server_error_backoff_seconds", 10)
	v.SetDefault("fetch.page_delay_ms", 200)

	v.SetDefault("consolidate.raw_dir", "data/raw")
	v.SetDefault("consolidate.pattern", "teeradar_page_*.json")
	v.SetDefault("consolidate.dedupe_key", "course_id")
	v.SetDefault("consolidate.out_parquet", "data/processed/teeradar_courses.parquet")
	v.SetDefault("consolidate.out_ndjson", "")

	v.SetDefault("rank.out_parquet", "data/processed/city_golf_metrics.parquet")
	v.SetDefault("rank.out_csv", "outputs/city_golf_metrics.csv")
	v.SetDefault("rank.state_golfable_csv", "")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "teeradar_courses")

	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Consolidate.RawDir == "" {
		return fmt.Errorf("consolidate.raw_dir is required")
	}
	if c.Consolidate.DedupeKey == "" {
		return fmt.Errorf("consolidate.dedupe_key must not be empty")
	}
	if c.Fetch.Limit <= 0 {
		return fmt.Errorf("fetch.limit must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	for name, w := range c.Rank.Weights {
		if w < 0 {
			return fmt.Errorf("rank.weights.%s must not be negative", name)
		}
	}
	return nil
}

// FetchTimeout converts the configured HTTP timeout into a duration.
func (c FetchConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
