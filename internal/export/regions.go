package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/teeradar/golfmetrics/internal/atomicfile"
	"github.com/teeradar/golfmetrics/internal/region"
)

// RegionsParquet publishes the region metrics table as Parquet. The file's
// schema mirrors the table's: only the region keys and metrics this run
// actually produced become columns, plus score and rank.
func RegionsParquet(path string, t *region.Table) error {
	group := parquet.Group{}
	for _, key := range t.Keys {
		group[key] = parquet.String()
	}
	for _, name := range t.Metrics {
		m, ok := region.Spec(name)
		if !ok {
			return fmt.Errorf("unknown metric column %q", name)
		}
		if m.Integer {
			group[name] = parquet.Optional(parquet.Int(64))
		} else {
			group[name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		}
	}
	group["score"] = parquet.Leaf(parquet.DoubleType)
	group["rank"] = parquet.Int(64)
	schema := parquet.NewSchema("region_metrics", group)

	rows := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rows = append(rows, regionMapRow(t, row))
	}

	return atomicfile.Write(path, func(f *os.File) error {
		w := parquet.NewGenericWriter[map[string]any](f, schema)
		if len(rows) > 0 {
			if _, err := w.Write(rows); err != nil {
				return fmt.Errorf("write region rows: %w", err)
			}
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("finalize region parquet: %w", err)
		}
		return nil
	})
}

func regionMapRow(t *region.Table, row *region.Row) map[string]any {
	out := map[string]any{
		"score": row.Score,
		"rank":  int64(row.Rank),
	}
	for _, key := range t.Keys {
		switch key {
		case "city":
			out[key] = row.City
		case "state":
			out[key] = row.State
		}
	}
	for _, name := range t.Metrics {
		m, _ := region.Spec(name)
		v, ok := m.Get(row)
		if !ok {
			out[name] = nil
			continue
		}
		if m.Integer {
			out[name] = int64(v)
		} else {
			out[name] = v
		}
	}
	return out
}

// RegionsCSV publishes the flat tabular export of the region metrics table.
// Column order is region keys, metrics in canonical order, score, rank.
// Null metric values render as empty cells.
func RegionsCSV(path string, t *region.Table) error {
	return atomicfile.Write(path, func(f *os.File) error {
		w := csv.NewWriter(f)

		header := append(append([]string{}, t.Keys...), t.Metrics...)
		header = append(header, "score", "rank")
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}

		for _, row := range t.Rows {
			rec := make([]string, 0, len(header))
			for _, key := range t.Keys {
				if key == "city" {
					rec = append(rec, row.City)
				} else {
					rec = append(rec, row.State)
				}
			}
			for _, name := range t.Metrics {
				rec = append(rec, formatMetric(name, row))
			}
			rec = append(rec,
				strconv.FormatFloat(row.Score, 'f', -1, 64),
				strconv.Itoa(row.Rank),
			)
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}

		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		return nil
	})
}

func formatMetric(name string, row *region.Row) string {
	m, ok := region.Spec(name)
	if !ok {
		return ""
	}
	v, present := m.Get(row)
	if !present {
		return ""
	}
	if m.Integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
