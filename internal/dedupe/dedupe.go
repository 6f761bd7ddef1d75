// Package dedupe collapses overlapping capture observations down to one
// canonical record per course identity.
package dedupe

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/capture"
	"github.com/teeradar/golfmetrics/internal/course"
)

// DefaultKey is the identity field used when none is configured.
const DefaultKey = "course_id"

// Deduplicator keeps the freshest observation per identity value.
type Deduplicator struct {
	key    string
	logger *zap.Logger
}

// New builds a Deduplicator for the given identity field. An empty key
// falls back to DefaultKey.
func New(key string, logger *zap.Logger) *Deduplicator {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{key: key, logger: logger}
}

// Key returns the configured identity field.
func (d *Deduplicator) Key() string { return d.key }

// Run coerces the raw observations into typed records and drops duplicate
// identities, keeping the most recently fetched observation of each.
//
// When the identity field never appeared in the input schema the set passes
// through untouched; that can double-count regions downstream, so it is
// logged at warn level rather than silently.
func (d *Deduplicator) Run(set capture.RawSet) []course.Record {
	type entry struct {
		id  string
		rec course.Record
	}

	// Coerce numerics before any ordering so compare semantics are fixed.
	entries := make([]entry, 0, len(set.Courses))
	for _, raw := range set.Courses {
		entries = append(entries, entry{id: raw.Identity(d.key), rec: course.FromRaw(raw)})
	}

	records := make([]course.Record, 0, len(entries))
	if !set.Fields.Has(d.key) {
		d.logger.Warn("identity field absent from capture schema; deduplication skipped",
			zap.String("key", d.key),
			zap.Int("records", len(entries)),
		)
		for _, e := range entries {
			records = append(records, e.rec)
		}
		return records
	}

	// Order by identity, then by capture freshness. The sort is stable, so
	// equal timestamps (including unparseable ones, which sort earliest)
	// resolve by input order and "keep last" still favors the later capture.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].id != entries[j].id {
			return entries[i].id < entries[j].id
		}
		return earlier(entries[i].rec.FetchedAt, entries[j].rec.FetchedAt)
	})

	for i, e := range entries {
		last := i == len(entries)-1 || entries[i+1].id != e.id
		if last {
			records = append(records, e.rec)
		}
	}

	if dropped := len(entries) - len(records); dropped > 0 {
		d.logger.Info("deduplicated courses",
			zap.String("key", d.key),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(records)),
		)
	}
	return records
}

// earlier orders timestamps with nil (unparseable) treated as earliest.
func earlier(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}
