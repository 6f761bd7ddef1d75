// Package enrich joins the optional state golfability reference into the
// region aggregate.
package enrich

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/region"
)

// Reference is the canonicalized state golfability table: one 0/1 flag per
// state identity. JoinColumn records which reference column supplies the
// identity ("state" or "state_name").
type Reference struct {
	JoinColumn string
	Flags      map[string]int
}

// Load reads and canonicalizes a reference CSV. A missing file is a
// recoverable condition: Load logs it and returns nil, nil so the caller
// skips enrichment. A file that exists but cannot be parsed, or that lacks
// the required columns, is likewise skipped with a warning; optional data
// degrades, it never aborts the run.
func Load(path string, logger *zap.Logger) (*Reference, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path) // #nosec G304 -- reference path is operator supplied configuration
	if err != nil {
		logger.Warn("golfability reference unavailable; enrichment skipped",
			zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	defer f.Close() //nolint:errcheck // read-only file

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		logger.Warn("golfability reference unreadable; enrichment skipped",
			zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	if len(rows) == 0 {
		logger.Warn("golfability reference empty; enrichment skipped", zap.String("path", path))
		return nil, nil
	}

	// Canonicalize headers case-insensitively: state/state_name for the
	// join side, golfable_year_round (synonym: golfable) for the flag.
	stateCol, nameCol, flagCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "state":
			stateCol = i
		case "state_name":
			nameCol = i
		case "golfable_year_round":
			flagCol = i
		case "golfable":
			if flagCol == -1 {
				flagCol = i
			}
		}
	}
	if flagCol == -1 || (stateCol == -1 && nameCol == -1) {
		logger.Warn("golfability reference missing required columns; enrichment skipped",
			zap.String("path", path))
		return nil, nil
	}

	// Join by state code when the reference has one, else by full name.
	joinCol, joinName := stateCol, "state"
	if stateCol == -1 {
		joinCol, joinName = nameCol, "state_name"
	}

	ref := &Reference{JoinColumn: joinName, Flags: map[string]int{}}
	for _, row := range rows[1:] {
		if joinCol >= len(row) || flagCol >= len(row) {
			continue
		}
		key := strings.TrimSpace(row[joinCol])
		if key == "" {
			continue
		}
		ref.Flags[key] = coerceFlag(row[flagCol])
	}

	logger.Info("loaded golfability reference",
		zap.String("path", path),
		zap.String("join_column", joinName),
		zap.Int("states", len(ref.Flags)),
	)
	return ref, nil
}

// coerceFlag turns a raw cell into a 0/1 flag. Numeric values count via
// nonzero, everything else goes through boolean parsing; unusable cells are
// conservatively 0.
func coerceFlag(raw string) int {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f != 0 {
			return 1
		}
		return 0
	}
	if b, err := strconv.ParseBool(raw); err == nil && b {
		return 1
	}
	return 0
}

// Apply left-joins the reference onto the aggregate by state. Every
// aggregate row survives; rows whose state has no reference entry get the
// conservative 0 ("not confirmed golfable"). A nil reference is a no-op and
// leaves the state_golfable column off the table entirely.
func Apply(t *region.Table, ref *Reference, logger *zap.Logger) error {
	if ref == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !hasKey(t, "state") {
		logger.Warn("aggregate has no state column; enrichment skipped")
		return nil
	}

	matched := 0
	for _, row := range t.Rows {
		flag, ok := ref.Flags[row.State]
		if !ok {
			flag = 0
		} else {
			matched++
		}
		v := flag
		row.StateGolfable = &v
	}
	t.Metrics = append(t.Metrics, "state_golfable")

	if matched < len(t.Rows) {
		logger.Info("golfability join left unmatched regions at 0",
			zap.Int("matched", matched),
			zap.Int("regions", len(t.Rows)),
		)
	}
	return nil
}

func hasKey(t *region.Table, key string) bool {
	for _, k := range t.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Describe is a short human-readable summary used in run logs.
func (r *Reference) Describe() string {
	if r == nil {
		return "none"
	}
	return fmt.Sprintf("%d states via %s", len(r.Flags), r.JoinColumn)
}
