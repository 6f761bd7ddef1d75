// Package score computes the composite region score: min-max normalization
// of the active metrics, weighted blending, and dense ranking.
package score

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/region"
)

// Weights maps metric name to a non-negative weight. A zero or missing
// weight deactivates the metric for scoring.
type Weights map[string]float64

// Default returns the stock weighting. Course quality and density dominate;
// yardage is carried at zero so operators can opt in via overrides.
func Default() Weights {
	return Weights{
		"avg_rating":        0.35,
		"num_golf_courses":  0.25,
		"median_tee_fee":    0.20,
		"sum_ratings_count": 0.10,
		"avg_length_yards":  0.0,
		"state_golfable":    0.10,
	}
}

// Apply scores and ranks the table in place and returns the active metric
// set. The active set is the intersection of metrics present on the table
// and metrics carrying a nonzero weight; their weights are renormalized to
// sum to 1 so inactive metrics never depress the achievable score.
//
// Ranking: stable descending sort on the unrounded score, 1-based dense
// rank. Ties keep the table's existing (grouping) order. Display rounding
// of avg_rating, median_tee_fee and avg_length_yards happens after ranking
// and never feeds back into it.
func Apply(t *region.Table, weights Weights, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(weights) == 0 {
		weights = Default()
	}

	var active []region.Metric
	total := 0.0
	for _, m := range region.Specs() {
		if t.HasMetric(m.Name) && weights[m.Name] != 0 {
			active = append(active, m)
			total += weights[m.Name]
		}
	}

	if len(active) == 0 {
		// No metric participates: every score is 0 and rank falls back to
		// the table's input order.
		logger.Warn("no active scoring metrics; all regions score 0")
		for i, row := range t.Rows {
			row.Score = 0
			row.Rank = i + 1
		}
		roundForDisplay(t)
		return nil
	}

	names := make([]string, 0, len(active))
	for i, m := range active {
		scaled := scaledColumn(t.Rows, m)
		w := weights[m.Name] / total
		for j, row := range t.Rows {
			if i == 0 {
				row.Score = 0
			}
			row.Score += scaled[j] * w
		}
		names = append(names, m.Name)
	}

	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].Score > t.Rows[j].Score })
	for i, row := range t.Rows {
		row.Rank = i + 1
	}

	roundForDisplay(t)

	logger.Info("scored regions",
		zap.Strings("active_metrics", names),
		zap.Int("regions", len(t.Rows)),
	)
	return names
}

// scaledColumn produces the metric's [0, 1] column: inversion for
// lower-is-better metrics, mean imputation of nulls, then min-max scaling.
func scaledColumn(rows []*region.Row, m region.Metric) []float64 {
	vals := make([]float64, len(rows))
	known := make([]bool, len(rows))
	for i, row := range rows {
		vals[i], known[i] = m.Get(row)
	}

	if m.LowerIsBetter {
		// Invert against the column max so "higher is better" holds
		// uniformly before scaling. Nulls stay null until imputation.
		max, any := math.Inf(-1), false
		for i := range vals {
			if known[i] {
				any = true
				if vals[i] > max {
					max = vals[i]
				}
			}
		}
		if any {
			for i := range vals {
				if known[i] {
					vals[i] = max - vals[i]
				}
			}
		}
	}

	// Neutral imputation: a region missing the metric takes the column
	// mean instead of corrupting the scale or zeroing its own score.
	sum, n := 0.0, 0
	for i := range vals {
		if known[i] {
			sum += vals[i]
			n++
		}
	}
	if n == 0 {
		// Column present but empty everywhere: scale to a constant 0, the
		// same treatment a zero-variance column gets.
		return make([]float64, len(rows))
	}
	mean := sum / float64(n)
	for i := range vals {
		if !known[i] {
			vals[i] = mean
		}
	}

	return minMax(vals)
}

// minMax scales values into [0, 1]. A zero-variance column scales to a
// constant 0 for all rows rather than dividing by zero.
func minMax(vals []float64) []float64 {
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	scaled := make([]float64, len(vals))
	if max == min {
		return scaled
	}
	for i, v := range vals {
		scaled[i] = (v - min) / (max - min)
	}
	return scaled
}

func roundForDisplay(t *region.Table) {
	for _, row := range t.Rows {
		if row.AvgRating != nil {
			v := roundTo(*row.AvgRating, 2)
			row.AvgRating = &v
		}
		if row.MedianTeeFee != nil {
			v := roundTo(*row.MedianTeeFee, 2)
			row.MedianTeeFee = &v
		}
		if row.AvgLengthYards != nil {
			v := roundTo(*row.AvgLengthYards, 1)
			row.AvgLengthYards = &v
		}
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
