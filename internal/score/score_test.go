package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/region"
	"github.com/teeradar/golfmetrics/internal/score"
)

func ptr(f float64) *float64 { return &f }

func table(metrics []string, rows ...*region.Row) *region.Table {
	return &region.Table{
		Keys:    []string{"city", "state"},
		Metrics: append([]string{"num_golf_courses"}, metrics...),
		Rows:    rows,
	}
}

func TestApplyRanksDescendingDense(t *testing.T) {
	t.Parallel()

	tbl := table([]string{"avg_rating"},
		&region.Row{City: "Austin", NumGolfCourses: 2, AvgRating: ptr(3.0)},
		&region.Row{City: "Boise", NumGolfCourses: 5, AvgRating: ptr(4.8)},
		&region.Row{City: "Casper", NumGolfCourses: 1, AvgRating: ptr(4.0)},
	)

	active := score.Apply(tbl, nil, zap.NewNop())
	assert.ElementsMatch(t, []string{"num_golf_courses", "avg_rating"}, active)

	// Rank is exactly {1..N}, each exactly once, descending score order.
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "Boise", tbl.Rows[0].City)
	for i, row := range tbl.Rows {
		assert.Equal(t, i+1, row.Rank)
		assert.GreaterOrEqual(t, row.Score, 0.0)
		assert.LessOrEqual(t, row.Score, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, row.Score, tbl.Rows[i-1].Score)
		}
	}

	// Boise leads on both active metrics, so its scaled score is exactly 1.
	assert.InDelta(t, 1.0, tbl.Rows[0].Score, 1e-9)
}

func TestApplyRenormalizesWeights(t *testing.T) {
	t.Parallel()

	// Only avg_rating and num_golf_courses are present; their default
	// weights (0.35 + 0.25) renormalize to 1, so the best region on both
	// metrics scores exactly 1 rather than 0.6.
	tbl := table([]string{"avg_rating"},
		&region.Row{City: "A", NumGolfCourses: 10, AvgRating: ptr(5.0)},
		&region.Row{City: "B", NumGolfCourses: 1, AvgRating: ptr(1.0)},
	)

	score.Apply(tbl, nil, zap.NewNop())
	assert.InDelta(t, 1.0, tbl.Rows[0].Score, 1e-9)
	assert.InDelta(t, 0.0, tbl.Rows[1].Score, 1e-9)
}

func TestApplyInvertsTeeFee(t *testing.T) {
	t.Parallel()

	// Scoring on tee fee alone: the cheapest region wins, the region at
	// the dataset-wide maximum inverts to 0 and contributes nothing.
	tbl := table([]string{"median_tee_fee"},
		&region.Row{City: "Pricey", NumGolfCourses: 1, MedianTeeFee: ptr(200)},
		&region.Row{City: "Cheap", NumGolfCourses: 1, MedianTeeFee: ptr(25)},
		&region.Row{City: "Middling", NumGolfCourses: 1, MedianTeeFee: ptr(100)},
	)

	score.Apply(tbl, score.Weights{"median_tee_fee": 1}, zap.NewNop())

	assert.Equal(t, "Cheap", tbl.Rows[0].City)
	assert.Equal(t, 1, tbl.Rows[0].Rank)
	assert.Equal(t, "Pricey", tbl.Rows[2].City)
	assert.InDelta(t, 0.0, tbl.Rows[2].Score, 1e-9)
}

func TestApplyMeanImputesMissingValues(t *testing.T) {
	t.Parallel()

	// B has no rating; it takes the column mean, landing strictly between
	// the best and worst instead of being nulled out.
	tbl := table([]string{"avg_rating"},
		&region.Row{City: "A", NumGolfCourses: 1, AvgRating: ptr(5.0)},
		&region.Row{City: "B", NumGolfCourses: 1},
		&region.Row{City: "C", NumGolfCourses: 1, AvgRating: ptr(3.0)},
	)

	score.Apply(tbl, score.Weights{"avg_rating": 1}, zap.NewNop())

	byCity := map[string]*region.Row{}
	for _, r := range tbl.Rows {
		byCity[r.City] = r
	}
	assert.InDelta(t, 1.0, byCity["A"].Score, 1e-9)
	assert.InDelta(t, 0.5, byCity["B"].Score, 1e-9)
	assert.InDelta(t, 0.0, byCity["C"].Score, 1e-9)
}

func TestApplyZeroVarianceScalesToZero(t *testing.T) {
	t.Parallel()

	tbl := table([]string{"avg_rating"},
		&region.Row{City: "A", NumGolfCourses: 1, AvgRating: ptr(4.0)},
		&region.Row{City: "B", NumGolfCourses: 1, AvgRating: ptr(4.0)},
	)

	score.Apply(tbl, score.Weights{"avg_rating": 1}, zap.NewNop())
	assert.InDelta(t, 0.0, tbl.Rows[0].Score, 1e-9)
	assert.InDelta(t, 0.0, tbl.Rows[1].Score, 1e-9)
	assert.Equal(t, 1, tbl.Rows[0].Rank)
	assert.Equal(t, 2, tbl.Rows[1].Rank)
}

func TestApplyTiesKeepGroupingOrder(t *testing.T) {
	t.Parallel()

	tbl := table(nil,
		&region.Row{City: "Austin", NumGolfCourses: 3},
		&region.Row{City: "Boise", NumGolfCourses: 3},
		&region.Row{City: "Casper", NumGolfCourses: 3},
	)

	score.Apply(tbl, nil, zap.NewNop())
	assert.Equal(t, "Austin", tbl.Rows[0].City)
	assert.Equal(t, "Boise", tbl.Rows[1].City)
	assert.Equal(t, "Casper", tbl.Rows[2].City)
	assert.Equal(t, []int{1, 2, 3}, []int{tbl.Rows[0].Rank, tbl.Rows[1].Rank, tbl.Rows[2].Rank})
}

func TestApplyEmptyActiveSet(t *testing.T) {
	t.Parallel()

	tbl := table(nil,
		&region.Row{City: "A", NumGolfCourses: 9},
		&region.Row{City: "B", NumGolfCourses: 1},
	)

	// All weight on a metric the table does not have.
	active := score.Apply(tbl, score.Weights{"avg_rating": 1}, zap.NewNop())
	assert.Nil(t, active)
	assert.InDelta(t, 0.0, tbl.Rows[0].Score, 1e-9)
	assert.Equal(t, 1, tbl.Rows[0].Rank)
	assert.Equal(t, 2, tbl.Rows[1].Rank)
	assert.Equal(t, "A", tbl.Rows[0].City)
}

func TestApplyZeroWeightDeactivates(t *testing.T) {
	t.Parallel()

	// avg_length_yards carries weight 0 by default: present but inactive.
	tbl := table([]string{"avg_length_yards"},
		&region.Row{City: "A", NumGolfCourses: 1, AvgLengthYards: ptr(7400)},
		&region.Row{City: "B", NumGolfCourses: 2, AvgLengthYards: ptr(5000)},
	)

	active := score.Apply(tbl, nil, zap.NewNop())
	assert.NotContains(t, active, "avg_length_yards")
	assert.Equal(t, "B", tbl.Rows[0].City)
}

func TestApplyDisplayRounding(t *testing.T) {
	t.Parallel()

	tbl := table([]string{"avg_rating", "median_tee_fee", "avg_length_yards"},
		&region.Row{
			City: "A", NumGolfCourses: 1,
			AvgRating:      ptr(4.666666),
			MedianTeeFee:   ptr(45.555),
			AvgLengthYards: ptr(7123.45),
		},
		&region.Row{
			City: "B", NumGolfCourses: 2,
			AvgRating:      ptr(3.0),
			MedianTeeFee:   ptr(30.0),
			AvgLengthYards: ptr(6000.0),
		},
	)

	score.Apply(tbl, nil, zap.NewNop())

	var a *region.Row
	for _, r := range tbl.Rows {
		if r.City == "A" {
			a = r
		}
	}
	require.NotNil(t, a)
	assert.InDelta(t, 4.67, *a.AvgRating, 1e-9)
	assert.InDelta(t, 45.56, *a.MedianTeeFee, 1e-9)
	assert.InDelta(t, 7123.5, *a.AvgLengthYards, 1e-9)
}

func TestDefaultWeights(t *testing.T) {
	t.Parallel()

	w := score.Default()
	assert.InDelta(t, 0.35, w["avg_rating"], 1e-9)
	assert.InDelta(t, 0.0, w["avg_length_yards"], 1e-9)

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
