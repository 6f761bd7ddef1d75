// Package region groups canonical course records into per-region aggregate
// rows. The metric registry defined here drives both aggregation and
// composite scoring so the two stages always agree on which metrics exist.
package region

import (
	"errors"
	"sort"

	"github.com/teeradar/golfmetrics/internal/course"
)

// ErrNoRegionColumns is returned when neither city nor state appeared in the
// input schema; without a region key there is nothing to rank.
var ErrNoRegionColumns = errors.New("no region columns to group by; captures must include city or state")

// Row is one region aggregate. Metric pointers are nil when the metric's
// source field never appeared in the input, or when a present metric had no
// usable values for this region.
type Row struct {
	City  string
	State string

	NumGolfCourses  int
	AvgRating       *float64
	SumRatingsCount *int64
	MedianTeeFee    *float64
	AvgLengthYards  *float64
	StateGolfable   *int

	Score float64
	Rank  int
}

// Table is the full aggregate: one Row per distinct region key, plus the
// schema that run actually produced.
type Table struct {
	// Keys is the subset of {city, state} present in the input, in that
	// priority order.
	Keys []string

	// Metrics lists the metric columns present on this table, in canonical
	// order. Presence is schema-driven: a metric appears only if its source
	// field existed somewhere in the input (state_golfable only if
	// enrichment ran).
	Metrics []string

	Rows []*Row
}

// HasMetric reports whether the named metric column exists on the table.
func (t *Table) HasMetric(name string) bool {
	for _, m := range t.Metrics {
		if m == name {
			return true
		}
	}
	return false
}

// Metric describes one scored column of the aggregate.
type Metric struct {
	Name string

	// Source is the capture field whose presence activates the metric.
	// Empty means the metric is not input-driven (course counts are always
	// computable; golfability arrives via enrichment).
	Source string

	// LowerIsBetter marks metrics inverted before scaling.
	LowerIsBetter bool

	// Integer marks metrics rendered without a decimal point.
	Integer bool

	// Get returns the row's raw value, false when null.
	Get func(*Row) (float64, bool)
}

// Specs returns the metric registry in canonical column order.
func Specs() []Metric {
	return []Metric{
		{
			Name:    "num_golf_courses",
			Integer: true,
			Get:     func(r *Row) (float64, bool) { return float64(r.NumGolfCourses), true },
		},
		{
			Name:   "avg_rating",
			Source: "rating",
			Get:    floatGetter(func(r *Row) *float64 { return r.AvgRating }),
		},
		{
			Name:    "sum_ratings_count",
			Source:  "ratings_count",
			Integer: true,
			Get: func(r *Row) (float64, bool) {
				if r.SumRatingsCount == nil {
					return 0, false
				}
				return float64(*r.SumRatingsCount), true
			},
		},
		{
			Name:          "median_tee_fee",
			Source:        "tee_fee",
			LowerIsBetter: true,
			Get:           floatGetter(func(r *Row) *float64 { return r.MedianTeeFee }),
		},
		{
			Name:   "avg_length_yards",
			Source: "length_yards",
			Get:    floatGetter(func(r *Row) *float64 { return r.AvgLengthYards }),
		},
		{
			Name:    "state_golfable",
			Integer: true,
			Get: func(r *Row) (float64, bool) {
				if r.StateGolfable == nil {
					return 0, false
				}
				return float64(*r.StateGolfable), true
			},
		},
	}
}

// Spec looks up a metric by name.
func Spec(name string) (Metric, bool) {
	for _, m := range Specs() {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

func floatGetter(field func(*Row) *float64) func(*Row) (float64, bool) {
	return func(r *Row) (float64, bool) {
		v := field(r)
		if v == nil {
			return 0, false
		}
		return *v, true
	}
}

// Aggregate groups the canonical records by region and computes every metric
// whose source field exists in the input schema. idKey is the identity field
// used for distinct course counting; when absent from the schema, counting
// falls back to distinct names.
func Aggregate(records []course.Record, fields course.FieldSet, idKey string) (*Table, error) {
	var keys []string
	for _, k := range []string{"city", "state"} {
		if fields.Has(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoRegionColumns
	}

	countByName := !fields.Has(idKey)

	type group struct {
		row        *Row
		identities map[string]struct{}
		records    []course.Record
	}
	groups := map[string]*group{}
	var order []string

	for _, rec := range records {
		gk := rec.City + "\x1f" + rec.State
		g, ok := groups[gk]
		if !ok {
			g = &group{
				row:        &Row{City: rec.City, State: rec.State},
				identities: map[string]struct{}{},
			}
			groups[gk] = g
			order = append(order, gk)
		}
		id := rec.CourseID
		if countByName || idKey == "name" {
			id = rec.Name
		}
		g.identities[id] = struct{}{}
		g.records = append(g.records, rec)
	}

	// Group rows sort by key values so the table order is independent of
	// capture order; the scorer's stable sort later treats this order as
	// the tiebreak.
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	table := &Table{Keys: keys, Metrics: []string{"num_golf_courses"}}
	for _, m := range Specs() {
		if m.Source != "" && fields.Has(m.Source) {
			table.Metrics = append(table.Metrics, m.Name)
		}
	}

	for _, gk := range order {
		g := groups[gk]
		row := g.row
		row.NumGolfCourses = len(g.identities)

		if fields.Has("rating") {
			row.AvgRating = mean(collect(g.records, func(r course.Record) *float64 { return r.Rating }))
		}
		if fields.Has("ratings_count") {
			var sum int64
			for _, r := range g.records {
				sum += r.RatingsCount
			}
			row.SumRatingsCount = &sum
		}
		if fields.Has("tee_fee") {
			row.MedianTeeFee = median(collect(g.records, func(r course.Record) *float64 { return r.TeeFee }))
		}
		if fields.Has("length_yards") {
			row.AvgLengthYards = mean(collect(g.records, func(r course.Record) *float64 { return r.LengthYards }))
		}

		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func collect(records []course.Record, field func(course.Record) *float64) []float64 {
	var vals []float64
	for _, r := range records {
		if v := field(r); v != nil {
			vals = append(vals, *v)
		}
	}
	return vals
}

// mean of the non-null values; nil when there are none.
func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(len(vals))
	return &m
}

// median of the non-null values, interpolating between the two middle
// values for even counts; nil when there are none.
func median(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	var m float64
	if len(sorted)%2 == 1 {
		m = sorted[mid]
	} else {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}
