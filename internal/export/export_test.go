package export_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeradar/golfmetrics/internal/course"
	"github.com/teeradar/golfmetrics/internal/export"
	"github.com/teeradar/golfmetrics/internal/region"
)

func ptr(f float64) *float64 { return &f }

func fieldSet(names ...string) course.FieldSet {
	fs := course.FieldSet{}
	for _, n := range names {
		fs.Add(n)
	}
	return fs
}

func sampleRecords() []course.Record {
	fetched := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []course.Record{
		{
			CourseID: "C1", Name: "Pine Valley", City: "Austin", State: "TX",
			Country: "United States", Rating: ptr(4.5), RatingsCount: 120,
			TeeFee: ptr(55), FetchedAt: &fetched, Offset: 0,
			RawFile: "teeradar_page_0.json",
		},
		{
			CourseID: "C2", Name: "Cedar Links", City: "Dallas", State: "TX",
			RatingsCount: 0, Offset: 100, RawFile: "teeradar_page_100.json",
		},
	}
}

func parquetColumns(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // read-only file

	info, err := f.Stat()
	require.NoError(t, err)
	pf, err := parquet.OpenFile(f, info.Size())
	require.NoError(t, err)

	var names []string
	for _, field := range pf.Schema().Fields() {
		names = append(names, field.Name())
	}
	return names
}

func TestCoursesParquetRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "teeradar_courses.parquet")
	require.NoError(t, export.CoursesParquet(path, sampleRecords()))

	rows, err := parquet.ReadFile[struct {
		CourseID string   `parquet:"course_id,optional"`
		City     string   `parquet:"city,optional"`
		Rating   *float64 `parquet:"rating,optional"`
		TeeFee   *float64 `parquet:"tee_fee,optional"`
	}](path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "C1", rows[0].CourseID)
	assert.Equal(t, "Austin", rows[0].City)
	require.NotNil(t, rows[0].Rating)
	assert.InDelta(t, 4.5, *rows[0].Rating, 1e-9)
	assert.Nil(t, rows[1].Rating)
	assert.Nil(t, rows[1].TeeFee)
}

func TestCoursesNDJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "courses.ndjson")
	fields := fieldSet("course_id", "name", "city", "state", "country", "rating", "ratings_count", "tee_fee")
	require.NoError(t, export.CoursesNDJSON(path, sampleRecords(), fields))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "C1", first["course_id"])
	assert.InDelta(t, 4.5, first["rating"].(float64), 1e-9)
	assert.Equal(t, "teeradar_page_0.json", first["_raw_file"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	// Present-but-null serializes as null; schema-absent fields are omitted.
	v, ok := second["rating"]
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = second["length_yards"]
	assert.False(t, ok)
}

func regionTable() *region.Table {
	g := 1
	sr := int64(120)
	return &region.Table{
		Keys:    []string{"city", "state"},
		Metrics: []string{"num_golf_courses", "avg_rating", "sum_ratings_count", "state_golfable"},
		Rows: []*region.Row{
			{
				City: "Austin", State: "TX", NumGolfCourses: 3,
				AvgRating: ptr(4.5), SumRatingsCount: &sr, StateGolfable: &g,
				Score: 0.91, Rank: 1,
			},
			{
				City: "Duluth", State: "MN", NumGolfCourses: 1,
				Score: 0, Rank: 2,
			},
		},
	}
}

func TestRegionsCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "city_golf_metrics.csv")
	require.NoError(t, export.RegionsCSV(path, regionTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "city,state,num_golf_courses,avg_rating,sum_ratings_count,state_golfable,score,rank", lines[0])
	assert.Equal(t, "Austin,TX,3,4.5,120,1,0.91,1", lines[1])
	// Null metrics render as empty cells, not zeros.
	assert.Equal(t, "Duluth,MN,1,,,,0,2", lines[2])
}

func TestRegionsParquetSchemaFollowsTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "city_golf_metrics.parquet")
	require.NoError(t, export.RegionsParquet(path, regionTable()))

	cols := parquetColumns(t, path)
	assert.Contains(t, cols, "city")
	assert.Contains(t, cols, "avg_rating")
	assert.Contains(t, cols, "state_golfable")
	assert.Contains(t, cols, "score")
	assert.Contains(t, cols, "rank")
	// tee fee never existed this run, so the file has no such column.
	assert.NotContains(t, cols, "median_tee_fee")
}

func TestWritersAreIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "metrics.csv")
	tbl := regionTable()

	require.NoError(t, export.RegionsCSV(csvPath, tbl))
	first, err := os.ReadFile(csvPath)
	require.NoError(t, err)

	require.NoError(t, export.RegionsCSV(csvPath, tbl))
	second, err := os.ReadFile(csvPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
