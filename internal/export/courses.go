// Package export renders the canonical course table and the region metrics
// table into their published formats. Every writer goes through atomicfile
// so a failed run never clobbers the previous output.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/teeradar/golfmetrics/internal/atomicfile"
	"github.com/teeradar/golfmetrics/internal/course"
)

// courseRow is the flat Parquet shape of one canonical course record.
type courseRow struct {
	CourseID     string   `parquet:"course_id,optional"`
	Name         string   `parquet:"name,optional"`
	City         string   `parquet:"city,optional"`
	State        string   `parquet:"state,optional"`
	Country      string   `parquet:"country,optional"`
	Rating       *float64 `parquet:"rating,optional"`
	RatingsCount int64    `parquet:"ratings_count"`
	TeeFee       *float64 `parquet:"tee_fee,optional"`
	LengthYards  *float64 `parquet:"length_yards,optional"`
	FetchedAt    string   `parquet:"_fetched_at,optional"`
	Offset       int64    `parquet:"_offset"`
	RawFile      string   `parquet:"_raw_file,optional"`
}

func toCourseRow(r course.Record) courseRow {
	row := courseRow{
		CourseID:     r.CourseID,
		Name:         r.Name,
		City:         r.City,
		State:        r.State,
		Country:      r.Country,
		Rating:       r.Rating,
		RatingsCount: r.RatingsCount,
		TeeFee:       r.TeeFee,
		LengthYards:  r.LengthYards,
		Offset:       int64(r.Offset),
		RawFile:      r.RawFile,
	}
	if r.FetchedAt != nil {
		row.FetchedAt = r.FetchedAt.UTC().Format(time.RFC3339Nano)
	}
	return row
}

// CoursesParquet publishes the canonical course table as Parquet.
func CoursesParquet(path string, records []course.Record) error {
	rows := make([]courseRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toCourseRow(r))
	}
	return atomicfile.Write(path, func(f *os.File) error {
		w := parquet.NewGenericWriter[courseRow](f)
		if len(rows) > 0 {
			if _, err := w.Write(rows); err != nil {
				return fmt.Errorf("write course rows: %w", err)
			}
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("finalize course parquet: %w", err)
		}
		return nil
	})
}

// CoursesNDJSON publishes the canonical course table as line-delimited JSON,
// one record per line. Source fields absent from the capture schema are
// omitted entirely; present-but-null values serialize as JSON null.
func CoursesNDJSON(path string, records []course.Record, fields course.FieldSet) error {
	return atomicfile.Write(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		for _, r := range records {
			if err := enc.Encode(ndjsonRecord(r, fields)); err != nil {
				return fmt.Errorf("encode course record: %w", err)
			}
		}
		return nil
	})
}

func ndjsonRecord(r course.Record, fields course.FieldSet) map[string]any {
	obj := map[string]any{
		"_offset":   r.Offset,
		"_raw_file": r.RawFile,
	}
	if r.FetchedAt != nil {
		obj["_fetched_at"] = r.FetchedAt.UTC().Format(time.RFC3339Nano)
	} else {
		obj["_fetched_at"] = nil
	}

	put := func(name string, v any) {
		if fields.Has(name) {
			obj[name] = v
		}
	}
	put("course_id", r.CourseID)
	put("name", r.Name)
	put("city", r.City)
	put("state", r.State)
	put("country", r.Country)
	put("ratings_count", r.RatingsCount)
	putFloat := func(name string, v *float64) {
		if !fields.Has(name) {
			return
		}
		if v == nil {
			obj[name] = nil
			return
		}
		obj[name] = *v
	}
	putFloat("rating", r.Rating)
	putFloat("tee_fee", r.TeeFee)
	putFloat("length_yards", r.LengthYards)
	return obj
}
