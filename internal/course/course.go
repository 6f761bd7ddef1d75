// Package course defines the canonical course record and the coercion rules
// that turn raw capture payload entries into typed observations.
package course

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Raw is one course entry exactly as it appeared in a capture payload,
// stamped with the provenance of the envelope that carried it.
type Raw struct {
	Fields map[string]any

	FetchedAt string // envelope fetched_at, verbatim
	Offset    int
	File      string
}

// Record is a typed course observation. Optional numerics are pointers so a
// missing or uncoercible value stays distinguishable from a real zero.
type Record struct {
	CourseID string
	Name     string
	City     string
	State    string
	Country  string

	Rating       *float64
	RatingsCount int64
	TeeFee       *float64
	LengthYards  *float64

	FetchedAt *time.Time // nil when the envelope timestamp was unparseable
	Offset    int
	RawFile   string
}

// FieldSet records which field names appeared anywhere in the input. The
// aggregate's schema is driven by it: a metric only exists if its source
// field was observed at least once.
type FieldSet map[string]struct{}

// Add marks a field name as observed.
func (s FieldSet) Add(name string) { s[name] = struct{}{} }

// Has reports whether the field name was observed in any input record.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// FromRaw coerces a raw capture entry into a Record. Uncoercible numerics
// become nil (or 0 for ratings_count); the envelope timestamp is parsed
// leniently and left nil when unusable.
func FromRaw(r Raw) Record {
	rec := Record{
		CourseID:     Stringify(r.Fields["course_id"]),
		Name:         Stringify(r.Fields["name"]),
		City:         Stringify(r.Fields["city"]),
		State:        Stringify(r.Fields["state"]),
		Country:      Stringify(r.Fields["country"]),
		Rating:       Float(r.Fields["rating"]),
		RatingsCount: Int(r.Fields["ratings_count"]),
		TeeFee:       Float(r.Fields["tee_fee"]),
		LengthYards:  Float(r.Fields["length_yards"]),
		FetchedAt:    ParseTime(r.FetchedAt),
		Offset:       r.Offset,
		RawFile:      r.File,
	}
	return rec
}

// Identity returns the record's value for the given identity field as it was
// captured, stringified so mixed numeric/string IDs compare consistently.
func (r Raw) Identity(key string) string {
	return Stringify(r.Fields[key])
}

// Stringify renders a raw JSON value as a plain string. Integral floats
// (the usual fate of JSON numbers) print without a trailing ".0".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Float coerces a raw value to a float64, returning nil for anything that is
// not a number or a numeric string.
func Float(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// Int coerces a raw value to an int64, defaulting to 0 when missing or
// invalid. Fractional values truncate toward zero.
func Int(v any) int64 {
	f := Float(v)
	if f == nil {
		return 0
	}
	return int64(*f)
}

// timeLayouts are tried in order when parsing envelope timestamps. The fetch
// stage writes RFC 3339; older captures carried bare ISO 8601 local times.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a capture timestamp, returning nil when it cannot be
// interpreted. Callers treat nil as "earliest".
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
