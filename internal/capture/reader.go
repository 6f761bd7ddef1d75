// Package capture reads raw TeeRadar page captures from disk and flattens
// them into course observations with provenance.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/teeradar/golfmetrics/internal/course"
)

// DefaultPattern matches the capture files written by the fetch stage.
const DefaultPattern = "teeradar_page_*.json"

// Envelope is the on-disk shape of one capture file.
type Envelope struct {
	FetchedAt string  `json:"fetched_at"`
	Offset    int     `json:"offset"`
	Payload   Payload `json:"payload"`
}

// Payload is the API response body preserved inside an envelope. A missing
// or null courses list is an empty page, not an error.
type Payload struct {
	Courses []map[string]any `json:"courses"`
	Count   int              `json:"count"`
}

// ParseError marks a capture file that could not be read or decoded. It is
// fatal: silently skipping a page would corrupt downstream counts.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed capture file %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RawSet is the flattened result of reading a capture directory.
type RawSet struct {
	Courses []course.Raw
	Fields  course.FieldSet
	Files   int
}

// Reader reads capture envelopes from a directory.
type Reader struct {
	pattern string
	logger  *zap.Logger
}

// NewReader builds a Reader. An empty pattern falls back to DefaultPattern.
func NewReader(pattern string, logger *zap.Logger) *Reader {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{pattern: pattern, logger: logger}
}

// Read loads every capture file under dir in lexicographic filename order
// and returns the flattened course entries. Zero matching files yields an
// empty set with Files == 0; the caller decides whether that ends the run.
func (r *Reader) Read(dir string) (RawSet, error) {
	matches, err := filepath.Glob(filepath.Join(dir, r.pattern))
	if err != nil {
		return RawSet{}, fmt.Errorf("glob captures in %s: %w", dir, err)
	}
	sort.Strings(matches)

	set := RawSet{Fields: course.FieldSet{}}
	for _, path := range matches {
		env, err := readEnvelope(path)
		if err != nil {
			return RawSet{}, err
		}
		set.Files++
		base := filepath.Base(path)
		for _, fields := range env.Payload.Courses {
			for name := range fields {
				set.Fields.Add(name)
			}
			set.Courses = append(set.Courses, course.Raw{
				Fields:    fields,
				FetchedAt: env.FetchedAt,
				Offset:    env.Offset,
				File:      base,
			})
		}
		r.logger.Debug("read capture",
			zap.String("file", base),
			zap.Int("courses", len(env.Payload.Courses)),
		)
	}
	return set, nil
}

func readEnvelope(path string) (Envelope, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- capture paths come from the configured raw directory
	if err != nil {
		return Envelope{}, &ParseError{File: path, Err: err}
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &ParseError{File: path, Err: err}
	}
	return env, nil
}
