package capture_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeradar/golfmetrics/internal/capture"
)

func writeCapture(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestReadFlattensInFilenameOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCapture(t, dir, "teeradar_page_100.json", `{
		"fetched_at": "2025-06-01T11:00:00Z",
		"offset": 100,
		"payload": {"courses": [{"course_id": "C3", "city": "Austin", "tee_fee": 55}], "count": 1}
	}`)
	writeCapture(t, dir, "teeradar_page_0.json", `{
		"fetched_at": "2025-06-01T10:00:00Z",
		"offset": 0,
		"payload": {"courses": [
			{"course_id": "C1", "city": "Austin", "rating": 4.5},
			{"course_id": "C2", "city": "Dallas", "rating": 4.0}
		], "count": 2}
	}`)

	set, err := capture.NewReader("", nil).Read(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, set.Files)
	require.Len(t, set.Courses, 3)

	// Lexicographic filename order: page_0 before page_100.
	assert.Equal(t, "C1", set.Courses[0].Identity("course_id"))
	assert.Equal(t, "C2", set.Courses[1].Identity("course_id"))
	assert.Equal(t, "C3", set.Courses[2].Identity("course_id"))

	assert.Equal(t, "teeradar_page_0.json", set.Courses[0].File)
	assert.Equal(t, 0, set.Courses[0].Offset)
	assert.Equal(t, "2025-06-01T10:00:00Z", set.Courses[0].FetchedAt)
	assert.Equal(t, 100, set.Courses[2].Offset)

	// Field presence is the union across all files.
	assert.True(t, set.Fields.Has("rating"))
	assert.True(t, set.Fields.Has("tee_fee"))
	assert.False(t, set.Fields.Has("length_yards"))
}

func TestReadMissingCoursesIsEmptyPage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCapture(t, dir, "teeradar_page_0.json", `{"fetched_at": "2025-06-01T10:00:00Z", "offset": 0, "payload": {}}`)
	writeCapture(t, dir, "teeradar_page_100.json", `{"fetched_at": "2025-06-01T10:01:00Z", "offset": 100, "payload": null}`)

	set, err := capture.NewReader("", nil).Read(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Files)
	assert.Empty(t, set.Courses)
}

func TestReadMalformedFileIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCapture(t, dir, "teeradar_page_0.json", `{"fetched_at": "2025-06-01T10:00:00Z", "offset": 0, "payload"`)

	_, err := capture.NewReader("", nil).Read(dir)
	require.Error(t, err)

	var perr *capture.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.File, "teeradar_page_0.json")
}

func TestReadEmptyDirectory(t *testing.T) {
	t.Parallel()

	set, err := capture.NewReader("", nil).Read(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, set.Files)
	assert.Empty(t, set.Courses)
}

func TestReadIgnoresUnrelatedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCapture(t, dir, "notes.txt", "not a capture")
	writeCapture(t, dir, "teeradar_page_0.json", `{"fetched_at": "2025-06-01T10:00:00Z", "offset": 0, "payload": {"courses": [{"course_id": "C1"}]}}`)

	set, err := capture.NewReader("", nil).Read(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Files)
	assert.Len(t, set.Courses, 1)
}
