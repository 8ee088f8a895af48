package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	students := map[string]*models.StudentRecord{
		"22110123": {
			StudentID:  "22110123",
			Name:       "Nguyễn Văn A",
			ClassCode:  "22DTHD3",
			TotalScore: 5,
			Activities: []models.RawActivityRecord{
				{
					StudentID:      models.KnownField("22110123"),
					StudentName:    models.KnownField("Nguyễn Văn A"),
					ActivityName:   "Hiến máu",
					Score:          5,
					SourceDocument: "doc-1",
					Confidence:     models.ConfidenceKnown,
				},
			},
		},
	}
	raw := []models.RawActivityRecord{
		students["22110123"].Activities[0],
		{
			StudentName:    models.KnownField("Trần Thị B"),
			ActivityName:   "Hiến máu",
			Score:          5,
			SourceDocument: "doc-1",
			Confidence:     models.ConfidenceUnknown,
		},
	}

	assert.False(t, Exists(dir))
	require.NoError(t, Write(dir, students, raw))
	assert.True(t, Exists(dir))

	loaded, err := LoadStudents(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, students["22110123"], loaded["22110123"])

	loadedRaw, err := LoadRaw(dir)
	require.NoError(t, err)
	require.Len(t, loadedRaw, 2)
	// Unresolved rows survive the round trip with their unknown fields.
	assert.False(t, loadedRaw[1].StudentID.Known)
	assert.Equal(t, models.ConfidenceUnknown, loadedRaw[1].Confidence)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, map[string]*models.StudentRecord{}, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestWriteReplacesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Write(dir, map[string]*models.StudentRecord{
		"22110123": {StudentID: "22110123", TotalScore: 5},
	}, nil))
	require.NoError(t, Write(dir, map[string]*models.StudentRecord{
		"22110456": {StudentID: "22110456", TotalScore: 3},
	}, nil))

	loaded, err := LoadStudents(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Contains(t, loaded, "22110456")
}

func TestLoadStudentsMissing(t *testing.T) {
	_, err := LoadStudents(t.TempDir())
	assert.Error(t, err)
}

func TestLoadStudentsCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "students.json"), []byte("{not json"), 0644))

	_, err := LoadStudents(dir)
	assert.Error(t, err)
}
