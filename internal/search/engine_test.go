package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
)

func testStudents() map[string]*models.StudentRecord {
	return map[string]*models.StudentRecord{
		"22110123": {
			StudentID:  "22110123",
			Name:       "Nguyễn Văn A",
			ClassCode:  "22DTHD3",
			TotalScore: 8,
			Activities: []models.RawActivityRecord{
				{ActivityName: "Hiến máu", Score: 5, SourceDocument: "doc-1"},
				{ActivityName: "Hội thao", Score: 3, SourceDocument: "doc-2"},
			},
		},
		"22110456": {
			StudentID:  "22110456",
			Name:       "Nguyễn Văn Anh",
			ClassCode:  "22DTHD3",
			TotalScore: 3,
			Activities: []models.RawActivityRecord{
				{ActivityName: "Hội thao", Score: 3, SourceDocument: "doc-2"},
			},
		},
		"21093456": {
			StudentID:  "21093456",
			Name:       "Trần Văn Anh Nguyễn",
			ClassCode:  "21DTHC1",
			TotalScore: 2,
			Activities: []models.RawActivityRecord{
				{ActivityName: "Mùa hè xanh", Score: 2, SourceDocument: "doc-3"},
			},
		},
	}
}

func newTestEngine(t *testing.T, maxResults int) *Engine {
	t.Helper()
	engine := NewEngine(maxResults)
	engine.Rebuild(testStudents())
	return engine
}

func TestEngine_NotReady(t *testing.T) {
	engine := NewEngine(10)

	_, err := engine.Search("22110123")
	assert.ErrorIs(t, err, ErrIndexNotReady)

	_, err = engine.Stats()
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestEngine_ExactIDMatch(t *testing.T) {
	engine := newTestEngine(t, 10)

	result, err := engine.Search("22110123")
	require.NoError(t, err)
	assert.Equal(t, models.MatchExact, result.Kind)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Nguyễn Văn A", result.Records[0].Name)
	assert.Equal(t, 8.0, result.Records[0].TotalScore)
}

func TestEngine_ExactIDToleratesFormatting(t *testing.T) {
	engine := newTestEngine(t, 10)

	result, err := engine.Search(" 22 110-123 ")
	require.NoError(t, err)
	assert.Equal(t, models.MatchExact, result.Kind)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "22110123", result.Records[0].StudentID)
}

func TestEngine_FuzzyIDMatch(t *testing.T) {
	engine := newTestEngine(t, 10)

	result, err := engine.Search("110")
	require.NoError(t, err)
	assert.Equal(t, models.MatchFuzzy, result.Kind)
	require.Len(t, result.Records, 2)
	// Sorted id order keeps fuzzy results deterministic.
	assert.Equal(t, "22110123", result.Records[0].StudentID)
	assert.Equal(t, "22110456", result.Records[1].StudentID)
}

func TestEngine_FuzzyIDToleratesLeadingZeros(t *testing.T) {
	engine := newTestEngine(t, 10)

	result, err := engine.Search("022110123")
	require.NoError(t, err)
	assert.Equal(t, models.MatchFuzzy, result.Kind)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "22110123", result.Records[0].StudentID)
}

func TestEngine_NameMatchIgnoresDiacritics(t *testing.T) {
	engine := newTestEngine(t, 10)

	for _, query := range []string{"Nguyễn Văn A", "nguyen van a", "NGUYEN   VAN  A"} {
		result, err := engine.Search(query)
		require.NoError(t, err, "query %q", query)
		assert.Equal(t, models.MatchFuzzy, result.Kind)
		require.NotEmpty(t, result.Records, "query %q", query)
		assert.Equal(t, "22110123", result.Records[0].StudentID)
	}
}

func TestEngine_NameRankingExactThenPrefixThenSubstring(t *testing.T) {
	engine := newTestEngine(t, 10)

	result, err := engine.Search("nguyen van a")
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	// "nguyen van a" is the whole of the first name and a prefix of
	// "nguyen van anh".
	assert.Equal(t, "22110123", result.Records[0].StudentID)
	assert.Equal(t, "22110456", result.Records[1].StudentID)

	result, err = engine.Search("nguyen")
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	// Prefix matches come before the trailing-substring match.
	assert.Equal(t, "22110123", result.Records[0].StudentID)
	assert.Equal(t, "22110456", result.Records[1].StudentID)
	assert.Equal(t, "21093456", result.Records[2].StudentID)
}

func TestEngine_BlankQuery(t *testing.T) {
	engine := newTestEngine(t, 10)

	result, err := engine.Search("   ")
	require.NoError(t, err)
	assert.Empty(t, result.Records)
}

func TestEngine_NoMatchIsNotAnError(t *testing.T) {
	engine := newTestEngine(t, 10)

	result, err := engine.Search("99999999")
	require.NoError(t, err)
	assert.Equal(t, models.MatchFuzzy, result.Kind)
	assert.Empty(t, result.Records)

	result, err = engine.Search("hoang")
	require.NoError(t, err)
	assert.Empty(t, result.Records)
}

func TestEngine_MaxResultsCapsFuzzyMatches(t *testing.T) {
	engine := newTestEngine(t, 1)

	result, err := engine.Search("nguyen")
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestEngine_RebuildReplacesIndex(t *testing.T) {
	engine := newTestEngine(t, 10)

	engine.Rebuild(map[string]*models.StudentRecord{
		"23000001": {StudentID: "23000001", Name: "Lê Văn C"},
	})

	result, err := engine.Search("22110123")
	require.NoError(t, err)
	assert.Empty(t, result.Records)

	result, err = engine.Search("le van c")
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "23000001", result.Records[0].StudentID)
}

func TestEngine_Stats(t *testing.T) {
	engine := newTestEngine(t, 10)

	stats, err := engine.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 4, stats.TotalActivities)
}
