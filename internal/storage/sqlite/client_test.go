package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())
	return client
}

func TestFetchLedger(t *testing.T) {
	client := newTestClient(t)

	last, err := client.LastFetch("https://docs.google.com/document/d/abc/edit")
	require.NoError(t, err)
	assert.Nil(t, last, "unknown reference must return nil, not an error")

	require.NoError(t, client.AppendFetch(&models.FetchLedgerEntry{
		Reference: "https://docs.google.com/document/d/abc/edit",
		Status:    models.StatusNotFound,
		Attempts:  3,
		Detail:    "unexpected status 404",
	}))
	require.NoError(t, client.AppendFetch(&models.FetchLedgerEntry{
		Reference: "https://docs.google.com/document/d/abc/edit",
		LocalPath: "/tmp/abc.docx",
		Checksum:  "deadbeef",
		Status:    models.StatusOK,
		Attempts:  1,
	}))

	last, err = client.LastFetch("https://docs.google.com/document/d/abc/edit")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, models.StatusOK, last.Status)
	assert.Equal(t, "deadbeef", last.Checksum)
	assert.Equal(t, 1, last.Attempts)
	assert.False(t, last.CreatedAt.IsZero())
}

func TestSearchLogs(t *testing.T) {
	client := newTestClient(t)

	count, err := client.CountSearches()
	require.NoError(t, err)
	assert.Zero(t, count)

	for _, q := range []string{"22110123", "nguyen van a"} {
		searchType := "name"
		if q == "22110123" {
			searchType = "id"
		}
		require.NoError(t, client.InsertSearchLog(&models.SearchLogEntry{
			ID:          uuid.New().String(),
			Query:       q,
			SearchType:  searchType,
			ResultCount: 1,
			LatencyMS:   2,
		}))
	}

	count, err = client.CountSearches()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	recent, err := client.RecentSearches(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	for _, e := range recent {
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.Query)
	}
}
