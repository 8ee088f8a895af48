package search

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/metrics"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
	"github.com/nhien36hk/StudentActivityTracker/pkg/textutil"
)

// ErrIndexNotReady distinguishes "engine has no index yet" from a query
// with no matches, which is a normal empty result.
var ErrIndexNotReady = errors.New("search index not built")

// Index is an immutable lookup structure over one snapshot. Lookups by
// id go through a map; name search is a linear scan over normalized
// names, which is ample for one institution's population.
type Index struct {
	byID       map[string]*models.StudentRecord
	ids        []string
	names      []nameEntry
	activities int
}

type nameEntry struct {
	normalized string
	id         string
}

func NewIndex(students map[string]*models.StudentRecord) *Index {
	idx := &Index{
		byID:  make(map[string]*models.StudentRecord, len(students)),
		ids:   make([]string, 0, len(students)),
		names: make([]nameEntry, 0, len(students)),
	}

	for id, record := range students {
		key := textutil.NormalizeID(id)
		idx.byID[key] = record
		idx.ids = append(idx.ids, key)
		idx.activities += len(record.Activities)
	}

	// Sorted ids make fuzzy scans and rank tie-breaks deterministic.
	sort.Strings(idx.ids)
	for _, id := range idx.ids {
		idx.names = append(idx.names, nameEntry{
			normalized: textutil.NormalizeName(idx.byID[id].Name),
			id:         id,
		})
	}

	return idx
}

// Engine serves queries against the current index. It is read-only at
// query time; Rebuild swaps the whole index atomically, so concurrent
// readers keep the old one until the swap completes.
type Engine struct {
	index      atomic.Pointer[Index]
	maxResults int
}

func NewEngine(maxResults int) *Engine {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Engine{maxResults: maxResults}
}

func (e *Engine) Rebuild(students map[string]*models.StudentRecord) {
	idx := NewIndex(students)
	e.index.Store(idx)

	metrics.StudentsTotal.Set(float64(len(idx.byID)))
	metrics.ActivitiesTotal.Set(float64(idx.activities))

	logger.Info("Search index rebuilt",
		zap.Int("students", len(idx.byID)),
		zap.Int("activities", idx.activities),
	)
}

// Search classifies the query and runs the matching strategy. A blank
// query and a query with zero matches both return an empty result and
// no error; absence is not exceptional.
func (e *Engine) Search(query string) (models.SearchResult, error) {
	idx := e.index.Load()
	if idx == nil {
		return models.SearchResult{}, ErrIndexNotReady
	}

	start := time.Now()
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return models.SearchResult{Query: query, Kind: models.MatchFuzzy}, nil
	}

	var result models.SearchResult
	searchType := "name"
	if textutil.HasDigit(trimmed) {
		searchType = "id"
		result = idx.searchByID(trimmed, e.maxResults)
	} else {
		result = idx.searchByName(trimmed, e.maxResults)
	}
	result.Query = query

	metrics.SearchesTotal.WithLabelValues(searchType).Inc()
	metrics.SearchDuration.WithLabelValues(searchType).Observe(time.Since(start).Seconds())

	return result, nil
}

func (e *Engine) Stats() (models.Stats, error) {
	idx := e.index.Load()
	if idx == nil {
		return models.Stats{}, ErrIndexNotReady
	}
	return models.Stats{
		TotalStudents:   len(idx.byID),
		TotalActivities: idx.activities,
	}, nil
}

// searchByID tries the exact map first, then falls back to substring
// containment in either direction, which tolerates partial identifiers
// as well as queries padded with leading zeros.
func (idx *Index) searchByID(query string, limit int) models.SearchResult {
	key := textutil.NormalizeID(query)

	if record, ok := idx.byID[key]; ok {
		return models.SearchResult{
			Kind:    models.MatchExact,
			Records: []models.StudentRecord{*record},
		}
	}

	var records []models.StudentRecord
	for _, id := range idx.ids {
		if strings.Contains(id, key) || strings.Contains(key, id) {
			records = append(records, *idx.byID[id])
			if len(records) >= limit {
				break
			}
		}
	}

	return models.SearchResult{Kind: models.MatchFuzzy, Records: records}
}

// searchByName matches the normalized query as a substring of each
// normalized name, ranked exact full name, then prefix, then generic
// substring; ties keep id order.
func (idx *Index) searchByName(query string, limit int) models.SearchResult {
	normalized := textutil.NormalizeName(query)
	if normalized == "" {
		return models.SearchResult{Kind: models.MatchFuzzy}
	}

	var exact, prefix, substring []models.StudentRecord
	for _, entry := range idx.names {
		switch {
		case entry.normalized == normalized:
			exact = append(exact, *idx.byID[entry.id])
		case strings.HasPrefix(entry.normalized, normalized):
			prefix = append(prefix, *idx.byID[entry.id])
		case strings.Contains(entry.normalized, normalized):
			substring = append(substring, *idx.byID[entry.id])
		}
	}

	records := append(append(exact, prefix...), substring...)
	if len(records) > limit {
		records = records[:limit]
	}

	return models.SearchResult{Kind: models.MatchFuzzy, Records: records}
}
