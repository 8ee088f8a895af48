package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/cache/redis"
	"github.com/nhien36hk/StudentActivityTracker/internal/metrics"
	"github.com/nhien36hk/StudentActivityTracker/internal/search"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/sqlite"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
	"github.com/nhien36hk/StudentActivityTracker/pkg/textutil"
)

type SearchHandler struct {
	engine *search.Engine
	db     *sqlite.Client
	cache  *redis.Client
}

// NewSearchHandler wires the engine with optional analytics (db) and
// response cache; either may be nil.
func NewSearchHandler(engine *search.Engine, db *sqlite.Client, cache *redis.Client) *SearchHandler {
	return &SearchHandler{engine: engine, db: db, cache: cache}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if sanitized, ok := c.Locals("search_query").(string); ok {
		query = sanitized
	}
	start := time.Now()

	queryHash := textutil.HashString(strings.TrimSpace(query))
	if h.cache != nil {
		if cached, err := h.cache.GetSearch(c.Context(), queryHash); err == nil && cached != nil {
			metrics.SearchCacheHits.Inc()
			return c.JSON(cached)
		}
	}

	result, err := h.engine.Search(query)
	if err != nil {
		if errors.Is(err, search.ErrIndexNotReady) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Search index is not ready",
			})
		}
		logger.Error("Search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process search",
		})
	}

	h.logSearch(query, len(result.Records), int(time.Since(start).Milliseconds()))

	if h.cache != nil && len(result.Records) > 0 {
		if err := h.cache.SetSearch(c.Context(), queryHash, result); err != nil {
			logger.Warn("Failed to cache search result", zap.Error(err))
		}
	}

	return c.JSON(result)
}

func (h *SearchHandler) logSearch(query string, resultCount, latencyMS int) {
	if h.db == nil || strings.TrimSpace(query) == "" {
		return
	}

	searchType := "name"
	if textutil.HasDigit(query) {
		searchType = "id"
	}

	err := h.db.InsertSearchLog(&models.SearchLogEntry{
		ID:          uuid.New().String(),
		Query:       query,
		SearchType:  searchType,
		ResultCount: resultCount,
		LatencyMS:   latencyMS,
	})
	if err != nil {
		logger.Warn("Failed to log search", zap.Error(err))
	}
}
