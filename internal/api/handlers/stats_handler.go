package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/search"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/sqlite"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

type StatsHandler struct {
	engine *search.Engine
	db     *sqlite.Client
}

func NewStatsHandler(engine *search.Engine, db *sqlite.Client) *StatsHandler {
	return &StatsHandler{engine: engine, db: db}
}

func (h *StatsHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.engine.Stats()
	if err != nil {
		if errors.Is(err, search.ErrIndexNotReady) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Search index is not ready",
			})
		}
		logger.Error("Failed to get stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get stats",
		})
	}

	var totalSearches int64
	if h.db != nil {
		totalSearches, err = h.db.CountSearches()
		if err != nil {
			logger.Warn("Failed to count searches", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"total_students":   stats.TotalStudents,
		"total_activities": stats.TotalActivities,
		"total_searches":   totalSearches,
	})
}
