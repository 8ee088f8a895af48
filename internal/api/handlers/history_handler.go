package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/sqlite"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

// HistoryHandler exposes recent search activity from the analytics log.
type HistoryHandler struct {
	db *sqlite.Client
}

func NewHistoryHandler(db *sqlite.Client) *HistoryHandler {
	return &HistoryHandler{db: db}
}

func (h *HistoryHandler) HandleRecentSearches(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	entries, err := h.db.RecentSearches(limit)
	if err != nil {
		logger.Error("Failed to load recent searches", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load search history",
		})
	}

	return c.JSON(fiber.Map{
		"count":    len(entries),
		"searches": entries,
	})
}
