package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/snapshot"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

// UnresolvedHandler serves the raw rows whose student identifier could
// not be validated, for manual review.
type UnresolvedHandler struct {
	snapshotDir string
}

func NewUnresolvedHandler(snapshotDir string) *UnresolvedHandler {
	return &UnresolvedHandler{snapshotDir: snapshotDir}
}

func (h *UnresolvedHandler) HandleUnresolved(c *fiber.Ctx) error {
	if !snapshot.Exists(h.snapshotDir) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No snapshot available",
		})
	}

	raw, err := snapshot.LoadRaw(h.snapshotDir)
	if err != nil {
		logger.Error("Failed to load raw records", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load records",
		})
	}

	unresolved := make([]models.RawActivityRecord, 0)
	for _, r := range raw {
		if !r.StudentID.Known {
			unresolved = append(unresolved, r)
		}
	}

	return c.JSON(fiber.Map{
		"count":   len(unresolved),
		"records": unresolved,
	})
}
