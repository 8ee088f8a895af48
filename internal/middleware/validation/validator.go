package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	// MaxQueryLength bounds the q parameter in runes.
	MaxQueryLength int
	Logger         *zap.Logger
}

// QueryMiddleware validates the q parameter before it reaches the
// search handler. The sanitized form is stored in locals under
// "search_query".
func QueryMiddleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 200
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		query := c.Query("q")

		if !utf8.ValidString(query) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query must be valid UTF-8",
			})
		}

		if utf8.RuneCountInString(query) > cfg.MaxQueryLength {
			cfg.Logger.Warn("Oversized search query rejected",
				zap.String("ip", c.IP()),
				zap.Int("length", utf8.RuneCountInString(query)),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query exceeds maximum length",
			})
		}

		if containsControlChars(query) {
			cfg.Logger.Warn("Search query with control characters rejected",
				zap.String("ip", c.IP()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query contains invalid characters",
			})
		}

		c.Locals("search_query", sanitize(query))
		return c.Next()
	}
}

func containsControlChars(input string) bool {
	for _, r := range input {
		if unicode.IsControl(r) && r != '\t' {
			return true
		}
	}
	return false
}

func sanitize(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
