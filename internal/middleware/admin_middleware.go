package middleware

import (
	"go-erp/internal/features/access"

	"github.com/gofiber/fiber/v2"
)

// AdminMiddleware checks if the user has the administrative role
func AdminMiddleware(gate *access.Gate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if !gate.IsAdmin(identity) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: Admin role required",
			})
		}

		return c.Next()
	}
}
