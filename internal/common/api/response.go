package api

import (
	"go-erp/internal/common/errs"

	"github.com/gofiber/fiber/v2"
)

// Error writes err with the status and body its type maps to.
func Error(c *fiber.Ctx, err error) error {
	return c.Status(errs.HTTPStatus(err)).JSON(errs.Body(err))
}

// BadRequest reports an unparsable request body.
func BadRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": errs.CodeValidation})
}

// Unauthorized is returned when no identity could be resolved.
func Unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}
