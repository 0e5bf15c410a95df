package system

import (
	"go-erp/internal/config"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// DebugApi exposes read-only views of how the permission gate resolves the
// caller. Nothing here mutates state.
type DebugApi struct {
	controller *DebugController
	config     *config.Config
}

func NewDebugApi(controller *DebugController, cfg *config.Config) *DebugApi {
	return &DebugApi{
		controller: controller,
		config:     cfg,
	}
}

// Setup registers the identity and report access routes
func (h *DebugApi) Setup(app *fiber.App) {
	debug := app.Group("/api/debug", middleware.AuthMiddleware(h.config.SkipAuth, h.config.AdminRole))
	debug.Get("/me", h.controller.GetCurrentUser)
	debug.Get("/reports/:id/access", h.controller.ReportAccess)
}
