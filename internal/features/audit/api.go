package audit

import (
	"go-erp/internal/config"
	"go-erp/internal/features/access"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	controller *AuditController
	config     *config.Config
	gate       *access.Gate
}

func NewAuditApi(controller *AuditController, config *config.Config, gate *access.Gate) *AuditApi {
	return &AuditApi{
		controller: controller,
		config:     config,
		gate:       gate,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit-logs", middleware.AuthMiddleware(h.config.SkipAuth, h.config.AdminRole), middleware.AdminMiddleware(h.gate))

	audit.Get("/", h.controller.ListLogs)
}
