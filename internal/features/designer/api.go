package designer

import (
	"go-erp/internal/config"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DesignerApi struct {
	controller *DesignerController
	config     *config.Config
}

func NewDesignerApi(controller *DesignerController, config *config.Config) *DesignerApi {
	return &DesignerApi{controller: controller, config: config}
}

func (h *DesignerApi) Setup(app *fiber.App) {
	group := app.Group("/api/report-designer", middleware.AuthMiddleware(h.config.SkipAuth, h.config.AdminRole))
	group.Post("/apply", h.controller.Apply)
}
