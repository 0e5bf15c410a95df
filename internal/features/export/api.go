package export

import (
	"go-erp/internal/config"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ExportApi struct {
	ExportController *ExportController
	Config           *config.Config
}

func NewExportApi(exportController *ExportController, config *config.Config) *ExportApi {
	return &ExportApi{ExportController: exportController, Config: config}
}

func (api *ExportApi) Setup(app *fiber.App) {
	app.Get("/api/executions/:id/export", middleware.AuthMiddleware(api.Config.SkipAuth, api.Config.AdminRole), api.ExportController.Export)
}
