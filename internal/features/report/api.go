package report

import (
	"go-erp/internal/config"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	ReportController *ReportController
	Config           *config.Config
}

func NewReportApi(reportController *ReportController, config *config.Config) *ReportApi {
	return &ReportApi{
		ReportController: reportController,
		Config:           config,
	}
}

func (api *ReportApi) Setup(app *fiber.App) {
	group := app.Group("/api/reports", middleware.AuthMiddleware(api.Config.SkipAuth, api.Config.AdminRole))

	group.Post("/", api.ReportController.Create)
	group.Get("/", api.ReportController.List)
	group.Get("/:id", api.ReportController.Get)
	group.Put("/:id", api.ReportController.Update)
	group.Delete("/:id", api.ReportController.Delete)

	// Lifecycle and dedicated surfaces
	group.Post("/:id/archive", api.ReportController.Archive)
	group.Post("/:id/activate", api.ReportController.Activate)
	group.Post("/:id/deactivate", api.ReportController.Deactivate)
	group.Put("/:id/schedule", api.ReportController.UpdateSchedule)
	group.Put("/:id/permissions", api.ReportController.UpdatePermissions)
}
