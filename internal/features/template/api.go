package template

import (
	"go-erp/internal/config"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TemplateApi struct {
	TemplateController *TemplateController
	Config             *config.Config
}

func NewTemplateApi(templateController *TemplateController, config *config.Config) *TemplateApi {
	return &TemplateApi{
		TemplateController: templateController,
		Config:             config,
	}
}

func (api *TemplateApi) Setup(app *fiber.App) {
	group := app.Group("/api/report-templates", middleware.AuthMiddleware(api.Config.SkipAuth, api.Config.AdminRole))

	group.Post("/", api.TemplateController.Create)
	group.Get("/", api.TemplateController.List)
	group.Post("/from-report/:id", api.TemplateController.FromReport)
	group.Get("/:id", api.TemplateController.Get)
	group.Put("/:id", api.TemplateController.Update)
	group.Delete("/:id", api.TemplateController.Delete)
	group.Post("/:id/instantiate", api.TemplateController.Instantiate)
}
