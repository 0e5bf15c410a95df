package system

import (
	"go-erp/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// SwaggerApi serves the generated API reference outside production.
type SwaggerApi struct {
	config *config.Config
}

func NewSwaggerApi(cfg *config.Config) *SwaggerApi {
	return &SwaggerApi{config: cfg}
}

// Setup mounts the swagger UI under /swagger
func (h *SwaggerApi) Setup(app *fiber.App) {
	if h.config.Environment == "production" {
		return
	}
	app.Get("/swagger/*", swagger.New(swagger.Config{
		Title:                  "ERP Reporting API",
		DeepLinking:            true,
		DocExpansion:           "list",
		DisplayRequestDuration: true,
	}))
}
