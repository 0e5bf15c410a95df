package execution

import (
	"go-erp/internal/config"
	"go-erp/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type ExecutionApi struct {
	ExecutionController *ExecutionController
	Config              *config.Config
}

func NewExecutionApi(executionController *ExecutionController, config *config.Config) *ExecutionApi {
	return &ExecutionApi{
		ExecutionController: executionController,
		Config:              config,
	}
}

func (api *ExecutionApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(api.Config.SkipAuth, api.Config.AdminRole)

	reports := app.Group("/api/reports/:id/executions", auth)
	reports.Post("/", api.ExecutionController.Trigger)
	reports.Get("/", api.ExecutionController.ListByReport)

	// Registered before /:id so "ws" is not taken for an execution id.
	app.Get("/api/executions/ws", auth, api.ExecutionController.Upgrade, websocket.New(api.ExecutionController.Stream))

	group := app.Group("/api/executions", auth)
	group.Get("/:id", api.ExecutionController.Get)
	group.Get("/:id/result", api.ExecutionController.Result)
	group.Post("/:id/cancel", api.ExecutionController.Cancel)
	group.Delete("/:id", api.ExecutionController.Delete)
}
