package schedule

import (
	"go-erp/internal/config"
	"go-erp/internal/features/access"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SchedulerApi struct {
	SchedulerController *SchedulerController
	Config              *config.Config
	Gate                *access.Gate
}

func NewSchedulerApi(schedulerController *SchedulerController, config *config.Config, gate *access.Gate) *SchedulerApi {
	return &SchedulerApi{
		SchedulerController: schedulerController,
		Config:              config,
		Gate:                gate,
	}
}

func (api *SchedulerApi) Setup(app *fiber.App) {
	group := app.Group("/api/admin/scheduler",
		middleware.AuthMiddleware(api.Config.SkipAuth, api.Config.AdminRole),
		middleware.AdminMiddleware(api.Gate))
	group.Post("/tick", api.SchedulerController.Tick)
}
