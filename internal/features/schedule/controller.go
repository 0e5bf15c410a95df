package schedule

import (
	"time"

	"go-erp/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type SchedulerController struct {
	SchedulerService SchedulerService
}

func NewSchedulerController(schedulerService SchedulerService) *SchedulerController {
	return &SchedulerController{SchedulerService: schedulerService}
}

// Tick godoc
// @Summary Fire a scheduler tick now
// @Description Runs every report due in the window ending now and waits for them
// @Tags scheduler
// @Produce json
// @Success 200 {object} TickSummary
// @Router /api/admin/scheduler/tick [post]
func (c *SchedulerController) Tick(ctx *fiber.Ctx) error {
	summary, err := c.SchedulerService.RunTick(ctx.UserContext(), time.Now())
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(summary)
}
