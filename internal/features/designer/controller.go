package designer

import (
	"go-erp/internal/common/api"
	"go-erp/internal/config"

	"github.com/gofiber/fiber/v2"
)

type DesignerController struct {
	Config *config.Config
}

func NewDesignerController(cfg *config.Config) *DesignerController {
	return &DesignerController{Config: cfg}
}

// Apply godoc
// @Summary Apply designer operations
// @Description Applies a batch of editing operations to a component list without persisting it
// @Tags report-designer
// @Accept json
// @Produce json
// @Param request body ApplyRequest true "Components and operations"
// @Success 200 {object} Session
// @Router /api/report-designer/apply [post]
func (ctrl *DesignerController) Apply(c *fiber.Ctx) error {
	var req ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return api.BadRequest(c, "Invalid request body")
	}
	if req.DefaultModule == "" {
		req.DefaultModule = ctrl.Config.DefaultModule
	}
	session, err := Apply(req)
	if err != nil {
		return api.Error(c, err)
	}
	return c.JSON(session)
}
