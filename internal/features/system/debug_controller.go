package system

import (
	"go-erp/internal/common/api"
	"go-erp/internal/features/access"
	"go-erp/internal/features/report"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

var reportActions = []access.Action{
	access.ActionView,
	access.ActionEdit,
	access.ActionTrigger,
	access.ActionExport,
	access.ActionDelete,
	access.ActionShare,
}

type DebugController struct {
	gate    *access.Gate
	reports report.ReportService
}

func NewDebugController(gate *access.Gate, reports report.ReportService) *DebugController {
	return &DebugController{gate: gate, reports: reports}
}

// GetCurrentUser godoc
// @Summary      Get current identity
// @Description  Shows the identity the permission gate sees for this token
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	return ctx.JSON(fiber.Map{
		"user_id":   identity.UserID,
		"tenant_id": identity.TenantID,
		"roles":     identity.Roles,
		"is_admin":  c.gate.IsAdmin(identity),
	})
}

// ReportAccess godoc
// @Summary      Explain report access
// @Description  Lists which report actions the caller may perform. Only callers who can view the report get an answer.
// @Tags         debug
// @Produce      json
// @Param        id   path      string  true  "Report ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/debug/reports/{id}/access [get]
func (c *DebugController) ReportAccess(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	rep, err := c.reports.Authorize(ctx.UserContext(), identity, ctx.Params("id"), access.ActionView)
	if err != nil {
		return api.Error(ctx, err)
	}

	allowed := fiber.Map{}
	for _, action := range reportActions {
		allowed[string(action)] = rep.Authorize(c.gate, identity, action) == nil
	}
	return ctx.JSON(fiber.Map{
		"report_id": ctx.Params("id"),
		"owner":     rep.CreatedBy,
		"is_admin":  c.gate.IsAdmin(identity),
		"actions":   allowed,
	})
}
