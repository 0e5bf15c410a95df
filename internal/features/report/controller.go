package report

import (
	"context"
	"strconv"

	"go-erp/internal/common/api"
	"go-erp/internal/features/access"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	ReportService ReportService
}

func NewReportController(reportService ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// Create godoc
// @Summary Create a report definition
// @Tags reports
// @Accept json
// @Produce json
// @Param report body Report true "Report definition"
// @Success 201 {object} Report
// @Router /api/reports [post]
func (c *ReportController) Create(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var report Report
	if err := ctx.BodyParser(&report); err != nil {
		return api.BadRequest(ctx, "Invalid request body")
	}

	if err := c.ReportService.CreateReport(ctx.UserContext(), identity, &report); err != nil {
		return api.Error(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(report)
}

// List godoc
// @Summary List visible reports
// @Tags reports
// @Produce json
// @Param category query string false "Category"
// @Param type query string false "Report type"
// @Param status query string false "Status"
// @Param search query string false "Search in name, number and description"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /api/reports [get]
func (c *ReportController) List(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	page, _ := strconv.ParseInt(ctx.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(ctx.Query("limit", "20"), 10, 64)
	filter := ListFilter{
		Category: Category(ctx.Query("category")),
		Type:     ReportType(ctx.Query("type")),
		Status:   Status(ctx.Query("status")),
		Search:   ctx.Query("search"),
		Page:     page,
		Limit:    limit,
	}

	reports, total, err := c.ReportService.ListReports(ctx.UserContext(), identity, filter)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"data":  reports,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Get godoc
// @Summary Get a report definition
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} Report
// @Router /api/reports/{id} [get]
func (c *ReportController) Get(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	report, err := c.ReportService.GetReport(ctx.UserContext(), identity, ctx.Params("id"))
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(report)
}

// Update godoc
// @Summary Update a report definition
// @Description A supplied version must match the stored one
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param report body Report true "Report definition"
// @Success 200 {object} Report
// @Router /api/reports/{id} [put]
func (c *ReportController) Update(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var report Report
	if err := ctx.BodyParser(&report); err != nil {
		return api.BadRequest(ctx, "Invalid request body")
	}

	updated, err := c.ReportService.UpdateReport(ctx.UserContext(), identity, ctx.Params("id"), &report)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(updated)
}

// Delete godoc
// @Summary Delete a report definition
// @Tags reports
// @Param id path string true "Report ID"
// @Success 204
// @Router /api/reports/{id} [delete]
func (c *ReportController) Delete(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	if err := c.ReportService.DeleteReport(ctx.UserContext(), identity, ctx.Params("id")); err != nil {
		return api.Error(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// Archive godoc
// @Summary Archive a report
// @Tags reports
// @Param id path string true "Report ID"
// @Router /api/reports/{id}/archive [post]
func (c *ReportController) Archive(ctx *fiber.Ctx) error {
	return c.transition(ctx, c.ReportService.Archive)
}

// Activate godoc
// @Summary Activate a report
// @Tags reports
// @Param id path string true "Report ID"
// @Router /api/reports/{id}/activate [post]
func (c *ReportController) Activate(ctx *fiber.Ctx) error {
	return c.transition(ctx, c.ReportService.Activate)
}

// Deactivate godoc
// @Summary Deactivate a report
// @Tags reports
// @Param id path string true "Report ID"
// @Router /api/reports/{id}/deactivate [post]
func (c *ReportController) Deactivate(ctx *fiber.Ctx) error {
	return c.transition(ctx, c.ReportService.Deactivate)
}

// UpdateSchedule godoc
// @Summary Replace a report's schedule
// @Tags reports
// @Accept json
// @Param id path string true "Report ID"
// @Param schedule body ScheduleConfig true "Schedule"
// @Router /api/reports/{id}/schedule [put]
func (c *ReportController) UpdateSchedule(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var schedule ScheduleConfig
	if err := ctx.BodyParser(&schedule); err != nil {
		return api.BadRequest(ctx, "Invalid request body")
	}
	report, err := c.ReportService.UpdateSchedule(ctx.UserContext(), identity, ctx.Params("id"), schedule)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(report)
}

// UpdatePermissions godoc
// @Summary Replace a report's sharing settings
// @Tags reports
// @Accept json
// @Param id path string true "Report ID"
// @Param permissions body access.PermissionSet true "Permissions"
// @Router /api/reports/{id}/permissions [put]
func (c *ReportController) UpdatePermissions(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var perms access.PermissionSet
	if err := ctx.BodyParser(&perms); err != nil {
		return api.BadRequest(ctx, "Invalid request body")
	}
	report, err := c.ReportService.UpdatePermissions(ctx.UserContext(), identity, ctx.Params("id"), perms)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(report)
}

type transitionFunc func(ctx context.Context, id access.Identity, reportID string) (*Report, error)

func (c *ReportController) transition(ctx *fiber.Ctx, fn transitionFunc) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	report, err := fn(ctx.UserContext(), identity, ctx.Params("id"))
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(report)
}
