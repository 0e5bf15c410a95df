package template

import (
	"strconv"

	"go-erp/internal/common/api"
	"go-erp/internal/features/report"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TemplateController struct {
	TemplateService TemplateService
}

func NewTemplateController(templateService TemplateService) *TemplateController {
	return &TemplateController{TemplateService: templateService}
}

// Create godoc
// @Summary Create a report template
// @Tags report-templates
// @Accept json
// @Produce json
// @Param template body Template true "Template"
// @Success 201 {object} Template
// @Router /api/report-templates [post]
func (c *TemplateController) Create(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var tpl Template
	if err := ctx.BodyParser(&tpl); err != nil {
		return api.BadRequest(ctx, "Invalid request body")
	}
	if err := c.TemplateService.CreateTemplate(ctx.UserContext(), identity, &tpl); err != nil {
		return api.Error(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(tpl)
}

// List godoc
// @Summary List visible report templates
// @Tags report-templates
// @Produce json
// @Param category query string false "Category"
// @Param type query string false "Report type"
// @Param tag query string false "Tag"
// @Param search query string false "Search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /api/report-templates [get]
func (c *TemplateController) List(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	page, _ := strconv.ParseInt(ctx.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(ctx.Query("limit", "20"), 10, 64)
	filter := ListFilter{
		Category: report.Category(ctx.Query("category")),
		Type:     report.ReportType(ctx.Query("type")),
		Tag:      ctx.Query("tag"),
		Search:   ctx.Query("search"),
		Page:     page,
		Limit:    limit,
	}
	templates, total, err := c.TemplateService.ListTemplates(ctx.UserContext(), identity, filter)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"data":  templates,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Get godoc
// @Summary Get a report template
// @Tags report-templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} Template
// @Router /api/report-templates/{id} [get]
func (c *TemplateController) Get(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	tpl, err := c.TemplateService.GetTemplate(ctx.UserContext(), identity, ctx.Params("id"))
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(tpl)
}

// Update godoc
// @Summary Update a report template
// @Tags report-templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param template body Template true "Template"
// @Success 200 {object} Template
// @Router /api/report-templates/{id} [put]
func (c *TemplateController) Update(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var tpl Template
	if err := ctx.BodyParser(&tpl); err != nil {
		return api.BadRequest(ctx, "Invalid request body")
	}
	updated, err := c.TemplateService.UpdateTemplate(ctx.UserContext(), identity, ctx.Params("id"), &tpl)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(updated)
}

// Delete godoc
// @Summary Delete a report template
// @Tags report-templates
// @Param id path string true "Template ID"
// @Success 204
// @Router /api/report-templates/{id} [delete]
func (c *TemplateController) Delete(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	if err := c.TemplateService.DeleteTemplate(ctx.UserContext(), identity, ctx.Params("id")); err != nil {
		return api.Error(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// Instantiate godoc
// @Summary Create a report from a template
// @Tags report-templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param request body InstantiateRequest false "Overrides"
// @Success 201 {object} report.Report
// @Router /api/report-templates/{id}/instantiate [post]
func (c *TemplateController) Instantiate(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var req InstantiateRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return api.BadRequest(ctx, "Invalid request body")
		}
	}
	r, err := c.TemplateService.Instantiate(ctx.UserContext(), identity, ctx.Params("id"), req)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(r)
}

// FromReport godoc
// @Summary Save a report as a template
// @Tags report-templates
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param request body FromReportRequest false "Template fields"
// @Success 201 {object} Template
// @Router /api/report-templates/from-report/{id} [post]
func (c *TemplateController) FromReport(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var req FromReportRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return api.BadRequest(ctx, "Invalid request body")
		}
	}
	tpl, err := c.TemplateService.CreateFromReport(ctx.UserContext(), identity, ctx.Params("id"), req)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(tpl)
}
