package export

import (
	"fmt"

	"go-erp/internal/common/api"
	"go-erp/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ExportController struct {
	ExportService ExportService
}

func NewExportController(exportService ExportService) *ExportController {
	return &ExportController{ExportService: exportService}
}

// Export godoc
// @Summary Download a completed execution
// @Tags executions
// @Produce octet-stream
// @Param id path string true "Execution ID"
// @Param format query string false "pdf, excel, csv or json" default(pdf)
// @Success 200 {file} file
// @Router /api/executions/{id}/export [get]
func (c *ExportController) Export(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	file, err := c.ExportService.Export(ctx.UserContext(), identity, ctx.Params("id"), ctx.Query("format", string(FormatPDF)))
	if err != nil {
		return api.Error(ctx, err)
	}

	ctx.Set(fiber.HeaderContentType, file.ContentType)
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return ctx.Send(file.Data)
}
