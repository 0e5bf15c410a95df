package execution

import (
	"context"
	"encoding/json"
	"strconv"

	"go-erp/internal/common/api"
	common_models "go-erp/internal/common/models"
	"go-erp/internal/features/access"
	"go-erp/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const identityLocal = "execution_identity"

type ExecutionController struct {
	ExecutionService ExecutionService
	Gate             *access.Gate
	Logger           *zap.Logger
}

func NewExecutionController(executionService ExecutionService, gate *access.Gate, logger *zap.Logger) *ExecutionController {
	return &ExecutionController{ExecutionService: executionService, Gate: gate, Logger: logger}
}

type triggerRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// Trigger godoc
// @Summary Run a report
// @Description Returns immediately with a pending execution
// @Tags executions
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param request body triggerRequest false "Parameter overrides"
// @Success 202 {object} Execution
// @Router /api/reports/{id}/executions [post]
func (c *ExecutionController) Trigger(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	var req triggerRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return api.BadRequest(ctx, "Invalid request body")
		}
	}

	exec, err := c.ExecutionService.Trigger(ctx.UserContext(), identity, ctx.Params("id"), req.Parameters, TriggerManual)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(exec)
}

// ListByReport godoc
// @Summary Execution history of a report
// @Tags executions
// @Produce json
// @Param id path string true "Report ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /api/reports/{id}/executions [get]
func (c *ExecutionController) ListByReport(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	page, _ := strconv.ParseInt(ctx.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(ctx.Query("limit", "20"), 10, 64)

	execs, total, err := c.ExecutionService.ListByReport(ctx.UserContext(), identity, ctx.Params("id"), page, limit)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"data":  execs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Get godoc
// @Summary Get an execution
// @Tags executions
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} Execution
// @Router /api/executions/{id} [get]
func (c *ExecutionController) Get(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	exec, err := c.ExecutionService.Get(ctx.UserContext(), identity, ctx.Params("id"))
	if err != nil {
		return api.Error(ctx, err)
	}
	// The full result is served page by page.
	exec.Result = nil
	return ctx.JSON(exec)
}

// Result godoc
// @Summary Get one page of an execution result
// @Tags executions
// @Produce json
// @Param id path string true "Execution ID"
// @Param page query int false "Page, 1-based"
// @Success 200 {object} Page
// @Router /api/executions/{id}/result [get]
func (c *ExecutionController) Result(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	page, err := strconv.Atoi(ctx.Query("page", "1"))
	if err != nil {
		return api.BadRequest(ctx, "page must be a number")
	}
	p, err := c.ExecutionService.ResultPage(ctx.UserContext(), identity, ctx.Params("id"), page)
	if err != nil {
		return api.Error(ctx, err)
	}
	return ctx.JSON(p)
}

// Cancel godoc
// @Summary Cancel a pending or running execution
// @Tags executions
// @Produce json
// @Param id path string true "Execution ID"
// @Success 202 {object} Execution
// @Router /api/executions/{id}/cancel [post]
func (c *ExecutionController) Cancel(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	exec, err := c.ExecutionService.Cancel(ctx.UserContext(), identity, ctx.Params("id"))
	if err != nil {
		return api.Error(ctx, err)
	}
	exec.Result = nil
	return ctx.Status(fiber.StatusAccepted).JSON(exec)
}

// Delete godoc
// @Summary Delete a finished execution
// @Tags executions
// @Param id path string true "Execution ID"
// @Success 204
// @Router /api/executions/{id} [delete]
func (c *ExecutionController) Delete(ctx *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	if err := c.ExecutionService.Delete(ctx.UserContext(), identity, ctx.Params("id")); err != nil {
		return api.Error(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// Upgrade admits authenticated websocket handshakes and remembers the caller.
func (c *ExecutionController) Upgrade(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		return api.Unauthorized(ctx)
	}
	ctx.Locals(identityLocal, identity)
	return ctx.Next()
}

// Stream pushes status events of the executions the caller may view. An
// optional report_id query narrows the stream to one report.
func (c *ExecutionController) Stream(conn *websocket.Conn) {
	identity, _ := conn.Locals(identityLocal).(access.Identity)
	reportID := conn.Query("report_id")

	streamCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if identity.TenantID != "" {
		streamCtx = context.WithValue(streamCtx, common_models.TenantIDKey, identity.TenantID)
	}

	events, unsubscribe := c.ExecutionService.Events().Subscribe(32)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if reportID != "" && ev.ReportID != reportID {
				continue
			}
			if !c.ExecutionService.EventVisible(streamCtx, identity, ev) {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Logger.Debug("Execution stream closed", zap.String("user_id", identity.UserID), zap.Error(err))
				return
			}
		}
	}
}
