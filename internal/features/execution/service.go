package execution

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go-erp/internal/common/errs"
	common_models "go-erp/internal/common/models"
	"go-erp/internal/config"
	"go-erp/internal/features/access"
	"go-erp/internal/features/component"
	"go-erp/internal/features/report"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ReportProvider is the part of the report store the engine reads.
type ReportProvider interface {
	Authorize(ctx context.Context, id access.Identity, reportID string, action access.Action) (*report.Report, error)
	FindReport(ctx context.Context, reportID string) (*report.Report, error)
	RecordExecution(ctx context.Context, reportID string, duration time.Duration) error
}

type ExecutionService interface {
	// Trigger validates synchronously, writes a pending execution and
	// starts the run in the background.
	Trigger(ctx context.Context, id access.Identity, reportID string, params map[string]any, trigger Trigger) (*Execution, error)
	Get(ctx context.Context, id access.Identity, executionID string) (*Execution, error)
	// Authorize loads an execution and checks action against its report.
	Authorize(ctx context.Context, id access.Identity, executionID string, action access.Action) (*Execution, error)
	ListByReport(ctx context.Context, id access.Identity, reportID string, page, limit int64) ([]Execution, int64, error)
	ResultPage(ctx context.Context, id access.Identity, executionID string, page int) (*Page, error)
	Cancel(ctx context.Context, id access.Identity, executionID string) (*Execution, error)
	Delete(ctx context.Context, id access.Identity, executionID string) error
	// Wait blocks until the execution is terminal or ctx ends.
	Wait(ctx context.Context, executionID string) (*Execution, error)
	SetDispatch(ctx context.Context, executionID, status, errMsg string) error
	Events() *EventHub
	// EventVisible reports whether id may see ev: the same rule as
	// Authorize with ActionView, applied to a published event.
	EventVisible(ctx context.Context, id access.Identity, ev Event) bool
	EnsureIndexes(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type job struct {
	cancel atomic.Bool
	done   chan struct{}
}

type ExecutionServiceImpl struct {
	Repo     ExecutionRepository
	Reports  ReportProvider
	Gate     *access.Gate
	Logger   *zap.Logger
	PageSize int
	Timeout  time.Duration

	hub      *EventHub
	renderer *renderer
	now      func() time.Time
	poll     time.Duration

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

func NewExecutionService(repo ExecutionRepository, reports report.ReportService, source DataSource, hub *EventHub, gate *access.Gate, cfg *config.Config, logger *zap.Logger) ExecutionService {
	return newService(repo, reports, source, hub, gate, cfg, logger)
}

func newService(repo ExecutionRepository, reports ReportProvider, source DataSource, hub *EventHub, gate *access.Gate, cfg *config.Config, logger *zap.Logger) *ExecutionServiceImpl {
	pageSize := cfg.ReportPageSize
	if pageSize < 1 {
		pageSize = 50
	}
	timeout := cfg.ExecutionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if hub == nil {
		hub = NewEventHub(logger)
	}
	return &ExecutionServiceImpl{
		Repo:     repo,
		Reports:  reports,
		Gate:     gate,
		Logger:   logger,
		PageSize: pageSize,
		Timeout:  timeout,
		hub:      hub,
		renderer: &renderer{source: source, defaultSource: cfg.DefaultDataSource},
		now:      func() time.Time { return time.Now().UTC() },
		poll:     500 * time.Millisecond,
		jobs:     map[string]*job{},
	}
}

func (s *ExecutionServiceImpl) Trigger(ctx context.Context, id access.Identity, reportID string, params map[string]any, trigger Trigger) (*Execution, error) {
	rep, err := s.Reports.Authorize(ctx, id, reportID, access.ActionTrigger)
	if err != nil {
		return nil, err
	}
	if rep.Status == report.StatusArchived {
		return nil, errs.InvalidState(string(rep.Status), "report %s is archived", reportID)
	}
	if trigger == "" {
		trigger = TriggerManual
	}

	nodes := component.CloneList(component.Sorted(rep.Components), false)
	merged, err := MergeParameters(nodes, params)
	if err != nil {
		return nil, err
	}
	if err := CheckPlaceholders(nodes, merged); err != nil {
		return nil, err
	}

	now := s.now()
	exec := &Execution{
		ID:          primitive.NewObjectID(),
		TenantID:    rep.TenantID,
		ExecutionNo: newExecutionNo(now),
		ReportID:    reportID,
		ReportName:  rep.Name,
		Status:      StatusPending,
		Trigger:     trigger,
		Parameters:  merged,
		ExecutedBy:  id.UserID,
		CreatedAt:   now,
	}
	if err := s.Repo.Create(ctx, exec); err != nil {
		return nil, err
	}

	execID := exec.ID.Hex()
	j := &job{done: make(chan struct{})}
	s.mu.Lock()
	s.jobs[execID] = j
	s.mu.Unlock()

	s.Logger.Info("Execution triggered",
		zap.String("report_id", reportID),
		zap.String("execution_id", execID),
		zap.String("trigger", string(trigger)),
		zap.String("executed_by", id.UserID))
	s.publish(exec, StatusPending, "")

	snapshot := *exec
	s.wg.Add(1)
	go s.run(j, snapshot, nodes)

	return exec, nil
}

// run drives one execution from pending to a terminal status. It owns its
// result buffer and never touches the report definition.
func (s *ExecutionServiceImpl) run(j *job, exec Execution, nodes []component.Node) {
	execID := exec.ID.Hex()
	logger := s.Logger.With(zap.String("report_id", exec.ReportID), zap.String("execution_id", execID))

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	if exec.TenantID != "" {
		ctx = context.WithValue(ctx, common_models.TenantIDKey, exec.TenantID)
	}
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.jobs, execID)
		s.mu.Unlock()
		close(j.done)
		s.wg.Done()
	}()

	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Execution panicked", zap.Any("panic", r))
			s.finish(ctx, &exec, StatusRunning, Outcome{
				Status:       StatusFailed,
				ErrorMessage: fmt.Sprintf("internal error: %v", r),
				ErrorDetails: string(debug.Stack()),
			}, started)
		}
	}()

	ok, err := s.Repo.MarkRunning(ctx, execID, started)
	if err != nil {
		logger.Error("Failed to start execution", zap.Error(err))
		s.finish(ctx, &exec, StatusPending, Outcome{Status: StatusFailed, ErrorMessage: "could not start execution", ErrorDetails: err.Error()}, started)
		return
	}
	if !ok {
		// Cancelled while still pending.
		logger.Info("Execution no longer pending, skipping run")
		return
	}
	s.publish(&exec, StatusRunning, "")

	outputs := make([]Output, 0, len(nodes))
	for _, n := range nodes {
		if s.cancelRequested(ctx, j, execID) {
			s.finish(ctx, &exec, StatusRunning, Outcome{Status: StatusCancelled}, started)
			return
		}
		out, err := s.renderer.render(ctx, n, exec.Parameters)
		if err != nil {
			logger.Warn("Execution failed", zap.String("component_id", n.ID), zap.Error(err))
			s.finish(ctx, &exec, StatusRunning, Outcome{
				Status:       StatusFailed,
				ErrorMessage: err.Error(),
				ErrorDetails: errorDetails(n, err),
			}, started)
			return
		}
		outputs = append(outputs, out)
	}
	if s.cancelRequested(ctx, j, execID) {
		s.finish(ctx, &exec, StatusRunning, Outcome{Status: StatusCancelled}, started)
		return
	}

	result := &Result{Outputs: outputs, PageSize: s.PageSize, DominantIndex: -1}
	dominant := 0
	for i, out := range outputs {
		if n, ok := out.RowCount(); ok && (result.DominantIndex < 0 || n > dominant) {
			result.DominantIndex, dominant = i, n
		}
	}
	result.TotalPages = totalPages(dominant, s.PageSize)

	if s.finish(ctx, &exec, StatusRunning, Outcome{Status: StatusCompleted, Result: result, ResultCount: int64(dominant)}, started) {
		if err := s.Reports.RecordExecution(ctx, exec.ReportID, s.now().Sub(started)); err != nil {
			logger.Warn("Failed to record execution on report", zap.Error(err))
		}
	}
}

// cancelRequested checks the in-process flag first and then the stored
// record, which another instance may have flagged.
func (s *ExecutionServiceImpl) cancelRequested(ctx context.Context, j *job, execID string) bool {
	if j.cancel.Load() {
		return true
	}
	stored, err := s.Repo.Get(ctx, execID)
	if err != nil {
		s.Logger.Warn("Failed to read cancel flag", zap.String("execution_id", execID), zap.Error(err))
		return false
	}
	return stored.CancelRequested
}

// finish writes a terminal outcome if the record is still in from.
func (s *ExecutionServiceImpl) finish(ctx context.Context, exec *Execution, from Status, outcome Outcome, started time.Time) bool {
	finished := s.now()
	outcome.FinishedAt = finished
	outcome.ExecutionTimeMs = finished.Sub(started).Milliseconds()

	// The run context may have expired; the terminal write must still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	ok, err := s.Repo.Finish(writeCtx, exec.ID.Hex(), from, outcome)
	if err != nil {
		s.Logger.Error("Failed to record execution outcome",
			zap.String("execution_id", exec.ID.Hex()),
			zap.String("status", string(outcome.Status)),
			zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	s.Logger.Info("Execution finished",
		zap.String("report_id", exec.ReportID),
		zap.String("execution_id", exec.ID.Hex()),
		zap.String("status", string(outcome.Status)),
		zap.Int64("execution_time_ms", outcome.ExecutionTimeMs))
	s.publish(exec, outcome.Status, outcome.ErrorMessage)
	return true
}

func (s *ExecutionServiceImpl) Get(ctx context.Context, id access.Identity, executionID string) (*Execution, error) {
	return s.Authorize(ctx, id, executionID, access.ActionView)
}

// Authorize applies the report's permissions to its executions. The user who
// ran an execution keeps access to it; executions of deleted reports are
// visible only to their executor and administrators.
func (s *ExecutionServiceImpl) Authorize(ctx context.Context, id access.Identity, executionID string, action access.Action) (*Execution, error) {
	exec, err := s.Repo.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if s.Gate.IsAdmin(id) || (id.UserID != "" && exec.ExecutedBy == id.UserID) {
		return exec, nil
	}
	rep, err := s.Reports.FindReport(ctx, exec.ReportID)
	if errs.IsNotFound(err) {
		return nil, errs.Permission(string(action), "execution")
	}
	if err != nil {
		return nil, err
	}
	if err := rep.Authorize(s.Gate, id, action); err != nil {
		return nil, err
	}
	return exec, nil
}

func (s *ExecutionServiceImpl) EventVisible(ctx context.Context, id access.Identity, ev Event) bool {
	if s.Gate.IsAdmin(id) {
		return id.TenantID == "" || id.TenantID == ev.TenantID
	}
	if id.UserID == "" || id.TenantID != ev.TenantID {
		return false
	}
	if ev.ExecutedBy == id.UserID {
		return true
	}
	rep, err := s.Reports.FindReport(ctx, ev.ReportID)
	if err != nil {
		return false
	}
	return rep.Authorize(s.Gate, id, access.ActionView) == nil
}

func (s *ExecutionServiceImpl) ListByReport(ctx context.Context, id access.Identity, reportID string, page, limit int64) ([]Execution, int64, error) {
	if _, err := s.Reports.Authorize(ctx, id, reportID, access.ActionView); err != nil {
		return nil, 0, err
	}
	return s.Repo.ListByReport(ctx, reportID, page, limit)
}

func (s *ExecutionServiceImpl) ResultPage(ctx context.Context, id access.Identity, executionID string, page int) (*Page, error) {
	exec, err := s.Authorize(ctx, id, executionID, access.ActionView)
	if err != nil {
		return nil, err
	}
	if exec.Status != StatusCompleted || exec.Result == nil {
		return nil, errs.InvalidState(string(exec.Status), "execution %s has no result", executionID)
	}
	return SlicePage(exec, page)
}

// SlicePage cuts page n (1-based) out of a completed result.
func SlicePage(exec *Execution, page int) (*Page, error) {
	res := exec.Result
	if page < 1 || page > res.TotalPages {
		return nil, errs.Validation("page", "must be between 1 and %d", res.TotalPages)
	}
	size := res.PageSize
	if size < 1 {
		size = 50
	}
	outputs := make([]Output, len(res.Outputs))
	copy(outputs, res.Outputs)
	if res.DominantIndex >= 0 && res.DominantIndex < len(outputs) {
		out := outputs[res.DominantIndex]
		lo := (page - 1) * size
		switch {
		case out.Table != nil:
			t := *out.Table
			t.Rows = window(t.Rows, lo, size)
			out.Table = &t
		case out.Chart != nil:
			c := *out.Chart
			c.Labels = window(c.Labels, lo, size)
			c.Series = make([]SeriesOutput, len(out.Chart.Series))
			for i, sr := range out.Chart.Series {
				sr.Values = window(sr.Values, lo, size)
				c.Series[i] = sr
			}
			out.Chart = &c
		}
		outputs[res.DominantIndex] = out
	}
	return &Page{
		ExecutionID: exec.ID.Hex(),
		Page:        page,
		TotalPages:  res.TotalPages,
		PageSize:    size,
		Outputs:     outputs,
	}, nil
}

func window[T any](items []T, lo, size int) []T {
	if lo >= len(items) {
		return []T{}
	}
	hi := lo + size
	if hi > len(items) {
		hi = len(items)
	}
	return items[lo:hi]
}

func (s *ExecutionServiceImpl) Cancel(ctx context.Context, id access.Identity, executionID string) (*Execution, error) {
	exec, err := s.Authorize(ctx, id, executionID, access.ActionTrigger)
	if err != nil {
		return nil, err
	}
	if exec.Status.Terminal() {
		return nil, errs.InvalidState(string(exec.Status), "execution %s is already %s", executionID, exec.Status)
	}

	s.mu.Lock()
	j := s.jobs[executionID]
	s.mu.Unlock()
	if j != nil {
		j.cancel.Store(true)
	}

	if exec.Status == StatusPending {
		now := s.now()
		ok, err := s.Repo.Finish(ctx, executionID, StatusPending, Outcome{Status: StatusCancelled, FinishedAt: now})
		if err != nil {
			return nil, err
		}
		if ok {
			exec.Status = StatusCancelled
			exec.FinishedAt = &now
			s.publish(exec, StatusCancelled, "")
			return exec, nil
		}
	}

	if _, err := s.Repo.RequestCancel(ctx, executionID); err != nil {
		return nil, err
	}
	exec.CancelRequested = true
	s.Logger.Info("Execution cancellation requested", zap.String("execution_id", executionID), zap.String("report_id", exec.ReportID))
	return exec, nil
}

func (s *ExecutionServiceImpl) Delete(ctx context.Context, id access.Identity, executionID string) error {
	exec, err := s.Authorize(ctx, id, executionID, access.ActionDelete)
	if err != nil {
		return err
	}
	if !exec.Status.Terminal() {
		return errs.InvalidState(string(exec.Status), "execution %s is still %s", executionID, exec.Status)
	}
	return s.Repo.Delete(ctx, executionID)
}

func (s *ExecutionServiceImpl) Wait(ctx context.Context, executionID string) (*Execution, error) {
	s.mu.Lock()
	j := s.jobs[executionID]
	s.mu.Unlock()

	if j != nil {
		select {
		case <-j.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		exec, err := s.Repo.Get(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if exec.Status.Terminal() {
			return exec, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *ExecutionServiceImpl) SetDispatch(ctx context.Context, executionID, status, errMsg string) error {
	return s.Repo.SetDispatch(ctx, executionID, status, errMsg)
}

func (s *ExecutionServiceImpl) Events() *EventHub {
	return s.hub
}

func (s *ExecutionServiceImpl) EnsureIndexes(ctx context.Context) error {
	return s.Repo.EnsureIndexes(ctx)
}

// Shutdown waits for in-flight runs to finish or ctx to expire.
func (s *ExecutionServiceImpl) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExecutionServiceImpl) publish(exec *Execution, status Status, errMsg string) {
	s.hub.Publish(Event{
		ExecutionID: exec.ID.Hex(),
		ReportID:    exec.ReportID,
		TenantID:    exec.TenantID,
		ExecutedBy:  exec.ExecutedBy,
		Status:      status,
		Error:       errMsg,
		At:          s.now(),
	})
}

func totalPages(rows, pageSize int) int {
	if rows <= 0 {
		return 1
	}
	return (rows + pageSize - 1) / pageSize
}

func newExecutionNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("EXE-%s-%s", now.UTC().Format("20060102"), suffix)
}

func errorDetails(n component.Node, err error) string {
	details := fmt.Sprintf("component=%s type=%s name=%q", n.ID, n.Type, n.Name)
	var dsErr *errs.DataSourceError
	if errors.As(err, &dsErr) {
		details += " source=" + dsErr.Source
	}
	return details
}
