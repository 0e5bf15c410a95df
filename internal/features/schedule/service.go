// Package schedule runs reports unattended and mails their exports.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	common_models "go-erp/internal/common/models"
	"go-erp/internal/config"
	"go-erp/internal/features/access"
	"go-erp/internal/features/email"
	"go-erp/internal/features/execution"
	"go-erp/internal/features/export"
	"go-erp/internal/features/report"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReportSource lists the reports due for unattended runs.
type ReportSource interface {
	ListScheduled(ctx context.Context) ([]report.Report, error)
	MarkScheduleRun(ctx context.Context, reportID string, at time.Time) error
}

// Runner is the part of the execution engine the scheduler drives.
type Runner interface {
	Trigger(ctx context.Context, id access.Identity, reportID string, params map[string]any, trigger execution.Trigger) (*execution.Execution, error)
	Wait(ctx context.Context, executionID string) (*execution.Execution, error)
	SetDispatch(ctx context.Context, executionID, status, errMsg string) error
}

// Outcome is what happened to one due report during a tick.
type Outcome struct {
	ReportID    string `json:"report_id"`
	ReportName  string `json:"report_name"`
	ExecutionID string `json:"execution_id,omitempty"`
	Status      string `json:"status"`
	Dispatch    string `json:"dispatch,omitempty"`
	Error       string `json:"error,omitempty"`
}

type TickSummary struct {
	At       time.Time `json:"at"`
	Checked  int       `json:"checked"`
	Outcomes []Outcome `json:"outcomes"`
}

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	RunTick(ctx context.Context, now time.Time) (*TickSummary, error)
}

type SchedulerServiceImpl struct {
	Reports ReportSource
	Runner  Runner
	Mailer  email.EmailService
	Logger  *zap.Logger

	location *time.Location
	timeout  time.Duration
	enabled  bool

	scheduler *cron.Cron
	mu        sync.Mutex
	lastTick  time.Time
}

func NewSchedulerService(
	reports report.ReportService,
	runner execution.ExecutionService,
	mailer email.EmailService,
	cfg *config.Config,
	logger *zap.Logger,
) SchedulerService {
	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		logger.Warn("Unknown scheduler timezone, using local time",
			zap.String("timezone", cfg.SchedulerTimezone), zap.Error(err))
		loc = time.Local
	}
	timeout := cfg.ExecutionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SchedulerServiceImpl{
		Reports:  reports,
		Runner:   runner,
		Mailer:   mailer,
		Logger:   logger,
		location: loc,
		timeout:  timeout,
		enabled:  cfg.SchedulerEnabled,
	}
}

func (s *SchedulerServiceImpl) Start(ctx context.Context) error {
	if !s.enabled {
		s.Logger.Info("Scheduler disabled")
		return nil
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(s.Logger.Named("cron")))
	s.scheduler = cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := s.scheduler.AddFunc("* * * * *", func() {
		if _, err := s.RunTick(context.Background(), time.Now()); err != nil {
			s.Logger.Error("Scheduler tick failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to register scheduler tick: %w", err)
	}
	s.scheduler.Start()
	s.Logger.Info("Scheduler started", zap.String("timezone", s.location.String()))
	return nil
}

func (s *SchedulerServiceImpl) Stop(ctx context.Context) error {
	if s.scheduler == nil {
		return nil
	}
	stopped := s.scheduler.Stop()
	select {
	case <-stopped.Done():
		s.Logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunTick fires every report whose schedule has an activation in the
// window since the previous tick (one minute on the first tick) up to now.
// It returns once every fired report has finished or failed.
func (s *SchedulerServiceImpl) RunTick(ctx context.Context, now time.Time) (*TickSummary, error) {
	now = now.In(s.location)

	s.mu.Lock()
	from := s.lastTick
	if from.IsZero() || !from.Before(now) || now.Sub(from) > time.Hour {
		from = now.Add(-time.Minute)
	}
	s.lastTick = now
	s.mu.Unlock()

	reports, err := s.Reports.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled reports: %w", err)
	}

	summary := &TickSummary{At: now, Checked: len(reports), Outcomes: []Outcome{}}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range reports {
		rep := reports[i]
		if !Due(rep.ScheduleConfig, from, now) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := s.runOne(ctx, rep, now)
			mu.Lock()
			summary.Outcomes = append(summary.Outcomes, out)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(summary.Outcomes) > 0 {
		s.Logger.Info("Scheduler tick finished",
			zap.Time("at", now),
			zap.Int("checked", summary.Checked),
			zap.Int("fired", len(summary.Outcomes)))
	}
	return summary, nil
}

// Due reports whether sc has an activation in (from, to]. A run already
// recorded inside the window suppresses the activation.
func Due(sc *report.ScheduleConfig, from, to time.Time) bool {
	if sc == nil || !sc.Enabled {
		return false
	}
	if sc.LastRunAt != nil && sc.LastRunAt.After(from) {
		from = *sc.LastRunAt
	}
	sched, err := cron.ParseStandard(sc.CronSpec())
	if err != nil {
		return false
	}
	next := sched.Next(from.In(to.Location()))
	return !next.IsZero() && !next.After(to)
}

func (s *SchedulerServiceImpl) runOne(ctx context.Context, rep report.Report, now time.Time) (out Outcome) {
	reportID := rep.ID.Hex()
	out = Outcome{ReportID: reportID, ReportName: rep.Name}
	log := s.Logger.With(zap.String("report_id", reportID), zap.String("report_no", rep.ReportNo))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Scheduled run panicked", zap.Any("panic", r))
			out.Status = string(execution.StatusFailed)
			out.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	runCtx := context.WithValue(ctx, common_models.TenantIDKey, rep.TenantID)
	runCtx, cancel := context.WithTimeout(runCtx, s.timeout+time.Minute)
	defer cancel()

	if err := s.Reports.MarkScheduleRun(runCtx, reportID, now); err != nil {
		log.Warn("Failed to record schedule run", zap.Error(err))
	}

	owner := access.Identity{UserID: rep.CreatedBy, TenantID: rep.TenantID}
	exec, err := s.Runner.Trigger(runCtx, owner, reportID, nil, execution.TriggerScheduled)
	if err != nil {
		log.Error("Scheduled trigger rejected", zap.Error(err))
		out.Status = "rejected"
		out.Error = err.Error()
		return out
	}
	executionID := exec.ID.Hex()
	out.ExecutionID = executionID

	final, err := s.Runner.Wait(runCtx, executionID)
	if err != nil {
		log.Error("Scheduled run did not finish", zap.String("execution_id", executionID), zap.Error(err))
		out.Status = string(exec.Status)
		out.Error = err.Error()
		return out
	}
	out.Status = string(final.Status)
	if final.Status != execution.StatusCompleted {
		out.Error = final.ErrorMessage
		log.Warn("Scheduled run did not complete",
			zap.String("execution_id", executionID),
			zap.String("status", string(final.Status)),
			zap.String("error", final.ErrorMessage))
		return out
	}

	status, dispatchErr := s.dispatch(runCtx, rep, final)
	out.Dispatch = status
	errMsg := ""
	if dispatchErr != nil {
		errMsg = dispatchErr.Error()
		out.Error = errMsg
		log.Error("Scheduled dispatch failed", zap.String("execution_id", executionID), zap.Error(dispatchErr))
	}
	if err := s.Runner.SetDispatch(runCtx, executionID, status, errMsg); err != nil {
		log.Warn("Failed to record dispatch outcome", zap.Error(err))
	}
	return out
}

func (s *SchedulerServiceImpl) dispatch(ctx context.Context, rep report.Report, exec *execution.Execution) (string, error) {
	sc := rep.ScheduleConfig
	if len(sc.Recipients) == 0 {
		return execution.DispatchSkipped, nil
	}
	format := export.FormatPDF
	if sc.Format != "" {
		f, err := export.ParseFormat(sc.Format)
		if err != nil {
			return execution.DispatchFailed, err
		}
		format = f
	}
	file, err := export.Render(exec, format)
	if err != nil {
		return execution.DispatchFailed, err
	}

	msg := email.Message{
		To:      sc.Recipients,
		Subject: fmt.Sprintf("%s (%s)", rep.Name, exec.ExecutionNo),
		Body: fmt.Sprintf("Scheduled report %q finished at %s.\n\nThe %s export is attached.\n",
			rep.Name, finishedAt(exec).Format(time.RFC1123), format),
		Attachments: []email.Attachment{{Name: file.Name, ContentType: file.ContentType, Data: file.Data}},
		EntityType:  "report_execution",
		EntityID:    exec.ID.Hex(),
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return execution.DispatchFailed, err
	}
	return execution.DispatchSent, nil
}

func finishedAt(exec *execution.Execution) time.Time {
	if exec.FinishedAt != nil {
		return *exec.FinishedAt
	}
	return exec.CreatedAt
}
