package report

import (
	"context"
	"time"

	"go-erp/internal/common/errs"
	common_models "go-erp/internal/common/models"
	"go-erp/internal/features/access"
	"go-erp/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ReportService interface {
	CreateReport(ctx context.Context, id access.Identity, report *Report) error
	GetReport(ctx context.Context, id access.Identity, reportID string) (*Report, error)
	// Authorize loads the report and checks action for id before any side effect.
	Authorize(ctx context.Context, id access.Identity, reportID string, action access.Action) (*Report, error)
	ListReports(ctx context.Context, id access.Identity, filter ListFilter) ([]Report, int64, error)
	UpdateReport(ctx context.Context, id access.Identity, reportID string, report *Report) (*Report, error)
	DeleteReport(ctx context.Context, id access.Identity, reportID string) error
	Archive(ctx context.Context, id access.Identity, reportID string) (*Report, error)
	Activate(ctx context.Context, id access.Identity, reportID string) (*Report, error)
	Deactivate(ctx context.Context, id access.Identity, reportID string) (*Report, error)
	UpdateSchedule(ctx context.Context, id access.Identity, reportID string, schedule ScheduleConfig) (*Report, error)
	UpdatePermissions(ctx context.Context, id access.Identity, reportID string, perms access.PermissionSet) (*Report, error)

	// Unchecked operations used by the engine and the scheduler.
	FindReport(ctx context.Context, reportID string) (*Report, error)
	RecordExecution(ctx context.Context, reportID string, duration time.Duration) error
	ListScheduled(ctx context.Context) ([]Report, error)
	MarkScheduleRun(ctx context.Context, reportID string, at time.Time) error
	EnsureIndexes(ctx context.Context) error
}

type ReportServiceImpl struct {
	ReportRepo   ReportRepository
	AuditService audit.AuditService
	Gate         *access.Gate
	Logger       *zap.Logger
	now          func() time.Time
}

func NewReportService(reportRepo ReportRepository, auditService audit.AuditService, gate *access.Gate, logger *zap.Logger) ReportService {
	return &ReportServiceImpl{
		ReportRepo:   reportRepo,
		AuditService: auditService,
		Gate:         gate,
		Logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReportServiceImpl) CreateReport(ctx context.Context, id access.Identity, report *Report) error {
	if id.UserID == "" {
		return errs.Permission(string(access.ActionEdit), "report")
	}
	if err := prepare(report); err != nil {
		return err
	}

	now := s.now()
	report.ID = primitive.NewObjectID()
	if report.TenantID == "" {
		report.TenantID = id.TenantID
	}
	if report.ReportNo == "" {
		report.ReportNo = NewReportNo(now)
	}
	report.Status = StatusActive
	report.CreatedBy = id.UserID
	report.UpdatedBy = id.UserID
	report.CreatedAt = now
	report.UpdatedAt = now
	report.Version = 1
	report.ExecuteCount = 0
	report.AvgExecTime = 0
	report.LastExecutedAt = nil

	if err := s.ReportRepo.Create(ctx, report); err != nil {
		return err
	}
	s.audit(ctx, common_models.AuditActionCreate, report.ID.Hex(), map[string]common_models.Change{
		"report": {New: report},
	})
	return nil
}

func (s *ReportServiceImpl) GetReport(ctx context.Context, id access.Identity, reportID string) (*Report, error) {
	return s.Authorize(ctx, id, reportID, access.ActionView)
}

func (s *ReportServiceImpl) Authorize(ctx context.Context, id access.Identity, reportID string, action access.Action) (*Report, error) {
	report, err := s.ReportRepo.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := report.Authorize(s.Gate, id, action); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ReportServiceImpl) FindReport(ctx context.Context, reportID string) (*Report, error) {
	return s.ReportRepo.Get(ctx, reportID)
}

func (s *ReportServiceImpl) ListReports(ctx context.Context, id access.Identity, filter ListFilter) ([]Report, int64, error) {
	if id.UserID == "" {
		return nil, 0, errs.Permission(string(access.ActionView), "report")
	}
	return s.ReportRepo.List(ctx, filter, Visibility{UserID: id.UserID, All: s.Gate.IsAdmin(id)})
}

func (s *ReportServiceImpl) UpdateReport(ctx context.Context, id access.Identity, reportID string, report *Report) (*Report, error) {
	current, err := s.Authorize(ctx, id, reportID, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusArchived {
		return nil, errs.InvalidState(string(current.Status), "archived reports cannot be edited")
	}
	if report.Version != 0 && report.Version != current.Version {
		return nil, errs.Conflict("report %s is at version %d, update was based on %d", reportID, current.Version, report.Version)
	}
	if err := prepare(report); err != nil {
		return nil, err
	}

	next := *current
	next.Name = report.Name
	next.Description = report.Description
	next.Category = report.Category
	next.Type = report.Type
	next.Components = report.Components
	next.UpdatedBy = id.UserID
	next.UpdatedAt = s.now()

	if err := s.ReportRepo.Update(ctx, &next, current.Version); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1

	s.audit(ctx, common_models.AuditActionUpdate, reportID, map[string]common_models.Change{
		"report": {Old: current, New: &next},
	})
	return &next, nil
}

// DeleteReport removes the definition only. Past executions are kept.
func (s *ReportServiceImpl) DeleteReport(ctx context.Context, id access.Identity, reportID string) error {
	current, err := s.Authorize(ctx, id, reportID, access.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.ReportRepo.Delete(ctx, reportID); err != nil {
		return err
	}
	s.audit(ctx, common_models.AuditActionDelete, reportID, map[string]common_models.Change{
		"report": {Old: current, New: "DELETED"},
	})
	return nil
}

func (s *ReportServiceImpl) Archive(ctx context.Context, id access.Identity, reportID string) (*Report, error) {
	return s.changeStatus(ctx, id, reportID, StatusArchived)
}

func (s *ReportServiceImpl) Activate(ctx context.Context, id access.Identity, reportID string) (*Report, error) {
	return s.changeStatus(ctx, id, reportID, StatusActive)
}

func (s *ReportServiceImpl) Deactivate(ctx context.Context, id access.Identity, reportID string) (*Report, error) {
	return s.changeStatus(ctx, id, reportID, StatusInactive)
}

func (s *ReportServiceImpl) changeStatus(ctx context.Context, id access.Identity, reportID string, to Status) (*Report, error) {
	current, err := s.Authorize(ctx, id, reportID, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, errs.InvalidState(string(current.Status), "cannot move report from %s to %s", current.Status, to)
	}
	ok, err := s.ReportRepo.UpdateStatus(ctx, reportID, current.Status, to, id.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Conflict("report %s changed status concurrently", reportID)
	}

	s.audit(ctx, common_models.AuditActionStatus, reportID, map[string]common_models.Change{
		"status": {Old: current.Status, New: to},
	})
	next := *current
	next.Status = to
	next.Version++
	next.UpdatedBy = id.UserID
	next.UpdatedAt = s.now()
	return &next, nil
}

func (s *ReportServiceImpl) UpdateSchedule(ctx context.Context, id access.Identity, reportID string, schedule ScheduleConfig) (*Report, error) {
	current, err := s.Authorize(ctx, id, reportID, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusArchived {
		return nil, errs.InvalidState(string(current.Status), "archived reports cannot be scheduled")
	}
	normalized, err := schedule.Normalize()
	if err != nil {
		return nil, err
	}
	if current.ScheduleConfig != nil {
		normalized.LastRunAt = current.ScheduleConfig.LastRunAt
	}
	if err := s.ReportRepo.UpdateSchedule(ctx, reportID, &normalized, id.UserID); err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionSchedule, reportID, map[string]common_models.Change{
		"schedule_config": {Old: current.ScheduleConfig, New: normalized},
	})
	next := *current
	next.ScheduleConfig = &normalized
	next.Version++
	return &next, nil
}

func (s *ReportServiceImpl) UpdatePermissions(ctx context.Context, id access.Identity, reportID string, perms access.PermissionSet) (*Report, error) {
	current, err := s.Authorize(ctx, id, reportID, access.ActionShare)
	if err != nil {
		return nil, err
	}
	normalized := perms.Normalize()
	if err := s.ReportRepo.UpdatePermissions(ctx, reportID, normalized, id.UserID); err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionUpdate, reportID, map[string]common_models.Change{
		"permissions": {Old: current.Permissions, New: normalized},
	})
	next := *current
	next.Permissions = normalized
	next.Version++
	return &next, nil
}

func (s *ReportServiceImpl) RecordExecution(ctx context.Context, reportID string, duration time.Duration) error {
	return s.ReportRepo.RecordExecution(ctx, reportID, float64(duration.Milliseconds()), s.now())
}

func (s *ReportServiceImpl) ListScheduled(ctx context.Context) ([]Report, error) {
	return s.ReportRepo.ListScheduled(ctx)
}

func (s *ReportServiceImpl) MarkScheduleRun(ctx context.Context, reportID string, at time.Time) error {
	return s.ReportRepo.MarkScheduleRun(ctx, reportID, at)
}

func (s *ReportServiceImpl) EnsureIndexes(ctx context.Context) error {
	return s.ReportRepo.EnsureIndexes(ctx)
}

func (s *ReportServiceImpl) audit(ctx context.Context, action common_models.AuditAction, reportID string, changes map[string]common_models.Change) {
	if s.AuditService == nil {
		return
	}
	if err := s.AuditService.LogChange(ctx, action, "reports", reportID, changes); err != nil {
		s.Logger.Warn("Audit log failed", zap.String("report_id", reportID), zap.Error(err))
	}
}
