package template

import (
	"context"
	"strings"
	"time"

	"go-erp/internal/common/errs"
	common_models "go-erp/internal/common/models"
	"go-erp/internal/features/access"
	"go-erp/internal/features/audit"
	"go-erp/internal/features/component"
	"go-erp/internal/features/report"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ReportStore is the part of the report service templates build on.
type ReportStore interface {
	CreateReport(ctx context.Context, id access.Identity, r *report.Report) error
	GetReport(ctx context.Context, id access.Identity, reportID string) (*report.Report, error)
}

type TemplateService interface {
	CreateTemplate(ctx context.Context, id access.Identity, tpl *Template) error
	GetTemplate(ctx context.Context, id access.Identity, templateID string) (*Template, error)
	ListTemplates(ctx context.Context, id access.Identity, filter ListFilter) ([]Template, int64, error)
	UpdateTemplate(ctx context.Context, id access.Identity, templateID string, tpl *Template) (*Template, error)
	DeleteTemplate(ctx context.Context, id access.Identity, templateID string) error
	// Instantiate creates a new report from the template's snapshot.
	Instantiate(ctx context.Context, id access.Identity, templateID string, req InstantiateRequest) (*report.Report, error)
	CreateFromReport(ctx context.Context, id access.Identity, reportID string, req FromReportRequest) (*Template, error)
	SeedSystemTemplates(ctx context.Context) (int, error)
	EnsureIndexes(ctx context.Context) error
}

type TemplateServiceImpl struct {
	TemplateRepo TemplateRepository
	Reports      ReportStore
	AuditService audit.AuditService
	Gate         *access.Gate
	Logger       *zap.Logger
	now          func() time.Time
}

func NewTemplateService(templateRepo TemplateRepository, reports report.ReportService, auditService audit.AuditService, gate *access.Gate, logger *zap.Logger) TemplateService {
	return &TemplateServiceImpl{
		TemplateRepo: templateRepo,
		Reports:      reports,
		AuditService: auditService,
		Gate:         gate,
		Logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *TemplateServiceImpl) CreateTemplate(ctx context.Context, id access.Identity, tpl *Template) error {
	if id.UserID == "" {
		return errs.Permission(string(access.ActionEdit), "template")
	}
	if tpl.IsSystem && !s.Gate.IsAdmin(id) {
		return errs.Permission(string(access.ActionEdit), "system template")
	}
	if err := prepare(tpl); err != nil {
		return err
	}

	now := s.now()
	tpl.ID = primitive.NewObjectID()
	if tpl.TenantID == "" && !tpl.IsSystem {
		tpl.TenantID = id.TenantID
	}
	tpl.UsageCount = 0
	tpl.CreatedBy = id.UserID
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := s.TemplateRepo.Create(ctx, tpl); err != nil {
		return err
	}
	s.audit(ctx, common_models.AuditActionCreate, tpl.ID.Hex(), map[string]common_models.Change{
		"template": {New: tpl},
	})
	return nil
}

func (s *TemplateServiceImpl) GetTemplate(ctx context.Context, id access.Identity, templateID string) (*Template, error) {
	return s.authorize(ctx, id, templateID, access.ActionView)
}

func (s *TemplateServiceImpl) ListTemplates(ctx context.Context, id access.Identity, filter ListFilter) ([]Template, int64, error) {
	return s.TemplateRepo.List(ctx, filter, Visibility{UserID: id.UserID, All: s.Gate.IsAdmin(id)})
}

func (s *TemplateServiceImpl) UpdateTemplate(ctx context.Context, id access.Identity, templateID string, tpl *Template) (*Template, error) {
	current, err := s.authorize(ctx, id, templateID, access.ActionEdit)
	if err != nil {
		return nil, err
	}
	if err := prepare(tpl); err != nil {
		return nil, err
	}

	next := *current
	next.Name = tpl.Name
	next.NameEn = tpl.NameEn
	next.Description = tpl.Description
	next.Category = tpl.Category
	next.Type = tpl.Type
	next.Tags = tpl.Tags
	next.IsPublic = tpl.IsPublic
	next.Components = tpl.Components
	next.UpdatedAt = s.now()

	if err := s.TemplateRepo.Update(ctx, &next); err != nil {
		return nil, err
	}
	s.audit(ctx, common_models.AuditActionUpdate, templateID, map[string]common_models.Change{
		"template": {Old: current, New: &next},
	})
	return &next, nil
}

func (s *TemplateServiceImpl) DeleteTemplate(ctx context.Context, id access.Identity, templateID string) error {
	current, err := s.authorize(ctx, id, templateID, access.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.TemplateRepo.Delete(ctx, templateID); err != nil {
		return err
	}
	s.audit(ctx, common_models.AuditActionDelete, templateID, map[string]common_models.Change{
		"template": {Old: current, New: "DELETED"},
	})
	return nil
}

func (s *TemplateServiceImpl) Instantiate(ctx context.Context, id access.Identity, templateID string, req InstantiateRequest) (*report.Report, error) {
	tpl, err := s.authorize(ctx, id, templateID, access.ActionView)
	if err != nil {
		return nil, err
	}

	r := &report.Report{
		Name:        firstNonEmpty(req.Name, tpl.Name),
		Description: firstNonEmpty(req.Description, tpl.Description),
		Category:    report.Category(firstNonEmpty(string(req.Category), string(tpl.Category))),
		Type:        report.ReportType(firstNonEmpty(string(req.Type), string(tpl.Type))),
		Components:  component.CloneList(component.Sorted(tpl.Components), true),
		Permissions: req.Permissions,
		TemplateID:  templateID,
	}
	if err := s.Reports.CreateReport(ctx, id, r); err != nil {
		return nil, err
	}

	if err := s.TemplateRepo.IncrementUsage(ctx, templateID); err != nil {
		s.Logger.Warn("Failed to increment template usage", zap.String("template_id", templateID), zap.Error(err))
	}
	s.Logger.Info("Report created from template",
		zap.String("template_id", templateID),
		zap.String("report_id", r.ID.Hex()))
	return r, nil
}

func (s *TemplateServiceImpl) CreateFromReport(ctx context.Context, id access.Identity, reportID string, req FromReportRequest) (*Template, error) {
	r, err := s.Reports.GetReport(ctx, id, reportID)
	if err != nil {
		return nil, err
	}
	tpl := &Template{
		Name:        firstNonEmpty(req.Name, r.Name),
		NameEn:      req.NameEn,
		Description: firstNonEmpty(req.Description, r.Description),
		Category:    r.Category,
		Type:        r.Type,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
		Components:  component.CloneList(component.Sorted(r.Components), true),
	}
	if err := s.CreateTemplate(ctx, id, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// SeedSystemTemplates upserts the embedded catalog. It returns how many
// templates were newly inserted.
func (s *TemplateServiceImpl) SeedSystemTemplates(ctx context.Context) (int, error) {
	catalog, err := SystemCatalog()
	if err != nil {
		return 0, err
	}
	inserted := 0
	for i := range catalog {
		tpl := catalog[i]
		tpl.IsSystem = true
		tpl.IsPublic = true
		tpl.CreatedBy = access.SystemUserID
		if err := prepare(&tpl); err != nil {
			return inserted, err
		}
		created, err := s.TemplateRepo.UpsertSystem(ctx, &tpl)
		if err != nil {
			return inserted, err
		}
		if created {
			inserted++
		}
	}
	s.Logger.Info("System templates seeded", zap.Int("catalog", len(catalog)), zap.Int("inserted", inserted))
	return inserted, nil
}

func (s *TemplateServiceImpl) EnsureIndexes(ctx context.Context) error {
	return s.TemplateRepo.EnsureIndexes(ctx)
}

func (s *TemplateServiceImpl) authorize(ctx context.Context, id access.Identity, templateID string, action access.Action) (*Template, error) {
	tpl, err := s.TemplateRepo.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := tpl.Authorize(s.Gate, id, action); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateServiceImpl) audit(ctx context.Context, action common_models.AuditAction, templateID string, changes map[string]common_models.Change) {
	if s.AuditService == nil {
		return
	}
	if err := s.AuditService.LogChange(ctx, action, "report_templates", templateID, changes); err != nil {
		s.Logger.Warn("Audit log failed", zap.String("template_id", templateID), zap.Error(err))
	}
}

// prepare validates a template the same way reports are validated, so a
// template can always be instantiated.
func prepare(t *Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errs.Missing("name")
	}
	if t.Category == "" {
		t.Category = report.CategorySystem
	}
	if !t.Category.Valid() {
		return errs.Validation("category", "unknown category %q", t.Category)
	}
	if t.Type == "" {
		t.Type = report.ReportTypeSummary
	}
	if !t.Type.Valid() {
		return errs.Validation("type", "unknown report type %q", t.Type)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Components = component.Normalize(t.Components)
	return component.ValidateList(t.Components, "components")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
