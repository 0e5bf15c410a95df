package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-erp/internal/common/errs"
	"go-erp/internal/features/access"
	"go-erp/internal/features/component"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	owner    = access.Identity{UserID: "owner"}
	editor   = access.Identity{UserID: "editor"}
	viewer   = access.Identity{UserID: "viewer"}
	stranger = access.Identity{UserID: "stranger"}
	admin    = access.Identity{UserID: "boss", Roles: []string{"admin"}}
)

func newTestService() (*ReportServiceImpl, *memRepo) {
	repo := newMemRepo()
	svc := NewReportService(repo, nil, access.NewGate("admin"), zap.NewNop()).(*ReportServiceImpl)
	return svc, repo
}

func sampleReport() *Report {
	return &Report{
		Name:     "Monthly sales",
		Category: CategorySales,
		Type:     ReportTypeSummary,
		Components: []component.Node{
			{Type: component.TypeText, Name: "Intro", Config: component.Config{Content: "Sales overview"}},
			{Type: component.TypeTable, Name: "Orders", Config: component.Config{
				DataSource: &component.DataSourceRef{Module: "orders"},
				Columns:    []component.Column{{Field: "number"}, {Field: "total"}},
			}},
		},
		Permissions: access.PermissionSet{ViewUsers: []string{"viewer"}, EditUsers: []string{"editor"}},
	}
}

func createSample(t *testing.T, svc *ReportServiceImpl) *Report {
	t.Helper()
	r := sampleReport()
	require.NoError(t, svc.CreateReport(context.Background(), owner, r))
	return r
}

func TestCreateReport(t *testing.T) {
	svc, _ := newTestService()
	r := createSample(t, svc)

	assert.False(t, r.ID.IsZero())
	assert.Equal(t, StatusActive, r.Status)
	assert.Equal(t, "owner", r.CreatedBy)
	assert.Regexp(t, `^RPT-\d{8}-[0-9A-F]{6}$`, r.ReportNo)
	assert.Equal(t, int64(1), r.Version)
	for i, n := range r.Components {
		assert.Equal(t, i, n.OrderIndex)
		assert.NotEmpty(t, n.ID)
	}
}

func TestCreateReportValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *Report)
		wantField string
	}{
		{"empty name", func(r *Report) { r.Name = "  " }, "name"},
		{"bad category", func(r *Report) { r.Category = "marketing" }, "category"},
		{"bad type", func(r *Report) { r.Type = "pivot" }, "type"},
		{"table without module", func(r *Report) { r.Components[1].Config.DataSource.Module = "" }, "components[1].config.data_source.module"},
		{"duplicate ids", func(r *Report) { r.Components[0].ID = "x"; r.Components[1].ID = "x" }, "components[1].id"},
		{"order gap", func(r *Report) { r.Components[0].OrderIndex = 0; r.Components[1].OrderIndex = 5 }, "components[1].order_index"},
		{"bad schedule", func(r *Report) { r.ScheduleConfig = &ScheduleConfig{Frequency: "yearly"} }, "schedule_config.frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			r := sampleReport()
			tt.mutate(r)
			err := svc.CreateReport(context.Background(), owner, r)
			var verr *errs.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Empty(t, repo.reports)
		})
	}
}

func TestCreateReportDefaultsEnums(t *testing.T) {
	svc, _ := newTestService()
	r := &Report{Name: "Bare"}
	require.NoError(t, svc.CreateReport(context.Background(), owner, r))
	assert.Equal(t, CategorySystem, r.Category)
	assert.Equal(t, ReportTypeSummary, r.Type)
}

func TestDuplicateReportNo(t *testing.T) {
	svc, _ := newTestService()
	a := sampleReport()
	a.ReportNo = "RPT-1"
	require.NoError(t, svc.CreateReport(context.Background(), owner, a))
	b := sampleReport()
	b.ReportNo = "RPT-1"
	assert.True(t, errs.IsValidation(svc.CreateReport(context.Background(), owner, b)))
}

func TestGetReportPermissions(t *testing.T) {
	svc, _ := newTestService()
	r := createSample(t, svc)
	ctx := context.Background()

	for _, id := range []access.Identity{owner, editor, viewer, admin} {
		_, err := svc.GetReport(ctx, id, r.ID.Hex())
		assert.NoError(t, err, id.UserID)
	}
	_, err := svc.GetReport(ctx, stranger, r.ID.Hex())
	assert.True(t, errs.IsPermission(err))

	_, err = svc.GetReport(ctx, owner, "not-an-id")
	assert.True(t, errs.IsNotFound(err))
}

func TestListReportsVisibility(t *testing.T) {
	svc, _ := newTestService()
	createSample(t, svc)
	ctx := context.Background()

	list, total, err := svc.ListReports(ctx, viewer, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	list, _, err = svc.ListReports(ctx, stranger, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, _, err = svc.ListReports(ctx, admin, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateReport(t *testing.T) {
	svc, repo := newTestService()
	r := createSample(t, svc)
	ctx := context.Background()

	change := sampleReport()
	change.Name = "Renamed"
	change.Version = r.Version
	updated, err := svc.UpdateReport(ctx, editor, r.ID.Hex(), change)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "owner", updated.CreatedBy)
	assert.Equal(t, int64(2), repo.reports[r.ID.Hex()].Version)

	stale := sampleReport()
	stale.Version = 1
	_, err = svc.UpdateReport(ctx, editor, r.ID.Hex(), stale)
	assert.True(t, errs.IsConflict(err))

	lastWriteWins := sampleReport()
	lastWriteWins.Name = "Again"
	_, err = svc.UpdateReport(ctx, editor, r.ID.Hex(), lastWriteWins)
	assert.NoError(t, err)

	_, err = svc.UpdateReport(ctx, viewer, r.ID.Hex(), sampleReport())
	assert.True(t, errs.IsPermission(err))
}

func TestUpdateArchivedReport(t *testing.T) {
	svc, _ := newTestService()
	r := createSample(t, svc)
	ctx := context.Background()

	_, err := svc.Archive(ctx, owner, r.ID.Hex())
	require.NoError(t, err)

	_, err = svc.UpdateReport(ctx, owner, r.ID.Hex(), sampleReport())
	assert.True(t, errs.IsInvalidState(err))
}

func TestStatusTransitions(t *testing.T) {
	svc, _ := newTestService()
	r := createSample(t, svc)
	ctx := context.Background()
	id := r.ID.Hex()

	_, err := svc.Activate(ctx, owner, id)
	assert.True(t, errs.IsInvalidState(err), "active -> active")

	got, err := svc.Deactivate(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, got.Status)

	got, err = svc.Activate(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	got, err = svc.Archive(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Status)

	for _, fn := range []func(context.Context, access.Identity, string) (*Report, error){svc.Activate, svc.Deactivate, svc.Archive} {
		_, err := fn(ctx, owner, id)
		assert.True(t, errs.IsInvalidState(err))
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusActive, StatusInactive))
	assert.True(t, CanTransition(StatusInactive, StatusArchived))
	assert.False(t, CanTransition(StatusArchived, StatusActive))
	assert.False(t, CanTransition(StatusInactive, StatusInactive))
}

func TestDeleteReport(t *testing.T) {
	svc, repo := newTestService()
	r := createSample(t, svc)
	ctx := context.Background()

	assert.True(t, errs.IsPermission(svc.DeleteReport(ctx, editor, r.ID.Hex())))
	require.NoError(t, svc.DeleteReport(ctx, owner, r.ID.Hex()))
	assert.Empty(t, repo.reports)
}

func TestUpdateSchedule(t *testing.T) {
	svc, _ := newTestService()
	r := createSample(t, svc)
	ctx := context.Background()

	got, err := svc.UpdateSchedule(ctx, editor, r.ID.Hex(), ScheduleConfig{
		Enabled:    true,
		Frequency:  FrequencyWeekly,
		Time:       "08:30",
		Recipients: []string{"Ops <ops@example.com>", "ops@example.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, got.ScheduleConfig)
	assert.Equal(t, []string{"ops@example.com"}, got.ScheduleConfig.Recipients)
	assert.Equal(t, "30 8 * * 1", got.ScheduleConfig.CronSpec())
	assert.Equal(t, "pdf", got.ScheduleConfig.Format)

	_, err = svc.UpdateSchedule(ctx, editor, r.ID.Hex(), ScheduleConfig{Frequency: FrequencyDaily, Time: "8:30"})
	assert.True(t, errs.IsValidation(err))

	_, err = svc.UpdateSchedule(ctx, viewer, r.ID.Hex(), ScheduleConfig{Frequency: FrequencyDaily, Time: "08:30"})
	assert.True(t, errs.IsPermission(err))
}

func TestUpdatePermissions(t *testing.T) {
	svc, _ := newTestService()
	r := createSample(t, svc)
	ctx := context.Background()

	_, err := svc.UpdatePermissions(ctx, editor, r.ID.Hex(), access.PermissionSet{IsPublic: true})
	assert.True(t, errs.IsPermission(err))

	got, err := svc.UpdatePermissions(ctx, owner, r.ID.Hex(), access.PermissionSet{IsPublic: true, ViewUsers: []string{"a", "a"}})
	require.NoError(t, err)
	assert.True(t, got.Permissions.IsPublic)
	assert.Equal(t, []string{"a"}, got.Permissions.ViewUsers)

	_, err = svc.GetReport(ctx, stranger, r.ID.Hex())
	assert.NoError(t, err)
}

func TestRecordExecutionRunningAverage(t *testing.T) {
	svc, repo := newTestService()
	r := createSample(t, svc)
	id := r.ID.Hex()

	var wg sync.WaitGroup
	for _, ms := range []int{100, 200, 300, 400} {
		wg.Add(1)
		go func(ms int) {
			defer wg.Done()
			assert.NoError(t, svc.RecordExecution(context.Background(), id, time.Duration(ms)*time.Millisecond))
		}(ms)
	}
	wg.Wait()

	stored := repo.reports[id]
	assert.Equal(t, int64(4), stored.ExecuteCount)
	assert.InDelta(t, 250.0, stored.AvgExecTime, 1e-9)
	assert.NotNil(t, stored.LastExecutedAt)
}

func TestNextAverage(t *testing.T) {
	assert.Equal(t, 10.0, NextAverage(0, 0, 10))
	assert.Equal(t, 15.0, NextAverage(10, 1, 20))
}
