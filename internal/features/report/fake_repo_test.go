package report

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-erp/internal/common/errs"
	"go-erp/internal/features/access"
)

// memRepo is an in-memory ReportRepository used by the service tests.
type memRepo struct {
	mu      sync.Mutex
	reports map[string]Report
}

func newMemRepo() *memRepo {
	return &memRepo{reports: map[string]Report{}}
}

func (m *memRepo) Create(ctx context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.TenantID == report.TenantID && r.ReportNo == report.ReportNo {
			return errs.Validation("report_no", "report number %q already exists", report.ReportNo)
		}
	}
	m.reports[report.ID.Hex()] = *report
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, errs.NotFound("report", id)
	}
	return &r, nil
}

func (m *memRepo) List(ctx context.Context, filter ListFilter, vis Visibility) ([]Report, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Report{}
	for _, r := range m.reports {
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if !vis.All && r.CreatedBy != vis.UserID && !r.Permissions.CanView(vis.UserID) {
			continue
		}
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (m *memRepo) Update(ctx context.Context, report *Report, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reports[report.ID.Hex()]
	if !ok || cur.Version != expectedVersion || cur.Status == StatusArchived {
		return errs.Conflict("stale")
	}
	next := *report
	next.Version = expectedVersion + 1
	m.reports[report.ID.Hex()] = next
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return errs.NotFound("report", id)
	}
	delete(m.reports, id)
	return nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id string, from, to Status, actor string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.Version++
	m.reports[id] = r
	return true, nil
}

func (m *memRepo) UpdateSchedule(ctx context.Context, id string, schedule *ScheduleConfig, actor string) error {
	return m.mutate(id, func(r *Report) { r.ScheduleConfig = schedule })
}

func (m *memRepo) UpdatePermissions(ctx context.Context, id string, perms access.PermissionSet, actor string) error {
	return m.mutate(id, func(r *Report) { r.Permissions = perms })
}

func (m *memRepo) RecordExecution(ctx context.Context, id string, durationMs float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return errs.NotFound("report", id)
	}
	r.AvgExecTime = NextAverage(r.AvgExecTime, r.ExecuteCount, durationMs)
	r.ExecuteCount++
	r.LastExecutedAt = &at
	m.reports[id] = r
	return nil
}

func (m *memRepo) ListScheduled(ctx context.Context) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Report
	for _, r := range m.reports {
		if r.Status == StatusActive && r.ScheduleConfig != nil && r.ScheduleConfig.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) MarkScheduleRun(ctx context.Context, id string, at time.Time) error {
	return m.mutate(id, func(r *Report) {
		if r.ScheduleConfig != nil {
			r.ScheduleConfig.LastRunAt = &at
		}
	})
}

func (m *memRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (m *memRepo) mutate(id string, fn func(r *Report)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return errs.NotFound("report", id)
	}
	fn(&r)
	r.Version++
	m.reports[id] = r
	return nil
}
