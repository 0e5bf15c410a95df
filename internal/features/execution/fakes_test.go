package execution

import (
	"context"
	"sync"
	"time"

	"go-erp/internal/common/errs"
	"go-erp/internal/config"
	"go-erp/internal/features/access"
	"go-erp/internal/features/report"

	"go.uber.org/zap"
)

type memExecRepo struct {
	mu    sync.Mutex
	execs map[string]Execution
	// transitions records every accepted status change, in order.
	transitions []Status
}

func newMemExecRepo() *memExecRepo {
	return &memExecRepo{execs: map[string]Execution{}}
}

func (m *memExecRepo) Create(ctx context.Context, exec *Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs[exec.ID.Hex()] = *exec
	m.transitions = append(m.transitions, exec.Status)
	return nil
}

func (m *memExecRepo) Get(ctx context.Context, id string) (*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok {
		return nil, errs.NotFound("execution", id)
	}
	return &e, nil
}

func (m *memExecRepo) ListByReport(ctx context.Context, reportID string, page, limit int64) ([]Execution, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Execution{}
	for _, e := range m.execs {
		if e.ReportID == reportID {
			e.Result = nil
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memExecRepo) MarkRunning(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok || e.Status != StatusPending {
		return false, nil
	}
	e.Status = StatusRunning
	e.StartedAt = &at
	m.execs[id] = e
	m.transitions = append(m.transitions, StatusRunning)
	return true, nil
}

func (m *memExecRepo) Finish(ctx context.Context, id string, from Status, o Outcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = o.Status
	finished := o.FinishedAt
	e.FinishedAt = &finished
	e.ExecutionTimeMs = o.ExecutionTimeMs
	e.Result = o.Result
	e.ResultCount = o.ResultCount
	e.ErrorMessage = o.ErrorMessage
	e.ErrorDetails = o.ErrorDetails
	m.execs[id] = e
	m.transitions = append(m.transitions, o.Status)
	return true, nil
}

func (m *memExecRepo) RequestCancel(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok || e.Status.Terminal() {
		return false, nil
	}
	e.CancelRequested = true
	m.execs[id] = e
	return true, nil
}

func (m *memExecRepo) SetDispatch(ctx context.Context, id string, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.execs[id]
	e.DispatchStatus, e.DispatchError = status, errMsg
	m.execs[id] = e
	return nil
}

func (m *memExecRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.execs, id)
	return nil
}

func (m *memExecRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (m *memExecRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.execs)
}

func (m *memExecRepo) history() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Status(nil), m.transitions...)
}

type fakeReports struct {
	mu       sync.Mutex
	gate     *access.Gate
	reports  map[string]*report.Report
	recorded []time.Duration
}

func newFakeReports(gate *access.Gate, reports ...*report.Report) *fakeReports {
	f := &fakeReports{gate: gate, reports: map[string]*report.Report{}}
	for _, r := range reports {
		f.reports[r.ID.Hex()] = r
	}
	return f
}

func (f *fakeReports) FindReport(ctx context.Context, reportID string) (*report.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[reportID]
	if !ok {
		return nil, errs.NotFound("report", reportID)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReports) Authorize(ctx context.Context, id access.Identity, reportID string, action access.Action) (*report.Report, error) {
	r, err := f.FindReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := r.Authorize(f.gate, id, action); err != nil {
		return nil, err
	}
	return r, nil
}

func (f *fakeReports) RecordExecution(ctx context.Context, reportID string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, d)
	return nil
}

func (f *fakeReports) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorded)
}

// funcSource adapts a function to DataSource.
type funcSource func(ctx context.Context, req FetchRequest) (*Dataset, error)

func (f funcSource) Fetch(ctx context.Context, req FetchRequest) (*Dataset, error) {
	return f(ctx, req)
}

func rowsSource(rows map[string][]map[string]any) DataSource {
	return funcSource(func(ctx context.Context, req FetchRequest) (*Dataset, error) {
		r := rows[req.Module]
		return &Dataset{Rows: r, Total: int64(len(r))}, nil
	})
}

func newTestService(reports ReportProvider, source DataSource) (*ExecutionServiceImpl, *memExecRepo) {
	repo := newMemExecRepo()
	cfg := &config.Config{ReportPageSize: 2, ExecutionTimeout: 5 * time.Second, DefaultDataSource: "erp"}
	svc := newService(repo, reports, source, nil, access.NewGate("admin"), cfg, zap.NewNop())
	svc.poll = 5 * time.Millisecond
	return svc, repo
}
