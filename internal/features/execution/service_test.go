package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-erp/internal/common/errs"
	"go-erp/internal/features/access"
	"go-erp/internal/features/component"
	"go-erp/internal/features/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var owner = access.Identity{UserID: "owner", TenantID: "t1"}

func salesReport() *report.Report {
	return &report.Report{
		ID:        primitive.NewObjectID(),
		TenantID:  "t1",
		Name:      "Sales",
		Status:    report.StatusActive,
		CreatedBy: owner.UserID,
		Components: []component.Node{
			{ID: "kpi", Type: component.TypeKPI, Name: "Totals", OrderIndex: 2, Config: component.Config{
				DataSource: &component.DataSourceRef{Module: "orders"},
				Metrics:    []component.KPIMetric{{Name: "Revenue", Field: "amount", Aggregate: "sum"}},
			}},
			{ID: "intro", Type: component.TypeText, Name: "Intro", OrderIndex: 0, Config: component.Config{Content: "Monthly sales"}},
			{ID: "orders", Type: component.TypeTable, Name: "Orders", OrderIndex: 1, Config: component.Config{
				DataSource: &component.DataSourceRef{Module: "orders", Filters: map[string]any{"amount__gte": "${min}"}},
				Columns:    []component.Column{{Field: "number"}, {Field: "amount", Label: "Amount"}},
			}},
			{ID: "params", Type: component.TypeFilter, Name: "Filters", OrderIndex: 3, Config: component.Config{
				Parameters: []component.ParamDef{{Name: "min", Type: component.ParamNumber, Default: 10}},
			}},
		},
	}
}

var orderRows = map[string][]map[string]any{
	"orders": {
		{"number": "SO-1", "amount": 100},
		{"number": "SO-2", "amount": 250.5},
		{"number": "SO-3", "amount": int64(49)},
	},
}

func waitDone(t *testing.T, svc *ExecutionServiceImpl, id string) *Execution {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exec, err := svc.Wait(ctx, id)
	require.NoError(t, err)
	return exec
}

func TestTrigger_CompletesInOrder(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)

	var seen []FetchRequest
	source := funcSource(func(ctx context.Context, req FetchRequest) (*Dataset, error) {
		seen = append(seen, req)
		return rowsSource(orderRows).Fetch(ctx, req)
	})
	svc, repo := newTestService(reports, source)

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), map[string]any{"min": "25"}, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, exec.Status)
	assert.Equal(t, 25.0, exec.Parameters["min"])
	assert.Regexp(t, `^EXE-\d{8}-[0-9A-F]{8}$`, exec.ExecutionNo)

	done := waitDone(t, svc, exec.ID.Hex())
	require.Equal(t, StatusCompleted, done.Status, done.ErrorMessage)
	require.NotNil(t, done.Result)

	outs := done.Result.Outputs
	require.Len(t, outs, 4)
	assert.Equal(t, []string{"intro", "orders", "kpi", "params"},
		[]string{outs[0].ComponentID, outs[1].ComponentID, outs[2].ComponentID, outs[3].ComponentID})

	assert.Equal(t, "Monthly sales", outs[0].Text.Content)
	assert.Equal(t, []any{"SO-2", 250.5}, outs[1].Table.Rows[1])
	assert.Equal(t, "Amount", outs[1].Table.Columns[1].Label)
	assert.Equal(t, 399.5, outs[2].KPI.Cards[0].Value)
	assert.Equal(t, 25.0, outs[3].Filter.Parameters[0].Value)

	assert.Equal(t, 1, done.Result.DominantIndex)
	assert.Equal(t, 2, done.Result.TotalPages)
	assert.EqualValues(t, 3, done.ResultCount)
	assert.NotNil(t, done.FinishedAt)

	require.NotEmpty(t, seen)
	assert.Equal(t, map[string]any{"amount__gte": 25.0}, seen[0].Filters)
	assert.Equal(t, "erp", seen[0].Source)

	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCompleted}, repo.history())
	assert.Equal(t, 1, reports.recordCount())
}

func TestTrigger_FailureStopsRun(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)

	calls := 0
	source := funcSource(func(ctx context.Context, req FetchRequest) (*Dataset, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	svc, repo := newTestService(reports, source)

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)

	done := waitDone(t, svc, exec.ID.Hex())
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.ErrorMessage, "connection refused")
	assert.Contains(t, done.ErrorDetails, "component=orders")
	assert.Contains(t, done.ErrorDetails, "source=erp")
	assert.Nil(t, done.Result)
	// The kpi after the failing table is never fetched.
	assert.Equal(t, 1, calls)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusFailed}, repo.history())
	assert.Equal(t, 0, reports.recordCount())
}

func TestTrigger_CancelBetweenComponents(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)

	started := make(chan struct{})
	release := make(chan struct{})
	fetches := 0
	source := funcSource(func(ctx context.Context, req FetchRequest) (*Dataset, error) {
		fetches++
		if fetches == 1 {
			close(started)
			<-release
		}
		return rowsSource(orderRows).Fetch(ctx, req)
	})
	svc, repo := newTestService(reports, source)

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)

	<-started
	cancelled, err := svc.Cancel(context.Background(), owner, exec.ID.Hex())
	require.NoError(t, err)
	assert.True(t, cancelled.CancelRequested)
	close(release)

	done := waitDone(t, svc, exec.ID.Hex())
	assert.Equal(t, StatusCancelled, done.Status)
	assert.Nil(t, done.Result)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCancelled}, repo.history())

	_, err = svc.Cancel(context.Background(), owner, exec.ID.Hex())
	assert.True(t, errs.IsInvalidState(err))
}

func TestTrigger_StoredCancelStopsRun(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)

	started := make(chan struct{})
	release := make(chan struct{})
	fetches := 0
	source := funcSource(func(ctx context.Context, req FetchRequest) (*Dataset, error) {
		fetches++
		if fetches == 1 {
			close(started)
			<-release
		}
		return rowsSource(orderRows).Fetch(ctx, req)
	})
	svc, repo := newTestService(reports, source)

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)

	// Another instance flags the record; the local job flag stays unset.
	<-started
	ok, err := repo.RequestCancel(context.Background(), exec.ID.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	close(release)

	done := waitDone(t, svc, exec.ID.Hex())
	assert.Equal(t, StatusCancelled, done.Status)
	assert.Nil(t, done.Result)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCancelled}, repo.history())
}

func TestTrigger_MiddleComponentFails(t *testing.T) {
	table := func(id string, order int) component.Node {
		return component.Node{ID: id, Type: component.TypeTable, Name: id, OrderIndex: order, Config: component.Config{
			DataSource: &component.DataSourceRef{Module: id},
		}}
	}
	rep := salesReport()
	rep.Components = []component.Node{table("first", 0), table("second", 1), table("third", 2)}
	reports := newFakeReports(access.NewGate("admin"), rep)

	var fetched []string
	source := funcSource(func(ctx context.Context, req FetchRequest) (*Dataset, error) {
		fetched = append(fetched, req.Module)
		if req.Module == "second" {
			return nil, errors.New("timeout reading second")
		}
		return &Dataset{Rows: []map[string]any{{"n": 1}}}, nil
	})
	svc, repo := newTestService(reports, source)

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)

	done := waitDone(t, svc, exec.ID.Hex())
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.ErrorMessage, "timeout reading second")
	assert.Contains(t, done.ErrorDetails, "component=second")
	assert.Nil(t, done.Result)
	assert.Equal(t, []string{"first", "second"}, fetched)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusFailed}, repo.history())
}

func TestTrigger_Rejections(t *testing.T) {
	archived := salesReport()
	archived.Status = report.StatusArchived

	undeclared := salesReport()
	undeclared.Components[2].Config.DataSource.Filters = map[string]any{"region": "${region}"}

	badParam := salesReport()

	inactive := salesReport()
	inactive.Status = report.StatusInactive

	tests := []struct {
		name    string
		rep     *report.Report
		caller  access.Identity
		params  map[string]any
		check   func(error) bool
		created int
	}{
		{"archived report", archived, owner, nil, errs.IsInvalidState, 0},
		{"stranger", salesReport(), access.Identity{UserID: "stranger"}, nil, errs.IsPermission, 0},
		{"undeclared placeholder", undeclared, owner, nil, errs.IsValidation, 0},
		{"uncoercible parameter", badParam, owner, map[string]any{"min": "lots"}, errs.IsValidation, 0},
		{"inactive report still runs", inactive, owner, nil, func(err error) bool { return err == nil }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := newFakeReports(access.NewGate("admin"), tt.rep)
			svc, repo := newTestService(reports, rowsSource(orderRows))

			exec, err := svc.Trigger(context.Background(), tt.caller, tt.rep.ID.Hex(), tt.params, TriggerManual)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			if exec != nil {
				waitDone(t, svc, exec.ID.Hex())
			}
			assert.Equal(t, tt.created, repo.count())
		})
	}
}

func TestAuthorize_ExecutionAccess(t *testing.T) {
	rep := salesReport()
	rep.Permissions = access.PermissionSet{ViewUsers: []string{"viewer"}}
	reports := newFakeReports(access.NewGate("admin"), rep)
	svc, _ := newTestService(reports, rowsSource(orderRows))

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)
	waitDone(t, svc, exec.ID.Hex())
	id := exec.ID.Hex()

	_, err = svc.Get(context.Background(), access.Identity{UserID: "viewer"}, id)
	assert.NoError(t, err)

	_, err = svc.Cancel(context.Background(), access.Identity{UserID: "viewer"}, id)
	assert.True(t, errs.IsPermission(err))

	_, err = svc.Get(context.Background(), access.Identity{UserID: "stranger"}, id)
	assert.True(t, errs.IsPermission(err))

	// Once the report is gone only the executor and admins keep access.
	delete(reports.reports, rep.ID.Hex())
	_, err = svc.Get(context.Background(), access.Identity{UserID: "viewer"}, id)
	assert.True(t, errs.IsPermission(err))
	_, err = svc.Get(context.Background(), owner, id)
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), access.Identity{UserID: "root", Roles: []string{"admin"}}, id)
	assert.NoError(t, err)
}

func TestResultPage(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)
	svc, _ := newTestService(reports, rowsSource(orderRows))

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)
	waitDone(t, svc, exec.ID.Hex())

	first, err := svc.ResultPage(context.Background(), owner, exec.ID.Hex(), 1)
	require.NoError(t, err)
	assert.Len(t, first.Outputs[1].Table.Rows, 2)
	assert.Equal(t, 2, first.TotalPages)

	second, err := svc.ResultPage(context.Background(), owner, exec.ID.Hex(), 2)
	require.NoError(t, err)
	assert.Equal(t, []any{"SO-3", 49.0}, second.Outputs[1].Table.Rows[0])
	// Non-dominant outputs come back whole on every page.
	assert.Equal(t, first.Outputs[2], second.Outputs[2])

	_, err = svc.ResultPage(context.Background(), owner, exec.ID.Hex(), 3)
	assert.True(t, errs.IsValidation(err))
	_, err = svc.ResultPage(context.Background(), owner, exec.ID.Hex(), 0)
	assert.True(t, errs.IsValidation(err))
}

func TestSlicePage_Chart(t *testing.T) {
	exec := &Execution{
		ID:     primitive.NewObjectID(),
		Status: StatusCompleted,
		Result: &Result{
			PageSize:      2,
			TotalPages:    2,
			DominantIndex: 0,
			Outputs: []Output{{
				Type: component.TypeChartBar,
				Chart: &ChartOutput{
					Labels: []string{"a", "b", "c"},
					Series: []SeriesOutput{{Name: "n", Values: []any{1.0, 2.0, 3.0}}},
				},
			}},
		},
	}
	p, err := SlicePage(exec, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, p.Outputs[0].Chart.Labels)
	assert.Equal(t, []any{3.0}, p.Outputs[0].Chart.Series[0].Values)
	// The stored result is untouched.
	assert.Len(t, exec.Result.Outputs[0].Chart.Labels, 3)
}

func TestDelete_OnlyTerminal(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)

	release := make(chan struct{})
	source := funcSource(func(ctx context.Context, req FetchRequest) (*Dataset, error) {
		<-release
		return rowsSource(orderRows).Fetch(ctx, req)
	})
	svc, repo := newTestService(reports, source)

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), owner, exec.ID.Hex())
	assert.True(t, errs.IsInvalidState(err))

	close(release)
	waitDone(t, svc, exec.ID.Hex())
	require.NoError(t, svc.Delete(context.Background(), owner, exec.ID.Hex()))
	assert.Equal(t, 0, repo.count())
}

func TestEvents_PublishedPerTransition(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)
	svc, _ := newTestService(reports, rowsSource(orderRows))

	events, unsubscribe := svc.Events().Subscribe(8)
	defer unsubscribe()

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)
	waitDone(t, svc, exec.ID.Hex())

	var got []Status
	for len(got) < 3 {
		select {
		case ev := <-events:
			assert.Equal(t, exec.ID.Hex(), ev.ExecutionID)
			assert.Equal(t, "t1", ev.TenantID)
			got = append(got, ev.Status)
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", got)
		}
	}
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCompleted}, got)
}

func TestShutdown_WaitsForRuns(t *testing.T) {
	rep := salesReport()
	reports := newFakeReports(access.NewGate("admin"), rep)
	svc, repo := newTestService(reports, rowsSource(orderRows))

	exec, err := svc.Trigger(context.Background(), owner, rep.ID.Hex(), nil, TriggerManual)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	got, err := repo.Get(context.Background(), exec.ID.Hex())
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())
}

func TestEventVisible(t *testing.T) {
	rep := salesReport()
	rep.Permissions = access.PermissionSet{ViewUsers: []string{"viewer"}}
	reports := newFakeReports(access.NewGate("admin"), rep)
	svc, _ := newTestService(reports, rowsSource(orderRows))

	ev := Event{ExecutionID: "e1", ReportID: rep.ID.Hex(), TenantID: "t1", ExecutedBy: "runner", Status: StatusRunning}

	tests := []struct {
		name string
		id   access.Identity
		want bool
	}{
		{"Executor", access.Identity{UserID: "runner", TenantID: "t1"}, true},
		{"Report Owner", owner, true},
		{"Viewer", access.Identity{UserID: "viewer", TenantID: "t1"}, true},
		{"Tenant Admin", access.Identity{UserID: "root", TenantID: "t1", Roles: []string{"admin"}}, true},
		{"Global Admin", access.Identity{UserID: "root", Roles: []string{"admin"}}, true},
		{"Same Tenant Stranger", access.Identity{UserID: "stranger", TenantID: "t1"}, false},
		{"Other Tenant Viewer", access.Identity{UserID: "viewer", TenantID: "t2"}, false},
		{"Other Tenant Admin", access.Identity{UserID: "root", TenantID: "t2", Roles: []string{"admin"}}, false},
		{"Anonymous", access.Identity{TenantID: "t1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.EventVisible(context.Background(), tt.id, ev))
		})
	}

	t.Run("Deleted Report", func(t *testing.T) {
		gone := ev
		gone.ReportID = primitive.NewObjectID().Hex()
		assert.False(t, svc.EventVisible(context.Background(), access.Identity{UserID: "viewer", TenantID: "t1"}, gone))
		assert.True(t, svc.EventVisible(context.Background(), access.Identity{UserID: "runner", TenantID: "t1"}, gone))
	})
}
