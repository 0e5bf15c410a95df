package execution

import (
	"context"
	"testing"
	"time"

	"go-erp/internal/connectors"
	"go-erp/internal/features/component"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeCell(t *testing.T) {
	oid := primitive.NewObjectID()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 42, 42.0},
		{"int64", int64(7), 7.0},
		{"float", 1.5, 1.5},
		{"bool", true, true},
		{"time in utc", ts, "2024-03-01T11:00:00Z"},
		{"object id", oid, oid.Hex()},
		{"bytes", []byte("abc"), "abc"},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCell(tt.in))
		})
	}
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", FormatCell(nil))
	assert.Equal(t, "1234.5", FormatCell(1234.5))
	assert.Equal(t, "3", FormatCell(int64(3)))
	assert.Equal(t, "false", FormatCell(false))
}

func TestLookup_DottedPath(t *testing.T) {
	rec := map[string]any{
		"customer":  map[string]any{"name": "ACME"},
		"plain.key": "flat",
	}
	assert.Equal(t, "ACME", Lookup(rec, "customer.name"))
	assert.Equal(t, "flat", Lookup(rec, "plain.key"))
	assert.Nil(t, Lookup(rec, "customer.missing.deeper"))
}

func TestMergeParameters(t *testing.T) {
	nodes := []component.Node{
		{ID: "f1", Type: component.TypeFilter, OrderIndex: 0, Config: component.Config{Parameters: []component.ParamDef{
			{Name: "from", Type: component.ParamDate, Default: "2024-01-01"},
			{Name: "region", Type: component.ParamSelect, Options: []string{"north", "south"}},
		}}},
		{ID: "f2", Type: component.TypeFilter, OrderIndex: 1, Config: component.Config{Parameters: []component.ParamDef{
			{Name: "from", Type: component.ParamString, Default: "shadowed"},
		}}},
	}

	merged, err := MergeParameters(nodes, map[string]any{"region": "south", "extra": 3})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), merged["from"])
	assert.Equal(t, "south", merged["region"])
	assert.Equal(t, 3, merged["extra"])

	_, err = MergeParameters(nodes, map[string]any{"region": "east"})
	assert.Error(t, err)
}

func TestBindFilters(t *testing.T) {
	params := map[string]any{"min": 10.0, "status": "open", "owner": nil}
	got := BindFilters(map[string]any{
		"amount__gte": "${min}",
		"owner":       "${owner}",
		"note":        "status is ${status}",
		"tags__in":    []any{"${status}", "${owner}", "fixed"},
		"plain":       5,
	}, params)

	assert.Equal(t, map[string]any{
		"amount__gte": 10.0,
		"note":        "status is open",
		"tags__in":    []any{"open", "fixed"},
		"plain":       5,
	}, got)
}

func TestPlaceholders(t *testing.T) {
	nodes := []component.Node{
		{Type: component.TypeTable, Config: component.Config{DataSource: &component.DataSourceRef{
			Module:  "orders",
			Filters: map[string]any{"a": "${b}", "c": []any{"${a}", "${b}"}},
		}}},
	}
	assert.Equal(t, []string{"a", "b"}, Placeholders(nodes))
	assert.Error(t, CheckPlaceholders(nodes, map[string]any{"a": 1}))
	assert.NoError(t, CheckPlaceholders(nodes, map[string]any{"a": 1, "b": nil}))
}

func TestStoredFiltersBindLikeFresh(t *testing.T) {
	type stored struct {
		Components []component.Node `bson:"components"`
	}
	fresh := stored{Components: []component.Node{
		{ID: "t1", Type: component.TypeTable, Name: "Orders", Config: component.Config{DataSource: &component.DataSourceRef{
			Module:  "orders",
			Filters: map[string]any{"status__in": []any{"open", "${region}"}, "meta": map[string]any{"owner": "${region}"}},
		}}},
	}}
	raw, err := bson.Marshal(fresh)
	require.NoError(t, err)
	var loaded stored
	require.NoError(t, bson.Unmarshal(raw, &loaded))
	filters := loaded.Components[0].Config.DataSource.Filters
	require.IsType(t, primitive.A{}, filters["status__in"])

	assert.Equal(t, []string{"region"}, Placeholders(loaded.Components))
	assert.Error(t, CheckPlaceholders(loaded.Components, map[string]any{}))

	params := map[string]any{"region": "EU"}
	bound := BindFilters(filters, params)
	assert.Equal(t, []any{"open", "EU"}, bound["status__in"])
	assert.Equal(t, map[string]any{"owner": "EU"}, bound["meta"])
	assert.Equal(t, BindFilters(fresh.Components[0].Config.DataSource.Filters, params), bound)

	query, err := connectors.ToBSON(map[string]any{"status__in": bound["status__in"]})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"status": bson.M{"$in": []interface{}{"open", "EU"}}}, query)
}

func TestRenderKPI(t *testing.T) {
	rows := []map[string]any{
		{"amount": 10, "prev": 5, "order_value": 4},
		{"amount": 30, "prev": 15, "order_value": 6},
	}
	tests := []struct {
		name       string
		metric     component.KPIMetric
		wantValue  any
		wantChange *float64
	}{
		{"sum with previous", component.KPIMetric{Name: "s", Field: "amount", Aggregate: "sum", PreviousField: "prev"}, 40.0, ptr(100.0)},
		{"avg", component.KPIMetric{Name: "a", Field: "amount", Aggregate: "avg"}, 20.0, nil},
		{"count rows", component.KPIMetric{Name: "c", Aggregate: "count"}, 2.0, nil},
		{"max", component.KPIMetric{Name: "m", Field: "amount", Aggregate: "max"}, 30.0, nil},
		{"last", component.KPIMetric{Name: "l", Field: "amount", Aggregate: "last"}, 30.0, nil},
		{"bare expression", component.KPIMetric{Name: "e", Expression: "len(rows) * params.factor"}, 6.0, nil},
		{"script with previous", component.KPIMetric{Name: "p", Expression: "value = 12\nprevious = 8"}, 12.0, ptr(50.0)},
		{"bare expression naming a value field", component.KPIMetric{Name: "v", Expression: "rows[0].order_value + rows[1].order_value"}, 10.0, nil},
		{"bare comparison with value", component.KPIMetric{Name: "w", Expression: "rows[0].order_value == 4 ? 1 : 0"}, 1.0, nil},
		{"script declaring value", component.KPIMetric{Name: "d", Expression: "total := 0\nfor r in rows { total += r.amount }\nvalue = total"}, 40.0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kpi, err := renderKPI(context.Background(), component.Config{Metrics: []component.KPIMetric{tt.metric}}, rows, map[string]any{"factor": 3})
			require.NoError(t, err)
			require.Len(t, kpi.Cards, 1)
			assert.Equal(t, tt.wantValue, kpi.Cards[0].Value)
			if tt.wantChange == nil {
				assert.Nil(t, kpi.Cards[0].ChangePct)
			} else {
				require.NotNil(t, kpi.Cards[0].ChangePct)
				assert.InDelta(t, *tt.wantChange, *kpi.Cards[0].ChangePct, 1e-9)
			}
		})
	}
}

func TestRenderKPI_ScriptError(t *testing.T) {
	_, err := renderKPI(context.Background(), component.Config{Metrics: []component.KPIMetric{{Name: "bad", Expression: "value = undefined_thing +"}}}, nil, nil)
	assert.Error(t, err)
}

func TestRenderChart(t *testing.T) {
	cfg := component.Config{
		LabelField: "status",
		Series:     []component.SeriesMapping{{Field: "count", Name: "Orders"}, {Field: "missing"}},
	}
	rows := []map[string]any{{"status": "open", "count": 3}, {"status": "closed", "count": int64(5)}}

	c := renderChart(component.TypeChartPie, cfg, rows)
	assert.Equal(t, "pie", c.Kind)
	assert.Equal(t, []string{"open", "closed"}, c.Labels)
	assert.Equal(t, "Orders", c.Series[0].Name)
	assert.Equal(t, []any{3.0, 5.0}, c.Series[0].Values)
	assert.Equal(t, []any{nil, nil}, c.Series[1].Values)
}

func ptr(f float64) *float64 { return &f }
