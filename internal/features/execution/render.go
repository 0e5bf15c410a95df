package execution

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go-erp/internal/common/errs"
	"go-erp/internal/connectors"
	"go-erp/internal/features/component"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

const maxScriptAllocs = 100000

// assignsValue matches a statement that assigns the value variable.
var assignsValue = regexp.MustCompile(`(?m)(^|;)\s*value\s*:?=[^=]`)

// renderer turns one component plus its data into an Output.
type renderer struct {
	source        DataSource
	defaultSource string
}

func (r *renderer) render(ctx context.Context, n component.Node, params map[string]any) (Output, error) {
	out := Output{
		ComponentID: n.ID,
		Type:        n.Type,
		Name:        n.Name,
		OrderIndex:  n.OrderIndex,
		Options:     n.Config.Options,
	}

	switch n.Type {
	case component.TypeText:
		out.Text = &TextOutput{Content: n.Config.Content}
		out.Empty = strings.TrimSpace(n.Config.Content) == ""

	case component.TypeFilter:
		f := &FilterOutput{Parameters: make([]ParamValue, 0, len(n.Config.Parameters))}
		for _, p := range n.Config.Parameters {
			label := p.Label
			if label == "" {
				label = p.Name
			}
			f.Parameters = append(f.Parameters, ParamValue{Name: p.Name, Label: label, Type: p.Type, Value: NormalizeCell(params[p.Name])})
		}
		out.Filter = f

	case component.TypeTable:
		rows, err := r.fetch(ctx, n, params)
		if err != nil {
			return out, err
		}
		out.Table = renderTable(n.Config, rows)
		out.Empty = len(out.Table.Rows) == 0

	case component.TypeChartBar, component.TypeChartLine, component.TypeChartPie:
		rows, err := r.fetch(ctx, n, params)
		if err != nil {
			return out, err
		}
		out.Chart = renderChart(n.Type, n.Config, rows)
		out.Empty = len(out.Chart.Labels) == 0

	case component.TypeKPI:
		var rows []map[string]any
		if n.Config.DataSource != nil {
			var err error
			if rows, err = r.fetch(ctx, n, params); err != nil {
				return out, err
			}
		}
		kpi, err := renderKPI(ctx, n.Config, rows, params)
		if err != nil {
			return out, fmt.Errorf("component %s: %w", n.ID, err)
		}
		out.KPI = kpi

	default:
		return out, fmt.Errorf("component %s: unknown type %q", n.ID, n.Type)
	}
	return out, nil
}

func (r *renderer) fetch(ctx context.Context, n component.Node, params map[string]any) ([]map[string]any, error) {
	ds := n.Config.DataSource
	if ds == nil {
		return nil, errs.Missing("config.data_source")
	}
	source := ds.Source
	if source == "" {
		source = r.defaultSource
	}
	data, err := r.source.Fetch(ctx, FetchRequest{
		Source:      source,
		Module:      ds.Module,
		Fields:      ds.Fields,
		Filters:     BindFilters(ds.Filters, params),
		Sort:        ds.Sort,
		Limit:       ds.Limit,
		Aggregation: ds.Aggregation,
	})
	if err != nil {
		return nil, errs.DataSource(source, fmt.Errorf("component %s (%s): %w", n.ID, ds.Module, err))
	}
	if data == nil {
		return nil, nil
	}
	return data.Rows, nil
}

func renderTable(cfg component.Config, rows []map[string]any) *TableOutput {
	t := &TableOutput{
		Columns: make([]ColumnOutput, len(cfg.Columns)),
		Rows:    make([][]any, 0, len(rows)),
	}
	for i, c := range cfg.Columns {
		t.Columns[i] = ColumnOutput{Field: c.Field, Label: c.Header()}
	}
	for _, rec := range rows {
		row := make([]any, len(cfg.Columns))
		for i, c := range cfg.Columns {
			row[i] = NormalizeCell(Lookup(rec, c.Field))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func renderChart(t component.Type, cfg component.Config, rows []map[string]any) *ChartOutput {
	c := &ChartOutput{
		Kind:   strings.TrimPrefix(string(t), "chart_"),
		Labels: make([]string, 0, len(rows)),
		Series: make([]SeriesOutput, len(cfg.Series)),
	}
	for i, s := range cfg.Series {
		c.Series[i] = SeriesOutput{Name: s.DisplayName(), Field: s.Field, Values: make([]any, 0, len(rows))}
	}
	for _, rec := range rows {
		c.Labels = append(c.Labels, FormatCell(Lookup(rec, cfg.LabelField)))
		for i, s := range cfg.Series {
			var v any
			if f, ok := connectors.ToFloat(NormalizeCell(Lookup(rec, s.Field))); ok {
				v = f
			}
			c.Series[i].Values = append(c.Series[i].Values, v)
		}
	}
	return c
}

func renderKPI(ctx context.Context, cfg component.Config, rows []map[string]any, params map[string]any) (*KPIOutput, error) {
	k := &KPIOutput{Cards: make([]KPICard, 0, len(cfg.Metrics))}
	for _, m := range cfg.Metrics {
		card := KPICard{Name: m.Name, Unit: m.Unit}
		if m.Expression != "" {
			value, previous, err := evalExpression(ctx, m.Expression, rows, params)
			if err != nil {
				return nil, fmt.Errorf("metric %q: %w", m.Name, err)
			}
			card.Value, card.Previous = value, previous
		} else {
			card.Value = aggregate(rows, m.Field, m.Aggregate)
			if m.PreviousField != "" {
				card.Previous = aggregate(rows, m.PreviousField, m.Aggregate)
			}
		}
		card.ChangePct = changePct(card.Value, card.Previous)
		k.Cards = append(k.Cards, card)
	}
	return k, nil
}

func aggregate(rows []map[string]any, field, fn string) any {
	if fn == "count" {
		if field == "" {
			return float64(len(rows))
		}
		n := 0
		for _, r := range rows {
			if Lookup(r, field) != nil {
				n++
			}
		}
		return float64(n)
	}
	if fn == "first" || fn == "last" {
		for i := range rows {
			idx := i
			if fn == "last" {
				idx = len(rows) - 1 - i
			}
			if v := NormalizeCell(Lookup(rows[idx], field)); v != nil {
				return v
			}
		}
		return nil
	}

	var values []float64
	for _, r := range rows {
		if f, ok := connectors.ToFloat(NormalizeCell(Lookup(r, field))); ok {
			values = append(values, f)
		}
	}
	if fn == "sum" {
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum
	}
	if len(values) == 0 {
		return nil
	}
	switch fn {
	case "avg":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case "min", "max":
		best := values[0]
		for _, v := range values[1:] {
			if (fn == "min" && v < best) || (fn == "max" && v > best) {
				best = v
			}
		}
		return best
	}
	return nil
}

func changePct(value, previous any) *float64 {
	cur, ok1 := value.(float64)
	prev, ok2 := previous.(float64)
	if !ok1 || !ok2 || prev == 0 {
		return nil
	}
	pct := (cur - prev) / prev * 100
	return &pct
}

// evalExpression runs a tengo script with rows and params in scope. The
// script assigns value (and optionally previous); a bare expression that
// never assigns value is treated as the value itself.
func evalExpression(ctx context.Context, expr string, rows []map[string]any, params map[string]any) (any, any, error) {
	code := expr
	if !assignsValue.MatchString(expr) {
		code = "value = (" + expr + ")"
	}

	scriptRows := make([]interface{}, len(rows))
	for i, r := range rows {
		m := make(map[string]interface{}, len(r))
		for k, v := range r {
			m[k] = NormalizeCell(v)
		}
		scriptRows[i] = m
	}
	scriptParams := make(map[string]interface{}, len(params))
	for k, v := range params {
		scriptParams[k] = NormalizeCell(v)
	}

	script := tengo.NewScript([]byte(code))
	script.SetImports(stdlib.GetModuleMap("math", "text"))
	script.SetMaxAllocs(maxScriptAllocs)
	for name, v := range map[string]interface{}{"rows": scriptRows, "params": scriptParams, "value": nil, "previous": nil} {
		if err := script.Add(name, v); err != nil {
			return nil, nil, err
		}
	}

	compiled, err := script.RunContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	value := compiled.Get("value")
	if value.IsUndefined() {
		return nil, nil, fmt.Errorf("expression did not assign value")
	}
	var previous any
	if p := compiled.Get("previous"); !p.IsUndefined() {
		previous = NormalizeCell(p.Value())
	}
	return NormalizeCell(value.Value()), previous, nil
}
