package component

import (
	"fmt"
	"slices"
	"strings"

	"go-erp/internal/common/errs"
)

// Validate checks that n carries a known type and every field its variant
// requires. The returned error names the offending field relative to path.
func Validate(n Node, path string) error {
	if path == "" {
		path = "component"
	}
	if !n.Type.Valid() {
		return errs.Validation(path+".type", "unknown component type %q", n.Type)
	}
	if strings.TrimSpace(n.Name) == "" {
		return errs.Missing(path + ".name")
	}
	return ValidateConfig(n.Type, n.Config, path+".config")
}

// ValidateConfig checks cfg against the contract of variant t.
func ValidateConfig(t Type, cfg Config, path string) error {
	switch t {
	case TypeText:
		if strings.TrimSpace(cfg.Content) == "" {
			return errs.Missing(path + ".content")
		}
	case TypeTable:
		if err := validateDataSource(cfg.DataSource, path+".data_source"); err != nil {
			return err
		}
		if len(cfg.Columns) == 0 {
			return errs.Missing(path + ".columns")
		}
		for i, col := range cfg.Columns {
			if strings.TrimSpace(col.Field) == "" {
				return errs.Missing(fmt.Sprintf("%s.columns[%d].field", path, i))
			}
		}
	case TypeChartBar, TypeChartLine, TypeChartPie:
		if err := validateDataSource(cfg.DataSource, path+".data_source"); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.LabelField) == "" {
			return errs.Missing(path + ".label_field")
		}
		if len(cfg.Series) == 0 {
			return errs.Missing(path + ".series")
		}
		if t == TypeChartPie && len(cfg.Series) != 1 {
			return errs.Validation(path+".series", "pie charts take exactly one series, got %d", len(cfg.Series))
		}
		for i, s := range cfg.Series {
			if strings.TrimSpace(s.Field) == "" {
				return errs.Missing(fmt.Sprintf("%s.series[%d].field", path, i))
			}
		}
	case TypeKPI:
		if cfg.DataSource != nil {
			if err := validateDataSource(cfg.DataSource, path+".data_source"); err != nil {
				return err
			}
		}
		if len(cfg.Metrics) == 0 {
			return errs.Missing(path + ".metrics")
		}
		for i, m := range cfg.Metrics {
			if err := validateMetric(m, fmt.Sprintf("%s.metrics[%d]", path, i)); err != nil {
				return err
			}
		}
	case TypeFilter:
		if len(cfg.Parameters) == 0 {
			return errs.Missing(path + ".parameters")
		}
		seen := make(map[string]bool, len(cfg.Parameters))
		for i, p := range cfg.Parameters {
			field := fmt.Sprintf("%s.parameters[%d]", path, i)
			if strings.TrimSpace(p.Name) == "" {
				return errs.Missing(field + ".name")
			}
			if seen[p.Name] {
				return errs.Validation(field+".name", "duplicate parameter %q", p.Name)
			}
			seen[p.Name] = true
			if err := validateParam(p, field); err != nil {
				return err
			}
		}
	default:
		return errs.Validation(path, "unknown component type %q", t)
	}
	return nil
}

func validateDataSource(ds *DataSourceRef, path string) error {
	if ds == nil {
		return errs.Missing(path)
	}
	if strings.TrimSpace(ds.Module) == "" {
		return errs.Missing(path + ".module")
	}
	if ds.Limit < 0 {
		return errs.Validation(path+".limit", "must not be negative")
	}
	if ds.Aggregation != nil {
		if len(ds.Aggregation.Metrics) == 0 {
			return errs.Missing(path + ".aggregation.metrics")
		}
		for i, m := range ds.Aggregation.Metrics {
			field := fmt.Sprintf("%s.aggregation.metrics[%d]", path, i)
			if !slices.Contains([]string{"sum", "avg", "count", "min", "max"}, m.Function) {
				return errs.Validation(field+".function", "unsupported aggregate %q", m.Function)
			}
			if m.Alias == "" {
				return errs.Missing(field + ".alias")
			}
			if m.Function != "count" && m.Field == "" {
				return errs.Missing(field + ".field")
			}
		}
	}
	return nil
}

func validateMetric(m KPIMetric, path string) error {
	if strings.TrimSpace(m.Name) == "" {
		return errs.Missing(path + ".name")
	}
	if m.Expression != "" {
		return nil
	}
	if m.Aggregate == "" {
		return errs.Missing(path + ".aggregate")
	}
	if !slices.Contains(KPIAggregates, m.Aggregate) {
		return errs.Validation(path+".aggregate", "unsupported aggregate %q", m.Aggregate)
	}
	if m.Aggregate != "count" && m.Field == "" {
		return errs.Missing(path + ".field")
	}
	return nil
}

func validateParam(p ParamDef, path string) error {
	switch p.Type {
	case ParamString, ParamNumber, ParamDate, ParamBool:
	case ParamSelect:
		if len(p.Options) == 0 {
			return errs.Missing(path + ".options")
		}
	case "":
		return errs.Missing(path + ".type")
	default:
		return errs.Validation(path+".type", "unknown parameter type %q", p.Type)
	}
	if p.Default != nil {
		if _, err := p.Coerce(p.Default); err != nil {
			return errs.Validation(path+".default", "%v", err)
		}
	}
	return nil
}

// ValidateList checks every node plus the list-level invariants: unique ids
// and order_index values forming the permutation 0..n-1.
func ValidateList(nodes []Node, path string) error {
	if path == "" {
		path = "components"
	}
	ids := make(map[string]bool, len(nodes))
	positions := make([]bool, len(nodes))
	for i, n := range nodes {
		field := fmt.Sprintf("%s[%d]", path, i)
		if n.ID == "" {
			return errs.Missing(field + ".id")
		}
		if ids[n.ID] {
			return errs.Validation(field+".id", "duplicate component id %q", n.ID)
		}
		ids[n.ID] = true
		if n.OrderIndex < 0 || n.OrderIndex >= len(nodes) || positions[n.OrderIndex] {
			return errs.Validation(field+".order_index", "order_index %d is not a free position in 0..%d", n.OrderIndex, len(nodes)-1)
		}
		positions[n.OrderIndex] = true
		if err := Validate(n, field); err != nil {
			return err
		}
	}
	return nil
}
