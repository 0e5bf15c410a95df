package component

import "go-erp/internal/common/errs"

// DefaultConfig returns a configuration that passes ValidateConfig for t.
// Data-bound variants point at defaultModule; when none is known the caller
// has to supply the configuration itself.
func DefaultConfig(t Type, defaultModule string) (Config, error) {
	switch t {
	case TypeText:
		return Config{Content: "New text"}, nil
	case TypeTable:
		if defaultModule == "" {
			return Config{}, errs.Missing("config.data_source.module")
		}
		return Config{
			DataSource: &DataSourceRef{Module: defaultModule, Limit: 100},
			Columns:    []Column{{Field: "_id", Label: "ID"}},
		}, nil
	case TypeChartBar, TypeChartLine, TypeChartPie:
		if defaultModule == "" {
			return Config{}, errs.Missing("config.data_source.module")
		}
		return Config{
			DataSource: &DataSourceRef{
				Module: defaultModule,
				Aggregation: &Aggregation{
					GroupBy: []string{"status"},
					Metrics: []AggregateMetric{{Function: "count", Alias: "count"}},
				},
			},
			LabelField: "status",
			Series:     []SeriesMapping{{Field: "count", Name: "Count"}},
		}, nil
	case TypeKPI:
		cfg := Config{Metrics: []KPIMetric{{Name: "Total", Aggregate: "count"}}}
		if defaultModule != "" {
			cfg.DataSource = &DataSourceRef{Module: defaultModule}
		}
		return cfg, nil
	case TypeFilter:
		return Config{Parameters: []ParamDef{{Name: "from_date", Label: "From", Type: ParamDate}}}, nil
	}
	return Config{}, errs.Validation("type", "unknown component type %q", t)
}

// DefaultName is the label a freshly added component gets.
func DefaultName(t Type) string {
	switch t {
	case TypeText:
		return "Text"
	case TypeTable:
		return "Table"
	case TypeChartBar:
		return "Bar chart"
	case TypeChartLine:
		return "Line chart"
	case TypeChartPie:
		return "Pie chart"
	case TypeKPI:
		return "KPI"
	case TypeFilter:
		return "Filters"
	}
	return string(t)
}
