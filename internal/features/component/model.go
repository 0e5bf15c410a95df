// Package component defines the closed set of report components and the
// per-variant configuration contract each of them must satisfy.
package component

type Type string

const (
	TypeText      Type = "text"
	TypeTable     Type = "table"
	TypeChartBar  Type = "chart_bar"
	TypeChartLine Type = "chart_line"
	TypeChartPie  Type = "chart_pie"
	TypeKPI       Type = "kpi"
	TypeFilter    Type = "filter"
)

var AllTypes = []Type{TypeText, TypeTable, TypeChartBar, TypeChartLine, TypeChartPie, TypeKPI, TypeFilter}

func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t Type) IsChart() bool {
	return t == TypeChartBar || t == TypeChartLine || t == TypeChartPie
}

// RequiresDataSource reports whether the variant cannot render without rows.
func (t Type) RequiresDataSource() bool {
	return t == TypeTable || t.IsChart()
}

// Node is one visual element of a report or template snapshot.
type Node struct {
	ID         string `json:"id" bson:"id"`
	Type       Type   `json:"type" bson:"type"`
	Name       string `json:"name" bson:"name"`
	OrderIndex int    `json:"order_index" bson:"order_index"`
	Config     Config `json:"config" bson:"config"`
}

// Config is the union of all variant configurations. Type decides which
// fields are meaningful; Validate enforces the required ones.
type Config struct {
	Description string         `json:"description,omitempty" bson:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty" bson:"options,omitempty"` // display options, passed through to the rendered output

	// text
	Content string `json:"content,omitempty" bson:"content,omitempty"`

	// table, charts, kpi
	DataSource *DataSourceRef `json:"data_source,omitempty" bson:"data_source,omitempty"`

	// table
	Columns []Column `json:"columns,omitempty" bson:"columns,omitempty"`

	// charts
	LabelField string          `json:"label_field,omitempty" bson:"label_field,omitempty"`
	Series     []SeriesMapping `json:"series,omitempty" bson:"series,omitempty"`

	// kpi
	Metrics []KPIMetric `json:"metrics,omitempty" bson:"metrics,omitempty"`

	// filter
	Parameters []ParamDef `json:"parameters,omitempty" bson:"parameters,omitempty"`
}

// DataSourceRef names the opaque source a component reads from. Filter
// values may contain ${param} placeholders bound at execution time.
type DataSourceRef struct {
	Source      string         `json:"source,omitempty" bson:"source,omitempty"`
	Module      string         `json:"module" bson:"module"`
	Fields      []string       `json:"fields,omitempty" bson:"fields,omitempty"`
	Filters     map[string]any `json:"filters,omitempty" bson:"filters,omitempty"`
	Sort        []SortField    `json:"sort,omitempty" bson:"sort,omitempty"`
	Limit       int64          `json:"limit,omitempty" bson:"limit,omitempty"`
	Aggregation *Aggregation   `json:"aggregation,omitempty" bson:"aggregation,omitempty"`
}

type SortField struct {
	Field string `json:"field" bson:"field"`
	Desc  bool   `json:"desc,omitempty" bson:"desc,omitempty"`
}

type Aggregation struct {
	GroupBy []string          `json:"group_by,omitempty" bson:"group_by,omitempty"`
	Metrics []AggregateMetric `json:"metrics" bson:"metrics"`
}

type AggregateMetric struct {
	Field    string `json:"field,omitempty" bson:"field,omitempty"`
	Function string `json:"function" bson:"function"` // sum, avg, count, min, max
	Alias    string `json:"alias" bson:"alias"`
}

type Column struct {
	Field string `json:"field" bson:"field"`
	Label string `json:"label,omitempty" bson:"label,omitempty"`
}

// Header is the column title shown to readers.
func (c Column) Header() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Field
}

type SeriesMapping struct {
	Field string `json:"field" bson:"field"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
}

func (s SeriesMapping) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Field
}

// KPIMetric is one card of a kpi component. The value is either an
// aggregate over Field or the result of a tengo Expression.
type KPIMetric struct {
	Name          string `json:"name" bson:"name"`
	Field         string `json:"field,omitempty" bson:"field,omitempty"`
	Aggregate     string `json:"aggregate,omitempty" bson:"aggregate,omitempty"` // sum, avg, count, min, max, first, last
	PreviousField string `json:"previous_field,omitempty" bson:"previous_field,omitempty"`
	Expression    string `json:"expression,omitempty" bson:"expression,omitempty"`
	Unit          string `json:"unit,omitempty" bson:"unit,omitempty"`
}

var KPIAggregates = []string{"sum", "avg", "count", "min", "max", "first", "last"}

type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
	ParamDate   ParamType = "date"
	ParamBool   ParamType = "bool"
	ParamSelect ParamType = "select"
)

type ParamDef struct {
	Name    string    `json:"name" bson:"name"`
	Label   string    `json:"label,omitempty" bson:"label,omitempty"`
	Type    ParamType `json:"type" bson:"type"`
	Default any       `json:"default,omitempty" bson:"default,omitempty"`
	Options []string  `json:"options,omitempty" bson:"options,omitempty"`
}
