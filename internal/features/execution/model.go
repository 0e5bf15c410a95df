package execution

import (
	"time"

	"go-erp/internal/features/component"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

const (
	DispatchSent    = "sent"
	DispatchFailed  = "failed"
	DispatchSkipped = "skipped"
)

// Execution is one run of a report definition.
type Execution struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID        string             `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	ExecutionNo     string             `json:"execution_no" bson:"execution_no"`
	ReportID        string             `json:"report_id" bson:"report_id"`
	ReportName      string             `json:"report_name" bson:"report_name"`
	Status          Status             `json:"status" bson:"status"`
	Trigger         Trigger            `json:"trigger" bson:"trigger"`
	Parameters      map[string]any     `json:"parameters" bson:"parameters"`
	ExecutedBy      string             `json:"executed_by" bson:"executed_by"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty" bson:"started_at,omitempty"`
	FinishedAt      *time.Time         `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	ExecutionTimeMs int64              `json:"execution_time_ms" bson:"execution_time_ms"`
	Result          *Result            `json:"result,omitempty" bson:"result,omitempty"`
	ResultCount     int64              `json:"result_count" bson:"result_count"`
	ErrorMessage    string             `json:"error_message,omitempty" bson:"error_message,omitempty"`
	ErrorDetails    string             `json:"error_details,omitempty" bson:"error_details,omitempty"`
	CancelRequested bool               `json:"cancel_requested,omitempty" bson:"cancel_requested,omitempty"`
	DispatchStatus  string             `json:"dispatch_status,omitempty" bson:"dispatch_status,omitempty"`
	DispatchError   string             `json:"dispatch_error,omitempty" bson:"dispatch_error,omitempty"`
}

// Result is the ordered list of rendered components of a completed run.
type Result struct {
	Outputs    []Output `json:"outputs" bson:"outputs"`
	TotalPages int      `json:"total_pages" bson:"total_pages"`
	PageSize   int      `json:"page_size" bson:"page_size"`
	// DominantIndex points into Outputs at the largest row-shaped dataset,
	// -1 when the report has none.
	DominantIndex int `json:"dominant_index" bson:"dominant_index"`
}

// Output is one rendered component. Exactly one payload pointer is set,
// matching Type. Cell values are always nil, bool, float64 or string.
type Output struct {
	ComponentID string         `json:"component_id" bson:"component_id"`
	Type        component.Type `json:"type" bson:"type"`
	Name        string         `json:"name" bson:"name"`
	OrderIndex  int            `json:"order_index" bson:"order_index"`
	Empty       bool           `json:"empty,omitempty" bson:"empty,omitempty"`
	Options     map[string]any `json:"options,omitempty" bson:"options,omitempty"`

	Text   *TextOutput   `json:"text,omitempty" bson:"text,omitempty"`
	Table  *TableOutput  `json:"table,omitempty" bson:"table,omitempty"`
	Chart  *ChartOutput  `json:"chart,omitempty" bson:"chart,omitempty"`
	KPI    *KPIOutput    `json:"kpi,omitempty" bson:"kpi,omitempty"`
	Filter *FilterOutput `json:"filter,omitempty" bson:"filter,omitempty"`
}

// RowCount is the size of the row-shaped dataset behind o, if any.
func (o Output) RowCount() (int, bool) {
	switch {
	case o.Table != nil:
		return len(o.Table.Rows), true
	case o.Chart != nil:
		return len(o.Chart.Labels), true
	}
	return 0, false
}

type TextOutput struct {
	Content string `json:"content" bson:"content"`
}

type TableOutput struct {
	Columns []ColumnOutput `json:"columns" bson:"columns"`
	Rows    [][]any        `json:"rows" bson:"rows"`
}

type ColumnOutput struct {
	Field string `json:"field" bson:"field"`
	Label string `json:"label" bson:"label"`
}

type ChartOutput struct {
	Kind   string         `json:"kind" bson:"kind"` // bar, line, pie
	Labels []string       `json:"labels" bson:"labels"`
	Series []SeriesOutput `json:"series" bson:"series"`
}

type SeriesOutput struct {
	Name   string `json:"name" bson:"name"`
	Field  string `json:"field" bson:"field"`
	Values []any  `json:"values" bson:"values"`
}

type KPIOutput struct {
	Cards []KPICard `json:"cards" bson:"cards"`
}

type KPICard struct {
	Name      string   `json:"name" bson:"name"`
	Value     any      `json:"value" bson:"value"`
	Previous  any      `json:"previous,omitempty" bson:"previous,omitempty"`
	ChangePct *float64 `json:"change_pct,omitempty" bson:"change_pct,omitempty"`
	Unit      string   `json:"unit,omitempty" bson:"unit,omitempty"`
}

type FilterOutput struct {
	Parameters []ParamValue `json:"parameters" bson:"parameters"`
}

type ParamValue struct {
	Name  string              `json:"name" bson:"name"`
	Label string              `json:"label" bson:"label"`
	Type  component.ParamType `json:"type" bson:"type"`
	Value any                 `json:"value" bson:"value"`
}

// Page is one page of a completed result: the dominant dataset is sliced,
// every other output is returned whole.
type Page struct {
	ExecutionID string   `json:"execution_id"`
	Page        int      `json:"page"`
	TotalPages  int      `json:"total_pages"`
	PageSize    int      `json:"page_size"`
	Outputs     []Output `json:"outputs"`
}

// Event is published on every status change.
type Event struct {
	ExecutionID string    `json:"execution_id"`
	ReportID    string    `json:"report_id"`
	TenantID    string    `json:"-"`
	ExecutedBy  string    `json:"-"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}
