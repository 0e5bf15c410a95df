package report

import (
	"time"

	"go-erp/internal/features/access"
	"go-erp/internal/features/component"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategorySales      Category = "sales"
	CategoryFinance    Category = "finance"
	CategoryProduction Category = "production"
	CategoryInventory  Category = "inventory"
	CategorySupplier   Category = "supplier"
	CategoryCustomer   Category = "customer"
	CategorySystem     Category = "system"
)

var Categories = []Category{CategorySales, CategoryFinance, CategoryProduction, CategoryInventory, CategorySupplier, CategoryCustomer, CategorySystem}

type ReportType string

const (
	ReportTypeSummary    ReportType = "summary"
	ReportTypeDetail     ReportType = "detail"
	ReportTypeTrend      ReportType = "trend"
	ReportTypeComparison ReportType = "comparison"
	ReportTypeDashboard  ReportType = "dashboard"
)

var ReportTypes = []ReportType{ReportTypeSummary, ReportTypeDetail, ReportTypeTrend, ReportTypeComparison, ReportTypeDashboard}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// transitions lists the allowed status moves. Archived is terminal.
var transitions = map[Status][]Status{
	StatusActive:   {StatusInactive, StatusArchived},
	StatusInactive: {StatusActive, StatusArchived},
}

// CanTransition reports whether a report may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Report is a saved report definition.
type Report struct {
	ID             primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	TenantID       string               `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	ReportNo       string               `json:"report_no" bson:"report_no"`
	Name           string               `json:"name" bson:"name"`
	Description    string               `json:"description" bson:"description"`
	Category       Category             `json:"category" bson:"category"`
	Type           ReportType           `json:"type" bson:"type"`
	Status         Status               `json:"status" bson:"status"`
	Components     []component.Node     `json:"components" bson:"components"`
	ScheduleConfig *ScheduleConfig      `json:"schedule_config,omitempty" bson:"schedule_config,omitempty"`
	Permissions    access.PermissionSet `json:"permissions" bson:"permissions"`
	TemplateID     string               `json:"template_id,omitempty" bson:"template_id,omitempty"`
	CreatedBy      string               `json:"created_by" bson:"created_by"`
	UpdatedBy      string               `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
	CreatedAt      time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" bson:"updated_at"`
	Version        int64                `json:"version" bson:"version"`
	ExecuteCount   int64                `json:"execute_count" bson:"execute_count"`
	AvgExecTime    float64              `json:"avg_exec_time" bson:"avg_exec_time"` // milliseconds
	LastExecutedAt *time.Time           `json:"last_executed_at,omitempty" bson:"last_executed_at,omitempty"`
}

// Authorize runs the permission gate against this report.
func (r *Report) Authorize(gate *access.Gate, id access.Identity, action access.Action) error {
	return gate.AuthorizeReport(id, r.CreatedBy, r.Permissions, action)
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Category Category
	Type     ReportType
	Status   Status
	Search   string
	Page     int64
	Limit    int64
}

// Visibility restricts a listing to what a user may view. All skips the
// restriction for administrators.
type Visibility struct {
	UserID string
	All    bool
}

// NextAverage folds one more sample into a running average over count samples.
func NextAverage(avg float64, count int64, sample float64) float64 {
	return (avg*float64(count) + sample) / float64(count+1)
}
