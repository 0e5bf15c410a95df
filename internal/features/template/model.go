package template

import (
	"time"

	"go-erp/internal/features/access"
	"go-erp/internal/features/component"
	"go-erp/internal/features/report"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Template is a reusable snapshot of report components.
type Template struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID    string             `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	NameEn      string             `json:"name_en,omitempty" bson:"name_en,omitempty"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Category    report.Category    `json:"category" bson:"category"`
	Type        report.ReportType  `json:"type" bson:"type"`
	Tags        []string           `json:"tags" bson:"tags"`
	IsPublic    bool               `json:"is_public" bson:"is_public"`
	IsSystem    bool               `json:"is_system" bson:"is_system"`
	UsageCount  int64              `json:"usage_count" bson:"usage_count"`
	Components  []component.Node   `json:"components" bson:"components"`
	CreatedBy   string             `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

func (t *Template) Authorize(gate *access.Gate, id access.Identity, action access.Action) error {
	return gate.AuthorizeTemplate(id, t.CreatedBy, t.IsPublic, t.IsSystem, action)
}

type ListFilter struct {
	Category report.Category
	Type     report.ReportType
	Tag      string
	Search   string
	Page     int64
	Limit    int64
}

// Visibility mirrors the template view rule: public, system or own.
type Visibility struct {
	UserID string
	All    bool
}

// InstantiateRequest overrides template fields on the new report.
type InstantiateRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    report.Category      `json:"category"`
	Type        report.ReportType    `json:"type"`
	Permissions access.PermissionSet `json:"permissions"`
}

type FromReportRequest struct {
	Name        string   `json:"name"`
	NameEn      string   `json:"name_en"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	IsPublic    bool     `json:"is_public"`
}
