// Package connectors answers "rows of module M matching filters F" for the
// report engine. Every data source, built-in or registered, implements
// Connector.
package connectors

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeMongoDB    = "mongodb"
	TypePostgreSQL = "postgresql"
	TypeMySQL      = "mysql"
)

// DataSource is a registered external source, stored in data_sources.
type DataSource struct {
	ID        primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	TenantID  string                 `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	Name      string                 `json:"name" bson:"name"`
	Type      string                 `json:"type" bson:"type"` // mongodb, postgresql, mysql
	Config    map[string]interface{} `json:"config" bson:"config"`
	IsActive  bool                   `json:"is_active" bson:"is_active"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
}

// SortSpec is one ordering key. Order matters, so sorts are a slice.
type SortSpec struct {
	Field string
	Desc  bool
}

// QueryRequest represents a data query
type QueryRequest struct {
	Source      string                 // Data source name
	Module      string                 // Module/table name
	Fields      []string               // Fields to retrieve
	Filters     map[string]interface{} // field or field__op -> value
	Sort        []SortSpec
	Limit       int64
	Offset      int64
	Aggregation *AggregationConfig // Optional aggregation
}

// AggregationConfig for analytics queries
type AggregationConfig struct {
	GroupBy []string
	Metrics []MetricConfig
}

// MetricConfig defines a metric calculation
type MetricConfig struct {
	Field    string
	Function string // "sum", "avg", "count", "min", "max"
	Alias    string
}

// QueryResponse represents query results
type QueryResponse struct {
	Data       []map[string]interface{}
	TotalCount int64
	Timestamp  time.Time
}

// SchemaInfo represents module/table schema
type SchemaInfo struct {
	Module string
	Fields []FieldInfo
}

// FieldInfo represents field metadata
type FieldInfo struct {
	Name         string
	Type         string
	Label        string
	IsRequired   bool
	IsPrimaryKey bool
}

// Connector interface for all data sources
type Connector interface {
	// Connect establishes connection to data source
	Connect(ctx context.Context, config map[string]interface{}) error

	// Disconnect closes connection
	Disconnect(ctx context.Context) error

	// Query executes a query and returns results
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// GetSchema returns schema information for a module/table
	GetSchema(ctx context.Context, module string) (*SchemaInfo, error)

	// TestConnection tests if connection is valid
	TestConnection(ctx context.Context) error

	// GetType returns the connector type
	GetType() string
}
