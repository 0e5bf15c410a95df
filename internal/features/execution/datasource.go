package execution

import (
	"context"

	"go-erp/internal/connectors"
	"go-erp/internal/features/component"
)

// FetchRequest asks a data source for the rows behind one component.
// Filters are already bound to the run's parameters.
type FetchRequest struct {
	Source      string
	Module      string
	Fields      []string
	Filters     map[string]any
	Sort        []component.SortField
	Limit       int64
	Aggregation *component.Aggregation
}

type Dataset struct {
	Rows  []map[string]any
	Total int64
}

// DataSource is the black box the engine reads rows from.
type DataSource interface {
	Fetch(ctx context.Context, req FetchRequest) (*Dataset, error)
}

// Resolver finds the connector behind a data-source name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (connectors.Connector, error)
}

// ConnectorSource serves fetches through the connector registry.
type ConnectorSource struct {
	resolver Resolver
}

func NewConnectorSource(resolver *connectors.Registry) DataSource {
	return &ConnectorSource{resolver: resolver}
}

func (s *ConnectorSource) Fetch(ctx context.Context, req FetchRequest) (*Dataset, error) {
	conn, err := s.resolver.Resolve(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	q := connectors.QueryRequest{
		Source:  req.Source,
		Module:  req.Module,
		Fields:  req.Fields,
		Filters: req.Filters,
		Limit:   req.Limit,
	}
	for _, s := range req.Sort {
		q.Sort = append(q.Sort, connectors.SortSpec{Field: s.Field, Desc: s.Desc})
	}
	if req.Aggregation != nil {
		agg := &connectors.AggregationConfig{GroupBy: req.Aggregation.GroupBy}
		for _, m := range req.Aggregation.Metrics {
			agg.Metrics = append(agg.Metrics, connectors.MetricConfig{Field: m.Field, Function: m.Function, Alias: m.Alias})
		}
		q.Aggregation = agg
	}

	resp, err := conn.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Dataset{Rows: resp.Data, Total: resp.TotalCount}, nil
}
