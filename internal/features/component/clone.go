package component

import (
	"sort"

	"github.com/google/uuid"
)

// NewID returns a fresh component id.
func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of n sharing no slices or maps with it.
func (n Node) Clone() Node {
	out := n
	out.Config = n.Config.Clone()
	return out
}

func (c Config) Clone() Config {
	out := c
	out.Options = cloneMap(c.Options)
	if c.DataSource != nil {
		ds := *c.DataSource
		ds.Fields = append([]string(nil), c.DataSource.Fields...)
		ds.Filters = cloneMap(c.DataSource.Filters)
		ds.Sort = append([]SortField(nil), c.DataSource.Sort...)
		if c.DataSource.Aggregation != nil {
			agg := *c.DataSource.Aggregation
			agg.GroupBy = append([]string(nil), agg.GroupBy...)
			agg.Metrics = append([]AggregateMetric(nil), agg.Metrics...)
			ds.Aggregation = &agg
		}
		out.DataSource = &ds
	}
	out.Columns = append([]Column(nil), c.Columns...)
	out.Series = append([]SeriesMapping(nil), c.Series...)
	out.Metrics = append([]KPIMetric(nil), c.Metrics...)
	if c.Parameters != nil {
		out.Parameters = make([]ParamDef, len(c.Parameters))
		for i, p := range c.Parameters {
			p.Options = append([]string(nil), p.Options...)
			p.Default = cloneValue(p.Default)
			out.Parameters[i] = p
		}
	}
	return out
}

// CloneList deep-copies nodes. With freshIDs every node gets a new id, which
// is how template snapshots are detached from their source.
func CloneList(nodes []Node, freshIDs bool) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
		if freshIDs {
			out[i].ID = NewID()
		}
	}
	return out
}

// Sorted returns a copy of nodes in ascending order_index.
func Sorted(nodes []Node) []Node {
	out := append([]Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

// Normalize fills missing ids, assigns positions when every order_index is
// zero and returns the nodes sorted by position.
func Normalize(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	allZero := true
	for i, n := range nodes {
		out[i] = n
		if out[i].ID == "" {
			out[i].ID = NewID()
		}
		if n.OrderIndex != 0 {
			allZero = false
		}
	}
	if allZero {
		for i := range out {
			out[i].OrderIndex = i
		}
	}
	return Sorted(out)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
