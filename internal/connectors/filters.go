package connectors

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter keys are either a bare field (equality) or field__op.
var operators = map[string]string{
	"eq":         "$eq",
	"ne":         "$ne",
	"gt":         "$gt",
	"gte":        "$gte",
	"lt":         "$lt",
	"lte":        "$lte",
	"in":         "$in",
	"nin":        "$nin",
	"contains":   "$regex",
	"startswith": "$regex",
	"exists":     "$exists",
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Condition is one parsed filter entry.
type Condition struct {
	Field string
	Op    string
	Value interface{}
}

// ParseFilters splits operator-suffixed keys and returns the conditions in
// key order so generated queries are stable.
func ParseFilters(filters map[string]interface{}) ([]Condition, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]Condition, 0, len(keys))
	for _, key := range keys {
		field, op := key, "eq"
		if i := strings.LastIndex(key, "__"); i > 0 {
			field, op = key[:i], key[i+2:]
		}
		if _, ok := operators[op]; !ok {
			return nil, fmt.Errorf("unsupported filter operator %q in %q", op, key)
		}
		if !ValidIdentifier(field) {
			return nil, fmt.Errorf("invalid filter field %q", field)
		}
		conds = append(conds, Condition{Field: field, Op: op, Value: filters[key]})
	}
	return conds, nil
}

// ValidIdentifier reports whether name is safe to use as a field, column or
// table name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ToBSON converts filters into a Mongo query document. Several operators on
// the same field are merged.
func ToBSON(filters map[string]interface{}) (bson.M, error) {
	conds, err := ParseFilters(filters)
	if err != nil {
		return nil, err
	}
	query := bson.M{}
	for _, c := range conds {
		var clause interface{}
		switch c.Op {
		case "eq":
			query[c.Field] = c.Value
			continue
		case "contains":
			clause = primitive.Regex{Pattern: regexp.QuoteMeta(fmt.Sprint(c.Value)), Options: "i"}
		case "startswith":
			clause = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(fmt.Sprint(c.Value)), Options: "i"}
		case "in", "nin":
			clause = toSlice(c.Value)
		default:
			clause = c.Value
		}
		existing, ok := query[c.Field].(bson.M)
		if !ok {
			existing = bson.M{}
		}
		existing[operators[c.Op]] = clause
		query[c.Field] = existing
	}
	return query, nil
}

func toSlice(v interface{}) []interface{} {
	switch val := NormalizeValue(v).(type) {
	case []interface{}:
		return val
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case string:
		parts := strings.Split(val, ",")
		out := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []interface{}{v}
	}
}
