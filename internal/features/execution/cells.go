package execution

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go-erp/internal/connectors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NormalizeCell reduces any source value to nil, bool, float64 or string so
// a result reads the same after a JSON or BSON round trip.
func NormalizeCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339)
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339)
	case primitive.ObjectID:
		return x.Hex()
	case primitive.Decimal128:
		if f, err := strconv.ParseFloat(x.String(), 64); err == nil {
			return f
		}
		return x.String()
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	if f, ok := connectors.ToFloat(v); ok {
		return f
	}
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// FormatCell is the one text rendering of a normalized cell shared by every
// exporter.
func FormatCell(v any) string {
	switch x := NormalizeCell(v).(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	}
	return ""
}

// Lookup reads a possibly dotted field path from a record.
func Lookup(record map[string]any, field string) any {
	if v, ok := record[field]; ok {
		return v
	}
	var cur any = record
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}
