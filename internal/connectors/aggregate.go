package connectors

import (
	"fmt"
	"strings"
)

// selectFields applies field selection to records
func selectFields(records []map[string]interface{}, fields []string) []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(records))

	for _, record := range records {
		filteredRecord := make(map[string]interface{}, len(fields))
		for _, field := range fields {
			if val, ok := record[field]; ok {
				filteredRecord[field] = val
			}
		}
		result = append(result, filteredRecord)
	}

	return result
}

// Aggregate groups records and computes the metrics of agg. Groups come out
// in the order their first record appears, so a sorted input yields a
// sorted output.
func Aggregate(records []map[string]interface{}, agg *AggregationConfig) []map[string]interface{} {
	if len(agg.GroupBy) == 0 {
		// No grouping, just calculate metrics across all records
		result := make(map[string]interface{}, len(agg.Metrics))
		for _, metric := range agg.Metrics {
			result[metric.Alias] = calculateMetric(records, metric)
		}
		return []map[string]interface{}{result}
	}

	var order []string
	groups := make(map[string][]map[string]interface{})
	for _, record := range records {
		key := buildGroupKey(record, agg.GroupBy)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], record)
	}

	result := make([]map[string]interface{}, 0, len(groups))
	for _, key := range order {
		groupRecords := groups[key]
		groupResult := make(map[string]interface{}, len(agg.GroupBy)+len(agg.Metrics))

		for _, field := range agg.GroupBy {
			groupResult[field] = groupRecords[0][field]
		}
		for _, metric := range agg.Metrics {
			groupResult[metric.Alias] = calculateMetric(groupRecords, metric)
		}

		result = append(result, groupResult)
	}

	return result
}

// buildGroupKey creates a unique key for grouping
func buildGroupKey(record map[string]interface{}, fields []string) string {
	var key strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&key, "%T:%v|", record[field], record[field])
	}
	return key.String()
}

// calculateMetric calculates a metric value
func calculateMetric(records []map[string]interface{}, metric MetricConfig) interface{} {
	if metric.Function == "count" {
		if metric.Field == "" {
			return float64(len(records))
		}
		n := 0
		for _, record := range records {
			if record[metric.Field] != nil {
				n++
			}
		}
		return float64(n)
	}

	var values []float64
	for _, record := range records {
		if num, ok := ToFloat(record[metric.Field]); ok {
			values = append(values, num)
		}
	}

	switch metric.Function {
	case "sum":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum
	case "avg":
		if len(values) == 0 {
			return nil
		}
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case "min", "max":
		if len(values) == 0 {
			return nil
		}
		best := values[0]
		for _, v := range values[1:] {
			if (metric.Function == "min" && v < best) || (metric.Function == "max" && v > best) {
				best = v
			}
		}
		return best
	default:
		return nil
	}
}

// ToFloat converts the numeric types drivers return into float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
