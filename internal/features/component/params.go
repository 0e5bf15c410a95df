package component

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Coerce converts a raw parameter value to the declared type. Dates come back
// as time.Time in UTC, numbers as float64.
func (p ParamDef) Coerce(raw any) (any, error) {
	switch p.Type {
	case ParamString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		case float64, int, int64, bool:
			return fmt.Sprint(v), nil
		}
	case ParamNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %q is not a number", p.Name, v)
			}
			return f, nil
		}
	case ParamBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %q is not a boolean", p.Name, v)
			}
			return b, nil
		}
	case ParamDate:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			s := strings.TrimSpace(v)
			if t, err := time.Parse(DateLayout, s); err == nil {
				return t, nil
			}
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.UTC(), nil
			}
			return nil, fmt.Errorf("parameter %q: %q is not a date (YYYY-MM-DD)", p.Name, v)
		}
	case ParamSelect:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q: expected one of %v", p.Name, p.Options)
		}
		if !slices.Contains(p.Options, s) {
			return nil, fmt.Errorf("parameter %q: %q is not one of %v", p.Name, s, p.Options)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("parameter %q: unknown type %q", p.Name, p.Type)
	}
	return nil, fmt.Errorf("parameter %q: cannot use %T as %s", p.Name, raw, p.Type)
}

// FilterParameters collects the parameter definitions declared by filter
// components, in component order. Later duplicates are ignored.
func FilterParameters(nodes []Node) []ParamDef {
	var out []ParamDef
	seen := map[string]bool{}
	for _, n := range Sorted(nodes) {
		if n.Type != TypeFilter {
			continue
		}
		for _, p := range n.Config.Parameters {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out
}
