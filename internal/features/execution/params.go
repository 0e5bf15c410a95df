package execution

import (
	"regexp"
	"sort"
	"strings"

	"go-erp/internal/common/errs"
	"go-erp/internal/connectors"
	"go-erp/internal/features/component"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// MergeParameters starts from the defaults declared by filter components and
// overlays the caller's overrides key by key. Overrides of declared
// parameters are coerced to the declared type; undeclared keys pass through.
func MergeParameters(nodes []component.Node, overrides map[string]any) (map[string]any, error) {
	merged := map[string]any{}
	declared := map[string]component.ParamDef{}
	for _, p := range component.FilterParameters(nodes) {
		declared[p.Name] = p
		if p.Default == nil {
			merged[p.Name] = nil
			continue
		}
		v, err := p.Coerce(p.Default)
		if err != nil {
			return nil, errs.Validation("parameters."+p.Name, "%v", err)
		}
		merged[p.Name] = v
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw := overrides[k]
		p, ok := declared[k]
		if !ok || raw == nil {
			merged[k] = raw
			continue
		}
		v, err := p.Coerce(raw)
		if err != nil {
			return nil, errs.Validation("parameters."+k, "%v", err)
		}
		merged[k] = v
	}
	return merged, nil
}

// Placeholders lists the parameter names referenced by data-source filters.
func Placeholders(nodes []component.Node) []string {
	seen := map[string]bool{}
	var names []string
	var walk func(v any)
	walk = func(v any) {
		switch x := connectors.NormalizeValue(v).(type) {
		case string:
			for _, m := range placeholderPattern.FindAllStringSubmatch(x, -1) {
				if !seen[m[1]] {
					seen[m[1]] = true
					names = append(names, m[1])
				}
			}
		case map[string]any:
			for _, item := range x {
				walk(item)
			}
		case []any:
			for _, item := range x {
				walk(item)
			}
		}
	}
	for _, n := range nodes {
		if n.Config.DataSource != nil {
			walk(n.Config.DataSource.Filters)
		}
	}
	sort.Strings(names)
	return names
}

// CheckPlaceholders rejects filters that reference parameters nobody
// declared or supplied.
func CheckPlaceholders(nodes []component.Node, params map[string]any) error {
	for _, name := range Placeholders(nodes) {
		if _, ok := params[name]; !ok {
			return errs.Validation("parameters."+name, "referenced by a data source filter but not declared")
		}
	}
	return nil
}

// BindFilters substitutes ${name} placeholders. A value that is exactly one
// placeholder takes the parameter's typed value; a filter bound to a nil
// parameter is dropped so optional parameters widen the query.
func BindFilters(filters map[string]any, params map[string]any) map[string]any {
	if filters == nil {
		return nil
	}
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		bound, drop := bindValue(v, params)
		if drop {
			continue
		}
		out[k] = bound
	}
	return out
}

// bindValue works on plain Go values; filters read back from the store
// carry driver arrays and documents until normalized.
func bindValue(v any, params map[string]any) (any, bool) {
	switch x := connectors.NormalizeValue(v).(type) {
	case string:
		if m := placeholderPattern.FindStringSubmatch(x); m != nil && m[0] == x {
			val := params[m[1]]
			return val, val == nil
		}
		return placeholderPattern.ReplaceAllStringFunc(x, func(ph string) string {
			name := strings.TrimSuffix(strings.TrimPrefix(ph, "${"), "}")
			return FormatCell(params[name])
		}), false
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			if bound, drop := bindValue(item, params); !drop {
				out = append(out, bound)
			}
		}
		return out, false
	case map[string]any:
		return BindFilters(x, params), false
	default:
		return x, false
	}
}
