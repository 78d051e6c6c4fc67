package query

import "github.com/ignis-framework/ignis/ignis/igniserr"

// Predicate is the opaque compiled-condition node consumed by a data-source
// adapter. Leaf predicates carry Column/Op/Args; "and"/"or" predicates carry
// Children instead.
type Predicate struct {
	Op      string
	Column  string
	Expr    string // set instead of Column when this leaf is a JSON-path extraction
	Numeric bool   // true when a JSON-path leaf should apply the numeric-safe cast
	Args     []any
	Children []*Predicate
}

// numericOperators is the subset of comparison operators that, applied to a
// JSON path, triggers the numeric-safe cast described in spec §4.5.2.
var numericOperators = map[string]struct{}{
	"gt": {}, "gte": {}, "lt": {}, "lte": {},
}

// isNumericOperator reports whether op is one of gt/gte/lt/lte.
func isNumericOperator(op string) bool {
	_, ok := numericOperators[op]
	return ok
}

// OperatorFunc compiles one `{op: value}` entry against column into a leaf
// Predicate.
type OperatorFunc func(column string, value any) (*Predicate, error)

var operatorTable map[string]OperatorFunc

func init() {
	operatorTable = map[string]OperatorFunc{
		"eq":      func(c string, v any) (*Predicate, error) { return &Predicate{Op: "eq", Column: c, Args: []any{v}}, nil },
		"neq":     func(c string, v any) (*Predicate, error) { return &Predicate{Op: "neq", Column: c, Args: []any{v}}, nil },
		"gt":      func(c string, v any) (*Predicate, error) { return &Predicate{Op: "gt", Column: c, Args: []any{v}}, nil },
		"gte":     func(c string, v any) (*Predicate, error) { return &Predicate{Op: "gte", Column: c, Args: []any{v}}, nil },
		"lt":      func(c string, v any) (*Predicate, error) { return &Predicate{Op: "lt", Column: c, Args: []any{v}}, nil },
		"lte":     func(c string, v any) (*Predicate, error) { return &Predicate{Op: "lte", Column: c, Args: []any{v}}, nil },
		"like":    func(c string, v any) (*Predicate, error) { return &Predicate{Op: "like", Column: c, Args: []any{v}}, nil },
		"ilike":   func(c string, v any) (*Predicate, error) { return &Predicate{Op: "ilike", Column: c, Args: []any{v}}, nil },
		"contains": func(c string, v any) (*Predicate, error) {
			return &Predicate{Op: "contains", Column: c, Args: []any{v}}, nil
		},
		"isNull": func(c string, v any) (*Predicate, error) { return &Predicate{Op: "isNull", Column: c}, nil },
		"exists": func(c string, v any) (*Predicate, error) { return &Predicate{Op: "exists", Column: c, Args: []any{v}}, nil },
		"in": func(c string, v any) (*Predicate, error) {
			return &Predicate{Op: "in", Column: c, Args: toArgs(v)}, nil
		},
		"nin": func(c string, v any) (*Predicate, error) {
			return &Predicate{Op: "nin", Column: c, Args: toArgs(v)}, nil
		},
		"between": func(c string, v any) (*Predicate, error) {
			args := toArgs(v)
			if len(args) != 2 {
				return nil, igniserr.Newf(igniserr.KindQueryInvalid, "between operator on %q requires exactly 2 bounds, got %d", c, len(args))
			}
			return &Predicate{Op: "between", Column: c, Args: args}, nil
		},
	}
}

func toArgs(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{v}
}

// compileOperatorObject dispatches every key of an operator object (e.g.
// {gte: "2024-01-01", lt: "2025-01-01"}) against column, combining the
// resulting predicates with AND.
func compileOperatorObject(column string, obj *OMap) (*Predicate, error) {
	var preds []*Predicate
	for _, op := range obj.Keys() {
		value, _ := obj.Get(op)
		fn, ok := operatorTable[op]
		if !ok {
			return nil, igniserr.Newf(igniserr.KindQueryInvalid, "unknown operator %q on column %q", op, column)
		}
		p, err := fn(column, value)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return combineAnd(preds), nil
}

// combineAnd combines preds with AND, collapsing the trivial cases: zero
// predicates -> nil, one predicate -> itself (no wrapping needed).
func combineAnd(preds []*Predicate) *Predicate {
	preds = filterNil(preds)
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return &Predicate{Op: "and", Children: preds}
	}
}

func filterNil(preds []*Predicate) []*Predicate {
	out := preds[:0]
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// compileValueCondition implements the value-condition rule (spec §4.5.2):
// null -> IS NULL, [] -> unsatisfiable, non-empty array -> IN, else equality.
func compileValueCondition(column string, value any) *Predicate {
	if value == nil {
		return &Predicate{Op: "isNull", Column: column}
	}
	if arr, ok := value.([]any); ok {
		if len(arr) == 0 {
			return &Predicate{Op: "false"}
		}
		return &Predicate{Op: "in", Column: column, Args: arr}
	}
	return &Predicate{Op: "eq", Column: column, Args: []any{value}}
}

// isPlainObject reports whether value is an operator object ("*OMap") as
// opposed to a primitive/array/nil that should go through the
// value-condition rule.
func isPlainObject(value any) (*OMap, bool) {
	m, ok := value.(*OMap)
	if !ok {
		return nil, false
	}
	return m, true
}
