package query

import (
	"strings"
	"time"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/metrics"
)

// OrderClause is one compiled `order` entry: a column (or JSON path
// expression) plus a normalized ASC/DESC direction.
type OrderClause struct {
	Column  string
	Expr    string
	Numeric bool
	Desc    bool
}

// CompiledInclude is one compiled `include` entry, resolved against the
// parent schema's relations and recursively compiled against the related
// schema.
type CompiledInclude struct {
	Relation string
	Scope    *QuerySpec
}

// QuerySpec is the fully compiled, dialect-neutral query a data-source
// adapter executes (spec §4.5).
type QuerySpec struct {
	Where   *Predicate
	Order   []OrderClause
	Limit   *int
	Offset  *int
	Skip    *int
	Fields  map[string]bool
	Include []CompiledInclude
}

// Compile turns a merged Filter into a QuerySpec against schema, enforcing
// every validation rule in spec §4.5.2-§4.5.5: unknown columns, unknown
// relations, unknown operators and malformed order directions all raise
// KindQueryInvalid.
func Compile(schema *Schema, filter *Filter) (spec *QuerySpec, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			metrics.QueryCompileErrors.WithLabelValues(string(igniserr.KindOf(err))).Inc()
		}
		metrics.QueryCompileDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if schema == nil {
		return nil, igniserr.New(igniserr.KindQueryInvalid, "compile requires a non-nil schema")
	}
	if filter == nil {
		filter = &Filter{}
	}

	where, err := compileWhere(schema, filter.Where)
	if err != nil {
		return nil, err
	}

	order, err := compileOrder(schema, filter.Order)
	if err != nil {
		return nil, err
	}

	include, err := compileInclude(schema, filter.Include)
	if err != nil {
		return nil, err
	}

	return &QuerySpec{
		Where:   where,
		Order:   order,
		Limit:   clonedIntPtr(filter.Limit),
		Offset:  clonedIntPtr(filter.Offset),
		Skip:    clonedIntPtr(filter.Skip),
		Fields:  compileFields(schema, filter.Fields),
		Include: include,
	}, nil
}

func clonedIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// compileWhere walks a where-tree (spec §4.5.2): "and"/"or" keys combine
// their array of sub-trees with the matching boolean operator; every other
// key is a column (or JSON path) condition.
func compileWhere(schema *Schema, where *OMap) (*Predicate, error) {
	if where == nil || where.Len() == 0 {
		return nil, nil
	}

	var preds []*Predicate
	for _, key := range where.Keys() {
		value, _ := where.Get(key)

		switch key {
		case "and", "or":
			children, ok := value.([]any)
			if !ok {
				return nil, igniserr.Newf(igniserr.KindQueryInvalid, "%q requires an array of conditions", key)
			}
			var compiled []*Predicate
			for _, c := range children {
				cm, ok := c.(*OMap)
				if !ok {
					return nil, igniserr.Newf(igniserr.KindQueryInvalid, "%q entries must be condition objects", key)
				}
				p, err := compileWhere(schema, cm)
				if err != nil {
					return nil, err
				}
				if p != nil {
					compiled = append(compiled, p)
				}
			}
			compiled = filterNil(compiled)
			switch len(compiled) {
			case 0:
				continue
			case 1:
				preds = append(preds, compiled[0])
			default:
				preds = append(preds, &Predicate{Op: key, Children: compiled})
			}
			continue
		}

		p, err := compileColumnCondition(schema, key, value)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}

	return combineAnd(preds), nil
}

// compileColumnCondition compiles a single `{column: value}` or
// `{"json.path": value}` where entry, validating the referenced column
// exists on schema.
func compileColumnCondition(schema *Schema, key string, value any) (*Predicate, error) {
	if IsJSONPath(key) {
		column, segments, err := ParseJSONPath(key)
		if err != nil {
			return nil, err
		}
		col, ok := schema.Column(column)
		if !ok {
			return nil, igniserr.Newf(igniserr.KindQueryInvalid, "unknown column %q", column)
		}
		if !col.DataType.IsJSON() {
			return nil, igniserr.Newf(igniserr.KindQueryInvalid, "column %q is not a JSON column", column)
		}
		return compileJSONCondition(column, segments, value)
	}

	if _, ok := schema.Column(key); !ok {
		return nil, igniserr.Newf(igniserr.KindQueryInvalid, "unknown column %q", key)
	}

	if obj, ok := isPlainObject(value); ok {
		return compileOperatorObject(key, obj)
	}
	return compileValueCondition(key, value), nil
}

// compileOrder validates and normalizes `order` entries. Each entry is
// "<field>" (implicit ASC) or "<field> ASC"/"<field> DESC" (case
// insensitive); anything else raises KindQueryInvalid. An empty/nil order
// slice produces no ordering.
func compileOrder(schema *Schema, order []string) ([]OrderClause, error) {
	if len(order) == 0 {
		return nil, nil
	}

	clauses := make([]OrderClause, 0, len(order))
	for _, entry := range order {
		fields := strings.Fields(entry)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, igniserr.Newf(igniserr.KindQueryInvalid, "malformed order entry %q", entry)
		}

		field := fields[0]
		desc := false
		if len(fields) == 2 {
			switch strings.ToUpper(fields[1]) {
			case "ASC":
				desc = false
			case "DESC":
				desc = true
			default:
				return nil, igniserr.Newf(igniserr.KindQueryInvalid, "order direction must be ASC or DESC, got %q", fields[1])
			}
		}

		if IsJSONPath(field) {
			column, segments, err := ParseJSONPath(field)
			if err != nil {
				return nil, err
			}
			col, ok := schema.Column(column)
			if !ok {
				return nil, igniserr.Newf(igniserr.KindQueryInvalid, "unknown column %q", column)
			}
			clauses = append(clauses, OrderClause{
				Expr:    buildJSONExtraction(column, segments),
				Numeric: col.DataType.IsJSON(),
				Desc:    desc,
			})
			continue
		}

		if _, ok := schema.Column(field); !ok {
			return nil, igniserr.Newf(igniserr.KindQueryInvalid, "unknown column %q", field)
		}
		clauses = append(clauses, OrderClause{Column: field, Desc: desc})
	}
	return clauses, nil
}

// compileFields normalizes a FieldsSpec into the retained-field set, falling
// back to every non-hidden schema column when fields is nil (spec §4.5.4).
func compileFields(schema *Schema, fields *FieldsSpec) map[string]bool {
	if fields == nil {
		out := make(map[string]bool)
		for _, name := range schema.AllColumnNames() {
			if !schema.IsHidden(name) {
				out[name] = true
			}
		}
		return out
	}
	return fields.Compile()
}

// compileInclude validates and recursively compiles `include` entries
// against schema's declared relations.
func compileInclude(schema *Schema, include []IncludeItem) ([]CompiledInclude, error) {
	if len(include) == 0 {
		return nil, nil
	}

	out := make([]CompiledInclude, 0, len(include))
	for _, item := range include {
		related, ok := schema.Relations[item.Relation]
		if !ok {
			return nil, igniserr.Newf(igniserr.KindQueryInvalid, "unknown relation %q", item.Relation)
		}
		scope, err := Compile(related, item.Scope)
		if err != nil {
			return nil, err
		}
		out = append(out, CompiledInclude{Relation: item.Relation, Scope: scope})
	}
	return out, nil
}
