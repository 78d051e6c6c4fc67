package query

import (
	"regexp"
	"strings"

	"github.com/ignis-framework/ignis/ignis/igniserr"
)

// segmentPattern is the strict identifier pattern every JSON-path segment
// must match (spec §4.5.2, §8): letters, digits, underscore, hyphen, or a
// pure integer (index) — all of which this single character class covers.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsJSONPath reports whether key should be parsed as a JSON path rather than
// a plain column name: it contains a `.` or a `[`.
func IsJSONPath(key string) bool { return strings.ContainsAny(key, ".[") }

// ParseJSONPath splits key into its leading column name and the following
// path segments, validating each segment against segmentPattern.
func ParseJSONPath(key string) (column string, segments []string, err error) {
	var tokens []string
	var cur strings.Builder
	for _, r := range key {
		switch r {
		case '.', '[', ']':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	if len(tokens) == 0 {
		return "", nil, igniserr.Newf(igniserr.KindQueryInvalid, "empty JSON path %q", key)
	}
	column = tokens[0]
	segments = tokens[1:]
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return "", nil, igniserr.Newf(igniserr.KindQueryInvalid, "invalid JSON path segment %q in %q", seg, key)
		}
	}
	return column, segments, nil
}

// buildJSONExtraction renders an opaque extraction expression for the data
// source adapter; the exact dialect syntax is the adapter's concern, this is
// just a dialect-neutral descriptor of column + path.
func buildJSONExtraction(column string, segments []string) string {
	return column + "->" + strings.Join(segments, "->")
}

func isNumericLiteral(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

// compileJSONCondition compiles a where entry whose key was recognized as a
// JSON path. column must have been validated to carry a JSON/JSONB data
// type by the caller. The numeric-safe cast is applied only when a numeric
// comparison operator (gt/gte/lt/lte) appears, or the compared value is
// itself a numeric literal; otherwise a text comparison is used.
func compileJSONCondition(column string, segments []string, value any) (*Predicate, error) {
	expr := buildJSONExtraction(column, segments)

	if obj, ok := isPlainObject(value); ok {
		var preds []*Predicate
		for _, op := range obj.Keys() {
			v, _ := obj.Get(op)
			fn, ok := operatorTable[op]
			if !ok {
				return nil, igniserr.Newf(igniserr.KindQueryInvalid, "unknown operator %q on JSON path %q", op, column)
			}
			p, err := fn(expr, v)
			if err != nil {
				return nil, err
			}
			p.Expr, p.Column = p.Column, ""
			p.Numeric = isNumericOperator(op) || isNumericLiteral(v)
			preds = append(preds, p)
		}
		return combineAnd(preds), nil
	}

	p := compileValueCondition(expr, value)
	p.Expr, p.Column = p.Column, ""
	p.Numeric = isNumericLiteral(value)
	return p, nil
}
