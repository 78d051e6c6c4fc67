package query

// Filter is the declarative input shape to the query builder (spec §3).
// Optional scalar fields are pointers so merge can distinguish "the user
// did not mention this key" (nil) from "the user explicitly set it,
// including to its zero value" (non-nil pointing at 0) — this is what makes
// `limit: 0` from the user override a non-zero default.
//
// Order/Include use nil-slice-vs-non-nil-empty-slice for the same absent/
// present-empty distinction; Where uses OMap, where absent-vs-present is a
// Has() check and null-vs-absent is a Get() to a stored nil.
type Filter struct {
	Where   *OMap
	Order   []string
	Limit   *int
	Offset  *int
	Skip    *int
	Fields  *FieldsSpec
	Include []IncludeItem
}

// FieldsSpec represents the `fields` shape: either an ordered sequence of
// names (all implicitly truthy) or a name->bool mapping where only truthy
// entries are retained (spec §4.5.4).
type FieldsSpec struct {
	Order []string
	Map   map[string]bool
}

// NewFieldsFromList builds a FieldsSpec from an ordered sequence of names.
func NewFieldsFromList(names ...string) *FieldsSpec {
	return &FieldsSpec{Order: names}
}

// NewFieldsFromMap builds a FieldsSpec from an explicit name->bool mapping.
func NewFieldsFromMap(m map[string]bool) *FieldsSpec {
	return &FieldsSpec{Map: m}
}

// Compile normalizes a FieldsSpec into the {field: true} object the spec
// describes, retaining only truthy entries. The result is a map, so the
// order of a supplied field list is not kept.
func (f *FieldsSpec) Compile() map[string]bool {
	out := make(map[string]bool)
	if f == nil {
		return out
	}
	if f.Order != nil {
		for _, name := range f.Order {
			out[name] = true
		}
		return out
	}
	for name, truthy := range f.Map {
		if truthy {
			out[name] = true
		}
	}
	return out
}

// IncludeItem is one `include` entry: either a bare relation name or a
// relation name with a nested scope filter (spec §3, §4.5.5).
type IncludeItem struct {
	Relation string
	Scope    *Filter
}
