package query

// Merge implements spec §4.5.1: compose a model's default filter with a
// user-supplied filter. `where` deep-merges (user leaves override); every
// other field takes the user's value whenever the user supplied one at
// all — including a zero limit or an explicitly empty sequence — falling
// back to the default only when the user field is genuinely absent (nil).
func Merge(def, user *Filter) *Filter {
	switch {
	case def == nil && user == nil:
		return &Filter{}
	case def == nil:
		return user.Clone()
	case user == nil:
		return def.Clone()
	}

	return &Filter{
		Where:   mergeWhere(def.Where, user.Where),
		Order:   mergeStringSlice(def.Order, user.Order),
		Limit:   mergeIntPtr(def.Limit, user.Limit),
		Offset:  mergeIntPtr(def.Offset, user.Offset),
		Skip:    mergeIntPtr(def.Skip, user.Skip),
		Fields:  mergeFields(def.Fields, user.Fields),
		Include: mergeIncludes(def.Include, user.Include),
	}
}

func mergeWhere(def, user *OMap) *OMap {
	switch {
	case def == nil && user == nil:
		return nil
	case def == nil:
		return user.Clone()
	case user == nil:
		return def.Clone()
	}
	return mergeOMap(def, user)
}

// mergeOMap deep-merges two where-trees: for each key present in def, the
// user's value (if that key is also present in user, even as an explicit
// null) replaces/recurses into it; keys present only in def survive
// untouched; keys present only in user are added.
func mergeOMap(def, user *OMap) *OMap {
	out := NewOMap()
	for _, k := range def.Keys() {
		dv, _ := def.Get(k)
		if user.Has(k) {
			uv, _ := user.Get(k)
			out.Set(k, mergeValue(dv, uv))
		} else {
			out.Set(k, cloneValue(dv))
		}
	}
	for _, k := range user.Keys() {
		if !def.Has(k) {
			uv, _ := user.Get(k)
			out.Set(k, cloneValue(uv))
		}
	}
	return out
}

// mergeValue applies the deep-merge rule for a single leaf: an explicit
// null from the user overrides outright; two nested maps recurse; two
// arrays override by index with the longer tail preserved; anything else
// (primitive, or a type mismatch between def and user) is a plain override.
func mergeValue(def, user any) any {
	if user == nil {
		return nil
	}
	if dm, ok := def.(*OMap); ok {
		if um, ok := user.(*OMap); ok {
			return mergeOMap(dm, um)
		}
	}
	if da, ok := def.([]any); ok {
		if ua, ok := user.([]any); ok {
			return mergeArraysByIndex(da, ua)
		}
	}
	return cloneValue(user)
}

// mergeArraysByIndex implements "arrays override by index": the user's
// element at index i wins; any default tail beyond len(user) is preserved.
func mergeArraysByIndex(def, user []any) []any {
	n := len(def)
	if len(user) > n {
		n = len(user)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		switch {
		case i < len(user):
			out[i] = cloneValue(user[i])
		default:
			out[i] = cloneValue(def[i])
		}
	}
	return out
}

func mergeStringSlice(def, user []string) []string {
	if user != nil {
		return append([]string{}, user...)
	}
	if def != nil {
		return append([]string{}, def...)
	}
	return nil
}

func mergeIntPtr(def, user *int) *int {
	if user != nil {
		v := *user
		return &v
	}
	if def != nil {
		v := *def
		return &v
	}
	return nil
}

func mergeFields(def, user *FieldsSpec) *FieldsSpec {
	if user != nil {
		return user.clone()
	}
	if def != nil {
		return def.clone()
	}
	return nil
}

func (f *FieldsSpec) clone() *FieldsSpec {
	if f == nil {
		return nil
	}
	out := &FieldsSpec{}
	if f.Order != nil {
		out.Order = append([]string{}, f.Order...)
	}
	if f.Map != nil {
		out.Map = make(map[string]bool, len(f.Map))
		for k, v := range f.Map {
			out.Map[k] = v
		}
	}
	return out
}

func mergeIncludes(def, user []IncludeItem) []IncludeItem {
	if user != nil {
		return append([]IncludeItem{}, user...)
	}
	if def != nil {
		return append([]IncludeItem{}, def...)
	}
	return nil
}

// Clone returns a deep-enough copy of f so mutating the result never
// affects f.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return &Filter{}
	}
	return &Filter{
		Where:   f.Where.Clone(),
		Order:   mergeStringSlice(nil, f.Order),
		Limit:   mergeIntPtr(nil, f.Limit),
		Offset:  mergeIntPtr(nil, f.Offset),
		Skip:    mergeIntPtr(nil, f.Skip),
		Fields:  f.Fields.clone(),
		Include: mergeIncludes(nil, f.Include),
	}
}
