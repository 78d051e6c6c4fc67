package query

// OMap is an insertion-ordered string-keyed map. The where-compiler and
// merge engine are both specified (spec §4.5.2, §9) to iterate/merge in
// insertion order and to treat a present-but-nil value differently from an
// absent key — a plain Go map gives neither guarantee, so this is the one
// place the query package departs from plain `map[string]any`.
//
// A plain map has no prototype chain to begin with, so the "no prototype
// pollution" property (spec §4.5.1, §8) is satisfied by construction for
// any map-shaped value in this package, OMap included: `__proto__`,
// `constructor` and `prototype` are just string keys like any other.
type OMap struct {
	keys   []string
	values map[string]any
}

// NewOMap returns an empty OMap.
func NewOMap() *OMap {
	return &OMap{values: make(map[string]any)}
}

// OMapOf builds an OMap from key/value pairs in call order, e.g.
// OMapOf("a", 1, "b", 2).
func OMapOf(kv ...any) *OMap {
	m := NewOMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1])
	}
	return m
}

// Set inserts or overwrites key. A new key is appended to the end of the
// insertion order; overwriting an existing key preserves its original
// position.
func (m *OMap) Set(key string, value any) *OMap {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value for key and whether it is present at all (present
// with a nil value still reports ok=true, distinguishing "null" from
// "absent").
func (m *OMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present (regardless of value, including nil).
func (m *OMap) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Delete removes key, if present.
func (m *OMap) Delete(key string) {
	if !m.Has(key) {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (m *OMap) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Len returns the number of entries.
func (m *OMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a deep-enough copy: nested *OMap and []any values are
// cloned recursively so that merging never mutates either input.
func (m *OMap) Clone() *OMap {
	if m == nil {
		return nil
	}
	out := NewOMap()
	for _, k := range m.keys {
		out.Set(k, cloneValue(m.values[k]))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *OMap:
		return t.Clone()
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}
