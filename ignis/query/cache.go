package query

import (
	"sync"
	"weak"
)

// columnCache memoizes the []Column slice derived from a Schema's Columns
// map, keyed on the schema's identity. Entries are held via weak.Pointer so
// a schema that is rebuilt or discarded (e.g. after a model's metadata is
// re-registered) does not keep its old column slice alive forever (spec
// §4.5.5's "weak references" column cache).
type columnCache struct {
	mu      sync.Mutex
	entries map[*Schema]weak.Pointer[[]Column]
}

func newColumnCache() *columnCache {
	return &columnCache{entries: make(map[*Schema]weak.Pointer[[]Column])}
}

// defaultColumnCache is the process-wide cache instance; Compile and
// compileFields do not read from it.
var defaultColumnCache = newColumnCache()

// Columns returns the ordered column list for schema, building and caching
// it on first use. The cache entry is a weak pointer: if nothing else holds
// the slice, it may be collected and rebuilt on the next call.
func (c *columnCache) Columns(schema *Schema) []Column {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.entries[schema]; ok {
		if p := w.Value(); p != nil {
			return *p
		}
	}

	cols := make([]Column, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		cols = append(cols, col)
	}
	c.entries[schema] = weak.Make(&cols)
	return cols
}

// Forget drops schema's cache entry, e.g. when a model's metadata is
// replaced (spec §9 open question #1: last-write-wins re-registration).
func (c *columnCache) Forget(schema *Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, schema)
}
