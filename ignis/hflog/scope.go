package hflog

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Scope is a pre-encoded logging scope: its name's fixed-width byte
// encoding computed once at first lookup (spec §4.9 "scope instances are
// cached by string key; retrieval is O(1) on subsequent calls").
type Scope struct {
	Name  string
	bytes [ScopeBytesLen]byte
	n     uint8
}

// scopeCache is the process-wide cache of Scope instances, backed by
// orcaman/concurrent-map for sharded, lock-striped concurrent access —
// the same concurrency primitive the retrieval pack uses wherever a
// hot-path string-keyed cache is needed, rather than a single mutex-guarded
// map.
var scopeCache = cmap.New[*Scope]()

// GetScope returns the cached Scope for name, computing and caching it on
// first use.
func GetScope(name string) *Scope {
	if s, ok := scopeCache.Get(name); ok {
		return s
	}
	b, n := padScope(name)
	s := &Scope{Name: name, bytes: b, n: n}
	scopeCache.SetIfAbsent(name, s)
	cached, _ := scopeCache.Get(name)
	return cached
}
