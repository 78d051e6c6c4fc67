// Package registry is the MetadataRegistry: a process-wide, concurrency-safe
// store of controller/model/route annotations keyed by class identity,
// read at wiring time by the container and booter.
//
// It is grounded on the reflect.Type caching pattern used throughout the
// teacher framework's internal/reflectmeta package: a sync.Map keyed by a
// stable string derived from the type gives O(1) lookups without requiring
// callers to pre-register anything beyond a single Set call.
package registry

import (
	"reflect"
	"sync"

	"github.com/gertd/go-pluralize"
	"github.com/samber/lo"
)

var pluralizer = pluralize.NewClient()

// ControllerMetadata is the entry stored per controller target.
type ControllerMetadata struct {
	Target       reflect.Type
	Path         string
	MountOptions map[string]any
}

// RouteConfig is a single route descriptor, independent of any concrete
// HTTP transport.
type RouteConfig struct {
	Method      string
	Path        string
	Params      []string
	Query       []string
	Body        reflect.Type
	Responses   map[int]reflect.Type
	AuthStrategies []string
	AuthMode    string // "any" | "all"
	Middleware  []string
}

// ModelSettings carries the model-level annotations that the query builder
// and default CRUD repository consume.
type ModelSettings struct {
	DefaultFilter     any // *query.Filter, kept as `any` to avoid an import cycle
	HiddenProperties  map[string]struct{}
	SkipMigrate       bool
}

// ModelMetadata is the entry stored per model target.
type ModelMetadata struct {
	Name              string
	Target            reflect.Type
	SchemaResolver    func() any
	RelationsResolver func() map[string]reflect.Type
	Settings          ModelSettings
}

// registryState is a single MetadataRegistry instance. The package exposes a
// process-wide default (see default.go-style package vars below); New
// wraps a fresh state in a Registry so tests can construct isolated
// instances.
type registryState struct {
	mu sync.RWMutex

	controllers map[reflect.Type]*ControllerMetadata
	models      map[reflect.Type]*ModelMetadata
	modelByName map[string]*ModelMetadata

	// routes preserves insertion order per target, since reproducible route
	// ordering is mandated.
	routeOrder map[reflect.Type][]string
	routes     map[reflect.Type]map[string]RouteConfig
}

// Registry is the MetadataRegistry surface. The registry never returns an
// error: a lookup miss is always reported as ok=false, never as a failure.
type Registry struct{ state *registryState }

// New constructs an empty Registry. Most callers use the process-wide
// Default() instead.
func New() *Registry {
	return &Registry{state: &registryState{
		controllers: make(map[reflect.Type]*ControllerMetadata),
		models:      make(map[reflect.Type]*ModelMetadata),
		modelByName: make(map[string]*ModelMetadata),
		routeOrder:  make(map[reflect.Type][]string),
		routes:      make(map[reflect.Type]map[string]RouteConfig),
	}}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide MetadataRegistry singleton.
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = New() })
	return defaultReg
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// SetControllerMetadata registers (or idempotently re-registers) a
// controller's metadata. Re-registration for the same target overwrites the
// previous entry: last write wins (spec §9 open question, decided in
// DESIGN.md).
func (r *Registry) SetControllerMetadata(target any, meta ControllerMetadata) {
	t := indirect(reflect.TypeOf(target))
	meta.Target = t
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.controllers[t] = &meta
}

// GetControllerMetadata returns the entry for target, or ok=false if none
// was registered.
func (r *Registry) GetControllerMetadata(target any) (ControllerMetadata, bool) {
	t := indirect(reflect.TypeOf(target))
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	entry, ok := r.state.controllers[t]
	if !ok {
		return ControllerMetadata{}, false
	}
	return *entry, true
}

// SetModelMetadata registers a model's schema/relations resolvers and
// settings, indexed both by Go type and by name (the table name derived
// from the type when Name is left blank) for O(1) name-based lookup.
func (r *Registry) SetModelMetadata(target any, meta ModelMetadata) {
	t := indirect(reflect.TypeOf(target))
	meta.Target = t
	if meta.Name == "" {
		meta.Name = pluralizer.Plural(toSnakeish(t.Name()))
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.models[t] = &meta
	r.state.modelByName[meta.Name] = &meta
}

// GetModelEntry resolves a model by Go type or by name — exactly one of
// target/name should be supplied. Name-based lookup is a single map read.
func (r *Registry) GetModelEntry(target any, name string) (ModelMetadata, bool) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	if target != nil {
		t := indirect(reflect.TypeOf(target))
		if entry, ok := r.state.models[t]; ok {
			return *entry, true
		}
		return ModelMetadata{}, false
	}
	if entry, ok := r.state.modelByName[name]; ok {
		return *entry, true
	}
	return ModelMetadata{}, false
}

// SetRoute records routeConfig under methodName for target, preserving
// first-seen insertion order so Routes() iterates reproducibly.
func (r *Registry) SetRoute(target any, methodName string, cfg RouteConfig) {
	t := indirect(reflect.TypeOf(target))
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if r.state.routes[t] == nil {
		r.state.routes[t] = make(map[string]RouteConfig)
	}
	if _, exists := r.state.routes[t][methodName]; !exists {
		r.state.routeOrder[t] = append(r.state.routeOrder[t], methodName)
	}
	r.state.routes[t][methodName] = cfg
}

// Routes returns the {methodName -> routeConfig} entries for target, in
// insertion order.
func (r *Registry) Routes(target any) []RouteEntry {
	t := indirect(reflect.TypeOf(target))
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	order := r.state.routeOrder[t]
	entries := make([]RouteEntry, 0, len(order))
	for _, name := range order {
		entries = append(entries, RouteEntry{MethodName: name, Config: r.state.routes[t][name]})
	}
	return entries
}

// RouteEntry pairs a receiver method name with its compiled RouteConfig.
type RouteEntry struct {
	MethodName string
	Config     RouteConfig
}

// RoutesByAuthMode returns, in insertion order, only the routes registered
// for target whose AuthMode matches mode — used by ginadapter to group
// routes when wiring auth middleware in bulk rather than per-route.
//
// Grounded on module/authz/menu.go's lo.Filter-based tree pruning.
func (r *Registry) RoutesByAuthMode(target any, mode string) []RouteEntry {
	return lo.Filter(r.Routes(target), func(e RouteEntry, _ int) bool {
		return e.Config.AuthMode == mode
	})
}

func toSnakeish(name string) string {
	out := make([]rune, 0, len(name)+4)
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			out = append(out, '_')
		}
		if r >= 'A' && r <= 'Z' {
			out = append(out, r+('a'-'A'))
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
