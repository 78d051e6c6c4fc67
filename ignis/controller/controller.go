// Package controller implements the Controller & Route Model (spec §4.4):
// a controller is a mount path plus a set of route descriptors, built
// either programmatically (BindRoute/DefineRoute) or from annotation-
// derived entries recorded in the MetadataRegistry at registration time.
//
// Grounded on router/router.go's route-group mounting shape (a base path,
// an ordered middleware chain, auth gated per-group) generalized from one
// hand-wired gin.Engine into a registry-driven, transport-agnostic model.
package controller

import (
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/registry"
)

// Handler is a transport-agnostic route handler. Concrete adapters (e.g.
// ignis/ginadapter) wrap a transport-specific request/response pair to
// satisfy this signature.
type Handler func(ctx Context) error

// Context is the minimal capability a Handler needs, independent of the
// concrete HTTP/transport adapter in front of it.
type Context interface {
	Param(name string) string
	Query(name string) string
	Bind(v any) error
	Set(key string, value any)
	Get(key string) (any, bool)
	JSON(status int, v any)
}

// boundRoute pairs a registered route's config with its concrete handler
// and an optional before-dispatch hook (spec §4.4 "hook?").
type boundRoute struct {
	Name    string
	Config  registry.RouteConfig
	Handler Handler
	Hook    func(Context) error
}

// Base is embedded by every concrete controller. It owns the mount path
// and the set of routes registered against it, whether added
// programmatically or derived from registry annotations.
type Base struct {
	path   string
	scope  string
	routes []boundRoute
}

// New returns a Base mounted at path. An empty path fails fast with
// kind=config-invalid (spec §4.4 "a controller without a resolved path
// fails fast at construction").
func New(path, scope string) (*Base, error) {
	if path == "" {
		return nil, igniserr.New(igniserr.KindConfigInvalid, "controller mount path must not be empty")
	}
	return &Base{path: path, scope: scope}, nil
}

// MustNew is New, panicking on error — used by controllers constructed as
// package-level values the way router.go's probe/redoc handlers are.
func MustNew(path, scope string) *Base {
	b, err := New(path, scope)
	if err != nil {
		panic(err)
	}
	return b
}

// Path returns the controller's mount path.
func (b *Base) Path() string { return b.path }

// Scope returns the controller's documentation tag/scope (spec §4.4
// "appends the controller's scope as a tag for documentation").
func (b *Base) Scope() string {
	if b.scope != "" {
		return b.scope
	}
	return b.path
}

// BindRoute registers cfg under name, to be dispatched to handler. This is
// the programmatic registration API (spec §4.4).
func (b *Base) BindRoute(name string, cfg registry.RouteConfig, handler Handler) {
	b.routes = append(b.routes, boundRoute{Name: name, Config: cfg, Handler: handler})
}

// DefineRoute is BindRoute plus an optional pre-dispatch hook run before
// handler (spec §4.4 "defineRoute({cfg, handler, hook?})").
func (b *Base) DefineRoute(name string, cfg registry.RouteConfig, handler Handler, hook func(Context) error) {
	b.routes = append(b.routes, boundRoute{Name: name, Config: cfg, Handler: handler, Hook: hook})
}

// Configure merges the controller's programmatic routes with any
// annotation-derived routes recorded for target in reg, in registry
// insertion order, and returns the combined, ready-to-mount list. Handlers
// for annotation-derived routes are looked up by method name in dispatch;
// a route with no corresponding dispatch entry is skipped (it was
// declared but never implemented).
func (b *Base) Configure(reg *registry.Registry, target any, dispatch map[string]Handler) []Route {
	out := make([]Route, 0, len(b.routes))
	for _, r := range b.routes {
		out = append(out, Route{Name: r.Name, Config: r.Config, Handler: r.Handler, Hook: r.Hook})
	}
	for _, entry := range reg.Routes(target) {
		h, ok := dispatch[entry.MethodName]
		if !ok {
			continue
		}
		out = append(out, Route{Name: entry.MethodName, Config: entry.Config, Handler: h})
	}
	return out
}

// Route is one fully resolved route ready for a transport adapter to
// mount: method, path, auth/middleware descriptor, and the handler.
type Route struct {
	Name    string
	Config  registry.RouteConfig
	Handler Handler
	Hook    func(Context) error
}
