// Package authn implements the Auth Core (spec §4.7): a process-wide
// strategy registry and an `authenticate({strategies, mode})` middleware
// factory that runs named strategies in "any" or "all" mode and attaches the
// resulting user to the request context.
package authn

import (
	"context"
	"strings"
	"sync"

	"github.com/ignis-framework/ignis/ignis/igniserr"
)

// User is the minimal identity a strategy produces on success.
type User struct {
	ID    string
	Roles []string
	Extra map[string]any
}

// Strategy authenticates a single request-shaped input and returns a User
// on success, nil with no error when it simply does not apply (e.g. no
// header present), or an error for a malformed credential.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, r Request) (*User, error)
}

// Request is the transport-neutral slice of a request a Strategy needs.
// Concrete adapters (ignis/ginadapter) build one of these from the real
// *http.Request so authn never imports a web framework.
type Request struct {
	Header func(name string) string
}

// Mode controls how multiple strategies combine.
type Mode string

const (
	ModeAny Mode = "any"
	ModeAll Mode = "all"
)

// Registry is the process-wide strategy registry singleton.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide strategy registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = &Registry{strategies: make(map[string]Strategy)}
	})
	return defaultRegistry
}

// Register adds or replaces a named strategy.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get looks up a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

type userContextKey struct{}

// UserFromContext retrieves the user authenticate() attached to ctx.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*User)
	return u, ok
}

func withUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// Authenticate runs the named strategies from r against req, combining their
// outcomes per mode (spec §4.7): in ModeAny the first strategy to produce a
// non-nil user wins; in ModeAll every strategy must succeed and the last
// user produced wins. It returns the resulting context (carrying the
// winning user) or a KindUnauthenticated error listing the strategies
// tried.
func Authenticate(ctx context.Context, r *Registry, strategies []string, mode Mode, req Request) (context.Context, error) {
	if len(strategies) == 0 {
		return ctx, igniserr.New(igniserr.KindUnauthenticated, "no authentication strategies configured")
	}

	var lastUser *User
	for _, name := range strategies {
		strat, ok := r.Get(name)
		if !ok {
			return ctx, igniserr.Newf(igniserr.KindUnauthenticated, "unknown authentication strategy %q", name)
		}

		user, err := strat.Authenticate(ctx, req)
		switch {
		case err != nil && mode == ModeAll:
			return ctx, igniserr.Wrap(igniserr.KindUnauthenticated, err, "strategy "+name+" failed")
		case err != nil:
			continue
		case user == nil && mode == ModeAll:
			return ctx, igniserr.Newf(igniserr.KindUnauthenticated, "strategy %q did not authenticate the request", name)
		case user == nil:
			continue
		case mode == ModeAny:
			return withUser(ctx, user), nil
		default: // ModeAll, success
			lastUser = user
		}
	}

	if mode == ModeAll && lastUser != nil {
		return withUser(ctx, lastUser), nil
	}

	return ctx, igniserr.Newf(igniserr.KindUnauthenticated, "no strategy accepted the request, tried [%s]", strings.Join(strategies, ", "))
}
