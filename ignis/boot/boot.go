// Package boot implements the Application/Booter lifecycle state machine
// (spec §4.3): new -> configured -> booted -> serving -> stopped.
//
// Grounded on the teacher's bootstrap package: bootstrap.go's strict
// phase-ordered Register(...)/Init() calls and Run()'s signal-racing
// RegisterGo/errgroup pattern give the shape; unlike the teacher (a flat
// ordered list of init funcs with no formal state machine), this package
// adds the explicit states, the tag-ordered instantiation-from-the-
// container phase, and abort-on-error boot semantics spec §4.3 requires.
package boot

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ignis-framework/ignis/ignis/container"
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/ignislog"
	"golang.org/x/sync/errgroup"
)

// State is a node in the Application lifecycle state machine.
type State int

const (
	StateNew State = iota
	StateConfigured
	StateBooted
	StateServing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConfigured:
		return "configured"
	case StateBooted:
		return "booted"
	case StateServing:
		return "serving"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// wiringOrder is the tag order instantiated during configured->booted, fixed
// by spec §4.2/§4.3 to avoid forward dependencies: data sources first, then
// components (which may register controllers), then controllers themselves.
var wiringOrder = []string{"datasources", "components", "controllers"}

// Application orchestrates a Container through its boot lifecycle.
type Application struct {
	mu    sync.Mutex
	state State

	Container *container.Container
	log       ignislog.Logger

	preConfigure  func(*Application) error
	postConfigure func(*Application) error

	serveFuncs   []func() error
	cleanupFuncs []func()

	onComponentConstructed func(tag string, instance any)
}

// New returns an Application in StateNew, wired to container c.
func New(c *container.Container) *Application {
	return &Application{Container: c, state: StateNew, log: ignislog.New("boot")}
}

// State reports the application's current lifecycle state.
func (a *Application) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// OnPreConfigure sets the user hook run during new->configured. Bindings
// are expected to be added here; no instantiation happens in this hook.
func (a *Application) OnPreConfigure(fn func(*Application) error) { a.preConfigure = fn }

// OnPostConfigure sets the user hook run during booted->serving, before the
// HTTP server starts and heartbeat sweeps begin.
func (a *Application) OnPostConfigure(fn func(*Application) error) { a.postConfigure = fn }

// OnComponentConstructed, if set, is invoked once per instantiated binding
// during configured->booted, tagged with which wiring-order phase produced
// it — this is where a component's binding() step (registering dependent
// controllers) or a controller's configure() step (registering routes)
// hooks in.
func (a *Application) OnComponentConstructed(fn func(tag string, instance any)) {
	a.onComponentConstructed = fn
}

// RegisterServe adds a long-running function started during booted->serving
// (e.g. the HTTP listener, the realtime heartbeat sweep). All registered
// functions run concurrently via errgroup, mirroring the teacher's
// bootstrap.RegisterGo/Go pattern.
func (a *Application) RegisterServe(fn func() error) { a.serveFuncs = append(a.serveFuncs, fn) }

// RegisterCleanup adds a teardown step run, in registration order, during
// serving->stopped.
func (a *Application) RegisterCleanup(fn func()) { a.cleanupFuncs = append(a.cleanupFuncs, fn) }

// Configure transitions new->configured, running the preConfigure hook.
func (a *Application) Configure() error {
	a.mu.Lock()
	if a.state != StateNew {
		a.mu.Unlock()
		return igniserr.Newf(igniserr.KindConfigInvalid, "Configure called from state %s, expected new", a.state)
	}
	a.mu.Unlock()

	if a.preConfigure != nil {
		if err := a.preConfigure(a); err != nil {
			return igniserr.Wrap(igniserr.KindConfigInvalid, err, "preConfigure failed")
		}
	}

	a.mu.Lock()
	a.state = StateConfigured
	a.mu.Unlock()
	return nil
}

// Boot transitions configured->booted: for each tag in [datasources,
// components, controllers], every binding carrying that tag is
// instantiated. Any error aborts boot entirely — spec §4.3 forbids partial
// service on a booted-phase failure.
func (a *Application) Boot() error {
	a.mu.Lock()
	if a.state != StateConfigured {
		a.mu.Unlock()
		return igniserr.Newf(igniserr.KindConfigInvalid, "Boot called from state %s, expected configured", a.state)
	}
	a.mu.Unlock()

	for _, tag := range wiringOrder {
		for _, b := range a.Container.FindByTag(tag) {
			instance, err := a.Container.Get(b.Key, false)
			if err != nil {
				return igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to instantiate binding "+b.Key+" for tag "+tag)
			}
			a.log.Infow("instantiated binding", "tag", tag, "key", b.Key)
			if a.onComponentConstructed != nil {
				a.onComponentConstructed(tag, instance)
			}
		}
	}

	a.mu.Lock()
	a.state = StateBooted
	a.mu.Unlock()
	return nil
}

// Serve transitions booted->serving: runs postConfigure, then starts every
// registered serve function concurrently, blocking until every serve
// function has returned (yielding the first error) or the process receives
// SIGINT/SIGTERM/SIGQUIT.
func (a *Application) Serve() error {
	a.mu.Lock()
	if a.state != StateBooted {
		a.mu.Unlock()
		return igniserr.Newf(igniserr.KindConfigInvalid, "Serve called from state %s, expected booted", a.state)
	}
	a.state = StateServing
	a.mu.Unlock()

	if a.postConfigure != nil {
		if err := a.postConfigure(a); err != nil {
			return igniserr.Wrap(igniserr.KindConfigInvalid, err, "postConfigure failed")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errCh := make(chan error, 1)
	go func() {
		var g errgroup.Group
		for _, fn := range a.serveFuncs {
			g.Go(fn)
		}
		errCh <- g.Wait()
	}()

	select {
	case sig := <-sigCh:
		a.log.Infow("shutting down on signal", "signal", sig.String())
		return a.Stop()
	case err := <-errCh:
		stopErr := a.Stop()
		if err != nil {
			return err
		}
		return stopErr
	}
}

// Stop transitions serving->stopped, running every registered cleanup
// function in order. It is idempotent: calling Stop when already stopped is
// a no-op.
func (a *Application) Stop() error {
	a.mu.Lock()
	if a.state == StateStopped {
		a.mu.Unlock()
		return nil
	}
	a.state = StateStopped
	a.mu.Unlock()

	for _, fn := range a.cleanupFuncs {
		fn()
	}
	return nil
}
