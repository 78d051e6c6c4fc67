// Package container is the DI binding registry and resolver: spec §4.2.
// Keys are opaque "namespace.name" strings; a binding is created with Bind,
// finalized with one of ToClass/ToValue/ToProvider, and resolved with Get.
//
// Grounded on the teacher's bootstrap/initializer.go ordered-registration
// style for the overall "register everything, then run it" shape, but the
// actual key/scope/tag/cycle-detection resolution semantics below are
// original: the teacher has no true DI container, only a flat list of init
// functions run in sequence.
package container

import (
	"reflect"
	"sync"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/metrics"
)

// Container holds bindings and resolves them per their Scope.
type Container struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
}

// New returns an empty Container.
func New() *Container {
	return &Container{bindings: make(map[string]*Binding)}
}

// Bind starts a new binding under key. If key is already bound, the
// previous binding is replaced — bindings are only meant to be added during
// preConfigure, before any resolution occurs.
func (c *Container) Bind(key string) *Binding {
	b := newBinding(key)
	c.mu.Lock()
	c.bindings[key] = b
	c.mu.Unlock()
	return b
}

// resolution tracks the set of keys currently being resolved on this call
// stack, to detect cyclic-binding re-entrancy (spec §4.2, §5).
type resolution struct {
	inProgress map[string]struct{}
}

func newResolution() *resolution { return &resolution{inProgress: make(map[string]struct{})} }

// Get resolves key per its binding's Scope. A required miss (isOptional
// false) raises kind=not-bound; an optional miss returns (nil, nil).
func (c *Container) Get(key string, isOptional bool) (any, error) {
	return c.get(key, isOptional, newResolution())
}

func (c *Container) get(key string, isOptional bool, res *resolution) (any, error) {
	c.mu.RLock()
	b, ok := c.bindings[key]
	c.mu.RUnlock()
	if !ok {
		if isOptional {
			metrics.ContainerResolutions.WithLabelValues("miss").Inc()
			return nil, nil
		}
		metrics.ContainerResolutions.WithLabelValues("error").Inc()
		return nil, igniserr.Newf(igniserr.KindNotBound, "no binding registered for key %q", key)
	}

	if _, cycling := res.inProgress[key]; cycling {
		metrics.ContainerResolutions.WithLabelValues("cyclic").Inc()
		return nil, igniserr.Newf(igniserr.KindCyclicBinding, "cyclic resolution re-entering key %q", key)
	}
	res.inProgress[key] = struct{}{}
	defer delete(res.inProgress, key)

	if b.Scope == Singleton {
		b.once.Do(func() {
			metrics.ContainerSingletonCtor.WithLabelValues(key).Inc()
			b.cached, b.cacheErr = c.produce(b, res)
		})
		if b.cacheErr != nil {
			metrics.ContainerResolutions.WithLabelValues("error").Inc()
		} else {
			metrics.ContainerResolutions.WithLabelValues("hit").Inc()
		}
		return b.cached, b.cacheErr
	}
	value, err := c.produce(b, res)
	if err != nil {
		metrics.ContainerResolutions.WithLabelValues("error").Inc()
	} else {
		metrics.ContainerResolutions.WithLabelValues("hit").Inc()
	}
	return value, err
}

func (c *Container) produce(b *Binding, res *resolution) (any, error) {
	if b.kind == kindProvider {
		return b.provider(&scopedContainer{Container: c, res: res})
	}
	return b.produce()
}

// scopedContainer is handed to Providers so that nested Get calls continue
// to share the same in-progress cycle-detection set as the outer call.
type scopedContainer struct {
	*Container
	res *resolution
}

// Get on a scopedContainer participates in the ongoing resolution's cycle
// detection, unlike a fresh top-level Container.Get call.
func (s *scopedContainer) Get(key string, isOptional bool) (any, error) {
	return s.Container.get(key, isOptional, s.res)
}

// FindByTag returns every binding carrying tag, in no particular order.
func (c *Container) FindByTag(tag string) []*Binding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Binding
	for _, b := range c.bindings {
		if b.hasTag(tag) {
			out = append(out, b)
		}
	}
	return out
}

// injectTag is the struct tag instantiate reads to resolve a field: a value
// of the form `ignis:"some.binding.key"`; an optional field is marked
// `ignis:"some.binding.key,optional"`.
const injectTag = "ignis"

// Instantiate constructs dst (a pointer to a struct) by resolving every
// field tagged `ignis:"<key>"` through Get, per spec §4.2's "reads
// injection metadata for its constructor and fields" requirement expressed
// as field injection (Go has no constructor-parameter reflection).
func (c *Container) Instantiate(dst any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return igniserr.New(igniserr.KindConfigInvalid, "Instantiate requires a pointer to a struct")
	}
	elem := v.Elem()
	t := elem.Type()
	res := newResolution()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup(injectTag)
		if !ok || tag == "" {
			continue
		}
		key, optional := parseInjectTag(tag)
		value, err := c.get(key, optional, res)
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}
		fv := elem.Field(i)
		if !fv.CanSet() {
			continue
		}
		rv := reflect.ValueOf(value)
		if rv.Type().AssignableTo(fv.Type()) {
			fv.Set(rv)
		} else {
			return igniserr.Newf(igniserr.KindConfigInvalid, "field %s: binding %q produced %s, not assignable to %s",
				field.Name, key, rv.Type(), fv.Type())
		}
	}
	return nil
}

func parseInjectTag(tag string) (key string, optional bool) {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i], tag[i+1:] == "optional"
		}
	}
	return tag, false
}
