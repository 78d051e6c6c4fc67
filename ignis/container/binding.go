package container

import "sync"

// Scope controls how many times a binding's provider runs.
type Scope int

const (
	// Transient creates a new instance on every Get.
	Transient Scope = iota
	// Singleton caches the first instance, keyed by binding key, for the
	// lifetime of the Container.
	Singleton
)

// valueKind distinguishes how a Binding produces its value.
type valueKind int

const (
	kindClass valueKind = iota
	kindValue
	kindProvider
)

// Resolver is the Get surface a Provider sees: both *Container and the
// internal scopedContainer (which threads the caller's in-progress
// cycle-detection set through nested Get calls) satisfy it.
type Resolver interface {
	Get(key string, isOptional bool) (any, error)
}

// Provider constructs a value using the container, so it can itself pull
// further dependencies — this is how back-edges are broken (spec §4.2):
// express the cyclic side as a Provider that defers resolution until it is
// actually invoked, rather than at bind time.
type Provider func(c Resolver) (any, error)

// Binding is a single `key -> value-producing strategy` registration. It is
// mutable only via its fluent setters, and only before first resolution;
// after the container resolves it as a singleton the cached instance is
// immutable for the container's lifetime.
type Binding struct {
	Key   string
	Tags  map[string]struct{}
	Scope Scope

	kind     valueKind
	value    any
	class    func() any
	provider Provider

	once     sync.Once
	cached   any
	cacheErr error
}

// newBinding starts a binding for key with default scope Transient. It must
// be finalized with ToClass/ToValue/ToProvider before the container can
// resolve it.
func newBinding(key string) *Binding {
	return &Binding{Key: key, Tags: make(map[string]struct{}), Scope: Transient}
}

// ToValue finalizes the binding as a constant value.
func (b *Binding) ToValue(v any) *Binding {
	b.kind = kindValue
	b.value = v
	return b
}

// ToClass finalizes the binding as a zero-arg constructor. Constructor
// dependencies, if any, should be resolved inside ctor via the Container
// captured by a Provider instead — see ToProvider.
func (b *Binding) ToClass(ctor func() any) *Binding {
	b.kind = kindClass
	b.class = ctor
	return b
}

// ToProvider finalizes the binding as a Container-aware factory function,
// used whenever construction needs further dependency resolution.
func (b *Binding) ToProvider(p Provider) *Binding {
	b.kind = kindProvider
	b.provider = p
	return b
}

// InSingletonScope marks the binding as singleton-scoped.
func (b *Binding) InSingletonScope() *Binding {
	b.Scope = Singleton
	return b
}

// InTransientScope marks the binding as transient-scoped (the default).
func (b *Binding) InTransientScope() *Binding {
	b.Scope = Transient
	return b
}

// Tag adds one or more tags used by Container.FindByTag.
func (b *Binding) Tag(tags ...string) *Binding {
	for _, t := range tags {
		b.Tags[t] = struct{}{}
	}
	return b
}

func (b *Binding) hasTag(tag string) bool {
	_, ok := b.Tags[tag]
	return ok
}

// produce invokes the binding's underlying strategy exactly once per call
// (callers apply singleton caching themselves via sync.Once on Binding).
func (b *Binding) produce() (any, error) {
	switch b.kind {
	case kindValue:
		return b.value, nil
	case kindClass:
		return b.class(), nil
	default:
		return nil, nil
	}
}
