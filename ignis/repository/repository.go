// Package repository implements the Default CRUD Repository (spec §4.6): a
// generic, model-shaped surface over a DataSource, responsible for applying
// a model's default filter, compiling user filters through ignis/query, and
// wrapping results in the {data,count} envelope every list-returning
// operation uses.
//
// The fluent WithX-then-terminal-verb shape of the teacher's database
// package is replaced here by a single options struct per call: Ignis
// filters are already a declarative value (query.Filter), so there is no
// chain of clauses to build up incrementally.
package repository

import (
	"context"
	"sync"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/ignis-framework/ignis/ignis/query"
)

// recordOp tags one repository call for the metrics.RepositoryCalls counter.
func recordOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RepositoryCalls.WithLabelValues(op, outcome).Inc()
}

// Model is the minimal identity contract a repository needs from a domain
// struct.
type Model interface {
	GetID() string
	SetID(id string)
}

// DataSource is the capability a concrete adapter (ignis/datasource) must
// provide. Repository never speaks gorm/SQL directly; it only ever deals in
// compiled query.QuerySpec values and plain Go values.
type DataSource interface {
	Schema() *query.Schema
	Find(ctx context.Context, spec *query.QuerySpec, dest any) error
	Count(ctx context.Context, spec *query.QuerySpec) (int64, error)
	Create(ctx context.Context, model any) error
	CreateAll(ctx context.Context, models any) error
	UpdateWhere(ctx context.Context, spec *query.QuerySpec, patch map[string]any) (int64, error)
	DeleteWhere(ctx context.Context, spec *query.QuerySpec) (int64, error)
	// BeginTx returns a DataSource scoped to a new transaction together with
	// Commit/Rollback callbacks to finalize it.
	BeginTx(ctx context.Context) (tx DataSource, commit func() error, rollback func() error, err error)
}

// Result is the envelope every list-returning operation returns (spec
// §4.6): Data holds the page of models, Count holds the total matching rows
// regardless of limit/offset when requested.
type Result[M any] struct {
	Data  []M
	Count int64
}

// Options configures a single repository call.
type Options struct {
	// SkipDefaultFilter bypasses the model's registered default filter for
	// this call only (spec §9 open question: scoped per-call, not global).
	SkipDefaultFilter bool
	// WithCount additionally populates Result.Count via a separate count
	// query using the same where-clause but ignoring limit/offset.
	WithCount bool
}

// Option mutates an Options value.
type Option func(*Options)

// SkipDefaultFilter disables default-filter application for one call.
func SkipDefaultFilter() Option { return func(o *Options) { o.SkipDefaultFilter = true } }

// WithCount requests the total matching count alongside Find's page.
func WithCount() Option { return func(o *Options) { o.WithCount = true } }

// DefaultFilterFunc produces a model's default filter. It is invoked at
// most once per Repository (cached via sync.Once), mirroring the "resolved
// lazily, then cached" behavior of the metadata registry it is expected to
// be backed by.
type DefaultFilterFunc func() *query.Filter

// Repository is the default CRUD surface for one model type M.
type Repository[M Model] struct {
	ds DataSource

	defaultFilterFn DefaultFilterFunc
	defaultFilter   *query.Filter
	defaultFilterOK sync.Once
}

// New builds a Repository over ds. defaultFilterFn may be nil if the model
// has no default filter.
func New[M Model](ds DataSource, defaultFilterFn DefaultFilterFunc) *Repository[M] {
	return &Repository[M]{ds: ds, defaultFilterFn: defaultFilterFn}
}

func (r *Repository[M]) resolveDefaultFilter() *query.Filter {
	if r.defaultFilterFn == nil {
		return nil
	}
	r.defaultFilterOK.Do(func() {
		r.defaultFilter = r.defaultFilterFn()
	})
	return r.defaultFilter
}

func (r *Repository[M]) effectiveFilter(user *query.Filter, opts Options) *query.Filter {
	if opts.SkipDefaultFilter {
		if user == nil {
			return &query.Filter{}
		}
		return user
	}
	return query.Merge(r.resolveDefaultFilter(), user)
}

func (r *Repository[M]) compile(user *query.Filter, opts Options) (*query.QuerySpec, error) {
	filter := r.effectiveFilter(user, opts)
	return query.Compile(r.ds.Schema(), filter)
}

func resolveOptions(opts []Option) Options {
	var o Options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// Find returns every model matching filter, honoring limit/offset/order/
// fields/include as compiled by ignis/query.
func (r *Repository[M]) Find(ctx context.Context, filter *query.Filter, opts ...Option) (result *Result[M], err error) {
	defer func() { recordOp("find", err) }()

	o := resolveOptions(opts)
	spec, err := r.compile(filter, o)
	if err != nil {
		return nil, err
	}

	var data []M
	if err := r.ds.Find(ctx, spec, &data); err != nil {
		return nil, err
	}

	result = &Result[M]{Data: data, Count: int64(len(data))}
	if o.WithCount {
		countSpec := *spec
		countSpec.Limit, countSpec.Offset, countSpec.Skip = nil, nil, nil
		count, cerr := r.ds.Count(ctx, &countSpec)
		if cerr != nil {
			return nil, cerr
		}
		result.Count = count
	}
	return result, nil
}

// FindOne returns the first model matching filter, or a not-found error.
func (r *Repository[M]) FindOne(ctx context.Context, filter *query.Filter, opts ...Option) (m M, err error) {
	defer func() { recordOp("find_one", err) }()

	var zero M
	one := 1
	if filter == nil {
		filter = &query.Filter{}
	}
	scoped := filter.Clone()
	scoped.Limit = &one

	result, err := r.Find(ctx, scoped, opts...)
	if err != nil {
		return zero, err
	}
	if len(result.Data) == 0 {
		return zero, igniserr.New(igniserr.KindNotFound, "no matching record found")
	}
	return result.Data[0], nil
}

// FindByID returns the model with the given id, honoring the model's
// default filter unless SkipDefaultFilter is given.
func (r *Repository[M]) FindByID(ctx context.Context, id string, opts ...Option) (M, error) {
	filter := &query.Filter{Where: query.OMapOf("id", id)}
	return r.FindOne(ctx, filter, opts...)
}

// Count returns the number of models matching filter.
func (r *Repository[M]) Count(ctx context.Context, filter *query.Filter, opts ...Option) (count int64, err error) {
	defer func() { recordOp("count", err) }()

	o := resolveOptions(opts)
	spec, err := r.compile(filter, o)
	if err != nil {
		return 0, err
	}
	count, err = r.ds.Count(ctx, spec)
	return count, err
}

// Create persists a single model.
func (r *Repository[M]) Create(ctx context.Context, model M) (err error) {
	defer func() { recordOp("create", err) }()
	return r.ds.Create(ctx, model)
}

// CreateAll persists every model in models in one call.
func (r *Repository[M]) CreateAll(ctx context.Context, models []M) (err error) {
	defer func() { recordOp("create_all", err) }()
	return r.ds.CreateAll(ctx, models)
}

// UpdateByID applies patch to the model with the given id.
func (r *Repository[M]) UpdateByID(ctx context.Context, id string, patch map[string]any, opts ...Option) (int64, error) {
	return r.UpdateWhere(ctx, &query.Filter{Where: query.OMapOf("id", id)}, patch, opts...)
}

// UpdateWhere applies patch to every model matching filter, returning the
// number of rows affected.
func (r *Repository[M]) UpdateWhere(ctx context.Context, filter *query.Filter, patch map[string]any, opts ...Option) (affected int64, err error) {
	defer func() { recordOp("update_where", err) }()

	o := resolveOptions(opts)
	spec, err := r.compile(filter, o)
	if err != nil {
		return 0, err
	}
	affected, err = r.ds.UpdateWhere(ctx, spec, patch)
	return affected, err
}

// DeleteByID removes the model with the given id.
func (r *Repository[M]) DeleteByID(ctx context.Context, id string, opts ...Option) (int64, error) {
	return r.DeleteWhere(ctx, &query.Filter{Where: query.OMapOf("id", id)}, opts...)
}

// DeleteWhere removes every model matching filter, returning the number of
// rows affected. Unlike the teacher's WithQuery, there is no implicit
// "empty filter blocked" safety net here: an empty filter compiles to "no
// where clause" and deletes every row, matching the declarative semantics
// of spec §4.5 — callers that want a safety net apply it at the service
// layer.
func (r *Repository[M]) DeleteWhere(ctx context.Context, filter *query.Filter, opts ...Option) (affected int64, err error) {
	defer func() { recordOp("delete_where", err) }()

	o := resolveOptions(opts)
	spec, err := r.compile(filter, o)
	if err != nil {
		return 0, err
	}
	affected, err = r.ds.DeleteWhere(ctx, spec)
	return affected, err
}

// BeginTransaction runs fn against a Repository scoped to a new
// transaction, committing on a nil return and rolling back otherwise.
func (r *Repository[M]) BeginTransaction(ctx context.Context, fn func(tx *Repository[M]) error) error {
	txDS, commit, rollback, err := r.ds.BeginTx(ctx)
	if err != nil {
		return err
	}

	tx := &Repository[M]{ds: txDS, defaultFilterFn: r.defaultFilterFn}
	// Resolve (at most once) and share the default filter so the
	// transaction doesn't re-trigger the registry lookup.
	tx.defaultFilter = r.resolveDefaultFilter()
	tx.defaultFilterOK.Do(func() {})

	if err := fn(tx); err != nil {
		_ = rollback()
		return err
	}
	return commit()
}
