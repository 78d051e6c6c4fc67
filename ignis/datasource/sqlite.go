// Package datasource provides the concrete storage adapter behind
// ignis/repository: a gorm-backed DataSource capability that compiles
// ignis/query.QuerySpec values into SQL, guarded by a circuit breaker so a
// struggling database degrades the caller with a transport-closed error
// instead of piling up blocked goroutines.
package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/query"
	"github.com/ignis-framework/ignis/ignis/repository"
	"github.com/sony/gobreaker"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config mirrors the teacher's Sqlite config shape (spec's AMBIENT STACK,
// grounded on the teacher's database/sqlite package).
type Config struct {
	Path              string
	IsMemory          bool
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
}

// Open connects to SQLite the way the teacher's sqlite.New does: WAL mode,
// a busy timeout, and a single connection since SQLite does not benefit
// from concurrent writers.
func Open(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(buildDSN(cfg)), &gorm.Config{})
	if err != nil {
		return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to open sqlite database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db, nil
}

func buildDSN(cfg Config) string {
	if cfg.IsMemory || cfg.Path == "" {
		return "file::memory:?cache=shared"
	}
	params := []string{
		"_journal_mode=WAL",
		"_busy_timeout=5000",
		"_synchronous=NORMAL",
		"_foreign_keys=ON",
	}
	return cfg.Path + "?" + strings.Join(params, "&")
}

// GormDataSource implements repository.DataSource over a single gorm table.
// It deliberately works at the table/raw-SQL level rather than against a
// concrete Go struct, since a DataSource only ever knows a query.Schema, not
// the caller's model type.
type GormDataSource struct {
	db        *gorm.DB
	schema    *query.Schema
	tableName string
	breaker   *gobreaker.CircuitBreaker
}

// New builds a GormDataSource for tableName, described by schema. db may be
// a plain connection or an already-open transaction (see BeginTx).
func New(db *gorm.DB, schema *query.Schema, tableName string) *GormDataSource {
	return &GormDataSource{
		db:        db,
		schema:    schema,
		tableName: tableName,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "datasource:" + tableName,
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
			},
		}),
	}
}

func (g *GormDataSource) Schema() *query.Schema { return g.schema }

func (g *GormDataSource) guard(fn func() error) error {
	_, err := g.breaker.Execute(func() (any, error) { return nil, fn() })
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return igniserr.Wrap(igniserr.KindTransportClosed, err, "database circuit breaker open")
	}
	return err
}

func (g *GormDataSource) Find(ctx context.Context, spec *query.QuerySpec, dest any) error {
	return g.guard(func() error {
		tx := g.db.WithContext(ctx).Table(g.tableName)
		tx, err := applySpec(tx, spec)
		if err != nil {
			return err
		}
		return tx.Find(dest).Error
	})
}

func (g *GormDataSource) Count(ctx context.Context, spec *query.QuerySpec) (int64, error) {
	var count int64
	err := g.guard(func() error {
		tx := g.db.WithContext(ctx).Table(g.tableName)
		tx, err := applyWhere(tx, spec)
		if err != nil {
			return err
		}
		return tx.Count(&count).Error
	})
	return count, err
}

func (g *GormDataSource) Create(ctx context.Context, model any) error {
	return g.guard(func() error {
		return g.db.WithContext(ctx).Table(g.tableName).Create(model).Error
	})
}

func (g *GormDataSource) CreateAll(ctx context.Context, models any) error {
	return g.guard(func() error {
		return g.db.WithContext(ctx).Table(g.tableName).Create(models).Error
	})
}

func (g *GormDataSource) UpdateWhere(ctx context.Context, spec *query.QuerySpec, patch map[string]any) (int64, error) {
	var affected int64
	err := g.guard(func() error {
		tx := g.db.WithContext(ctx).Table(g.tableName)
		tx, err := applyWhere(tx, spec)
		if err != nil {
			return err
		}
		tx = tx.Updates(patch)
		affected = tx.RowsAffected
		return tx.Error
	})
	return affected, err
}

func (g *GormDataSource) DeleteWhere(ctx context.Context, spec *query.QuerySpec) (int64, error) {
	var affected int64
	err := g.guard(func() error {
		tx := g.db.WithContext(ctx).Table(g.tableName)
		tx, err := applyWhere(tx, spec)
		if err != nil {
			return err
		}
		tx = tx.Delete(map[string]any{})
		affected = tx.RowsAffected
		return tx.Error
	})
	return affected, err
}

func (g *GormDataSource) BeginTx(ctx context.Context) (txDS repository.DataSource, commit func() error, rollback func() error, err error) {
	tx := g.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, nil, nil, tx.Error
	}
	scoped := &GormDataSource{db: tx, schema: g.schema, tableName: g.tableName, breaker: g.breaker}
	return scoped, func() error { return tx.Commit().Error }, func() error { return tx.Rollback().Error }, nil
}

// applySpec applies where, order, limit/offset/skip to tx.
func applySpec(tx *gorm.DB, spec *query.QuerySpec) (*gorm.DB, error) {
	tx, err := applyWhere(tx, spec)
	if err != nil {
		return nil, err
	}
	for _, o := range spec.Order {
		expr := o.Column
		if expr == "" {
			expr = exprToSQL(o.Expr, o.Numeric)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		tx = tx.Order(expr + " " + dir)
	}
	if spec.Skip != nil {
		tx = tx.Offset(*spec.Skip)
	}
	if spec.Offset != nil {
		tx = tx.Offset(*spec.Offset)
	}
	if spec.Limit != nil {
		tx = tx.Limit(*spec.Limit)
	}
	return tx, nil
}

func applyWhere(tx *gorm.DB, spec *query.QuerySpec) (*gorm.DB, error) {
	if spec.Where == nil {
		return tx, nil
	}
	clause, args, err := compilePredicate(spec.Where)
	if err != nil {
		return nil, err
	}
	return tx.Where(clause, args...), nil
}

// compilePredicate renders a query.Predicate into a parameterized SQL
// fragment. Column/path identifiers reaching this point have already been
// validated against a Schema by ignis/query, so they are safe to splice
// into the fragment directly; values are always passed as bind arguments.
func compilePredicate(p *query.Predicate) (string, []any, error) {
	switch p.Op {
	case "and", "or":
		if len(p.Children) == 0 {
			return "1 = 1", nil, nil
		}
		var parts []string
		var args []any
		for _, c := range p.Children {
			cs, ca, err := compilePredicate(c)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+cs+")")
			args = append(args, ca...)
		}
		sep := " AND "
		if p.Op == "or" {
			sep = " OR "
		}
		return strings.Join(parts, sep), args, nil
	case "false":
		return "1 = 0", nil, nil
	}

	col := p.Column
	if col == "" {
		col = exprToSQL(p.Expr, p.Numeric)
	}

	switch p.Op {
	case "eq":
		return col + " = ?", p.Args, nil
	case "neq":
		return col + " <> ?", p.Args, nil
	case "gt":
		return col + " > ?", p.Args, nil
	case "gte":
		return col + " >= ?", p.Args, nil
	case "lt":
		return col + " < ?", p.Args, nil
	case "lte":
		return col + " <= ?", p.Args, nil
	case "like":
		return col + " LIKE ?", p.Args, nil
	case "ilike":
		return "LOWER(" + col + ") LIKE LOWER(?)", p.Args, nil
	case "contains":
		if len(p.Args) != 1 {
			return "", nil, igniserr.New(igniserr.KindQueryInvalid, "contains requires exactly one value")
		}
		return col + " LIKE ?", []any{fmt.Sprintf("%%%v%%", p.Args[0])}, nil
	case "isNull":
		return col + " IS NULL", nil, nil
	case "exists":
		if len(p.Args) == 1 {
			if b, ok := p.Args[0].(bool); ok && !b {
				return col + " IS NULL", nil, nil
			}
		}
		return col + " IS NOT NULL", nil, nil
	case "in":
		if len(p.Args) == 0 {
			return "1 = 0", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(p.Args)), ",")
		return col + " IN (" + placeholders + ")", p.Args, nil
	case "nin":
		if len(p.Args) == 0 {
			return "1 = 1", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(p.Args)), ",")
		return col + " NOT IN (" + placeholders + ")", p.Args, nil
	case "between":
		if len(p.Args) != 2 {
			return "", nil, igniserr.New(igniserr.KindQueryInvalid, "between requires exactly two bounds")
		}
		return col + " BETWEEN ? AND ?", p.Args, nil
	default:
		return "", nil, igniserr.Newf(igniserr.KindQueryInvalid, "unsupported operator %q", p.Op)
	}
}

// exprToSQL translates a dialect-neutral "column->seg1->seg2" JSON-path
// descriptor (see ignis/query's buildJSONExtraction) into SQLite's
// json_extract, applying the numeric-safe cast when requested.
func exprToSQL(expr string, numeric bool) string {
	parts := strings.Split(expr, "->")
	column := parts[0]
	path := "$." + strings.Join(parts[1:], ".")
	sqlExpr := fmt.Sprintf("json_extract(%s, '%s')", column, path)
	if numeric {
		sqlExpr = "CAST(" + sqlExpr + " AS REAL)"
	}
	return sqlExpr
}
