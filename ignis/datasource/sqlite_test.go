package datasource

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignis-framework/ignis/ignis/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newMockDataSource(t *testing.T) (*GormDataSource, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(sqlite.Dialector{Conn: mockDB}, &gorm.Config{})
	require.NoError(t, err)

	schema := &query.Schema{
		Name: "Widget",
		Columns: map[string]query.Column{
			"id":   {Name: "id", DataType: query.TypeUUID},
			"name": {Name: "name", DataType: query.TypeString},
		},
	}
	return New(gdb, schema, "widgets"), mock
}

func TestCompilePredicateEq(t *testing.T) {
	p := &query.Predicate{Op: "eq", Column: "name", Args: []any{"ren"}}
	clause, args, err := compilePredicate(p)
	require.NoError(t, err)
	assert.Equal(t, "name = ?", clause)
	assert.Equal(t, []any{"ren"}, args)
}

func TestCompilePredicateAndCombinesChildren(t *testing.T) {
	p := &query.Predicate{Op: "and", Children: []*query.Predicate{
		{Op: "eq", Column: "name", Args: []any{"ren"}},
		{Op: "gt", Column: "age", Args: []any{18}},
	}}
	clause, args, err := compilePredicate(p)
	require.NoError(t, err)
	assert.Equal(t, "(name = ?) AND (age > ?)", clause)
	assert.Equal(t, []any{"ren", 18}, args)
}

func TestCompilePredicateInEmptyIsUnsatisfiable(t *testing.T) {
	p := &query.Predicate{Op: "in", Column: "id", Args: nil}
	clause, _, err := compilePredicate(p)
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", clause)
}

func TestExprToSQLAppliesNumericCast(t *testing.T) {
	got := exprToSQL("metadata->score", true)
	assert.Equal(t, "CAST(json_extract(metadata, '$.score') AS REAL)", got)
}

func TestExprToSQLTextComparison(t *testing.T) {
	got := exprToSQL("metadata->label", false)
	assert.Equal(t, "json_extract(metadata, '$.label')", got)
}

func TestFindCompilesWhereAndOrder(t *testing.T) {
	ds, mock := newMockDataSource(t)
	mock.ExpectQuery(`SELECT \* FROM ` + "`widgets`" + ` WHERE name = \? ORDER BY name ASC`).
		WithArgs("ren").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("1", "ren"))

	spec := &query.QuerySpec{
		Where: &query.Predicate{Op: "eq", Column: "name", Args: []any{"ren"}},
		Order: []query.OrderClause{{Column: "name"}},
	}

	var dest []map[string]any
	err := ds.Find(context.Background(), spec, &dest)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountWrapsQueryInCircuitBreaker(t *testing.T) {
	ds, mock := newMockDataSource(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM ` + "`widgets`" + ` WHERE id = \?`).
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	spec := &query.QuerySpec{Where: &query.Predicate{Op: "eq", Column: "id", Args: []any{"1"}}}
	count, err := ds.Count(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
