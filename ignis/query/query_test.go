package query

import (
	"os"
	"testing"

	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = metrics.Init()
	os.Exit(m.Run())
}

func userSchema() *Schema {
	return &Schema{
		Name: "User",
		Columns: map[string]Column{
			"id":       {Name: "id", DataType: TypeUUID},
			"name":     {Name: "name", DataType: TypeString},
			"age":      {Name: "age", DataType: TypeNumber},
			"metadata": {Name: "metadata", DataType: TypeJSONB},
			"secret":   {Name: "secret", DataType: TypeString},
		},
		Relations: map[string]*Schema{
			"posts": {
				Name: "Post",
				Columns: map[string]Column{
					"id":    {Name: "id", DataType: TypeUUID},
					"title": {Name: "title", DataType: TypeString},
				},
			},
		},
		HiddenProperties: map[string]struct{}{"secret": {}},
	}
}

func TestMergeIsIdentityOnNilUser(t *testing.T) {
	def := &Filter{Where: OMapOf("active", true)}
	got := Merge(def, nil)
	assert.Equal(t, def.Where.Keys(), got.Where.Keys())
}

func TestMergeIsIdentityOnNilDefault(t *testing.T) {
	user := &Filter{Where: OMapOf("name", "ren")}
	got := Merge(nil, user)
	assert.Equal(t, user.Where.Keys(), got.Where.Keys())
}

func TestMergeIsIdempotent(t *testing.T) {
	def := &Filter{Where: OMapOf("active", true), Limit: intp(10)}
	user := &Filter{Where: OMapOf("name", "ren"), Limit: intp(5)}

	once := Merge(def, user)
	twice := Merge(def, once)

	assert.Equal(t, *once.Limit, *twice.Limit)
	assert.ElementsMatch(t, once.Where.Keys(), twice.Where.Keys())
}

func TestMergeUserValueWinsIncludingZero(t *testing.T) {
	def := &Filter{Limit: intp(20)}
	user := &Filter{Limit: intp(0)}

	got := Merge(def, user)
	require.NotNil(t, got.Limit)
	assert.Equal(t, 0, *got.Limit)
}

func TestMergeWhereDeepMergesNestedObjects(t *testing.T) {
	def := &Filter{Where: OMapOf("profile", OMapOf("verified", true, "tier", "gold"))}
	user := &Filter{Where: OMapOf("profile", OMapOf("tier", "platinum"))}

	got := Merge(def, user)
	profileVal, ok := got.Where.Get("profile")
	require.True(t, ok)
	profile := profileVal.(*OMap)

	verified, ok := profile.Get("verified")
	require.True(t, ok)
	assert.Equal(t, true, verified)

	tier, ok := profile.Get("tier")
	require.True(t, ok)
	assert.Equal(t, "platinum", tier)
}

func TestMergeWhereExplicitNullOverridesDefault(t *testing.T) {
	def := &Filter{Where: OMapOf("deletedAt", "2024-01-01")}
	user := &Filter{Where: OMapOf("deletedAt", nil)}

	got := Merge(def, user)
	v, ok := got.Where.Get("deletedAt")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestMergeArraysOverrideByIndexPreservingTail(t *testing.T) {
	def := &Filter{Where: OMapOf("tags", []any{"a", "b", "c"})}
	user := &Filter{Where: OMapOf("tags", []any{"x"})}

	got := Merge(def, user)
	v, ok := got.Where.Get("tags")
	require.True(t, ok)
	assert.Equal(t, []any{"x", "b", "c"}, v)
}

func TestNoPrototypePollutionKeysAreOrdinaryStrings(t *testing.T) {
	where := OMapOf("__proto__", "x", "constructor", "y")
	schema := &Schema{Columns: map[string]Column{"__proto__": {Name: "__proto__", DataType: TypeString}}}

	// constructor as a where key behaves like any other string key: it is
	// not a declared column here, so compiling it raises query-invalid like
	// any unknown column would, proving there's no special prototype-chain path.
	_, err := compileColumnCondition(schema, "constructor", mustGet(where, "constructor"))
	require.Error(t, err)
	assert.Equal(t, igniserr.KindQueryInvalid, igniserr.KindOf(err))
}

func mustGet(m *OMap, k string) any {
	v, _ := m.Get(k)
	return v
}

func TestCompileUnknownColumnRaisesQueryInvalid(t *testing.T) {
	schema := userSchema()
	filter := &Filter{Where: OMapOf("nope", "x")}

	_, err := Compile(schema, filter)
	require.Error(t, err)
	assert.Equal(t, igniserr.KindQueryInvalid, igniserr.KindOf(err))
}

func TestCompileUnknownOperatorRaisesQueryInvalid(t *testing.T) {
	schema := userSchema()
	filter := &Filter{Where: OMapOf("age", OMapOf("bogus", 1))}

	_, err := Compile(schema, filter)
	require.Error(t, err)
	assert.Equal(t, igniserr.KindQueryInvalid, igniserr.KindOf(err))
}

func TestCompileUnknownRelationRaisesQueryInvalid(t *testing.T) {
	schema := userSchema()
	filter := &Filter{Include: []IncludeItem{{Relation: "comments"}}}

	_, err := Compile(schema, filter)
	require.Error(t, err)
	assert.Equal(t, igniserr.KindQueryInvalid, igniserr.KindOf(err))
}

func TestCompileEmptyOrderProducesNoOrdering(t *testing.T) {
	schema := userSchema()
	spec, err := Compile(schema, &Filter{})
	require.NoError(t, err)
	assert.Nil(t, spec.Order)
}

func TestCompileOrderDirectionCaseInsensitive(t *testing.T) {
	schema := userSchema()
	spec, err := Compile(schema, &Filter{Order: []string{"name desc", "age ASC"}})
	require.NoError(t, err)
	require.Len(t, spec.Order, 2)
	assert.True(t, spec.Order[0].Desc)
	assert.False(t, spec.Order[1].Desc)
}

func TestCompileOrderInvalidDirectionRaisesQueryInvalid(t *testing.T) {
	schema := userSchema()
	_, err := Compile(schema, &Filter{Order: []string{"name SIDEWAYS"}})
	require.Error(t, err)
	assert.Equal(t, igniserr.KindQueryInvalid, igniserr.KindOf(err))
}

func TestCompileValueConditionRules(t *testing.T) {
	assert.Equal(t, "isNull", compileValueCondition("name", nil).Op)
	assert.Equal(t, "false", compileValueCondition("name", []any{}).Op)
	in := compileValueCondition("name", []any{"a", "b"})
	assert.Equal(t, "in", in.Op)
	eq := compileValueCondition("name", "ren")
	assert.Equal(t, "eq", eq.Op)
}

func TestCompileJSONPathAppliesNumericCastOnNumericOperator(t *testing.T) {
	schema := userSchema()
	filter := &Filter{Where: OMapOf("metadata.score", OMapOf("gte", 10))}

	spec, err := Compile(schema, filter)
	require.NoError(t, err)
	require.NotNil(t, spec.Where)
	assert.True(t, spec.Where.Numeric)
	assert.Equal(t, "metadata->score", spec.Where.Expr)
}

func TestCompileJSONPathTextComparisonWhenNonNumeric(t *testing.T) {
	schema := userSchema()
	filter := &Filter{Where: OMapOf("metadata.label", "gold")}

	spec, err := Compile(schema, filter)
	require.NoError(t, err)
	require.NotNil(t, spec.Where)
	assert.False(t, spec.Where.Numeric)
}

func TestCompileJSONPathRejectsInvalidSegment(t *testing.T) {
	schema := userSchema()
	filter := &Filter{Where: OMapOf("metadata.$bad", "x")}

	_, err := Compile(schema, filter)
	require.Error(t, err)
	assert.Equal(t, igniserr.KindQueryInvalid, igniserr.KindOf(err))
}

func TestCompileFieldsDefaultsToNonHiddenColumns(t *testing.T) {
	schema := userSchema()
	spec, err := Compile(schema, &Filter{})
	require.NoError(t, err)
	assert.True(t, spec.Fields["name"])
	assert.False(t, spec.Fields["secret"])
}

func TestCompileIncludeRecursesIntoRelatedSchema(t *testing.T) {
	schema := userSchema()
	filter := &Filter{Include: []IncludeItem{{Relation: "posts", Scope: &Filter{Order: []string{"title ASC"}}}}}

	spec, err := Compile(schema, filter)
	require.NoError(t, err)
	require.Len(t, spec.Include, 1)
	require.NotNil(t, spec.Include[0].Scope)
	require.Len(t, spec.Include[0].Scope.Order, 1)
}

func TestColumnCacheReturnsStableColumns(t *testing.T) {
	schema := userSchema()
	cache := newColumnCache()
	first := cache.Columns(schema)
	second := cache.Columns(schema)
	assert.ElementsMatch(t, first, second)
}

func intp(v int) *int { return &v }
