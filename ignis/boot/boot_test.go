package boot_test

import (
	"testing"

	"github.com/ignis-framework/ignis/ignis/boot"
	"github.com/ignis-framework/ignis/ignis/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleTransitionsInOrder(t *testing.T) {
	c := container.New()
	c.Bind("ds.primary").ToValue("datasource").Tag("datasources")
	c.Bind("components.widgets").ToValue("component").Tag("components")
	c.Bind("controllers.widgets").ToValue("controller").Tag("controllers")

	app := boot.New(c)
	var order []string
	app.OnComponentConstructed(func(tag string, _ any) { order = append(order, tag) })

	require.Equal(t, boot.StateNew, app.State())
	require.NoError(t, app.Configure())
	require.Equal(t, boot.StateConfigured, app.State())
	require.NoError(t, app.Boot())
	require.Equal(t, boot.StateBooted, app.State())

	assert.Equal(t, []string{"datasources", "components", "controllers"}, order)
}

func TestBootFromWrongStateFails(t *testing.T) {
	app := boot.New(container.New())
	err := app.Boot()
	require.Error(t, err)
}

func TestBootAbortsOnInstantiationError(t *testing.T) {
	c := container.New()
	c.Bind("components.broken").ToProvider(func(container.Resolver) (any, error) {
		return nil, assertErr{}
	}).Tag("components")

	app := boot.New(c)
	require.NoError(t, app.Configure())
	err := app.Boot()
	require.Error(t, err)
	assert.NotEqual(t, boot.StateBooted, app.State())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestStopIsIdempotent(t *testing.T) {
	app := boot.New(container.New())
	calls := 0
	app.RegisterCleanup(func() { calls++ })

	require.NoError(t, app.Configure())
	require.NoError(t, app.Boot())

	require.NoError(t, app.Stop())
	require.NoError(t, app.Stop())
	assert.Equal(t, 1, calls)
}
