package controller_test

import (
	"testing"

	"github.com/ignis-framework/ignis/ignis/controller"
	"github.com/ignis-framework/ignis/ignis/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widgetsController struct{}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := controller.New("", "")
	require.Error(t, err)
}

func TestConfigureMergesProgrammaticAndAnnotatedRoutes(t *testing.T) {
	reg := registry.New()
	reg.SetRoute(widgetsController{}, "List", registry.RouteConfig{Method: "GET", Path: "/widgets"})
	reg.SetRoute(widgetsController{}, "Create", registry.RouteConfig{Method: "POST", Path: "/widgets"})

	base := controller.MustNew("/widgets", "widgets")
	base.BindRoute("Health", registry.RouteConfig{Method: "GET", Path: "/widgets/health"}, func(controller.Context) error { return nil })

	dispatch := map[string]controller.Handler{
		"List":   func(controller.Context) error { return nil },
		"Create": func(controller.Context) error { return nil },
	}
	routes := base.Configure(reg, widgetsController{}, dispatch)

	require.Len(t, routes, 3)
	assert.Equal(t, "Health", routes[0].Name)
	assert.Equal(t, "List", routes[1].Name)
	assert.Equal(t, "Create", routes[2].Name)
}

func TestConfigureSkipsUndispatchedAnnotatedRoute(t *testing.T) {
	reg := registry.New()
	reg.SetRoute(widgetsController{}, "Delete", registry.RouteConfig{Method: "DELETE", Path: "/widgets/:id"})

	base := controller.MustNew("/widgets", "widgets")
	routes := base.Configure(reg, widgetsController{}, map[string]controller.Handler{})
	assert.Empty(t, routes)
}
