package registry_test

import (
	"testing"

	"github.com/ignis-framework/ignis/ignis/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widgetModel struct{}

func TestModelMetadataNameLookupIsDerivedAndStable(t *testing.T) {
	r := registry.New()
	r.SetModelMetadata(widgetModel{}, registry.ModelMetadata{})

	byType, ok := r.GetModelEntry(widgetModel{}, "")
	require.True(t, ok)
	assert.Equal(t, "widget_models", byType.Name)

	byName, ok := r.GetModelEntry(nil, "widget_models")
	require.True(t, ok)
	assert.Equal(t, byType.Target, byName.Target)
}

func TestGetModelEntryMissIsNotAnError(t *testing.T) {
	r := registry.New()
	_, ok := r.GetModelEntry(nil, "nope")
	assert.False(t, ok)
}

type ctrlA struct{}

func TestSetControllerMetadataLastWriteWins(t *testing.T) {
	r := registry.New()
	r.SetControllerMetadata(ctrlA{}, registry.ControllerMetadata{Path: "/a"})
	r.SetControllerMetadata(ctrlA{}, registry.ControllerMetadata{Path: "/b"})

	meta, ok := r.GetControllerMetadata(ctrlA{})
	require.True(t, ok)
	assert.Equal(t, "/b", meta.Path)
}

func TestRoutesPreserveInsertionOrder(t *testing.T) {
	r := registry.New()
	r.SetRoute(ctrlA{}, "List", registry.RouteConfig{Method: "GET", Path: "/a"})
	r.SetRoute(ctrlA{}, "Create", registry.RouteConfig{Method: "POST", Path: "/a"})
	r.SetRoute(ctrlA{}, "List", registry.RouteConfig{Method: "GET", Path: "/a/list"})

	entries := r.Routes(ctrlA{})
	require.Len(t, entries, 2)
	assert.Equal(t, "List", entries[0].MethodName)
	assert.Equal(t, "/a/list", entries[0].Config.Path)
	assert.Equal(t, "Create", entries[1].MethodName)
}

func TestRoutesByAuthModeFiltersInOrder(t *testing.T) {
	r := registry.New()
	r.SetRoute(ctrlA{}, "List", registry.RouteConfig{Method: "GET", Path: "/a", AuthMode: "any"})
	r.SetRoute(ctrlA{}, "Create", registry.RouteConfig{Method: "POST", Path: "/a", AuthMode: "all"})
	r.SetRoute(ctrlA{}, "Delete", registry.RouteConfig{Method: "DELETE", Path: "/a", AuthMode: "any"})

	entries := r.RoutesByAuthMode(ctrlA{}, "any")
	require.Len(t, entries, 2)
	assert.Equal(t, "List", entries[0].MethodName)
	assert.Equal(t, "Delete", entries[1].MethodName)
}
