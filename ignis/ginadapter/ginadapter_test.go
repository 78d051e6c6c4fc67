package ginadapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ignis-framework/ignis/ignis/authn"
	"github.com/ignis-framework/ignis/ignis/controller"
	"github.com/ignis-framework/ignis/ignis/ginadapter"
	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/ignis-framework/ignis/ignis/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = metrics.Init()
	os.Exit(m.Run())
}

type basicStrategy struct{ ok bool }

func (s basicStrategy) Name() string { return "basic" }
func (s basicStrategy) Authenticate(_ context.Context, _ authn.Request) (*authn.User, error) {
	if s.ok {
		return &authn.User{ID: "u1"}, nil
	}
	return nil, nil
}

func TestMountDispatchesAndAppliesAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	base := controller.MustNew("/widgets", "widgets")
	base.BindRoute("List", registry.RouteConfig{Method: "GET", Path: "/", AuthStrategies: []string{"basic"}, AuthMode: "any"}, func(ctx controller.Context) error {
		ctx.JSON(http.StatusOK, map[string]string{"ok": "true"})
		return nil
	})
	routes := base.Configure(registry.New(), struct{}{}, nil)

	authReg := authn.Default()
	authReg.Register(basicStrategy{ok: true})

	ginadapter.Mount(engine.Group(""), base, authReg, routes, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMountRejectsUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	base := controller.MustNew("/widgets", "widgets")
	base.BindRoute("List", registry.RouteConfig{Method: "GET", Path: "/", AuthStrategies: []string{"basic"}, AuthMode: "any"}, func(ctx controller.Context) error {
		ctx.JSON(http.StatusOK, map[string]string{"ok": "true"})
		return nil
	})
	routes := base.Configure(registry.New(), struct{}{}, nil)

	authReg := authn.Default()
	authReg.Register(basicStrategy{ok: false, })

	ginadapter.Mount(engine.Group(""), base, authReg, routes, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
