package main

import (
	"context"
	"net/http"

	"github.com/ignis-framework/ignis/ignis/controller"
	"github.com/ignis-framework/ignis/ignis/query"
	"github.com/ignis-framework/ignis/ignis/registry"
	"github.com/ignis-framework/ignis/ignis/repository"
)

// Widget is the example domain model ignisd exposes over its HTTP routes,
// implementing repository.Model.
type Widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (w *Widget) GetID() string   { return w.ID }
func (w *Widget) SetID(id string) { w.ID = id }

func widgetSchema() *query.Schema {
	return &query.Schema{
		Name: "Widget",
		Columns: map[string]query.Column{
			"id":   {Name: "id", DataType: query.TypeUUID},
			"name": {Name: "name", DataType: query.TypeString},
		},
	}
}

// widgetsController demonstrates the Controller & Route Model bound through
// ignis/container and mounted through ginadapter.
type widgetsController struct {
	*controller.Base
	repo *repository.Repository[*Widget]
}

func newWidgetsController(repo *repository.Repository[*Widget]) *widgetsController {
	wc := &widgetsController{Base: controller.MustNew("/widgets", "widgets"), repo: repo}
	wc.bindRoutes()
	return wc
}

func (wc *widgetsController) dispatch() map[string]controller.Handler {
	return map[string]controller.Handler{
		"List": wc.list,
		"Get":  wc.get,
	}
}

func (wc *widgetsController) bindRoutes() {
	wc.BindRoute("List", registry.RouteConfig{Method: "GET", Path: "/"}, wc.list)
	wc.BindRoute("Get", registry.RouteConfig{Method: "GET", Path: "/:id"}, wc.get)
}

func (wc *widgetsController) list(ctx controller.Context) error {
	result, err := wc.repo.Find(context.Background(), nil)
	if err != nil {
		return err
	}
	ctx.JSON(http.StatusOK, map[string]any{"data": result.Data})
	return nil
}

func (wc *widgetsController) get(ctx controller.Context) error {
	ctx.JSON(http.StatusOK, map[string]any{"id": ctx.Param("id")})
	return nil
}
