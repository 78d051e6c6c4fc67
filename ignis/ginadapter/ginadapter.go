// Package ginadapter mounts Ignis controllers onto a *gin.Engine: the
// concrete transport binding the spec deliberately keeps out of ignis/
// controller, ignis/authn, and ignis/query so those packages stay
// transport-agnostic.
//
// Grounded on router/router.go's route-group wiring (gzip/logger/recovery
// middleware chain, auth-gated vs public groups, gin.WrapH for non-gin
// handlers) and middleware/middleware.go's ordered middleware slices.
package ginadapter

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/ignis-framework/ignis/ignis/authn"
	"github.com/ignis-framework/ignis/ignis/controller"
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/mssola/useragent"
	"go.uber.org/zap"
)

// accessLogger backs the gzip/zap request-logging and recovery middleware
// Mount installs on every group, grounded on middleware/recovery.go's
// ginzap.RecoveryWithZap(pkgzap.NewGin(filename), true) wiring.
var accessLogger, _ = zap.NewProduction()

// ginContext adapts *gin.Context to controller.Context.
type ginContext struct{ c *gin.Context }

func (g ginContext) Param(name string) string { return g.c.Param(name) }
func (g ginContext) Query(name string) string  { return g.c.Query(name) }
func (g ginContext) Bind(v any) error           { return g.c.ShouldBind(v) }
func (g ginContext) Set(key string, value any)  { g.c.Set(key, value) }
func (g ginContext) Get(key string) (any, bool) { return g.c.Get(key) }
func (g ginContext) JSON(status int, v any)     { g.c.JSON(status, v) }

// Mount registers every route returned by a controller's Configure call
// onto group, under base's mount path. Authentication middleware (spec
// §4.4 "attaches the authentication middleware if strategies are listed")
// runs before any user-declared middleware, which is appended after it
// unchanged.
func Mount(group *gin.RouterGroup, base *controller.Base, authRegistry *authn.Registry, routes []controller.Route, userMiddleware map[string]gin.HandlerFunc) {
	mount := group.Group(base.Path())
	mount.Use(gzip.Gzip(gzip.DefaultCompression))
	mount.Use(ginzap.Ginzap(accessLogger, time.RFC3339, true))
	mount.Use(ginzap.RecoveryWithZap(accessLogger, true))
	for _, route := range routes {
		handlers := make([]gin.HandlerFunc, 0, 4+len(route.Config.Middleware))
		handlers = append(handlers, metricsMiddleware(route.Config.Path))
		handlers = append(handlers, userAgentMiddleware())
		if len(route.Config.AuthStrategies) > 0 {
			handlers = append(handlers, authMiddleware(authRegistry, route.Config.AuthStrategies, route.Config.AuthMode))
		}
		for _, name := range route.Config.Middleware {
			if h, ok := userMiddleware[name]; ok {
				handlers = append(handlers, h)
			}
		}
		handlers = append(handlers, dispatch(route))
		mount.Handle(strings.ToUpper(route.Config.Method), route.Config.Path, handlers...)
	}
}

func dispatch(route controller.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ginContext{c}
		if route.Hook != nil {
			if err := route.Hook(ctx); err != nil {
				writeError(c, err)
				return
			}
		}
		if err := route.Handler(ctx); err != nil {
			writeError(c, err)
		}
	}
}

// metricsMiddleware records request count/latency per method/path/status,
// mirroring middleware/logger.go's metrics.HTTPRequestsTotal/
// HTTPRequestDuration instrumentation.
func metricsMiddleware(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// userAgentMiddleware parses the request's User-Agent into browser/OS
// fields and stashes them under "ignis.userAgent", available to handlers
// and the Auth Core for audit logging — grounded on
// middleware/iam_session.go's useragent.New(c.Request.UserAgent()) capture.
func userAgentMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := useragent.New(c.Request.UserAgent())
		name, version := ua.Browser()
		c.Set("ignis.userAgent", map[string]string{
			"os":      ua.OS(),
			"browser": name,
			"version": version,
		})
		c.Next()
	}
}

// authMiddleware runs the Auth Core's Authenticate against the incoming
// request's headers and aborts with kind=unauthenticated on failure (spec
// §4.7).
func authMiddleware(reg *authn.Registry, strategies []string, mode string) gin.HandlerFunc {
	m := authn.ModeAny
	if mode == string(authn.ModeAll) {
		m = authn.ModeAll
	}
	return func(c *gin.Context) {
		req := authn.Request{Header: c.GetHeader}
		ctx, err := authn.Authenticate(c.Request.Context(), reg, strategies, m, req)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)
		if u, ok := authn.UserFromContext(ctx); ok {
			c.Set("ignis.user", u)
		}
		c.Next()
	}
}

// writeError maps any error to the HTTP envelope described in spec §6/§7.
func writeError(c *gin.Context, err error) {
	env := igniserr.ToEnvelope(err)
	c.JSON(env.StatusCode, env)
}
