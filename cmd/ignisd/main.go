// Command ignisd is a runnable example application wiring every Ignis
// package together: container, boot, config, registry, query, repository,
// datasource, authn/authz, realtime, hflog, metrics and ginadapter. It
// exists to prove the framework's pieces fit, not as a product of its own —
// grounded on cmd/gg/root.go's cobra-root-plus-subcommand shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ignis-framework/ignis/ignis/authn"
	"github.com/ignis-framework/ignis/ignis/authn/jwt"
	"github.com/ignis-framework/ignis/ignis/authz"
	"github.com/ignis-framework/ignis/ignis/boot"
	"github.com/ignis-framework/ignis/ignis/config"
	"github.com/ignis-framework/ignis/ignis/container"
	"github.com/ignis-framework/ignis/ignis/datasource"
	"github.com/ignis-framework/ignis/ignis/ginadapter"
	"github.com/ignis-framework/ignis/ignis/hflog"
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/ignislog"
	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/ignis-framework/ignis/ignis/realtime"
	"github.com/ignis-framework/ignis/ignis/registry"
	"github.com/ignis-framework/ignis/ignis/repository"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

var rootCmd = &cobra.Command{
	Use:     "ignisd",
	Short:   "ignis framework example server",
	Long:    "ignis framework example server",
	Version: "1.0.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	log := ignislog.New("ignisd")
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Infow(fmt.Sprintf(format, args...))
	}))

	if err := config.Init(); err != nil {
		return igniserr.Wrap(igniserr.KindConfigInvalid, err, "config.Init failed")
	}
	if err := metrics.Init(); err != nil {
		return igniserr.Wrap(igniserr.KindConfigInvalid, err, "metrics.Init failed")
	}

	cfg := config.App

	c := container.New()
	app := boot.New(c)

	var (
		hub    *realtime.Hub
		ring   = hflog.NewRing()
		hfLog  = hflog.New(ring)
		engine = gin.New()
	)

	app.OnPreConfigure(func(a *boot.Application) error {
		db, err := datasource.Open(datasource.Config{Path: cfg.Database.DSN})
		if err != nil {
			return err
		}

		widgetDS := datasource.New(db, widgetSchema(), "widgets")
		widgetRepo := repository.New[*Widget](widgetDS, nil)

		authorizer, err := authz.New(db, "")
		if err != nil {
			return err
		}

		authn.Default().Register(jwt.New(jwt.Options{
			Secret:                    cfg.Auth.JWTSecret,
			Issuer:                    cfg.Auth.JWTIssuer,
			AccessTokenExpireDuration: cfg.Auth.AccessTokenExpireDuration,
		}))

		pubsub, err := newPubSub(cfg.Realtime.PubSubBackend)
		if err != nil {
			return err
		}
		rcfg := realtime.DefaultConfig()
		rcfg.AuthTimeout = cfg.Realtime.AuthTimeout
		rcfg.HeartbeatInterval = cfg.Realtime.HeartbeatInterval
		rcfg.HeartbeatTimeout = cfg.Realtime.HeartbeatTimeout
		rcfg.EncryptedBatchLimit = cfg.Realtime.EncryptedBatchLimit
		rcfg.ServerID = cfg.Realtime.ServerID
		hub = realtime.NewHub(rcfg, pubsub, log)
		hub.AuthenticateFn = func(data any) (*realtime.AuthResult, error) {
			return &realtime.AuthResult{UserID: "anonymous"}, nil
		}

		c.Bind("ignis.authz").ToValue(authorizer).InSingletonScope().Tag("datasources")
		c.Bind("widgets.repository").ToValue(widgetRepo).InSingletonScope().Tag("datasources")
		c.Bind("widgets.controller").ToProvider(func(sc container.Resolver) (any, error) {
			repoAny, err := sc.Get("widgets.repository", false)
			if err != nil {
				return nil, err
			}
			return newWidgetsController(repoAny.(*repository.Repository[*Widget])), nil
		}).InSingletonScope().Tag("controllers")

		return nil
	})

	reg := registry.Default()
	authReg := authn.Default()

	app.OnComponentConstructed(func(tag string, instance any) {
		if tag != "controllers" {
			return
		}
		wc, ok := instance.(*widgetsController)
		if !ok {
			return
		}
		routes := wc.Base.Configure(reg, wc, wc.dispatch())
		ginadapter.Mount(engine.Group(""), wc.Base, authReg, routes, nil)
	})

	flusher := hflog.NewFlusher(ring, os.Stdout)
	app.RegisterCleanup(func() { flusher.Stop() })
	app.RegisterCleanup(func() { hub.Stop() })

	app.OnPostConfigure(func(a *boot.Application) error {
		flusher.Start(time.Duration(cfg.HFLog.FlushIntervalMillis) * time.Millisecond)
		hfLog.Scope("ignisd").Info("server starting")

		rtCtx, cancel := context.WithCancel(context.Background())
		app.RegisterCleanup(cancel)
		if err := hub.Start(rtCtx); err != nil {
			return err
		}
		engine.GET("/ws", ginadapter.RealtimeHandler(hub, func(c *realtime.Client, env realtime.Envelope) {
			hfLog.Scope("realtime").Info("application event " + env.Event + " from " + c.ID)
		}))
		return nil
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: engine}
	app.RegisterServe(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	app.RegisterCleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	if err := app.Configure(); err != nil {
		return err
	}
	if err := app.Boot(); err != nil {
		return err
	}
	return app.Serve()
}

func newPubSub(backend string) (realtime.PubSub, error) {
	switch backend {
	case "nats":
		conn, err := nats.Connect(config.App.Nats.URL)
		if err != nil {
			return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to connect to nats")
		}
		return realtime.NewNatsPubSub(conn), nil
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     config.App.Redis.Addr,
			Password: config.App.Redis.Password,
			DB:       config.App.Redis.DB,
		})
		return realtime.NewRedisPubSub(client), nil
	}
}
