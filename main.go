package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/todd-reagan/nile-collector/internal/config"
	"github.com/todd-reagan/nile-collector/internal/db"
	"github.com/todd-reagan/nile-collector/internal/http/handlers"
	appmw "github.com/todd-reagan/nile-collector/internal/http/middleware"
	"github.com/todd-reagan/nile-collector/internal/identity"
	"github.com/todd-reagan/nile-collector/internal/logger"
	"github.com/todd-reagan/nile-collector/internal/schema"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	gdb, err := db.Connect(cfg)
	if err != nil {
		zlog.Fatal("failed to connect database", zap.Error(err))
	}

	db.StartRetentionWorker(gdb, cfg.RetentionDays, zlog)
	db.StartRollupWorker(gdb, zlog)

	if err := db.EnsureBootstrapTenant(gdb, cfg); err != nil {
		zlog.Fatal("failed to ensure bootstrap tenant", zap.Error(err))
	}

	tenants := db.NewTenantStore(gdb)
	events := db.NewEventStore(gdb)

	defaultPolicy := schema.Default()
	policyFn := handlers.PolicySource(func() *schema.Policy { return defaultPolicy })
	if cfg.SchemaFile != "" {
		loader, err := schema.NewLoader(cfg.SchemaFile)
		if err != nil {
			zlog.Fatal("failed to load schema policy",
				zap.String("path", cfg.SchemaFile),
				zap.Error(err))
		}
		stop, err := loader.Watch(zlog)
		if err != nil {
			zlog.Warn("schema policy watch unavailable", zap.Error(err))
		} else {
			defer stop()
		}
		policyFn = loader.Policy
		zlog.Info("schema policy loaded", zap.String("path", cfg.SchemaFile))
	}

	verifier := identity.NewHMACVerifier(cfg.SessionSecret)

	handlers.InitPrometheusMetrics()

	r := router.New()

	handler := appmw.RequestLogger(zlog)(r.Handler)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	tokenAuth := appmw.TokenAuth(tenants, cfg, zlog)
	userAuth := appmw.IdentityAuth(verifier, tenants, cfg, zlog)

	r.POST("/services/collector/event", tokenAuth(handlers.IngestHandler(tenants, events, policyFn, cfg, zlog)))
	r.GET("/services/collector/health", handlers.CollectorHealth())
	r.GET("/services/collector/metrics", tokenAuth(handlers.TenantMetricsHandler()))

	r.GET("/events", userAuth(handlers.ListEvents(events, cfg, zlog)))
	r.GET("/events/{event_id}", userAuth(handlers.EventDetail(events, cfg, zlog)))
	r.GET("/stats", userAuth(handlers.Stats(events, cfg, zlog)))

	r.GET("/config", userAuth(handlers.GetConfig()))
	r.PUT("/config", userAuth(handlers.UpdateConfig(tenants, cfg, zlog)))
	r.POST("/config/token/regenerate", userAuth(handlers.RegenerateToken(tenants, cfg, zlog)))

	zlog.Info("nile collector listening", zap.String("addr", cfg.ListenAddr))
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}
