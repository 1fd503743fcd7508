// Command gateway is the single HTTP/WS entrypoint: it boots the
// request/reply-facing example services (calc, users, audit) under
// pkg/orchestrator, fronts them with a health/swagger surface plus a
// WebSocket relay, and — taking over the duty cmd/api used to serve on
// its own, near-identical process — mounts the item bounded context's
// REST routes under /api, so the item HTTP surface that pkg/repository,
// pkg/cache.Cache[T], and pkg/auth.Policy were grounded on stays a
// reachable, exercised binary rather than a second, undifferentiated copy
// of this one.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/ghuser/relay/docs/swagger"
	"github.com/ghuser/relay/pkg/app"
	"github.com/ghuser/relay/pkg/auth"
	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/cache"
	"github.com/ghuser/relay/pkg/config"
	"github.com/ghuser/relay/pkg/database"
	"github.com/ghuser/relay/pkg/events"
	"github.com/ghuser/relay/pkg/httpx"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/orchestrator"
	"github.com/ghuser/relay/pkg/telemetry"
	"github.com/ghuser/relay/pkg/wsx"
	"github.com/ghuser/relay/services/audit"
	"github.com/ghuser/relay/services/calc"
	itemApi "github.com/ghuser/relay/services/item/application/api"
	"github.com/ghuser/relay/services/users"
)

// @title			relay API
// @version		1.0
// @description	Item bounded context plus health/WebSocket surface for the kernel-based example services.
// @host			localhost:8080
// @BasePath		/
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	ctx := context.Background()

	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	br, err := broker.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to broker", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer br.Close() //nolint:errcheck
	log.Info("broker connected", "url", cfg.BrokerURL)

	pool, err := database.NewPool(ctx, cfg.DefinitionDatabaseURL, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer pool.Close()
	log.Info("database pool connected")

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	eventBus, err := events.NewEventBusWithForwarder(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	if err := eventBus.StartForwarder(ctx); err != nil {
		log.Error("failed to start event forwarder", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	sessionStore := auth.NewSessionStore(
		redisClient.Client(),
		[]byte(cfg.SessionAuthKey),
		[]byte(cfg.SessionEncryptionKey),
		cfg.Environment == config.EnvProduction,
	)

	itemApp := &app.Application{
		Db:           pool,
		Logger:       log,
		EventBus:     eventBus,
		Redis:        redisClient,
		SessionStore: sessionStore,
	}

	orch := orchestrator.New(log)
	policy := orchestrator.Policy{AutoRestart: cfg.AutoRestart, RestartDelay: cfg.RestartDelay, MaxRestartAttempts: cfg.MaxRestartAttempts}

	orch.AddService("calc", func(context.Context) (*kernel.Kernel, error) {
		return calc.New(br, log, cfg.RequestTimeout)
	}, policy)
	orch.AddService("users", func(context.Context) (*kernel.Kernel, error) {
		return users.New(br, pool, redisClient, log, cfg.RequestTimeout)
	}, policy)
	orch.AddService("audit", func(context.Context) (*kernel.Kernel, error) {
		k, _, err := audit.New(br, log, cfg.RequestTimeout)
		return k, err
	}, policy)

	hub := wsx.NewHub(log)

	r := httpx.NewRouter(
		httpx.ServerConfig{
			ServiceName:        cfg.Name,
			IsDevelopment:      cfg.Environment == config.EnvDevelopment,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		},
		logger.Middleware(log),
		logger.Recovery(log),
		telemetry.SentryMiddleware(),
		otelhttp.NewMiddleware(cfg.Name),
	)
	r.Get("/health", httpx.HealthHandler(httpx.HealthChecks{Database: pool, Redis: redisClient, EventBus: eventBus, Broker: br}))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	r.Get("/ws", hub.Handler)
	r.Route("/api", func(r chi.Router) {
		itemApi.ItemRoutes(r, itemApp)
	})

	srv := httpx.NewServer(fmt.Sprintf(":%d", cfg.HTTPPort), r)
	go func() {
		log.Info("gateway HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway server error", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := orch.RunForever(runCtx); err != nil {
			log.Error("orchestrator stopped with error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gateway...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced HTTP shutdown", "error", err)
	}
	log.Info("gateway stopped")
}
