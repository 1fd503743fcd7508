// Command worker is the background-only entrypoint: it boots the
// example services that need no HTTP/WS surface (the timer-driven
// reporting service and the travel booking saga's four participants)
// under pkg/orchestrator, with the same signal-driven graceful shutdown
// idiom cmd/gateway uses.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/config"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/orchestrator"
	"github.com/ghuser/relay/pkg/saga"
	"github.com/ghuser/relay/pkg/telemetry"
	"github.com/ghuser/relay/pkg/workflows"
	"github.com/ghuser/relay/services/reporting"
	"github.com/ghuser/relay/services/travel"
	"go.temporal.io/sdk/worker"
)

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

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
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

	sagaStore, closeSagaStore := newSagaStore(ctx, cfg, log)
	defer closeSagaStore()

	orch := orchestrator.New(log)
	policy := orchestrator.Policy{AutoRestart: cfg.AutoRestart, RestartDelay: cfg.RestartDelay, MaxRestartAttempts: cfg.MaxRestartAttempts}

	orch.AddService("reporting", func(context.Context) (*kernel.Kernel, error) {
		k, _, err := reporting.New(br, log, cfg.RequestTimeout)
		return k, err
	}, policy)
	orch.AddService("flight", func(context.Context) (*kernel.Kernel, error) {
		k, _, err := travel.NewFlightService(br, log, cfg.RequestTimeout)
		return k, err
	}, policy)
	orch.AddService("hotel", func(context.Context) (*kernel.Kernel, error) {
		k, _, err := travel.NewHotelService(br, log, cfg.RequestTimeout)
		return k, err
	}, policy)
	orch.AddService("car", func(context.Context) (*kernel.Kernel, error) {
		k, _, err := travel.NewCarService(br, log, cfg.RequestTimeout)
		return k, err
	}, policy)
	orch.AddService("travel", func(context.Context) (*kernel.Kernel, error) {
		k, _, err := travel.NewOrchestrator(br, sagaStore, log, cfg.RequestTimeout)
		return k, err
	}, policy)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-quit
		log.Info("shutting down worker...")
		cancel()
	}()

	if err := orch.RunForever(runCtx); err != nil {
		log.Error("orchestrator stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

// newSagaStore returns the InMemoryStore unless cfg.TemporalEnabled, in
// which case it dials Temporal, registers the saga recorder workflow on
// a background worker, and returns a TemporalStore backed by it. The
// returned closer stops the Temporal worker and client, if any were
// started.
func newSagaStore(ctx context.Context, cfg *config.Config, log logger.Logger) (saga.Store, func()) {
	if !cfg.TemporalEnabled {
		return saga.NewInMemoryStore(), func() {}
	}

	tc, err := workflows.NewTemporalClient(ctx, cfg.TemporalHostPort, cfg.TemporalNamespace, log)
	if err != nil {
		log.Warn("temporal unavailable, falling back to in-memory saga store", "error", err)
		return saga.NewInMemoryStore(), func() {}
	}

	w := worker.New(tc.Client, workflows.SagaRecorderTaskQueue, worker.Options{})
	workflows.RegisterSagaRecorder(w)

	go func() {
		if err := w.Run(worker.InterruptCh()); err != nil {
			log.Error("temporal worker stopped with error", "error", err)
		}
	}()

	return saga.NewTemporalStore(tc), func() { tc.Close() }
}
