// Package orchestrator implements the Orchestrator/Runner of spec §4.6: it
// owns a collection of (service, config) pairs, starts them, restarts a
// service that fails to start according to its auto-restart policy, and on
// a shutdown signal cancels and drains every service in parallel. Modeled
// on cmd/worker's signal-driven shutdown idiom, generalized from one
// hard-coded worker process to an arbitrary set of kernel.Kernel services.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
)

// Factory builds a fresh Kernel for one service. Called once when the
// service is first started and again on every restart attempt, so it must
// not assume any state survives a crash.
type Factory func(ctx context.Context) (*kernel.Kernel, error)

// Policy controls a service's restart behavior after a start failure.
type Policy struct {
	AutoRestart        bool
	RestartDelay       time.Duration
	MaxRestartAttempts int
}

type entry struct {
	name    string
	factory Factory
	policy  Policy

	mu         sync.Mutex
	kernel     *kernel.Kernel
	degraded   bool
	attempts   int
	restarting bool
}

// Orchestrator runs a set of services, applying each one's restart policy
// independently and draining all of them in parallel on shutdown.
type Orchestrator struct {
	log logger.Logger

	mu       sync.Mutex
	services []*entry
	runCtx   context.Context
	wg       sync.WaitGroup
	stopping atomic.Bool
}

// New returns an empty Orchestrator.
func New(log logger.Logger) *Orchestrator {
	return &Orchestrator{log: log}
}

// AddService registers a service under name, built by factory, with the
// given restart policy.
func (o *Orchestrator) AddService(name string, factory Factory, policy Policy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.services = append(o.services, &entry{name: name, factory: factory, policy: policy})
}

// ReportStatus implements kernel.StatusReporter. A kernel reporting back
// to StateCreated after having been running indicates its broker
// connection dropped out from under it; the orchestrator treats that the
// same as a failed start and applies the service's restart policy,
// rebuilding and restarting the service on the run that's still in
// progress rather than only on its initial Start() call.
func (o *Orchestrator) ReportStatus(service string, state kernel.State, err error) {
	if state != kernel.StateCreated || err == nil || o.stopping.Load() {
		return
	}

	o.mu.Lock()
	var e *entry
	for _, candidate := range o.services {
		if candidate.name == service {
			e = candidate
			break
		}
	}
	runCtx := o.runCtx
	o.mu.Unlock()
	if e == nil || runCtx == nil {
		return
	}

	e.mu.Lock()
	if e.restarting || e.degraded {
		e.mu.Unlock()
		return
	}
	e.restarting = true
	e.mu.Unlock()

	o.log.Error("orchestrator: service reported failure, restarting", "service", service, "error", err)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			e.mu.Lock()
			e.restarting = false
			e.mu.Unlock()
		}()
		if o.retry(runCtx, e) {
			o.runService(runCtx, e)
		}
	}()
}

// RunForever starts every registered service and blocks until ctx is
// cancelled, at which point every running service is stopped in parallel.
// A service whose Start fails is retried per its Policy; once a service's
// retries are exhausted, it is marked degraded and the orchestrator moves
// on to the remaining services rather than aborting the whole run.
func (o *Orchestrator) RunForever(ctx context.Context) error {
	o.mu.Lock()
	entries := append([]*entry(nil), o.services...)
	o.runCtx = ctx
	o.mu.Unlock()

	for _, e := range entries {
		o.wg.Add(1)
		go func(e *entry) {
			defer o.wg.Done()
			o.runService(ctx, e)
		}(e)
	}

	<-ctx.Done()
	o.stopping.Store(true)
	o.log.Info("orchestrator: shutdown signal received, draining services")

	var drainWg sync.WaitGroup
	for _, e := range entries {
		drainWg.Add(1)
		go func(e *entry) {
			defer drainWg.Done()
			e.mu.Lock()
			k := e.kernel
			e.mu.Unlock()
			if k == nil {
				return
			}
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := k.Stop(stopCtx); err != nil {
				o.log.Error("orchestrator: service stop failed", "service", e.name, "error", err)
			}
		}(e)
	}
	drainWg.Wait()

	o.wg.Wait()
	return nil
}

func (o *Orchestrator) runService(ctx context.Context, e *entry) {
	for {
		if ctx.Err() != nil {
			return
		}

		k, err := e.factory(ctx)
		if err != nil {
			o.log.Error("orchestrator: service factory failed", "service", e.name, "error", err)
			if !o.retry(ctx, e) {
				return
			}
			continue
		}
		k.SetStatusReporter(o)

		e.mu.Lock()
		e.kernel = k
		e.mu.Unlock()

		if err := k.Start(ctx); err != nil {
			o.log.Error("orchestrator: service start failed", "service", e.name, "error", err)
			if !o.retry(ctx, e) {
				return
			}
			continue
		}

		o.log.Info("orchestrator: service started", "service", e.name)
		return
	}
}

// retry waits for the service's policy-controlled delay and reports
// whether another start attempt should be made.
func (o *Orchestrator) retry(ctx context.Context, e *entry) bool {
	e.mu.Lock()
	e.attempts++
	attempts := e.attempts
	e.mu.Unlock()

	if !e.policy.AutoRestart || attempts > e.policy.MaxRestartAttempts {
		e.mu.Lock()
		e.degraded = true
		e.mu.Unlock()
		o.log.Error("orchestrator: service exhausted restart attempts, marking degraded",
			"service", e.name, "attempts", attempts)
		return false
	}

	select {
	case <-time.After(e.policy.RestartDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

// Degraded reports whether name has exhausted its restart attempts.
func (o *Orchestrator) Degraded(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.services {
		if e.name == name {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.degraded
		}
	}
	return false
}
