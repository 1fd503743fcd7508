// Package reporting is the timer example service (spec §8 scenario 4):
// several periodic tasks registered on a Scheduler, their metrics
// exposed via RPC, modeled on cliffracer's
// examples/timer/timer_with_metrics.py.
package reporting

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/timer"
)

// ServiceName is the broker-facing name of the reporting service.
const ServiceName = "reporting"

// GetMetricsReply is GetMetrics's reply: every registered timer's stats
// keyed by name.
type GetMetricsReply struct {
	Timers map[string]timer.Stats `json:"timers"`
}

// Service runs a handful of periodic tasks at different intervals and
// exposes their metrics as RPC.
type Service struct {
	log       logger.Logger
	scheduler *timer.Scheduler

	fastCount  atomic.Int64
	errorCount atomic.Int64
}

// New builds the reporting service's Kernel and registers its timers.
// The timers are started by OnStart when the Kernel starts, and stopped
// by OnStop when it stops.
func New(br broker.Broker, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, *Service, error) {
	s := &Service{log: log, scheduler: timer.NewScheduler(log)}

	if _, err := s.scheduler.Add("fast_task", 2*time.Second, false, 500*time.Millisecond, s.fastTask); err != nil {
		return nil, nil, err
	}
	if _, err := s.scheduler.Add("slow_task", 3*time.Second, false, 500*time.Millisecond, s.slowTask); err != nil {
		return nil, nil, err
	}
	if _, err := s.scheduler.Add("error_prone_task", 4*time.Second, true, 500*time.Millisecond, s.errorProneTask); err != nil {
		return nil, nil, err
	}

	k := kernel.New(ServiceName, br, log, requestTimeout)
	if err := k.Registry.RPC("GetMetrics", s.getMetrics); err != nil {
		return nil, nil, err
	}

	k.OnStart = func(ctx context.Context) error {
		s.scheduler.StartAll(ctx)
		return nil
	}
	k.OnStop = func(_ context.Context) error {
		s.scheduler.StopAll(5 * time.Second)
		return nil
	}

	return k, s, nil
}

func (s *Service) fastTask(ctx context.Context) error {
	n := s.fastCount.Add(1)
	s.log.InfoContext(ctx, "reporting: fast task completed", "count", n)
	return nil
}

func (s *Service) slowTask(ctx context.Context) error {
	time.Sleep(500 * time.Millisecond)
	s.log.InfoContext(ctx, "reporting: slow task completed")
	return nil
}

// errorProneTask fails every third invocation, matching the reference
// example's injected-error pattern.
func (s *Service) errorProneTask(ctx context.Context) error {
	n := s.errorCount.Add(1)
	if n%3 == 0 {
		return fmt.Errorf("simulated error #%d", n)
	}
	s.log.InfoContext(ctx, "reporting: error-prone task succeeded", "attempt", n)
	return nil
}

func (s *Service) getMetrics(_ any, _ []byte) (any, error) {
	return GetMetricsReply{Timers: s.scheduler.Stats()}, nil
}
