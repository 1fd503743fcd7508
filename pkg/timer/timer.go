// Package timer implements the Timer Scheduler: per-method periodic tasks
// with drift compensation, eager/lazy startup, single-flight execution,
// and per-timer metrics, modeled directly on cliffracer's
// timer_with_metrics.py example.
package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghuser/relay/pkg/correlation"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/svcerr"
)

// Func is the body a Timer fires. It receives a context carrying a fresh
// correlation ID for the firing.
type Func func(ctx context.Context) error

// Stats holds a timer's running metrics, matching the data model's
// Timer fields plus the metrics the timer example tracks.
type Stats struct {
	ExecutionCount int64
	ErrorCount     int64
	MissedTicks    int64
	MeanLatency    time.Duration
	LastError      error
}

// Timer drives a single periodic task. A timer never has more than one
// in-flight invocation: if a previous firing has not finished when the
// next is due, the new firing is skipped and counted as a missed tick,
// never queued.
type Timer struct {
	Name     string
	Interval time.Duration
	Eager    bool
	MaxDrift time.Duration
	Fn       Func

	log logger.Logger

	mu           sync.Mutex
	running      atomic.Bool
	wg           sync.WaitGroup
	stop         chan struct{}
	done         chan struct{}
	execCount    int64
	errCount     int64
	missedTicks  int64
	totalLatency time.Duration
	lastErr      error
}

// New returns a Timer. interval must be > 0 and maxDrift must be >= 0.
func New(name string, interval time.Duration, eager bool, maxDrift time.Duration, fn Func, log logger.Logger) *Timer {
	return &Timer{
		Name: name, Interval: interval, Eager: eager, MaxDrift: maxDrift,
		Fn: fn, log: log,
	}
}

// Start begins the timer's firing loop. If eager, the first fire happens
// immediately; otherwise at start time + interval.
func (t *Timer) Start(ctx context.Context) {
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.loop(ctx)
}

func (t *Timer) loop(ctx context.Context) {
	defer close(t.done)

	nextFire := time.Now()
	if !t.Eager {
		nextFire = nextFire.Add(t.Interval)
	}

	for {
		wait := time.Until(nextFire)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-t.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		scheduledAt := nextFire
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.fire(ctx)
		}()

		drift := time.Since(scheduledAt)
		if drift > t.MaxDrift {
			// The scheduler loop itself fell behind (not the timer body,
			// which now runs off to the side): reset rather than accumulate.
			nextFire = time.Now().Add(t.Interval)
		} else {
			nextFire = scheduledAt.Add(t.Interval)
		}
	}
}

func (t *Timer) fire(ctx context.Context) {
	if !t.running.CompareAndSwap(false, true) {
		atomic.AddInt64(&t.missedTicks, 1)
		t.log.WarnContext(ctx, "timer: skipped overlapping firing", "timer", t.Name)
		return
	}
	defer t.running.Store(false)

	fireCtx, _ := correlation.Ensure(ctx)
	start := time.Now()
	err := t.Fn(fireCtx)
	latency := time.Since(start)

	t.mu.Lock()
	t.execCount++
	t.totalLatency += latency
	if err != nil {
		t.errCount++
		t.lastErr = err
	}
	t.mu.Unlock()

	if err != nil {
		wrapped := svcerr.NewTimerExecutionError(t.Name, err)
		t.log.ErrorContext(fireCtx, "timer: execution failed", "timer", t.Name, "error", wrapped)
	}
}

// Stop cancels pending fires and waits up to grace for any in-flight
// invocation to finish, then returns regardless.
func (t *Timer) Stop(grace time.Duration) {
	if t.stop == nil {
		return
	}
	select {
	case <-t.stop:
		return // already stopped
	default:
		close(t.stop)
	}

	<-t.done

	waited := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(grace):
		t.log.Warn("timer: grace period elapsed waiting for in-flight firing", "timer", t.Name)
	}
}

// Stats returns a snapshot of the timer's metrics.
func (t *Timer) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	var mean time.Duration
	if t.execCount > 0 {
		mean = t.totalLatency / time.Duration(t.execCount)
	}
	return Stats{
		ExecutionCount: t.execCount,
		ErrorCount:     t.errCount,
		MissedTicks:    atomic.LoadInt64(&t.missedTicks),
		MeanLatency:    mean,
		LastError:      t.lastErr,
	}
}

// Scheduler owns a set of named timers for one service.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*Timer
	log    logger.Logger
}

// NewScheduler returns an empty Scheduler.
func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{timers: make(map[string]*Timer), log: log}
}

// Add registers a new timer. Returns ConfigurationError if interval <= 0
// or maxDrift < 0, or if name is already registered.
func (s *Scheduler) Add(name string, interval time.Duration, eager bool, maxDrift time.Duration, fn Func) (*Timer, error) {
	if interval <= 0 {
		return nil, svcerr.NewConfigurationError("timer interval must be > 0")
	}
	if maxDrift < 0 {
		return nil, svcerr.NewConfigurationError("timer max_drift must be >= 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[name]; ok {
		return nil, svcerr.NewConfigurationError("timer " + name + " already registered")
	}
	tm := New(name, interval, eager, maxDrift, fn, s.log)
	s.timers[name] = tm
	return tm, nil
}

// StartAll starts every registered timer.
func (s *Scheduler) StartAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tm := range s.timers {
		tm.Start(ctx)
	}
}

// StopAll stops every registered timer, giving each up to grace to finish
// an in-flight firing.
func (s *Scheduler) StopAll(grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wg sync.WaitGroup
	for _, tm := range s.timers {
		wg.Add(1)
		go func(tm *Timer) {
			defer wg.Done()
			tm.Stop(grace)
		}(tm)
	}
	wg.Wait()
}

// Stats returns every timer's current stats keyed by name.
func (s *Scheduler) Stats() map[string]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Stats, len(s.timers))
	for name, tm := range s.timers {
		out[name] = tm.Stats()
	}
	return out
}
