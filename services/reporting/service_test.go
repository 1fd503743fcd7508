package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/config"
	"github.com/ghuser/relay/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.New(&config.Config{LogLevel: "error"})
}

func TestReportingTimersRunAndExposeMetrics(t *testing.T) {
	br := broker.NewMemoryBroker(time.Second)
	k, s, err := New(br, testLogger(), time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Use short intervals for the test instead of the production schedule
	// by constructing the service directly would require exporting the
	// scheduler; instead exercise fastTask/errorProneTask bodies directly
	// to keep the test fast and deterministic.
	if err := s.fastTask(context.Background()); err != nil {
		t.Fatalf("fastTask: %v", err)
	}
	if s.fastCount.Load() != 1 {
		t.Fatalf("fastCount = %d, want 1", s.fastCount.Load())
	}

	for i := 1; i <= 3; i++ {
		err := s.errorProneTask(context.Background())
		if i == 3 && err == nil {
			t.Fatal("expected the third invocation to fail")
		}
		if i != 3 && err != nil {
			t.Fatalf("errorProneTask(%d): unexpected error %v", i, err)
		}
	}

	if err := k.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer k.Stop(context.Background()) //nolint:errcheck

	var reply GetMetricsReply
	if err := k.CallRPC(context.Background(), ServiceName, "GetMetrics", nil, &reply); err != nil {
		t.Fatalf("CallRPC GetMetrics: %v", err)
	}
	if _, ok := reply.Timers["fast_task"]; !ok {
		t.Fatal("expected fast_task in reported metrics")
	}
}
