package saga

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghuser/relay/pkg/config"
	"github.com/ghuser/relay/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.New(&config.Config{LogLevel: "error"})
}

// fakeCaller records every RPC call and lets a test script each one's
// outcome by (target, method).
type fakeCaller struct {
	mu      sync.Mutex
	calls   []string
	outcome map[string]error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{outcome: make(map[string]error)}
}

func (f *fakeCaller) fail(target, method string, err error) {
	f.outcome[target+"."+method] = err
}

func (f *fakeCaller) CallRPC(_ context.Context, target, method string, args any, result any) error {
	f.mu.Lock()
	f.calls = append(f.calls, target+"."+method)
	err := f.outcome[target+"."+method]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if result != nil {
		raw, _ := json.Marshal(map[string]any{"ok": true})
		return json.Unmarshal(raw, result)
	}
	return nil
}

func (f *fakeCaller) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func travelSteps() []Step {
	return []Step{
		{Name: "book_flight", Target: "flight", Forward: "Book", Compensation: "Cancel", Timeout: time.Second},
		{Name: "book_hotel", Target: "hotel", Forward: "Book", Compensation: "Cancel", Timeout: time.Second},
		{Name: "book_car", Target: "car", Forward: "Book", Compensation: "Cancel", Timeout: time.Second},
	}
}

func waitForTerminal(t *testing.T, c *Coordinator, sagaID string) *Context {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sc, err := c.GetSagaStatus(context.Background(), sagaID)
		if err != nil {
			t.Fatalf("GetSagaStatus: %v", err)
		}
		switch sc.State {
		case StateCompleted, StateFailed, StateCompensated, StateCompensationFailed:
			return sc
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("saga did not reach a terminal state in time")
	return nil
}

func TestTravelSagaSuccess(t *testing.T) {
	caller := newFakeCaller()
	c := New(caller, nil, testLogger())
	if err := c.DefineSaga("travel", travelSteps()); err != nil {
		t.Fatalf("DefineSaga: %v", err)
	}

	sagaID, correlationID, err := c.StartSaga(context.Background(), "travel", map[string]string{"trip": "paris"})
	if err != nil {
		t.Fatalf("StartSaga: %v", err)
	}
	if correlationID == "" {
		t.Fatal("expected a correlation ID to be assigned")
	}

	sc := waitForTerminal(t, c, sagaID)
	if sc.State != StateCompleted {
		t.Fatalf("State = %v, want Completed", sc.State)
	}
	for _, step := range sc.Steps {
		if step.State != StepCompleted {
			t.Errorf("step %s State = %v, want Completed", step.Step.Name, step.State)
		}
	}

	want := []string{"flight.Book", "hotel.Book", "car.Book"}
	got := caller.callList()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i, call := range want {
		if got[i] != call {
			t.Errorf("call[%d] = %s, want %s", i, got[i], call)
		}
	}
}

func TestTravelSagaCompensation(t *testing.T) {
	caller := newFakeCaller()
	caller.fail("car", "Book", errors.New("no cars available"))

	c := New(caller, nil, testLogger())
	steps := travelSteps()
	for i := range steps {
		steps[i].RetryCount = 0 // fail fast, no backoff delay inflating the test
	}
	if err := c.DefineSaga("travel", steps); err != nil {
		t.Fatalf("DefineSaga: %v", err)
	}

	sagaID, _, err := c.StartSaga(context.Background(), "travel", map[string]string{"trip": "paris"})
	if err != nil {
		t.Fatalf("StartSaga: %v", err)
	}

	sc := waitForTerminal(t, c, sagaID)
	if sc.State != StateCompensated {
		t.Fatalf("State = %v, want Compensated", sc.State)
	}

	if sc.Steps[0].State != StepCompensated {
		t.Errorf("book_flight State = %v, want Compensated", sc.Steps[0].State)
	}
	if sc.Steps[1].State != StepCompensated {
		t.Errorf("book_hotel State = %v, want Compensated", sc.Steps[1].State)
	}
	if sc.Steps[2].State != StepFailed {
		t.Errorf("book_car State = %v, want Failed", sc.Steps[2].State)
	}

	calls := caller.callList()
	// car.Book is called, then compensation runs hotel before flight (strict
	// reverse order), and car's own compensation is never invoked.
	wantSeq := []string{"flight.Book", "hotel.Book", "car.Book", "hotel.Cancel", "flight.Cancel"}
	if len(calls) != len(wantSeq) {
		t.Fatalf("calls = %v, want %v", calls, wantSeq)
	}
	for i, call := range wantSeq {
		if calls[i] != call {
			t.Errorf("call[%d] = %s, want %s", i, calls[i], call)
		}
	}
}

func TestTravelSagaCompensationFailureIsTerminal(t *testing.T) {
	caller := newFakeCaller()
	caller.fail("car", "Book", errors.New("no cars available"))
	caller.fail("hotel", "Cancel", errors.New("cancellation service down"))

	c := New(caller, nil, testLogger())
	steps := travelSteps()
	for i := range steps {
		steps[i].RetryCount = 0
	}
	if err := c.DefineSaga("travel", steps); err != nil {
		t.Fatalf("DefineSaga: %v", err)
	}

	sagaID, _, err := c.StartSaga(context.Background(), "travel", map[string]string{"trip": "paris"})
	if err != nil {
		t.Fatalf("StartSaga: %v", err)
	}

	sc := waitForTerminal(t, c, sagaID)
	if sc.State != StateCompensationFailed {
		t.Fatalf("State = %v, want Compensation-Failed", sc.State)
	}
	if sc.Steps[0].State == StepCompensated {
		t.Error("book_flight should not have been compensated once hotel compensation failed")
	}
}

func TestDefineSagaRejectsEmptySteps(t *testing.T) {
	c := New(newFakeCaller(), nil, testLogger())
	if err := c.DefineSaga("empty", nil); err == nil {
		t.Fatal("expected error for saga with no steps")
	}
}

func TestStartSagaRejectsUnknownType(t *testing.T) {
	c := New(newFakeCaller(), nil, testLogger())
	if _, _, err := c.StartSaga(context.Background(), "unknown", nil); err == nil {
		t.Fatal("expected error for undefined saga type")
	}
}

func TestGetSagaStatusRejectsUnknownID(t *testing.T) {
	c := New(newFakeCaller(), nil, testLogger())
	if _, err := c.GetSagaStatus(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown saga ID")
	}
}

func TestInMemoryStoreListActive(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	active := &Context{SagaID: "a", State: StateRunning}
	done := &Context{SagaID: "b", State: StateCompleted}
	if err := store.Save(ctx, active); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, done); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ids, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("ListActive = %v, want [a]", ids)
	}
}
