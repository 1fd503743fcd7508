package travel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/config"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/saga"
)

func testLogger() logger.Logger {
	return logger.New(&config.Config{LogLevel: "error"})
}

type harness struct {
	flight  *FlightService
	hotel   *HotelService
	car     *CarService
	orch    *Orchestrator
	kernels []*kernel.Kernel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	br := broker.NewMemoryBroker(2 * time.Second)

	fk, flight, err := NewFlightService(br, testLogger(), time.Second)
	if err != nil {
		t.Fatalf("NewFlightService: %v", err)
	}
	hk, hotel, err := NewHotelService(br, testLogger(), time.Second)
	if err != nil {
		t.Fatalf("NewHotelService: %v", err)
	}
	ck, car, err := NewCarService(br, testLogger(), time.Second)
	if err != nil {
		t.Fatalf("NewCarService: %v", err)
	}
	ok, orch, err := NewOrchestrator(br, saga.NewInMemoryStore(), testLogger(), time.Second)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	h := &harness{flight: flight, hotel: hotel, car: car, orch: orch, kernels: []*kernel.Kernel{fk, hk, ck, ok}}

	ctx := context.Background()
	for _, k := range h.kernels {
		if err := k.Start(ctx); err != nil {
			t.Fatalf("Start %s: %v", k.Name, err)
		}
	}
	t.Cleanup(func() {
		for _, k := range h.kernels {
			_ = k.Stop(context.Background())
		}
	})

	return h
}

func (h *harness) waitForTerminal(t *testing.T, sagaID string) *saga.Context {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		sc, err := h.orch.coordinator.GetSagaStatus(context.Background(), sagaID)
		if err != nil {
			t.Fatalf("GetSagaStatus: %v", err)
		}
		switch sc.State {
		case saga.StateCompleted, saga.StateCompensated, saga.StateCompensationFailed:
			return sc
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("saga did not reach a terminal state in time")
	return nil
}

func bookingResult[T any](t *testing.T, sc *saga.Context, stepName string) T {
	t.Helper()
	for _, rec := range sc.Steps {
		if rec.Step.Name == stepName {
			var out T
			if err := json.Unmarshal(rec.Result, &out); err != nil {
				t.Fatalf("unmarshal %s result: %v", stepName, err)
			}
			return out
		}
	}
	t.Fatalf("no step named %s", stepName)
	var zero T
	return zero
}

func TestTravelBookingSucceeds(t *testing.T) {
	h := newHarness(t)

	sagaID, correlationID, err := h.orch.coordinator.StartSaga(context.Background(), SagaType, TravelData{
		PassengerName: "John Doe",
		FromCity:      "New York",
		ToCity:        "San Francisco",
		TravelDate:    "2026-08-15",
		ReturnDate:    "2026-08-20",
		CarType:       "SUV",
	})
	if err != nil {
		t.Fatalf("StartSaga: %v", err)
	}
	if correlationID == "" {
		t.Fatal("expected a non-empty correlation id")
	}

	sc := h.waitForTerminal(t, sagaID)
	if sc.State != saga.StateCompleted {
		t.Fatalf("state = %v, want Completed", sc.State)
	}

	flightResult := bookingResult[FlightBookingResult](t, sc, "book_flight")
	if status, ok := h.flight.BookingStatus(flightResult.BookingID); !ok || status != "confirmed" {
		t.Errorf("flight booking status = %q, ok=%v, want confirmed", status, ok)
	}
}

func TestTravelBookingCompensatesOnHotelFailure(t *testing.T) {
	h := newHarness(t)
	// Stop the hotel participant so every BookHotel attempt, retries
	// included, fails; a single FailNextBooking is absorbed by
	// book_hotel's RetryCount of 2.
	if err := h.kernels[1].Stop(context.Background()); err != nil {
		t.Fatalf("Stop hotel: %v", err)
	}

	sagaID, _, err := h.orch.coordinator.StartSaga(context.Background(), SagaType, TravelData{
		PassengerName: "Jane Smith",
		FromCity:      "Los Angeles",
		ToCity:        "Chicago",
		TravelDate:    "2026-09-10",
	})
	if err != nil {
		t.Fatalf("StartSaga: %v", err)
	}

	sc := h.waitForTerminal(t, sagaID)
	if sc.State != saga.StateCompensated {
		t.Fatalf("state = %v, want Compensated", sc.State)
	}

	flightResult := bookingResult[FlightBookingResult](t, sc, "book_flight")
	if status, ok := h.flight.BookingStatus(flightResult.BookingID); !ok || status != "cancelled" {
		t.Errorf("flight booking status = %q, ok=%v, want cancelled after compensation", status, ok)
	}

	for _, rec := range sc.Steps {
		if rec.Step.Name == "book_car" && rec.State != saga.StepPending {
			t.Errorf("book_car state = %v, want Pending (never attempted)", rec.State)
		}
	}
}

func TestGetSagaStatusUnknownID(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.coordinator.GetSagaStatus(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown saga id")
	}
}
