package travel

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
)

// CarServiceName is the broker-facing name of the car rental participant.
const CarServiceName = "car"

// CarBookingResult is BookCar's successful reply.
type CarBookingResult struct {
	BookingID string  `json:"booking_id"`
	Price     float64 `json:"price"`
	CarModel  string  `json:"car_model"`
}

type carBooking struct {
	status string
}

// CarService books and cancels rental cars as a saga participant.
type CarService struct {
	log logger.Logger

	mu       sync.Mutex
	bookings map[string]*carBooking

	failNext atomic.Bool
}

// NewCarService builds the car rental participant's Kernel: BookCar
// (forward) and CancelCar (compensation).
func NewCarService(br broker.Broker, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, *CarService, error) {
	s := &CarService{log: log, bookings: make(map[string]*carBooking)}
	k := kernel.New(CarServiceName, br, log, requestTimeout)

	if err := k.Registry.RPC("BookCar", s.bookCar); err != nil {
		return nil, nil, err
	}
	if err := k.Registry.RPC("CancelCar", s.cancelCar); err != nil {
		return nil, nil, err
	}
	return k, s, nil
}

// FailNextBooking makes the next BookCar call fail, for exercising the
// coordinator's compensation path.
func (s *CarService) FailNextBooking() { s.failNext.Store(true) }

func (s *CarService) bookCar(_ any, payload []byte) (any, error) {
	var args forwardArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, err
	}

	if s.failNext.CompareAndSwap(true, false) {
		return nil, fmt.Errorf("no cars available")
	}

	id := "CR-" + shortID(args.SagaID)
	s.mu.Lock()
	s.bookings[id] = &carBooking{status: "confirmed"}
	s.mu.Unlock()

	s.log.Info("car booked", "booking_id", id)
	return CarBookingResult{BookingID: id, Price: 45.00, CarModel: "Toyota Corolla"}, nil
}

func (s *CarService) cancelCar(_ any, payload []byte) (any, error) {
	var args compensateArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, err
	}
	var original CarBookingResult
	if err := json.Unmarshal(args.OriginalResult, &original); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if b, ok := s.bookings[original.BookingID]; ok {
		b.status = "cancelled"
	}
	s.mu.Unlock()

	s.log.Info("car cancelled", "booking_id", original.BookingID)
	return map[string]string{"status": "cancelled"}, nil
}

// BookingStatus returns a booking's current status, for test assertions.
func (s *CarService) BookingStatus(bookingID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return "", false
	}
	return b.status, true
}
