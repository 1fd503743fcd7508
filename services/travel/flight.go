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

// FlightServiceName is the broker-facing name of the flight participant.
const FlightServiceName = "flight"

// FlightBookingResult is BookFlight's successful reply.
type FlightBookingResult struct {
	BookingID    string  `json:"booking_id"`
	Price        float64 `json:"price"`
	FlightNumber string  `json:"flight_number"`
}

type flightBooking struct {
	status string
}

// FlightService books and cancels flights as a saga participant.
type FlightService struct {
	log logger.Logger

	mu       sync.Mutex
	bookings map[string]*flightBooking

	failNext atomic.Bool
}

// NewFlightService builds the flight participant's Kernel: BookFlight
// (forward) and CancelFlight (compensation).
func NewFlightService(br broker.Broker, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, *FlightService, error) {
	s := &FlightService{log: log, bookings: make(map[string]*flightBooking)}
	k := kernel.New(FlightServiceName, br, log, requestTimeout)

	if err := k.Registry.RPC("BookFlight", s.bookFlight); err != nil {
		return nil, nil, err
	}
	if err := k.Registry.RPC("CancelFlight", s.cancelFlight); err != nil {
		return nil, nil, err
	}
	return k, s, nil
}

// FailNextBooking makes the next BookFlight call fail, for exercising the
// coordinator's compensation path.
func (s *FlightService) FailNextBooking() { s.failNext.Store(true) }

func (s *FlightService) bookFlight(_ any, payload []byte) (any, error) {
	var args forwardArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, err
	}

	if s.failNext.CompareAndSwap(true, false) {
		return nil, fmt.Errorf("no flights available for selected dates")
	}

	id := "FL-" + shortID(args.SagaID)
	s.mu.Lock()
	s.bookings[id] = &flightBooking{status: "confirmed"}
	s.mu.Unlock()

	s.log.Info("flight booked", "booking_id", id)
	return FlightBookingResult{BookingID: id, Price: 350.00, FlightNumber: "AA123"}, nil
}

func (s *FlightService) cancelFlight(_ any, payload []byte) (any, error) {
	var args compensateArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, err
	}
	var original FlightBookingResult
	if err := json.Unmarshal(args.OriginalResult, &original); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if b, ok := s.bookings[original.BookingID]; ok {
		b.status = "cancelled"
	}
	s.mu.Unlock()

	s.log.Info("flight cancelled", "booking_id", original.BookingID)
	return map[string]string{"status": "cancelled"}, nil
}

// BookingStatus returns a booking's current status, for test assertions.
func (s *FlightService) BookingStatus(bookingID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return "", false
	}
	return b.status, true
}
