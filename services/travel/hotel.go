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

// HotelServiceName is the broker-facing name of the hotel participant.
const HotelServiceName = "hotel"

// HotelBookingResult is BookHotel's successful reply.
type HotelBookingResult struct {
	BookingID string  `json:"booking_id"`
	Price     float64 `json:"price"`
	RoomNumber string `json:"room_number"`
}

type hotelBooking struct {
	status string
}

// HotelService books and cancels hotel rooms as a saga participant.
type HotelService struct {
	log logger.Logger

	mu       sync.Mutex
	bookings map[string]*hotelBooking

	failNext atomic.Bool
}

// NewHotelService builds the hotel participant's Kernel: BookHotel
// (forward) and CancelHotel (compensation).
func NewHotelService(br broker.Broker, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, *HotelService, error) {
	s := &HotelService{log: log, bookings: make(map[string]*hotelBooking)}
	k := kernel.New(HotelServiceName, br, log, requestTimeout)

	if err := k.Registry.RPC("BookHotel", s.bookHotel); err != nil {
		return nil, nil, err
	}
	if err := k.Registry.RPC("CancelHotel", s.cancelHotel); err != nil {
		return nil, nil, err
	}
	return k, s, nil
}

// FailNextBooking makes the next BookHotel call fail, for exercising the
// coordinator's compensation path.
func (s *HotelService) FailNextBooking() { s.failNext.Store(true) }

func (s *HotelService) bookHotel(_ any, payload []byte) (any, error) {
	var args forwardArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, err
	}

	if s.failNext.CompareAndSwap(true, false) {
		return nil, fmt.Errorf("no rooms available")
	}

	id := "HT-" + shortID(args.SagaID)
	s.mu.Lock()
	s.bookings[id] = &hotelBooking{status: "confirmed"}
	s.mu.Unlock()

	s.log.Info("hotel booked", "booking_id", id)
	return HotelBookingResult{BookingID: id, Price: 120.00, RoomNumber: "405"}, nil
}

func (s *HotelService) cancelHotel(_ any, payload []byte) (any, error) {
	var args compensateArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, err
	}
	var original HotelBookingResult
	if err := json.Unmarshal(args.OriginalResult, &original); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if b, ok := s.bookings[original.BookingID]; ok {
		b.status = "cancelled"
	}
	s.mu.Unlock()

	s.log.Info("hotel cancelled", "booking_id", original.BookingID)
	return map[string]string{"status": "cancelled"}, nil
}

// BookingStatus returns a booking's current status, for test assertions.
func (s *HotelService) BookingStatus(bookingID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return "", false
	}
	return b.status, true
}
