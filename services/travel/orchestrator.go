package travel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/saga"
)

// OrchestratorServiceName is the broker-facing name of the travel
// booking orchestrator.
const OrchestratorServiceName = "travel"

// SagaType is the travel_booking saga's registered type name.
const SagaType = "travel_booking"

// BookTravelReply echoes the started saga's identifiers so a caller can
// poll GetSagaStatus for the outcome.
type BookTravelReply struct {
	SagaID        string `json:"saga_id"`
	CorrelationID string `json:"correlation_id"`
}

// GetSagaStatusRequest is GetSagaStatus's payload.
type GetSagaStatusRequest struct {
	SagaID string `json:"saga_id"`
}

// Orchestrator exposes the travel_booking saga as RPC: BookTravel starts
// it, GetSagaStatus polls it.
type Orchestrator struct {
	coordinator *saga.Coordinator
}

// NewOrchestrator builds the orchestrator's Kernel, which doubles as the
// saga.RPCCaller the coordinator uses to reach the flight/hotel/car
// participants over br.
func NewOrchestrator(br broker.Broker, store saga.Store, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, *Orchestrator, error) {
	k := kernel.New(OrchestratorServiceName, br, log, requestTimeout)
	coordinator := saga.New(k, store, log)

	err := coordinator.DefineSaga(SagaType, []saga.Step{
		{Name: "book_flight", Target: FlightServiceName, Forward: "BookFlight", Compensation: "CancelFlight", Timeout: 10 * time.Second, RetryCount: 2},
		{Name: "book_hotel", Target: HotelServiceName, Forward: "BookHotel", Compensation: "CancelHotel", Timeout: 10 * time.Second, RetryCount: 2},
		{Name: "book_car", Target: CarServiceName, Forward: "BookCar", Compensation: "CancelCar", Timeout: 10 * time.Second, RetryCount: 1},
	})
	if err != nil {
		return nil, nil, err
	}

	o := &Orchestrator{coordinator: coordinator}
	if err := k.Registry.RPC("BookTravel", o.bookTravel); err != nil {
		return nil, nil, err
	}
	if err := k.Registry.RPC("GetSagaStatus", o.getSagaStatus); err != nil {
		return nil, nil, err
	}
	return k, o, nil
}

func (o *Orchestrator) bookTravel(ctx any, payload []byte) (any, error) {
	var data TravelData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}

	sagaID, correlationID, err := o.coordinator.StartSaga(ctx.(context.Context), SagaType, data)
	if err != nil {
		return nil, err
	}
	return BookTravelReply{SagaID: sagaID, CorrelationID: correlationID}, nil
}

func (o *Orchestrator) getSagaStatus(ctx any, payload []byte) (any, error) {
	var req GetSagaStatusRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return o.coordinator.GetSagaStatus(ctx.(context.Context), req.SagaID)
}
