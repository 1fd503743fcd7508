// Package audit is the async-RPC + event-listener example service (spec
// §8 scenario 3): LogEvent is invoked fire-and-forget via call_async and
// never replies; OnUserCreated listens on a broadcast subject rather than
// an RPC subject, demonstrating the event-listener handler kind.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/registry"
)

const ServiceName = "audit"

// LogEventRequest is LogEvent's payload.
type LogEventRequest struct {
	Event string `json:"event"`
}

// Service records every event it has observed, for tests and diagnostics.
type Service struct {
	log logger.Logger

	mu     sync.Mutex
	events []string
}

// New builds the audit service's Kernel: LogEvent on the async subject
// "audit.async.LogEvent", and OnUserCreated on the broadcast subject for
// the users service's "UserCreated" type.
func New(br broker.Broker, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, *Service, error) {
	s := &Service{log: log}
	k := kernel.New(ServiceName, br, log, requestTimeout)

	if err := k.Registry.AsyncRPC("LogEvent", s.logEvent); err != nil {
		return nil, nil, err
	}
	if err := k.Registry.Broadcast("UserCreated", "OnUserCreated", s.onUserCreated); err != nil {
		return nil, nil, err
	}
	return k, s, nil
}

func (s *Service) logEvent(_ any, payload []byte) (any, error) {
	var req LogEventRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.events = append(s.events, req.Event)
	s.mu.Unlock()

	s.log.Info("audit: event logged", "event", req.Event)
	return nil, nil
}

func (s *Service) onUserCreated(_ any, payload []byte) (any, error) {
	s.mu.Lock()
	s.events = append(s.events, "user.created")
	s.mu.Unlock()
	s.log.Info("audit: broadcast received", "type", "UserCreated")
	return nil, nil
}

// Events returns every event recorded so far, for test assertions.
func (s *Service) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// BroadcastSubject is the subject UserCreated is published on, exported
// so other services (e.g. users) can Broadcast to it without importing
// audit's internals.
var BroadcastSubject = registry.BroadcastSubject("UserCreated")
