// Package kernel implements the Service Kernel: it binds a registry of
// handler descriptors to a broker connection and drives the inbound
// dispatch algorithm (decode envelope, install correlation, validate,
// invoke, reply) plus the outbound call surface (call_rpc, call_async,
// publish_event, broadcast).
package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/correlation"
	"github.com/ghuser/relay/pkg/envelope"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/registry"
	"github.com/ghuser/relay/pkg/svcerr"
)

// State is a service's lifecycle state.
type State string

const (
	StateCreated  State = "created"
	StateStarted  State = "started"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// StatusReporter is the weak interface a Kernel uses to notify a
// supervising orchestrator of lifecycle events, avoiding a strong cycle
// between service and orchestrator (Design Notes: "avoid strong cycles by
// making the service reference the orchestrator only through an
// interface it can call, and never store" more than this handle).
type StatusReporter interface {
	ReportStatus(service string, state State, err error)
}

// Hook is a user startup/shutdown callback.
type Hook func(ctx context.Context) error

// Kernel binds one service's handler registry to a broker connection.
type Kernel struct {
	Name     string
	Registry *registry.Registry
	OnStart  Hook
	OnStop   Hook

	broker  broker.Broker
	log     logger.Logger
	timeout time.Duration

	mu     sync.Mutex
	state  State
	subs   []broker.Subscription
	status StatusReporter
}

// New returns a Kernel for the named service, bound to br, with the given
// default RPC timeout used by outbound call_rpc.
func New(name string, br broker.Broker, log logger.Logger, requestTimeout time.Duration) *Kernel {
	return &Kernel{
		Name:     name,
		Registry: registry.New(name),
		broker:   br,
		log:      log,
		timeout:  requestTimeout,
		state:    StateCreated,
	}
}

// SetStatusReporter attaches a weak orchestrator back-reference. Never
// call this from within a Kernel method the orchestrator itself invoked,
// to avoid re-entrant locking.
func (k *Kernel) SetStatusReporter(r StatusReporter) {
	k.mu.Lock()
	k.status = r
	k.mu.Unlock()
}

func (k *Kernel) report(state State, err error) {
	k.state = state
	if k.status != nil {
		k.status.ReportStatus(k.Name, state, err)
	}
}

// Start subscribes every registered handler to its derived subject,
// then runs OnStart. Startup is atomic: if any subscription fails, every
// subscription made so far is rolled back before the error is returned
// (§8 "Startup atomicity"). Idempotent: calling on an already-started
// service logs a warning and returns nil.
func (k *Kernel) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state == StateStarted || k.state == StateRunning {
		k.log.Warn("kernel: start called on already-started service", "service", k.Name)
		return nil
	}

	var subs []broker.Subscription
	for _, d := range k.Registry.Descriptors() {
		descriptor := d
		sub, err := k.broker.Subscribe(ctx, descriptor.Subject, k.dispatcher(descriptor))
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			k.report(StateCreated, err)
			return fmt.Errorf("kernel: start %s: subscribe %s: %w", k.Name, descriptor.Subject, err)
		}
		subs = append(subs, sub)
	}
	k.subs = subs
	k.state = StateStarted

	if k.OnStart != nil {
		if err := k.OnStart(ctx); err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			k.subs = nil
			k.report(StateCreated, err)
			return fmt.Errorf("kernel: start %s: startup hook: %w", k.Name, err)
		}
	}

	k.report(StateRunning, nil)
	return nil
}

// Stop cancels subscriptions, drains the broker, and runs OnStop.
// Idempotent: calling twice does not double-drain or double-close.
func (k *Kernel) Stop(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state == StateStopped || k.state == StateCreated {
		return nil
	}

	k.state = StateDraining
	for _, s := range k.subs {
		_ = s.Unsubscribe()
	}
	k.subs = nil

	if err := k.broker.Drain(ctx); err != nil {
		k.log.Error("kernel: drain failed", "service", k.Name, "error", err)
	}

	if k.OnStop != nil {
		if err := k.OnStop(ctx); err != nil {
			k.log.Error("kernel: shutdown hook failed", "service", k.Name, "error", err)
		}
	}

	k.report(StateStopped, nil)
	return nil
}

// dispatcher wraps descriptor into a broker.Handler implementing the
// inbound dispatch algorithm.
func (k *Kernel) dispatcher(d *registry.Descriptor) broker.Handler {
	expectsReply := d.Kind.Expected()
	return func(ctx context.Context, msg broker.Message) ([]byte, error) {
		env, err := envelope.Unmarshal(msg.Data)
		if err != nil {
			if !expectsReply {
				k.log.ErrorContext(ctx, "kernel: dropping undecodable message", "subject", d.Subject, "error", err)
				return nil, nil
			}
			return envelope.EncodeError("", svcerr.NewValidationError("malformed envelope", nil))
		}

		ctx, correlationID := correlation.Ensure(correlation.With(ctx, env.CorrelationID))
		log := k.log.With("service", k.Name, "method", d.Method, "correlation_id", correlationID)

		if d.Validator != nil {
			if verr := d.Validator(env.Payload); verr != nil {
				valErr := svcerr.NewValidationError(verr.Error(), nil)
				log.WarnContext(ctx, "kernel: validation failed", "error", verr)
				if !expectsReply {
					return nil, nil
				}
				return envelope.EncodeError(correlationID, valErr)
			}
		}

		result, herr := d.Handler(ctx, env.Payload)
		if herr != nil {
			log.ErrorContext(ctx, "kernel: handler error", "error", herr)
			if !expectsReply {
				return nil, nil
			}
			wrapped := herr
			if _, ok := svcerr.KindOf(herr); !ok {
				wrapped = svcerr.NewHandlerError(d.Method, herr)
			}
			return envelope.EncodeError(correlationID, wrapped)
		}

		if !expectsReply {
			return nil, nil
		}
		return envelope.EncodeReply(correlationID, result)
	}
}

// CallRPC issues a request/reply call to service.method, propagating the
// current correlation ID from ctx and waiting up to the kernel's
// configured request timeout.
func (k *Kernel) CallRPC(ctx context.Context, service, method string, args any, result any) error {
	ctx, correlationID := correlation.Ensure(ctx)
	env, err := envelope.Encode(correlationID, args, "")
	if err != nil {
		return svcerr.NewRPCError(method, err)
	}
	payload, err := envelope.Marshal(env)
	if err != nil {
		return svcerr.NewRPCError(method, err)
	}

	subject := registry.RPCSubject(service, method)
	reply, err := k.broker.Request(ctx, subject, payload)
	if err != nil {
		return err
	}

	var errReply envelope.ErrorReply
	if looksLikeError(reply, &errReply) {
		return svcerr.New(errReply.Error, errReply.Message).WithCorrelationID(errReply.CorrelationID).WithDetails(errReply.Details)
	}

	var okReply envelope.Reply
	if err := unmarshalReply(reply, &okReply); err != nil {
		return svcerr.NewRPCError(method, err)
	}
	if result != nil {
		if err := unmarshalInto(okReply.Result, result); err != nil {
			return svcerr.NewRPCError(method, err)
		}
	}
	return nil
}

// CallAsync publishes args to service.method's async subject and returns
// immediately on successful publish, never awaiting a reply.
func (k *Kernel) CallAsync(ctx context.Context, service, method string, args any) error {
	ctx, correlationID := correlation.Ensure(ctx)
	env, err := envelope.Encode(correlationID, args, "")
	if err != nil {
		return svcerr.Wrap(svcerr.KindHandler, "encode async call", err)
	}
	payload, err := envelope.Marshal(env)
	if err != nil {
		return svcerr.Wrap(svcerr.KindHandler, "marshal async call", err)
	}
	return k.broker.Publish(ctx, registry.AsyncSubject(service, method), payload)
}

// PublishEvent publishes payload to an arbitrary subject without
// expecting a reply.
func (k *Kernel) PublishEvent(ctx context.Context, subject string, payload any) error {
	ctx, correlationID := correlation.Ensure(ctx)
	env, err := envelope.Encode(correlationID, payload, "")
	if err != nil {
		return svcerr.Wrap(svcerr.KindHandler, "encode event", err)
	}
	data, err := envelope.Marshal(env)
	if err != nil {
		return svcerr.Wrap(svcerr.KindHandler, "marshal event", err)
	}
	return k.broker.Publish(ctx, subject, data)
}

// Broadcast publishes payload to the subject derived from typeName.
func (k *Kernel) Broadcast(ctx context.Context, typeName string, payload any) error {
	return k.PublishEvent(ctx, registry.BroadcastSubject(typeName), payload)
}

// State returns the kernel's current lifecycle state.
func (k *Kernel) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}
