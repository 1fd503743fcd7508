// Package registry implements the Handler Registry: it classifies and
// stores a service's handler descriptors, deriving each one's subject per
// the rules in the data model and refusing duplicate subjects.
//
// The source framework discovers handlers reflectively via method
// annotations. A systems language has no equivalent runtime attribute
// inspection, so this package follows the Design Notes' (a) option: an
// explicit builder API where each handler is registered against its
// subject up front, preserving the one-subject-per-handler, unique-per-
// service contract without reflection.
package registry

import (
	"fmt"
	"strings"

	"github.com/ghuser/relay/pkg/svcerr"
)

// Kind classifies a handler the way the data model's Handler Descriptor
// does.
type Kind string

const (
	KindRPC          Kind = "rpc"
	KindAsyncRPC     Kind = "async_rpc"
	KindValidatedRPC Kind = "validated_rpc"
	KindEventListener Kind = "event_listener"
	KindBroadcast    Kind = "broadcast"
	KindTimer        Kind = "timer"
)

// Expected reports whether handlers of this kind are expected to reply.
func (k Kind) Expected() bool {
	switch k {
	case KindRPC, KindValidatedRPC:
		return true
	default:
		return false
	}
}

// RawHandler is the underlying function every descriptor wraps. It
// receives the decoded payload and returns a result (possibly nil for
// fire-and-forget kinds) or an error.
type RawHandler func(ctx any, payload []byte) (any, error)

// Descriptor is the Handler Descriptor of the data model: kind, method
// name, derived subject, and whether a reply is expected.
type Descriptor struct {
	Kind      Kind
	Service   string
	Method    string
	Subject   string
	Validator func(payload []byte) error // non-nil only for KindValidatedRPC
	Handler   RawHandler
}

// Registry holds a service's handler descriptors, keyed by subject so
// duplicate subscriptions can be refused at registration time rather than
// discovered at subscribe time.
type Registry struct {
	service     string
	bySubject   map[string]*Descriptor
	descriptors []*Descriptor
}

// New returns an empty Registry for the named service.
func New(service string) *Registry {
	return &Registry{service: service, bySubject: make(map[string]*Descriptor)}
}

// RPCSubject derives the subject for an RPC or validated-RPC method:
// "<service>.rpc.<method>".
func RPCSubject(service, method string) string {
	return fmt.Sprintf("%s.rpc.%s", service, method)
}

// AsyncSubject derives the subject for an async-RPC method:
// "<service>.async.<method>".
func AsyncSubject(service, method string) string {
	return fmt.Sprintf("%s.async.%s", service, method)
}

// BroadcastSubject derives the subject for a typed broadcast:
// "broadcast.<lowercased-type-name>".
func BroadcastSubject(typeName string) string {
	return "broadcast." + strings.ToLower(typeName)
}

func (r *Registry) register(d *Descriptor) error {
	if existing, ok := r.bySubject[d.Subject]; ok {
		return svcerr.NewConfigurationError(fmt.Sprintf(
			"service %q: subject %q already registered by method %q, cannot register %q",
			r.service, d.Subject, existing.Method, d.Method))
	}
	r.bySubject[d.Subject] = d
	r.descriptors = append(r.descriptors, d)
	return nil
}

// RPC registers method as a request/reply handler on
// "<service>.rpc.<method>".
func (r *Registry) RPC(method string, handler RawHandler) error {
	return r.register(&Descriptor{
		Kind: KindRPC, Service: r.service, Method: method,
		Subject: RPCSubject(r.service, method), Handler: handler,
	})
}

// ValidatedRPC registers method as a request/reply handler whose payload
// must satisfy validator before handler runs.
func (r *Registry) ValidatedRPC(method string, validator func([]byte) error, handler RawHandler) error {
	return r.register(&Descriptor{
		Kind: KindValidatedRPC, Service: r.service, Method: method,
		Subject: RPCSubject(r.service, method), Validator: validator, Handler: handler,
	})
}

// AsyncRPC registers method as a fire-and-forget handler on
// "<service>.async.<method>".
func (r *Registry) AsyncRPC(method string, handler RawHandler) error {
	return r.register(&Descriptor{
		Kind: KindAsyncRPC, Service: r.service, Method: method,
		Subject: AsyncSubject(r.service, method), Handler: handler,
	})
}

// EventListener registers method against an explicit subject pattern
// (which may use "*"/">" wildcards). Multiple listener patterns may
// decorate the same method; call EventListener once per pattern, each
// producing its own subscription.
func (r *Registry) EventListener(subject, method string, handler RawHandler) error {
	return r.register(&Descriptor{
		Kind: KindEventListener, Service: r.service, Method: method,
		Subject: subject, Handler: handler,
	})
}

// Broadcast registers method as the listener for a typed broadcast keyed
// by typeName.
func (r *Registry) Broadcast(typeName, method string, handler RawHandler) error {
	return r.register(&Descriptor{
		Kind: KindBroadcast, Service: r.service, Method: method,
		Subject: BroadcastSubject(typeName), Handler: handler,
	})
}

// Descriptors returns every registered descriptor, in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Lookup returns the descriptor registered for subject, if any.
func (r *Registry) Lookup(subject string) (*Descriptor, bool) {
	d, ok := r.bySubject[subject]
	return d, ok
}
