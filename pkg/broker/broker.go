// Package broker is a thin abstraction over a NATS-style message bus:
// connect, subscribe (pattern), publish, request/reply with timeout,
// drain, close. Subject grammar is dot-separated tokens; "*" matches one
// token and ">" matches the tail, exactly as NATS defines it — this
// package does not invent its own wildcard semantics.
package broker

import "context"

// Message is an inbound message delivered to a Subscription's handler.
type Message struct {
	Subject string
	Reply   string
	Data    []byte
}

// Handler processes an inbound Message. If Reply is non-empty and the
// handler returns a non-nil response, the broker publishes it back.
type Handler func(ctx context.Context, msg Message) ([]byte, error)

// Subscription is a live subscription that can be individually torn down.
type Subscription interface {
	// Subject is the pattern this subscription was registered under.
	Subject() string
	// Unsubscribe cancels delivery. Idempotent.
	Unsubscribe() error
}

// Broker is the contract the kernel, timer scheduler, and saga coordinator
// depend on. It deliberately does not define the wire format beyond raw
// bytes — encoding is the envelope package's concern.
type Broker interface {
	// Subscribe registers handler against subject (which may use "*"/">"
	// wildcards). Returns ConfigurationError-wrapped errors on duplicate
	// registration at the caller's discretion; the broker itself only
	// reports transport-level subscribe failures.
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// Publish sends data to subject with no reply expected. Used for async
	// calls, events, and broadcasts.
	Publish(ctx context.Context, subject string, data []byte) error

	// Request sends data to subject and blocks for a reply or until timeout
	// elapses. The broker does not retry; the caller decides whether to.
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)

	// Drain stops accepting new work and waits for in-flight handlers and
	// requests to finish, then stops delivering entirely.
	Drain(ctx context.Context) error

	// Close releases the underlying connection. Safe to call after Drain.
	// Idempotent.
	Close() error
}
