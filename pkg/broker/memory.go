package broker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ghuser/relay/pkg/svcerr"
)

// MemoryBroker is an in-process Broker used by package tests that need
// real subject-pattern matching and request/reply semantics without a
// live NATS server. It implements the same wildcard grammar NATS uses
// ("*" matches one token, ">" matches the tail) so tests exercise the
// same routing behavior production code relies on.
type MemoryBroker struct {
	mu             sync.RWMutex
	subs           []*memorySubscription
	requestTimeout time.Duration
	closed         bool
}

// NewMemoryBroker returns a MemoryBroker with the given default request
// timeout.
func NewMemoryBroker(requestTimeout time.Duration) *MemoryBroker {
	return &MemoryBroker{requestTimeout: requestTimeout}
}

type memorySubscription struct {
	broker  *MemoryBroker
	subject string
	handler Handler
	valid   bool
}

func (s *memorySubscription) Subject() string { return s.subject }

func (s *memorySubscription) Unsubscribe() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.valid = false
	for i, sub := range s.broker.subs {
		if sub == s {
			s.broker.subs = append(s.broker.subs[:i], s.broker.subs[i+1:]...)
			break
		}
	}
	return nil
}

// Subscribe registers handler against subject, which may use "*"/">"
// wildcards.
func (b *MemoryBroker) Subscribe(_ context.Context, subject string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, svcerr.NewConnectionError("subscribe on closed broker", nil)
	}
	sub := &memorySubscription{broker: b, subject: subject, handler: handler, valid: true}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Publish delivers data to every subscription whose pattern matches
// subject, each on its own goroutine, with no reply expected.
func (b *MemoryBroker) Publish(ctx context.Context, subject string, data []byte) error {
	matches := b.matching(subject)
	for _, sub := range matches {
		h := sub.handler
		go func() { _, _ = h(ctx, Message{Subject: subject, Data: data}) }()
	}
	return nil
}

// Request delivers data to the first matching subscription and waits for
// its reply, or returns RPCTimeoutError if none replies before the
// broker's request timeout or ctx is done.
func (b *MemoryBroker) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	matches := b.matching(subject)
	if len(matches) == 0 {
		return nil, svcerr.NewConnectionError("no subscriber for "+subject, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		data, err := matches[0].handler(ctx, Message{Subject: subject, Reply: "inbox", Data: data})
		resCh <- result{data: data, err: err}
	}()

	select {
	case res := <-resCh:
		return res.data, res.err
	case <-ctx.Done():
		return nil, svcerr.New(svcerr.KindRPCTimeout, "rpc on "+subject+" timed out")
	}
}

func (b *MemoryBroker) matching(subject string) []*memorySubscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*memorySubscription
	for _, sub := range b.subs {
		if sub.valid && subjectMatches(sub.subject, subject) {
			out = append(out, sub)
		}
	}
	return out
}

// subjectMatches reports whether subject matches pattern under the NATS
// wildcard grammar: "*" matches exactly one dot-separated token, ">"
// matches the remainder of the subject and must be the final token.
func subjectMatches(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, pt := range pTokens {
		if pt == ">" {
			return i < len(sTokens)
		}
		if i >= len(sTokens) {
			return false
		}
		if pt != "*" && pt != sTokens[i] {
			return false
		}
	}
	return len(pTokens) == len(sTokens)
}

// Drain waits for nothing further (in-process dispatch has no queue to
// drain) and marks the broker closed to new subscriptions. Publish and
// Request keep delivering to subscriptions that already exist.
func (b *MemoryBroker) Drain(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Close marks the broker closed. Idempotent.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
