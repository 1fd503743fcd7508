package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ghuser/relay/pkg/config"
	"github.com/ghuser/relay/pkg/logger"
	"github.com/ghuser/relay/pkg/svcerr"
)

// NATSBroker is the default Broker implementation, backed by core NATS
// request/reply and pub/sub. When Config.JetStreamEnabled is set, Publish
// and Subscribe are upgraded to a durable stream + consumer (the opt-in
// durability mode named in the Design Notes) without changing this type's
// contract.
type NATSBroker struct {
	conn           *nats.Conn
	js             jetstream.JetStream
	stream         jetstream.Stream
	jetstream      bool
	requestTimeout time.Duration
	log            logger.Logger
	streamName     string
}

// Connect dials the broker named by cfg.BrokerURL, reconnecting up to
// cfg.MaxReconnectAttempts times with cfg.ReconnectWait between attempts.
// When cfg.JetStreamEnabled is set, it also ensures a durable stream named
// cfg.Name that captures subjects matching "<cfg.Name>.>"; subjects outside
// that prefix (other services' subjects, "broadcast.*") are not captured by it.
func Connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*NATSBroker, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnectAttempts),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("broker: disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("broker: reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.BrokerURL, opts...)
	if err != nil {
		return nil, svcerr.NewConnectionError(fmt.Sprintf("connect to broker %s", cfg.BrokerURL), err)
	}

	b := &NATSBroker{
		conn:           conn,
		requestTimeout: cfg.RequestTimeout,
		log:            log,
		jetstream:      cfg.JetStreamEnabled,
		streamName:     cfg.Name,
	}

	if cfg.JetStreamEnabled {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, svcerr.NewConnectionError("init jetstream", err)
		}
		stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Name,
			Subjects: []string{cfg.Name + ".>"},
		})
		if err != nil {
			conn.Close()
			return nil, svcerr.NewConnectionError("ensure jetstream stream", err)
		}
		b.js = js
		b.stream = stream
	}

	return b, nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Subject() string { return s.sub.Subject }
func (s *natsSubscription) Unsubscribe() error {
	if !s.sub.IsValid() {
		return nil
	}
	return s.sub.Unsubscribe()
}

type jetstreamSubscription struct {
	subject string
	cons    jetstream.ConsumeContext
}

func (s *jetstreamSubscription) Subject() string { return s.subject }
func (s *jetstreamSubscription) Unsubscribe() error {
	s.cons.Stop()
	return nil
}

// Subscribe registers handler against subject. Each inbound message is
// dispatched on its own goroutine so the subscription's delivery loop is
// never blocked by handler duration, matching the kernel's concurrency
// model (§5).
func (b *NATSBroker) Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if b.jetstream {
		return b.subscribeJetStream(ctx, subject, handler)
	}

	sub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		go b.dispatch(context.Background(), m, handler)
	})
	if err != nil {
		return nil, svcerr.NewConnectionError(fmt.Sprintf("subscribe %s", subject), err)
	}
	return &natsSubscription{sub: sub}, nil
}

func (b *NATSBroker) subscribeJetStream(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	consumer, err := b.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       consumerName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, svcerr.NewConnectionError(fmt.Sprintf("create jetstream consumer for %s", subject), err)
	}

	consCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		nm := Message{Subject: msg.Subject(), Data: msg.Data()}
		go func() {
			if _, err := handler(context.Background(), nm); err != nil {
				b.log.Error("broker: jetstream handler error", "subject", subject, "error", err)
				_ = msg.Nak()
				return
			}
			_ = msg.Ack()
		}()
	})
	if err != nil {
		return nil, svcerr.NewConnectionError(fmt.Sprintf("consume jetstream subject %s", subject), err)
	}
	return &jetstreamSubscription{subject: subject, cons: consCtx}, nil
}

func (b *NATSBroker) dispatch(ctx context.Context, m *nats.Msg, handler Handler) {
	if m.Reply != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}

	reply, err := handler(ctx, Message{Subject: m.Subject, Reply: m.Reply, Data: m.Data})
	if m.Reply == "" {
		if err != nil {
			b.log.Error("broker: async handler error", "subject", m.Subject, "error", err)
		}
		return
	}
	if err != nil {
		b.log.Error("broker: rpc handler error", "subject", m.Subject, "error", err)
		return
	}
	if reply != nil {
		if respErr := m.Respond(reply); respErr != nil {
			b.log.Error("broker: respond failed", "subject", m.Subject, "error", respErr)
		}
	}
}

func consumerName(subject string) string {
	out := make([]byte, 0, len(subject))
	for _, r := range subject {
		switch r {
		case '.', '*', '>':
			out = append(out, '_')
		default:
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// Publish sends data to subject with no reply expected.
func (b *NATSBroker) Publish(ctx context.Context, subject string, data []byte) error {
	if b.jetstream {
		if _, err := b.js.Publish(ctx, subject, data); err != nil {
			return svcerr.NewConnectionError(fmt.Sprintf("jetstream publish to %s", subject), err)
		}
		return nil
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return svcerr.NewConnectionError(fmt.Sprintf("publish to %s", subject), err)
	}
	return nil
}

// Request sends data to subject and blocks for a reply or until ctx is done
// or the configured request timeout elapses, whichever is first.
func (b *NATSBroker) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	msg, err := b.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		if err == nats.ErrTimeout || ctx.Err() != nil {
			return nil, svcerr.New(svcerr.KindRPCTimeout, fmt.Sprintf("rpc on %s timed out", subject))
		}
		return nil, svcerr.NewConnectionError(fmt.Sprintf("request on %s", subject), err)
	}
	return msg.Data, nil
}

// Drain stops accepting new work and waits for in-flight handlers to
// finish before the connection stops delivering entirely.
func (b *NATSBroker) Drain(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- b.conn.Drain() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("broker: drain: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the underlying connection. Idempotent.
func (b *NATSBroker) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	b.conn.Close()
	return nil
}

// Ping reports whether the broker connection is currently connected,
// satisfying httpx.HealthChecker.
func (b *NATSBroker) Ping(_ context.Context) error {
	if b.conn.Status() != nats.CONNECTED {
		return fmt.Errorf("broker: connection status is %s", b.conn.Status())
	}
	return nil
}
