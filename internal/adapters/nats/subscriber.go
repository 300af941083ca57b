package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/ports"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	durable    string
	maxDeliver int
	retryDelay time.Duration
	logger     *slog.Logger
	subs       []*nats.Subscription
}

// NewSubscriber creates a subscriber on conn. durable prefixes the consumer
// names; maxDeliver bounds redeliveries of a failing message.
func NewSubscriber(conn *nats.Conn, durable string, maxDeliver int, retryDelay time.Duration, logger *slog.Logger) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		conn:       conn,
		js:         js,
		durable:    durable,
		maxDeliver: maxDeliver,
		retryDelay: retryDelay,
		logger:     logger,
	}, nil
}

func (s *Subscriber) SubscribeEventCreated(ctx context.Context, handler func(ctx context.Context, event *domain.Event) error) error {
	return s.subscribe(ctx, SubjectCreatedPrefix+"*", s.durable+"-created", func(ctx context.Context, data []byte) error {
		var event domain.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return resilience.Wrap(resilience.KindValidation, "nats.decode_created", err)
		}
		return handler(ctx, &event)
	})
}

func (s *Subscriber) SubscribeEventStatusChanged(ctx context.Context, handler func(ctx context.Context, change ports.EventStatusChange) error) error {
	return s.subscribe(ctx, SubjectStatusPrefix+"*", s.durable+"-status", func(ctx context.Context, data []byte) error {
		var change ports.EventStatusChange
		if err := json.Unmarshal(data, &change); err != nil {
			return resilience.Wrap(resilience.KindValidation, "nats.decode_status", err)
		}
		return handler(ctx, change)
	})
}

// subscribe acks handled messages, redelivers retryable failures after
// retryDelay and terminates messages that can never succeed.
func (s *Subscriber) subscribe(ctx context.Context, subject, durable string, handle func(ctx context.Context, data []byte) error) error {
	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		err := handle(ctx, msg.Data)
		switch {
		case err == nil:
			_ = msg.Ack()
		case resilience.IsRetryable(err):
			s.logger.WarnContext(ctx, "message handling failed, redelivering",
				"subject", msg.Subject, "consumer", durable, "error", err)
			_ = msg.NakWithDelay(s.retryDelay)
		default:
			s.logger.ErrorContext(ctx, "message handling failed permanently",
				"subject", msg.Subject, "consumer", durable, "error", err)
			_ = msg.Term()
		}
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(s.maxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
