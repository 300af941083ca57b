package natsadapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joinix/joinix/internal/pkg/resilience"
)

// Subjects and stream used for domain events.
const (
	StreamName           = "JOINIX_EVENTS"
	SubjectAll           = "joinix.events.>"
	SubjectCreatedPrefix = "joinix.events.created."
	SubjectStatusPrefix  = "joinix.events.status."
	SubjectJoinedPrefix  = "joinix.events.joined."
)

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// StreamManager is the part of nats.JetStreamContext EnsureStream needs.
type StreamManager interface {
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStream creates the events stream or updates it in place. Publishers
// and subscribers both call it so either process can start first.
func EnsureStream(js StreamManager, maxAge time.Duration) error {
	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectAll},
		Retention:  nats.LimitsPolicy,
		MaxAge:     maxAge,
		Storage:    nats.FileStorage,
		Duplicates: 10 * time.Minute,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// classify marks broker failures for the retry executor.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrTimeout):
		return resilience.Wrap(resilience.KindTimeout, op, err)
	case errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrNoServers):
		return resilience.Wrap(resilience.KindNetwork, op, err)
	case errors.Is(err, nats.ErrBadSubject), errors.Is(err, nats.ErrMaxPayload):
		return resilience.Wrap(resilience.KindValidation, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
