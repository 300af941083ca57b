package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/ports"
)

// Publisher implements ports.EventPublisher using NATS JetStream. Every
// message carries a deterministic Nats-Msg-Id so that a retried publish is
// dropped by the stream's duplicate window.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher enables JetStream on conn.
func NewPublisher(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishEventCreated(ctx context.Context, event *domain.Event) error {
	return p.publish(ctx, "nats.publish_created", SubjectCreatedPrefix+event.ID, "created:"+event.ID, event)
}

func (p *Publisher) PublishEventStatusChanged(ctx context.Context, change ports.EventStatusChange) error {
	return p.publish(ctx, "nats.publish_status", SubjectStatusPrefix+change.EventID, statusMsgID(change), change)
}

func (p *Publisher) PublishParticipantJoined(ctx context.Context, part *domain.Participant) error {
	return p.publish(ctx, "nats.publish_joined", SubjectJoinedPrefix+part.EventID, joinedMsgID(part), part)
}

// Message ids are stable across retries of one publish and differ between
// repeated transitions (full, open, full again; join, leave, rejoin).
func statusMsgID(c ports.EventStatusChange) string {
	return fmt.Sprintf("status:%s:%s:%d", c.EventID, c.Status, c.ChangedAt.UnixNano())
}

func joinedMsgID(p *domain.Participant) string {
	return fmt.Sprintf("joined:%s:%s:%d", p.EventID, p.ProfileID, p.JoinedAt.UnixNano())
}

func (p *Publisher) publish(ctx context.Context, op, subject, msgID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(msgID))
	return classify(op, err)
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return classify("nats.ping", nats.ErrConnectionReconnecting)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
