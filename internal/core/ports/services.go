package ports

import (
	"context"
	"errors"
	"time"

	"github.com/joinix/joinix/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// EventStatusChange is published when an event changes status. ChangedAt
// tells apart repeated transitions to the same status.
type EventStatusChange struct {
	EventID   string             `json:"event_id"`
	Status    domain.EventStatus `json:"status"`
	ChangedAt time.Time          `json:"changed_at"`
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishEventCreated(ctx context.Context, event *domain.Event) error
	PublishEventStatusChanged(ctx context.Context, change EventStatusChange) error
	PublishParticipantJoined(ctx context.Context, p *domain.Participant) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeEventCreated(ctx context.Context, handler func(ctx context.Context, event *domain.Event) error) error
	SubscribeEventStatusChanged(ctx context.Context, handler func(ctx context.Context, change EventStatusChange) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// BlobStore stores binary objects and returns their public URL. The body is
// a byte slice so that a retried Put can send it again.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}
