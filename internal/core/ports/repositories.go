package ports

import (
	"context"
	"time"

	"github.com/joinix/joinix/internal/core/domain"
)

// Repository implementations classify their failures with the resilience
// error kinds (not found, conflict, validation, network, timeout) so that
// callers can retry or map them without looking at driver errors.

// ProfileRepository persists player profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Profile, error)
	Update(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Profile, error)
	Search(ctx context.Context, name string, limit int) ([]domain.Profile, error)
}

// EventRepository persists events and their participants.
type EventRepository interface {
	// Create inserts the event. Inserting an ID that already exists is a no-op.
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	UpdateStatus(ctx context.Context, id string, status domain.EventStatus) error
	ListByStatus(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.Event, error)
	// FindInBounds runs a plain coordinate range query.
	FindInBounds(ctx context.Context, bounds domain.Bounds, filter domain.EventFilter) ([]domain.Event, error)
	// SearchNearby delegates the radius search to the database.
	SearchNearby(ctx context.Context, query domain.GeoQuery, filter domain.EventFilter) ([]domain.Event, error)
	// AddParticipant is idempotent and returns the participant count afterwards.
	AddParticipant(ctx context.Context, eventID, profileID string) (int, error)
	// RemoveParticipant returns the participant count afterwards.
	RemoveParticipant(ctx context.Context, eventID, profileID string) (int, error)
	ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error)
	// ListEndedBefore returns open or full events that ended before t.
	ListEndedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Event, error)
}

// ConversationRepository persists conversations and messages.
type ConversationRepository interface {
	// UpsertConversation returns the conversation for the ordered pair,
	// creating it server-side when missing.
	UpsertConversation(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error)
	FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListForProfile(ctx context.Context, profileID string, limit int) ([]domain.Conversation, error)
	// InsertMessage is a no-op for an ID that already exists.
	InsertMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]domain.Message, error)
}
