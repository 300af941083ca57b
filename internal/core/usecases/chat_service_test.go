package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/usecases"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

func TestChatService_GetOrCreateConversation_OrdersPair(t *testing.T) {
	repo := &mockConversationRepo{
		upsertFn: func(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
			if a != "alice" || b != "bob" {
				t.Errorf("expected ordered pair alice/bob, got %s/%s", a, b)
			}
			return &domain.Conversation{ID: "c1", ParticipantA: a, ParticipantB: b}, nil
		},
	}
	svc := usecases.NewChatService(repo, newExec(t))

	conv, err := svc.GetOrCreateConversation(context.Background(), "bob", "alice", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID != "c1" {
		t.Errorf("expected c1, got %s", conv.ID)
	}
}

func TestChatService_GetOrCreateConversation_RejectsSelf(t *testing.T) {
	svc := usecases.NewChatService(&mockConversationRepo{}, newExec(t))
	if _, err := svc.GetOrCreateConversation(context.Background(), "alice", "alice", nil); !errors.Is(err, usecases.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestChatService_GetOrCreateConversation_Fallback(t *testing.T) {
	var created *domain.Conversation
	fellBack := false
	repo := &mockConversationRepo{
		upsertFn: func(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
			return nil, errors.New("function upsert_conversation does not exist")
		},
		createFn: func(ctx context.Context, c *domain.Conversation) error {
			created = c
			return nil
		},
	}
	svc := usecases.NewChatService(repo, newExec(t),
		usecases.WithClock(fixedClock(now)),
		usecases.WithFallbackHook(func(string, error) { fellBack = true }))

	eventID := "e1"
	conv, err := svc.GetOrCreateConversation(context.Background(), "bob", "alice", &eventID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fellBack {
		t.Error("expected fallback hook to fire")
	}
	if created == nil || created.ID == "" || conv.ID != created.ID {
		t.Fatalf("expected conversation to be created, got %+v", created)
	}
	if created.ParticipantA != "alice" || created.ParticipantB != "bob" {
		t.Errorf("expected canonical order, got %s/%s", created.ParticipantA, created.ParticipantB)
	}
}

func TestChatService_GetOrCreateConversation_CreateRace(t *testing.T) {
	finds := 0
	repo := &mockConversationRepo{
		upsertFn: func(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
			return nil, errors.New("rpc unavailable")
		},
		findFn: func(ctx context.Context, a, b string) (*domain.Conversation, error) {
			finds++
			if finds == 1 {
				return nil, notFound("conversations.find")
			}
			return &domain.Conversation{ID: "theirs", ParticipantA: a, ParticipantB: b}, nil
		},
		createFn: func(ctx context.Context, c *domain.Conversation) error {
			return resilience.Wrap(resilience.KindConflict, "conversations.create", errors.New("duplicate key"))
		},
	}
	svc := usecases.NewChatService(repo, newExec(t))

	conv, err := svc.GetOrCreateConversation(context.Background(), "alice", "bob", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID != "theirs" {
		t.Errorf("expected the concurrently created conversation, got %s", conv.ID)
	}
}

func TestChatService_SendMessage(t *testing.T) {
	var stored *domain.Message
	repo := &mockConversationRepo{
		insertFn: func(ctx context.Context, msg *domain.Message) error {
			stored = msg
			return nil
		},
	}
	svc := usecases.NewChatService(repo, newExec(t), usecases.WithClock(fixedClock(now)))

	msg, err := svc.SendMessage(context.Background(), "c1", "alice", "  see you at 6  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || stored.Body != "see you at 6" {
		t.Fatalf("expected trimmed body to be stored, got %+v", stored)
	}
	if msg.ID == "" || !msg.SentAt.Equal(now) {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestChatService_SendMessage_Rejects(t *testing.T) {
	repo := &mockConversationRepo{
		insertFn: func(ctx context.Context, msg *domain.Message) error {
			t.Error("message must not be stored")
			return nil
		},
	}
	svc := usecases.NewChatService(repo, newExec(t))

	if _, err := svc.SendMessage(context.Background(), "c1", "alice", "   "); !errors.Is(err, usecases.ErrInvalidInput) {
		t.Errorf("empty: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), "c1", "alice", strings.Repeat("x", 2001)); !errors.Is(err, usecases.ErrInvalidInput) {
		t.Errorf("long: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), "c1", "mallory", "hi"); !errors.Is(err, usecases.ErrForbidden) {
		t.Errorf("outsider: expected ErrForbidden, got %v", err)
	}
}

func TestChatService_ListMessages(t *testing.T) {
	before := now.Add(-time.Hour)
	repo := &mockConversationRepo{
		listMessagesFn: func(ctx context.Context, id string, b *time.Time, limit int) ([]domain.Message, error) {
			if b == nil || !b.Equal(before) {
				t.Errorf("expected cursor %v, got %v", before, b)
			}
			if limit != 50 {
				t.Errorf("expected default limit 50, got %d", limit)
			}
			return []domain.Message{{ID: "m1"}}, nil
		},
	}
	svc := usecases.NewChatService(repo, newExec(t))

	msgs, err := svc.ListMessages(context.Background(), "c1", "bob", &before, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected 1 message, got %d", len(msgs))
	}
}
