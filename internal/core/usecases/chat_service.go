package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/ports"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

const maxMessageRunes = 2000

// ChatService handles 1:1 conversations between players.
type ChatService struct {
	conversations ports.ConversationRepository
	exec          *resilience.Executor
	logger        *slog.Logger
	now           func() time.Time
	onFallback    func(op string, err error)
}

// NewChatService creates a new ChatService.
func NewChatService(conversations ports.ConversationRepository, exec *resilience.Executor, opts ...Option) *ChatService {
	o := defaultOptions(opts)
	return &ChatService{
		conversations: conversations,
		exec:          exec,
		logger:        o.logger,
		now:           o.now,
		onFallback:    o.onFallback,
	}
}

// GetOrCreateConversation returns the conversation between a and b,
// creating it if needed. eventID optionally links it to the event the two
// players met through.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
	if a == "" || b == "" {
		return nil, invalidf("both participants are required")
	}
	if a == b {
		return nil, invalidf("cannot start a conversation with yourself")
	}
	a, b = domain.OrderedPair(a, b)

	conv, err := resilience.WithFallback(ctx,
		func(ctx context.Context) (*domain.Conversation, error) {
			return resilience.Do(ctx, s.exec, "conversations.upsert", func(ctx context.Context) (*domain.Conversation, error) {
				return s.conversations.UpsertConversation(ctx, a, b, eventID)
			})
		},
		func(ctx context.Context) (*domain.Conversation, error) {
			return resilience.Do(ctx, s.exec, "conversations.find_or_create", func(ctx context.Context) (*domain.Conversation, error) {
				return s.findOrCreate(ctx, a, b, eventID)
			})
		},
		func(err error) {
			s.onFallback("conversations.upsert", err)
			s.logger.WarnContext(ctx, "conversation upsert falling back to find-or-create", "error", err)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return conv, nil
}

func (s *ChatService) findOrCreate(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
	conv, err := s.conversations.FindConversation(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	conv = &domain.Conversation{
		ID:           uuid.NewString(),
		ParticipantA: a,
		ParticipantB: b,
		EventID:      eventID,
		CreatedAt:    s.now().UTC(),
	}
	err = s.conversations.CreateConversation(ctx, conv)
	if resilience.KindOf(err) == resilience.KindConflict {
		// Lost a race with the other participant.
		return s.conversations.FindConversation(ctx, a, b)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns the conversations profileID takes part in, most
// recently active first.
func (s *ChatService) ListConversations(ctx context.Context, profileID string, limit int) ([]domain.Conversation, error) {
	limit = clampLimit(limit, 50, 100)
	return resilience.Do(ctx, s.exec, "conversations.list", func(ctx context.Context) ([]domain.Conversation, error) {
		return s.conversations.ListForProfile(ctx, profileID, limit)
	})
}

// SendMessage posts a message. The sender must take part in the conversation.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if n := utf8.RuneCountInString(body); n == 0 || n > maxMessageRunes {
		return nil, invalidf("message must be 1-%d characters", maxMessageRunes)
	}
	if _, err := s.conversationFor(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         s.now().UTC(),
	}
	if err := run(ctx, s.exec, "messages.insert", func(ctx context.Context) error {
		return s.conversations.InsertMessage(ctx, msg)
	}); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// ListMessages pages backwards through a conversation, newest first. before,
// when set, returns only messages sent earlier.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, profileID string, before *time.Time, limit int) ([]domain.Message, error) {
	if _, err := s.conversationFor(ctx, conversationID, profileID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 50, 100)
	return resilience.Do(ctx, s.exec, "messages.list", func(ctx context.Context) ([]domain.Message, error) {
		return s.conversations.ListMessages(ctx, conversationID, before, limit)
	})
}

func (s *ChatService) conversationFor(ctx context.Context, conversationID, profileID string) (*domain.Conversation, error) {
	conv, err := resilience.Do(ctx, s.exec, "conversations.get", func(ctx context.Context) (*domain.Conversation, error) {
		return s.conversations.GetConversation(ctx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	if !conv.Includes(profileID) {
		return nil, forbidden("not a participant of this conversation")
	}
	return conv, nil
}

