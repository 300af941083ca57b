package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joinix/joinix/internal/core/domain"
)

const conversationColumns = `id, participant_a, participant_b, event_id, last_message_at, created_at`

// ConversationRepo implements ports.ConversationRepository with pgx.
type ConversationRepo struct {
	db *DB
}

// NewConversationRepo creates a new ConversationRepo.
func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// UpsertConversation calls the upsert_conversation database function.
func (r *ConversationRepo) UpsertConversation(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM upsert_conversation($1, $2, $3)`, a, b, eventID)
	c, err := scanConversation(row)
	if err != nil {
		return nil, classify("conversations.upsert", err)
	}
	return c, nil
}

// FindConversation looks up the conversation of an ordered pair.
func (r *ConversationRepo) FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = $1 AND participant_b = $2
	`, a, b)
	c, err := scanConversation(row)
	if err != nil {
		return nil, classify("conversations.find", err)
	}
	return c, nil
}

// CreateConversation inserts a conversation. A concurrent insert of the same
// pair surfaces as a conflict.
func (r *ConversationRepo) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.ParticipantA, c.ParticipantB, c.EventID, c.CreatedAt)
	return classify("conversations.create", err)
}

// GetConversation returns a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err != nil {
		return nil, classify("conversations.get", err)
	}
	return c, nil
}

// ListForProfile returns a profile's conversations, most recently active first.
func (r *ConversationRepo) ListForProfile(ctx context.Context, profileID string, limit int) ([]domain.Conversation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, classify("conversations.list", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, classify("conversations.list", err)
		}
		convs = append(convs, *c)
	}
	return convs, classify("conversations.list", rows.Err())
}

// InsertMessage stores a message and bumps the conversation's activity time
// in one batch. Re-inserting the same message id is a no-op.
func (r *ConversationRepo) InsertMessage(ctx context.Context, m *domain.Message) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO messages (id, conversation_id, sender_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.ConversationID, m.SenderID, m.Body, m.SentAt)
	batch.Queue(`
		UPDATE conversations
		SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
		WHERE id = $1
	`, m.ConversationID, m.SentAt)

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return classify("messages.insert", fmt.Errorf("batch exec: %w", err))
		}
	}
	return nil
}

// ListMessages returns messages newest first, optionally only those sent before a cursor.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]domain.Message, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, sent_at
		FROM messages
		WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR sent_at < $2)
		ORDER BY sent_at DESC
		LIMIT $3
	`, conversationID, before, limit)
	if err != nil {
		return nil, classify("messages.list", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.SentAt); err != nil {
			return nil, classify("messages.list", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, classify("messages.list", rows.Err())
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.EventID, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
