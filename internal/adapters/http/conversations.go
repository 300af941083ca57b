package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/joinix/joinix/internal/core/domain"
)

type startConversationRequest struct {
	ParticipantID string  `json:"participant_id"`
	EventID       *string `json:"event_id"`
}

// StartConversationHandler returns the caller's conversation with another
// player, creating it on first contact.
func StartConversationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req startConversationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		conv, err := deps.Chat.GetOrCreateConversation(c.UserContext(), userID(c), req.ParticipantID, req.EventID)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(conv)
	}
}

// ListConversationsHandler lists the caller's conversations, most recent first.
func ListConversationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		convs, err := deps.Chat.ListConversations(c.UserContext(), userID(c), c.QueryInt("limit", 50))
		if err != nil {
			return errFromService(c, err)
		}
		if convs == nil {
			convs = []domain.Conversation{}
		}
		return c.JSON(convs)
	}
}

// ListMessagesHandler pages backwards through a conversation. Pass the
// sent_at of the oldest message seen as ?before= to get the previous page.
func ListMessagesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var before *time.Time
		if raw := c.Query("before"); raw != "" {
			t, err := parseTime(raw)
			if err != nil {
				return errBadRequest(c, "before must be an RFC 3339 timestamp")
			}
			before = &t
		}

		msgs, err := deps.Chat.ListMessages(c.UserContext(), c.Params("id"), userID(c), before, c.QueryInt("limit", 50))
		if err != nil {
			return errFromService(c, err)
		}
		if msgs == nil {
			msgs = []domain.Message{}
		}
		c.Set("Cache-Control", "private, no-store")
		return c.JSON(msgs)
	}
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

// SendMessageHandler posts a message from the caller.
func SendMessageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		msg, err := deps.Chat.SendMessage(c.UserContext(), c.Params("id"), userID(c), req.Body)
		if err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
