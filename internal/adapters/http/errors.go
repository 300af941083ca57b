package http

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/joinix/joinix/internal/core/usecases"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// msgUnavailable is shown whenever a backing service timed out or stayed
// unreachable after every retry.
const msgUnavailable = "check your connection and try again"

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

// errFromService maps a use-case error onto the HTTP error surface by its
// classification. Messages of internal failures are logged, not returned.
func errFromService(c *fiber.Ctx, err error) error {
	status, code, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		level := slog.LevelError
		if status == fiber.StatusServiceUnavailable {
			level = slog.LevelWarn
		}
		LoggerFromCtx(c.UserContext()).Log(c.UserContext(), level, "request failed",
			"path", c.Path(), "status", status, "error", err)
	}
	return newError(c, status, code, msg)
}

func statusFor(err error) (int, string, string) {
	switch kind := resilience.KindOf(err); {
	case errors.Is(err, usecases.ErrUnavailable):
		return fiber.StatusServiceUnavailable, "unavailable", clientMessage(err, "feature unavailable")
	case kind.Transient():
		return fiber.StatusServiceUnavailable, "unavailable", msgUnavailable
	case kind == resilience.KindNotFound:
		return fiber.StatusNotFound, "not_found", "resource not found"
	case kind == resilience.KindValidation:
		return fiber.StatusBadRequest, "bad_request", clientMessage(err, "invalid request")
	case kind == resilience.KindAuth && errors.Is(err, usecases.ErrForbidden):
		return fiber.StatusForbidden, "forbidden", clientMessage(err, "forbidden")
	case kind == resilience.KindAuth:
		return fiber.StatusUnauthorized, "unauthorized", "not authorised"
	case kind == resilience.KindConflict:
		return fiber.StatusConflict, "conflict", clientMessage(err, "resource already exists")
	}
	if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusServiceUnavailable, "unavailable", msgUnavailable
	}
	return fiber.StatusInternalServerError, "internal_error", "internal server error"
}

// clientMessage returns the text of a classified use-case error. Errors
// classified by an adapter carry an operation name and driver text, so the
// generic fallback is shown instead.
func clientMessage(err error, fallback string) string {
	var ce *resilience.Error
	if errors.As(err, &ce) && ce.Op == "" && ce.Err != nil {
		return ce.Err.Error()
	}
	return fallback
}
