package response

import (
	"errors"

	"bluegold-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// statusMap maps error categories to HTTP status codes.
var statusMap = []struct {
	kind error
	code int
}{
	{domain.ErrNotFound, fiber.StatusNotFound},
	{domain.ErrInvalidState, fiber.StatusBadRequest},
	{domain.ErrInsufficientBalance, fiber.StatusBadRequest},
	{domain.ErrInvalidCredential, fiber.StatusUnauthorized},
	{domain.ErrRuleNotFound, fiber.StatusBadRequest},
	{domain.ErrForbidden, fiber.StatusForbidden},
	{domain.ErrTransientStore, fiber.StatusServiceUnavailable},
	{domain.ErrDataIntegrity, fiber.StatusConflict},
}

// StatusFor returns the HTTP status for err and whether it is a known category.
func StatusFor(err error) (int, bool) {
	for _, m := range statusMap {
		if errors.Is(err, m.kind) {
			return m.code, true
		}
	}
	return fiber.StatusInternalServerError, false
}

// FromError renders err with the status of its category. Unknown errors are
// logged and rendered as a generic 500.
func FromError(c *fiber.Ctx, err error) error {
	code, ok := StatusFor(err)
	if !ok {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unhandled error")
		return Error(c, "Internal Server Error", code, nil)
	}
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message
	}
	return Error(c, msg, code, nil)
}
