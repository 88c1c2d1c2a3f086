package middleware

import (
	"errors"

	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Returns the standard error format.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if asFiberError(err, &fe) {
		return response.Error(c, fe.Message, fe.Code, map[string]interface{}{})
	}
	return response.FromError(c, err)
}

func asFiberError(err error, target **fiber.Error) bool {
	return errors.As(err, target)
}
