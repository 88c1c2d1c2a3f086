package middleware

import (
	"errors"

	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/pkg/constants"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Locals(userLocal)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		// Attach auth context for handlers (same key)
		c.Locals("auth", user)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

var ErrNoSessionUser = errors.New("Unauthorized")

// CurrentUserID returns the session user's id.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return uuid.Nil, ErrNoSessionUser
	}
	s, _ := m["user_id"].(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrNoSessionUser
	}
	return id, nil
}

// CurrentRole returns the session user's role or "".
func CurrentRole(c *fiber.Ctx) string {
	return getRoleFromUser(GetUser(c))
}

// IsAdmin reports whether the session user has an admin role.
func IsAdmin(c *fiber.Ctx) bool {
	return constants.IsAdmin(CurrentRole(c))
}

// CurrentActor returns the caller as a domain.Actor for investor-scoped services.
func CurrentActor(c *fiber.Ctx) (domain.Actor, error) {
	id, err := CurrentUserID(c)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{UserID: id, IsAdmin: IsAdmin(c)}, nil
}
