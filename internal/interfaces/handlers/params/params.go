// Package params reads route parameters and the calling actor for handlers.
package params

import (
	"strconv"

	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var (
	ErrInvalidID = domain.NewError(domain.ErrInvalidState, "Invalid ID format (must be a valid UUID)")
	ErrNoActor   = domain.NewError(domain.ErrInvalidCredential, "Unauthorized")
)

// UUID parses the named route parameter.
func UUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// Actor returns the session caller.
func Actor(c *fiber.Ctx) (domain.Actor, error) {
	a, err := middleware.CurrentActor(c)
	if err != nil {
		return domain.Actor{}, ErrNoActor
	}
	return a, nil
}

// ActorAndID combines Actor and UUID for investor-scoped routes.
func ActorAndID(c *fiber.Ctx, name string) (domain.Actor, uuid.UUID, error) {
	a, err := Actor(c)
	if err != nil {
		return a, uuid.Nil, err
	}
	id, err := UUID(c, name)
	return a, id, err
}

// Int reads a positive integer query value, falling back to def.
func Int(c *fiber.Ctx, name string, def int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
