package notifications

import (
	notifsvc "bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/interfaces/handlers/params"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const defaultFeedLimit = 50

// Handlers serves an investor's notification feed.
type Handlers struct {
	Service *notifsvc.Service
}

// List GET /api/v1/notifications/:investor_id?unread=true&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "investor_id")
	if err != nil {
		return response.FromError(c, err)
	}
	unread := c.QueryBool("unread", false)
	list, err := h.Service.ListFor(c.UserContext(), actor, id, unread, params.Int(c, "limit", defaultFeedLimit))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Notifications", fiber.Map{"notifications": list}, fiber.Map{"count": len(list)})
}

// MarkRead PATCH /api/v1/notifications/:id/read
func (h *Handlers) MarkRead(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.MarkReadFor(c.UserContext(), actor, c.Params("id")); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Notification marked as read", nil, nil)
}
