package topups

import (
	topupsvc "bluegold-backend/internal/application/topups"
	"bluegold-backend/internal/interfaces/handlers/params"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves card top-ups.
type Handlers struct {
	Service *topupsvc.Service
}

// Initiate POST /api/v1/topups
func (h *Handlers) Initiate(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var in topupsvc.InitiateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "investor_id and amount are required", fiber.StatusBadRequest, nil)
	}
	t, err := h.Service.Initiate(c.UserContext(), actor, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Top-up initiated", fiber.Map{
		"topup":             t,
		"reference":         t.Reference,
		"authorization_url": t.AuthorizationURL,
	}, nil)
}

// Callback GET /api/v1/topups/callback?reference=
func (h *Handlers) Callback(c *fiber.Ctx) error {
	out, err := h.Service.ProcessCallback(c.UserContext(), c.Query("reference"))
	if err != nil {
		return response.FromError(c, err)
	}
	msg := "Top-up completed"
	if out.AlreadyProcessed {
		msg = "Top-up already processed"
	}
	return response.Success(c, msg, fiber.Map{"result": out}, nil)
}

// History GET /api/v1/topups/history/:investor_id
func (h *Handlers) History(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "investor_id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.History(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Top-up history", fiber.Map{"topups": list}, fiber.Map{"count": len(list)})
}
