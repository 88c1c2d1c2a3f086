package withdrawals

import (
	wdsvc "bluegold-backend/internal/application/withdrawals"
	"bluegold-backend/internal/interfaces/handlers/params"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves investor-side withdrawal requests.
type Handlers struct {
	Service *wdsvc.Service
}

// Request POST /api/v1/withdrawals
func (h *Handlers) Request(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var in wdsvc.RequestInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "investor_id, amount and pin are required", fiber.StatusBadRequest, nil)
	}
	out, err := h.Service.Request(c.UserContext(), actor, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Withdrawal request submitted for approval", fiber.Map{
		"withdrawal":       out.Transaction,
		"spending_balance": out.SpendingBalance,
	}, nil)
}

// Status GET /api/v1/withdrawals/:tx_id
func (h *Handlers) Status(c *fiber.Ctx) error {
	actor, txID, err := params.ActorAndID(c, "tx_id")
	if err != nil {
		return response.FromError(c, err)
	}
	t, err := h.Service.Status(c.UserContext(), actor, txID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Withdrawal status", fiber.Map{"withdrawal": t}, nil)
}
