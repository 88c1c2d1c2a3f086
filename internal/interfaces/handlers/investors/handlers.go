package investors

import (
	invsvc "bluegold-backend/internal/application/investors"
	"bluegold-backend/internal/interfaces/handlers/params"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const defaultTransactionLimit = 50

// Handlers exposes investor accounts to their owners.
type Handlers struct {
	Service *invsvc.Service
}

// InvestmentTypeRequest body for select and renew.
type InvestmentTypeRequest struct {
	InvestmentType string `json:"investment_type"`
}

// Create POST /api/v1/investors
func (h *Handlers) Create(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var in invsvc.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	inv, err := h.Service.CreateInvestor(c.UserContext(), actor, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Investor account created", fiber.Map{"investor": inv}, nil)
}

// List GET /api/v1/investors
func (h *Handlers) List(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.ListForUser(c.UserContext(), actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investor accounts", fiber.Map{"investors": list}, fiber.Map{"count": len(list)})
}

// Dashboard GET /api/v1/investors/dashboard
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	d, err := h.Service.Dashboard(c.UserContext(), actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dashboard", fiber.Map{"dashboard": d}, nil)
}

// SelectInvestmentType PUT /api/v1/investors/:id/investment-type
func (h *Handlers) SelectInvestmentType(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req InvestmentTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "investment_type is required", fiber.StatusBadRequest, nil)
	}
	out, err := h.Service.SelectInvestmentType(c.UserContext(), actor, id, req.InvestmentType)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investment type selected", fiber.Map{"transition": out}, nil)
}

// DueDates GET /api/v1/investors/:id/due-dates
func (h *Handlers) DueDates(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.DueDates(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Due dates", fiber.Map{"due_dates": out}, nil)
}

// Schedule GET /api/v1/investors/:id/schedule
func (h *Handlers) Schedule(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.Schedule(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payment schedule", fiber.Map{"schedule": out}, fiber.Map{"weeks": len(out)})
}

// Goals GET /api/v1/investors/:id/goals
func (h *Handlers) Goals(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.Goals(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investment goals", fiber.Map{"goals": out}, nil)
}

// Analytics GET /api/v1/investors/:id/analytics
func (h *Handlers) Analytics(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.Analytics(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investment analytics", fiber.Map{"analytics": out}, nil)
}

// Transactions GET /api/v1/investors/:id/transactions?limit=
func (h *Handlers) Transactions(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.Transactions(c.UserContext(), actor, id, params.Int(c, "limit", defaultTransactionLimit))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transactions", fiber.Map{"transactions": list}, fiber.Map{"count": len(list)})
}

// End POST /api/v1/investors/:id/end
func (h *Handlers) End(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.EndInvestment(c.UserContext(), actor, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investment ended", fiber.Map{"transition": out}, nil)
}

// Renew POST /api/v1/investors/:id/renew. An empty investment_type keeps the current one.
func (h *Handlers) Renew(c *fiber.Ctx) error {
	actor, id, err := params.ActorAndID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req InvestmentTypeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	out, err := h.Service.RenewInvestment(c.UserContext(), actor, id, req.InvestmentType)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investment renewed", fiber.Map{"transition": out}, nil)
}
