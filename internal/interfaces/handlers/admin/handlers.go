package admin

import (
	adminsvc "bluegold-backend/internal/application/admin"
	"bluegold-backend/internal/interfaces/handlers/params"
	"bluegold-backend/internal/middleware"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers is the back-office HTTP surface. Routes are guarded by
// AuthorizePermission in the router.
type Handlers struct {
	Service *adminsvc.Service
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// ListInvestors GET /api/v1/admin/investors?search=&page=&limit=
func (h *Handlers) ListInvestors(c *fiber.Ctx) error {
	page, err := h.Service.ListInvestors(c.UserContext(), adminsvc.ListInput{
		Search: c.Query("search"),
		Page:   params.Int(c, "page", 1),
		Limit:  params.Int(c, "limit", adminsvc.DefaultPageSize),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Page(c, "Investors", fiber.Map{"investors": page.Investors}, page.Total, page.Page, page.Limit)
}

// PaymentsSummary GET /api/v1/admin/payments-summary
func (h *Handlers) PaymentsSummary(c *fiber.Ctx) error {
	out, err := h.Service.PaymentsSummary(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payments summary", fiber.Map{"summary": out}, nil)
}

// UpdateInvestor PATCH /api/v1/admin/investors/:id
func (h *Handlers) UpdateInvestor(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil || len(body) == 0 {
		return response.FromError(c, adminsvc.ErrNoValidFields)
	}
	inv, err := h.Service.UpdateInvestor(c.UserContext(), id, body)
	if err != nil {
		return response.FromError(c, err)
	}
	log.Info().Str("investor_id", id.String()).Str("admin", adminID(c)).Msg("investor updated by admin")
	return response.Success(c, "Investor updated", fiber.Map{"investor": inv}, nil)
}

// Integrity GET /api/v1/admin/integrity
func (h *Handlers) Integrity(c *fiber.Ctx) error {
	out, err := h.Service.CheckIntegrity(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Integrity report", fiber.Map{"report": out}, nil)
}

// FixIntegrity POST /api/v1/admin/integrity/:id/fix
func (h *Handlers) FixIntegrity(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.FixIntegrity(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Investor repaired", fiber.Map{"result": out}, nil)
}

// MissedPayments GET /api/v1/admin/missed-payments
func (h *Handlers) MissedPayments(c *fiber.Ctx) error {
	out, err := h.Service.MissedPayments(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Missed payments", fiber.Map{"investors": out}, fiber.Map{"count": len(out)})
}

// CatchUp POST /api/v1/admin/investors/:id/catch-up
func (h *Handlers) CatchUp(c *fiber.Ctx) error {
	id, err := params.UUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.CatchUp(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Missed payments credited", fiber.Map{"outcome": out}, nil)
}

// RunInterestJob POST /api/v1/admin/jobs/interest
func (h *Handlers) RunInterestJob(c *fiber.Ctx) error {
	log.Info().Str("admin", adminID(c)).Msg("interest job triggered manually")
	out := h.Service.TriggerInterestJob(c.UserContext())
	return response.Success(c, "Interest job completed", fiber.Map{"result": out}, nil)
}

// PendingWithdrawals GET /api/v1/admin/withdrawals/pending
func (h *Handlers) PendingWithdrawals(c *fiber.Ctx) error {
	out, err := h.Service.PendingWithdrawals(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Pending withdrawals", fiber.Map{"withdrawals": out}, fiber.Map{"count": len(out)})
}

// ApproveWithdrawal POST /api/v1/admin/withdrawals/:tx_id/approve
func (h *Handlers) ApproveWithdrawal(c *fiber.Ctx) error {
	id, err := params.UUID(c, "tx_id")
	if err != nil {
		return response.FromError(c, err)
	}
	t, err := h.Service.ApproveWithdrawal(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	log.Info().Str("transaction_id", id.String()).Str("admin", adminID(c)).Msg("withdrawal approved")
	return response.Success(c, "Withdrawal approved", fiber.Map{"withdrawal": t}, nil)
}

// RejectWithdrawal POST /api/v1/admin/withdrawals/:tx_id/reject
func (h *Handlers) RejectWithdrawal(c *fiber.Ctx) error {
	id, err := params.UUID(c, "tx_id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req rejectRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}
	t, err := h.Service.RejectWithdrawal(c.UserContext(), id, req.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	log.Info().Str("transaction_id", id.String()).Str("admin", adminID(c)).Msg("withdrawal rejected")
	return response.Success(c, "Withdrawal rejected and refunded", fiber.Map{"withdrawal": t}, nil)
}

func adminID(c *fiber.Ctx) string {
	id, err := middleware.CurrentUserID(c)
	if err != nil {
		return ""
	}
	return id.String()
}
