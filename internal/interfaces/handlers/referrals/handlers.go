package referrals

import (
	refsvc "bluegold-backend/internal/application/referrals"
	"bluegold-backend/internal/interfaces/handlers/params"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers serves the referral and points programme.
type Handlers struct {
	Service *refsvc.Service
}

type applyRequest struct {
	ReferralCode string `json:"referral_code"`
}

type redeemRequest struct {
	Points int `json:"points"`
}

// Me GET /api/v1/referrals/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.Me(c.UserContext(), actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Referral summary", fiber.Map{"referrals": out}, nil)
}

// Apply POST /api/v1/referrals/apply
func (h *Handlers) Apply(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req applyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, refsvc.ErrCodeRequired)
	}
	out, err := h.Service.ApplyReferralCode(c.UserContext(), actor.UserID, req.ReferralCode)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Referral code applied", fiber.Map{"referral": out}, nil)
}

// Redeem POST /api/v1/referrals/redeem
func (h *Handlers) Redeem(c *fiber.Ctx) error {
	actor, err := params.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.FromError(c, refsvc.ErrMinimumPoints)
	}
	out, err := h.Service.RedeemPoints(c.UserContext(), actor.UserID, req.Points)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Points redeemed", fiber.Map{"redemption": out}, nil)
}
