package user

import (
	usersvc "bluegold-backend/internal/application/user"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/middleware"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers holds the user service and session config for create-user (session + cookie).
type Handlers struct {
	Service *usersvc.Service
	Config  middleware.SessionConfig
}

// CreateUserRequest body.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
}

// CreateUser POST /api/v1/users/create-user: register, open a session and return 201 with data.user.
func (h *Handlers) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if req.Email == "" || req.Password == "" || req.Fullname == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}

	u, err := h.Service.CreateUser(c.UserContext(), usersvc.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Fullname: req.Fullname,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	sid := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:       u.UserID.String(),
		Fullname:     u.Fullname,
		Email:        u.Email,
		Role:         u.Role,
		ReferralCode: u.ReferralCode,
	})
	if h.Service.Rdb != nil {
		if err := h.Service.Rdb.SAdd(c.UserContext(), middleware.UserSessionsPrefix+u.UserID.String(), sid).Err(); err != nil {
			log.Warn().Err(err).Str("user_id", u.UserID.String()).Msg("track session")
		}
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sid
	c.Cookie(&cookie)

	return response.SuccessCreated(c, "User created successfully", fiber.Map{"user": safeUser(u)}, nil)
}

// UpdateUser PUT /api/v1/users/update-user updates the session user.
func (h *Handlers) UpdateUser(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil || len(body) == 0 {
		return response.Error(c, "Missing update fields", fiber.StatusBadRequest, nil)
	}
	u, err := h.Service.UpdateUser(c.UserContext(), userID.String(), body)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User updated successfully", fiber.Map{"user": safeUser(u)}, nil)
}

// ViewUser GET /api/v1/users/view-user returns the session user.
func (h *Handlers) ViewUser(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	u, err := h.Service.ViewUser(c.UserContext(), userID.String())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User found", fiber.Map{"user": safeUser(u)}, nil)
}

// UpdateRoleRequest body.
type UpdateRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// UpdateRole PATCH /api/v1/users/update-role. Requires AssignRole (applied on the route).
func (h *Handlers) UpdateRole(c *fiber.Ctx) error {
	var req UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" || req.Role == "" {
		return response.Error(c, "user_id and role are required", fiber.StatusBadRequest, nil)
	}
	actorID, err := middleware.CurrentUserID(c)
	if err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	u, err := h.Service.UpdateUserRole(c.UserContext(), usersvc.UpdateUserRoleInput{
		ActorUserID:  actorID.String(),
		ActorRole:    middleware.CurrentRole(c),
		TargetUserID: req.UserID,
		TargetRole:   req.Role,
	})
	if err != nil {
		if _, known := response.StatusFor(err); known {
			return response.FromError(c, err)
		}
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	return response.Success(c, "User role updated successfully", fiber.Map{"user": safeUser(u)}, nil)
}

func safeUser(u *domain.User) fiber.Map {
	var referredBy interface{}
	if u.ReferredBy != nil {
		referredBy = u.ReferredBy.String()
	}
	return fiber.Map{
		"user_id":       u.UserID.String(),
		"fullname":      u.Fullname,
		"email":         u.Email,
		"role":          u.Role,
		"referral_code": u.ReferralCode,
		"referred_by":   referredBy,
		"createdAt":     u.CreatedAt,
		"updatedAt":     u.UpdatedAt,
	}
}
