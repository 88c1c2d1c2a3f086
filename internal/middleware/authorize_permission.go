package middleware

import (
	"bluegold-backend/internal/constants"
	"bluegold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// AuthorizePermission lets the request through when the session role holds
// permission. No session or no role is 401, a role outside the permission
// is 403 and a permission missing from PermissionRoles is 500.
func AuthorizePermission(permission string) fiber.Handler {
	allowed := constants.PermissionRoles[permission]
	return func(c *fiber.Ctx) error {
		if len(allowed) == 0 {
			log.Error().Str("permission", permission).Msg("permission has no roles configured")
			return response.Error(c, "Permission configuration error", fiber.StatusInternalServerError, nil)
		}
		role := CurrentRole(c)
		if GetUser(c) == nil || role == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		if !constants.AllowedRole(permission, role) {
			log.Warn().Str("permission", permission).Str("role", role).Str("path", c.Path()).Msg("permission denied")
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}

func getRoleFromUser(user interface{}) string {
	m, ok := user.(map[string]interface{})
	if !ok {
		return ""
	}
	r, _ := m["role"].(string)
	return r
}
