package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, dev-password"
	corsMaxAge       = "600"
)

// CORSConfig lists the browser origins the API answers with credentials.
type CORSConfig struct {
	// FrontendURL is matched exactly, e.g. https://app.bluegoldinvestments.com.
	FrontendURL string
	// AllowedSuffix matches preview deployments, e.g. .bluegoldinvestments.com.
	AllowedSuffix string
	// DevPassword lets a developer call the API from any origin by sending
	// it in the dev-password header.
	DevPassword string
	// AllowLocalhost accepts http://localhost:* and http://127.0.0.1:* origins.
	AllowLocalhost bool
}

func (cfg CORSConfig) allows(c *fiber.Ctx, origin string) bool {
	o := strings.ToLower(strings.TrimRight(origin, "/"))
	switch {
	case cfg.FrontendURL != "" && o == strings.ToLower(strings.TrimRight(cfg.FrontendURL, "/")):
		return true
	case cfg.AllowedSuffix != "" && strings.HasSuffix(o, strings.ToLower(cfg.AllowedSuffix)):
		return true
	case cfg.AllowLocalhost && (strings.HasPrefix(o, "http://localhost:") || strings.HasPrefix(o, "http://127.0.0.1:")):
		return true
	case cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword:
		return true
	}
	return false
}

// CORS answers preflights for allowed origins and rejects everything else
// that carries an Origin header. Requests without one pass through.
func CORS(cfg CORSConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		preflight := c.Method() == fiber.MethodOptions
		if !cfg.allows(c, origin) && !(preflight && cfg.DevPassword != "") {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status": "error",
				"error": fiber.Map{
					"message":    "Not allowed by CORS",
					"statusCode": fiber.StatusForbidden,
					"details":    fiber.Map{},
				},
			})
		}
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Vary(fiber.HeaderOrigin)
		if preflight {
			c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
			c.Set(fiber.HeaderAccessControlMaxAge, corsMaxAge)
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
