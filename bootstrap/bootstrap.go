package bootstrap

import (
	"bluegold-backend/internal/config"
	"bluegold-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for the serverless entry point, which cannot
// import internal packages. The scheduler does not run there; the hourly
// tick is driven by cmd/api or by POST /api/v1/admin/jobs/interest.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return app.Fiber, nil
}
