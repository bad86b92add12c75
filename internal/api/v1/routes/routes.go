// Package routes defines the API routes and URL structure
package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/appforge/forge/internal/api/v1/handlers"
	"github.com/appforge/forge/internal/api/v1/middleware"
	"github.com/appforge/forge/internal/hub"
	"github.com/appforge/forge/internal/jobs"
)

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIPrefix is the prefix for the REST endpoints
	APIPrefix = "/api"
)

// Register wires every route onto the app
func Register(app *fiber.App, jobHandler *handlers.JobHandler, store jobs.Store, statusHub *hub.StatusHub) {
	app.Use(middleware.Logger())
	app.Use(handlers.CallerIdentity())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api := app.Group(APIPrefix)
	api.Post("/generate", jobHandler.Generate)
	api.Get("/status/:id", jobHandler.GetStatus)
	api.Get("/jobs", jobHandler.ListJobs)

	app.Get("/downloads/:file", jobHandler.Download)

	ws := app.Group("/ws", handlers.RequireUpgrade)
	ws.Get("/jobs", handlers.ListStream(statusHub))
	ws.Get("/jobs/:id", handlers.JobStream(store, statusHub))
}
