// Package middleware holds Fiber middleware shared by the API routes
package middleware

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"

	log "github.com/appforge/forge/internal/logger"
)

// Logger returns a middleware that logs HTTP requests
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.InfoWithFields("request", map[string]interface{}{
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start).String(),
			"ip":      c.IP(),
			"method":  c.Method(),
			"path":    c.Path(),
		})
		return err
	}
}
