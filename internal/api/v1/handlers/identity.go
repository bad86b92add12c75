package handlers

import "github.com/gofiber/fiber/v2"

// ownerKey is the locals key carrying the opaque caller identity
const ownerKey = "owner_id"

// CallerIdentity extracts the opaque caller identity supplied by the
// authentication layer in front of this service. The identity is never
// interpreted here; it only scopes job listings.
func CallerIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := c.Get("X-User-ID"); id != "" {
			c.Locals(ownerKey, id)
		}
		return c.Next()
	}
}

// OwnerID returns the caller identity for a request, empty when anonymous
func OwnerID(c *fiber.Ctx) string {
	if id, ok := c.Locals(ownerKey).(string); ok {
		return id
	}
	return ""
}
