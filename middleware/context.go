package middleware

import (
	"genix/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RequestID tags every request with a fresh X-Request-ID
func RequestID(c *fiber.Ctx) error {
	rid := uuid.New().String()
	c.Set("X-Request-ID", rid)
	c.Locals(requestIDKey, rid)
	return c.Next()
}

// GetRequestID returns the id assigned by RequestID, or ""
func GetRequestID(c *fiber.Ctx) string {
	rid, _ := c.Locals(requestIDKey).(string)
	return rid
}

// UserID returns the authenticated caller's uid, or "" when auth is disabled
func UserID(c *fiber.Ctx) string {
	uid, _ := c.UserContext().Value(auth.UserIDKey).(string)
	return uid
}
