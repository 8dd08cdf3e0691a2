package middleware

import (
	"context"
	"net/http"
	"strings"

	"genix/auth"
	"genix/util"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// WithAuth rejects requests without a valid bearer token and stores the caller's uid
func WithAuth(v *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c)
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		result, err := v.ValidateToken(tokenStr)
		if err != nil {
			util.LogWarning("Token validation failed", logrus.Fields{"error": err})
			return unauthorized(c)
		}

		ctx := context.WithValue(c.UserContext(), auth.UserIDKey, result.UserID)
		ctx = context.WithValue(ctx, auth.TokenClaimsKey, result.Claims)

		c.SetUserContext(ctx)
		c.Locals(auth.UserIDKey, result.UserID)
		c.Set("X-User-ID", result.UserID)

		util.LogDebug("Request authorized", logrus.Fields{
			string(auth.UserIDKey): result.UserID,
		})
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized",
	})
}
