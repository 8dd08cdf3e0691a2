package routes

import (
	"genix/auth"
	"genix/middleware"
	"genix/routes/handlers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// RegisterRoutes wires middleware and handlers onto app. A nil validator leaves
// the api group unauthenticated.
func RegisterRoutes(app *fiber.App, images *handlers.ImageHandlers, validator *auth.Validator) {
	app.Use(logger.New(
		logger.Config{
			Format:     "${time} ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "Local",
		},
	)).Use(func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Set("Access-Control-Max-Age", "3600")
		return c.Next()
	}).Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}).Use(middleware.RequestID)

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	protected := []fiber.Handler{}
	if validator != nil {
		protected = append(protected, middleware.WithAuth(validator))
	}

	api := app.Group("/api", protected...)
	api.Post("/generate-image", images.GenerateImage)
	api.Get("/quota", images.GetQuota)

	// legacy path used by older clients
	app.Post("/generate-image", append(protected, images.GenerateImage)...)
}
