package handlers

import (
	"errors"

	"genix/models"
	"genix/util"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// handleApiError is a helper function that logs the error and returns a fiber error
// to standardize error handling across API endpoints
func handleApiError(err error, status int, message string) error {
	util.HandleErrorAtCallLevel(err, 2)
	return fiber.NewError(status, message)
}

// ErrorHandler renders every error as {"error": message}
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Failed to process request"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	} else {
		util.HandleError(err, logrus.Fields{"path": c.Path()})
	}

	return c.Status(status).JSON(models.ErrorResponse{Error: message})
}
