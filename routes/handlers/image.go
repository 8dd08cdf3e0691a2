package handlers

import (
	"encoding/json"
	"errors"

	"genix/middleware"
	"genix/models"
	svc "genix/services"
	"genix/util"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ImageHandlers serves image generation and the caller's quota
type ImageHandlers struct {
	Router          svc.ImageRouter
	Quota           *svc.QuotaService
	DefaultProvider models.Provider
}

// GenerateImage answers 200 for every generation outcome, 400 for a missing
// prompt and 500 for a body that cannot be decoded
func (h *ImageHandlers) GenerateImage(c *fiber.Ctx) error {
	var body models.GenerateImageRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return handleApiError(err, fiber.StatusInternalServerError, "Failed to process request")
	}

	prompt, _ := body.Prompt.(string)
	provider, err := models.ParseProvider(body.Provider, h.DefaultProvider)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := h.Router.Route(c.UserContext(), models.GenerationRequest{
		Prompt:         prompt,
		ReferenceImage: body.ReferenceImage,
		Provider:       provider,
	})
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			return fiber.NewError(fiber.StatusBadRequest, vErr.Message)
		}
		return handleApiError(err, fiber.StatusInternalServerError, "Failed to process request")
	}

	if h.Quota != nil {
		if uid := middleware.UserID(c); uid != "" {
			h.Quota.Consume(c.UserContext(), uid)
		}
	}

	resp := models.NewGenerateImageResponse(result)
	util.LogInfo("Image request completed", logrus.Fields{
		"provider":    provider,
		"isTest":      resp.IsTest,
		"isSimulated": resp.IsSimulated,
		"requestId":   middleware.GetRequestID(c),
	})
	return c.JSON(resp)
}

// GetQuota returns the caller's quota record, creating it on first read
func (h *ImageHandlers) GetQuota(c *fiber.Ctx) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	if h.Quota == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Quota tracking is not enabled")
	}

	q, err := h.Quota.Get(c.UserContext(), uid)
	if err != nil {
		return handleApiError(err, fiber.StatusInternalServerError, "Failed to retrieve quota")
	}
	return c.JSON(q)
}
