package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"genix/auth"
	"genix/fallback"
	"genix/models"
	svc "genix/services"
	"genix/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	configured bool
	gen        models.Generation
	err        error
}

func (s stubAdapter) Configured() bool { return s.configured }

func (s stubAdapter) Generate(context.Context, string, string) (models.Generation, error) {
	return s.gen, s.err
}

func newTestApp(t *testing.T, adapters map[models.Provider]svc.Adapter, uid string) (*fiber.App, *svc.QuotaService) {
	t.Helper()
	quota := svc.NewQuotaService(storage.NewMemoryQuotaStore(), 5)
	h := &ImageHandlers{
		Router:          svc.NewRouter(adapters, fallback.NewPool(), rand.New(rand.NewPCG(3, 4))),
		Quota:           quota,
		DefaultProvider: models.ProviderVision,
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	if uid != "" {
		app.Use(func(c *fiber.Ctx) error {
			c.SetUserContext(context.WithValue(c.UserContext(), auth.UserIDKey, uid))
			return c.Next()
		})
	}
	app.Post("/api/generate-image", h.GenerateImage)
	app.Get("/api/quota", h.GetQuota)
	return app, quota
}

func post(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-image", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestGenerateImage_Success(t *testing.T) {
	app, _ := newTestApp(t, map[models.Provider]svc.Adapter{
		models.ProviderVision: stubAdapter{configured: true, gen: models.Generation{ImageURL: "https://img.example.com/1.png", GeneratedByModel: true}},
	}, "")

	status, body := post(t, app, `{"prompt":"a lighthouse","provider":"openai"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://img.example.com/1.png", body["imageUrl"])
	assert.Equal(t, true, body["isAiGenerated"])
	assert.Equal(t, "vision", body["provider"])
	assert.Equal(t, false, body["hasReferenceImage"])
	assert.Equal(t, "I've created this image just for you with Genix Vision AI. What do you think?", body["message"])
	assert.NotContains(t, body, "isSimulated")
}

func TestGenerateImage_SimulatedOnFailure(t *testing.T) {
	app, _ := newTestApp(t, map[models.Provider]svc.Adapter{
		models.ProviderTextToURL: stubAdapter{configured: true, err: errors.New("Gemini API error: quota exhausted")},
	}, "")

	status, body := post(t, app, `{"prompt":"funny meme","provider":"text-to-url"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isSimulated"])
	assert.Equal(t, "Gemini API error: quota exhausted", body["failureReason"])
	assert.Equal(t, "API quota exceeded: Your Genix AI free quota has been reached for today.", body["message"])
	assert.Contains(t, fallback.NewPool().Images(fallback.Memes), body["imageUrl"])
}

func TestGenerateImage_TestPreview(t *testing.T) {
	app, _ := newTestApp(t, nil, "")

	status, body := post(t, app, `{"prompt":"anything"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isTest"])
	assert.Equal(t, fallback.PlaceholderURL, body["imageUrl"])
}

func TestGenerateImage_BadRequests(t *testing.T) {
	app, _ := newTestApp(t, nil, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing prompt", `{}`, http.StatusBadRequest, "A valid prompt is required"},
		{"empty prompt", `{"prompt":""}`, http.StatusBadRequest, "A valid prompt is required"},
		{"numeric prompt", `{"prompt":42}`, http.StatusBadRequest, "A valid prompt is required"},
		{"unknown provider", `{"prompt":"x","provider":"midjourney"}`, http.StatusBadRequest, `Unknown provider "midjourney"`},
		{"malformed json", `{"prompt":`, http.StatusInternalServerError, "Failed to process request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, app, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, map[string]any{"error": tt.wantError}, body)
		})
	}
}

func TestGenerateImage_ConsumesQuota(t *testing.T) {
	app, quota := newTestApp(t, map[models.Provider]svc.Adapter{
		models.ProviderVision: stubAdapter{configured: true, gen: models.Generation{ImageURL: "https://img.example.com/1.png", GeneratedByModel: true}},
	}, "uid-7")

	for range 2 {
		status, _ := post(t, app, `{"prompt":"a lighthouse"}`)
		require.Equal(t, http.StatusOK, status)
	}

	q, err := quota.Get(context.Background(), "uid-7")
	require.NoError(t, err)
	assert.Equal(t, 2, q.TotalGenerations)
	assert.Equal(t, 3, q.RemainingGenerations)
}

func TestGetQuota(t *testing.T) {
	app, _ := newTestApp(t, nil, "uid-8")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/quota", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var q models.UserQuota
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&q))
	assert.Equal(t, "uid-8", q.UID)
	assert.Equal(t, 5, q.RemainingGenerations)
}

func TestGetQuota_Anonymous(t *testing.T) {
	app, _ := newTestApp(t, nil, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/quota", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
