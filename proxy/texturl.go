package proxy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"genix/config"
	"genix/models"
	"genix/util"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const defaultTextModel = "gemini-1.5-flash-latest"

var imageURLPattern = regexp.MustCompile(`(?i)(https?://[^"\s]+\.(?:jpg|jpeg|png|gif|webp))`)

// contentGenerator is the slice of the genai models API the text-to-url adapter uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// TextToURLAdapter asks a Gemini text model for an image URL matching the prompt
type TextToURLAdapter struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// NewTextToURLAdapter builds the adapter. Without an API key no client is created
// and the adapter reports itself unconfigured.
func NewTextToURLAdapter(ctx context.Context, conf config.TextToURLConfig, timeout time.Duration, httpClient *http.Client) (*TextToURLAdapter, error) {
	a := &TextToURLAdapter{model: conf.Model, timeout: timeout}
	if a.model == "" {
		a.model = defaultTextModel
	}
	if conf.APIKey == "" {
		return a, nil
	}

	clientCfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     conf.APIKey,
		HTTPClient: httpClient,
	}
	if conf.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: conf.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	a.models = client.Models
	return a, nil
}

// Configured reports whether a client was created
func (a *TextToURLAdapter) Configured() bool {
	return a.models != nil
}

// Generate requests an image URL or description for the prompt. Reference images
// are not forwarded to this provider.
func (a *TextToURLAdapter) Generate(ctx context.Context, prompt, _ string) (models.Generation, error) {
	if !a.Configured() {
		return models.Generation{}, &models.AdapterError{
			Provider: models.ProviderTextToURL,
			Message:  "Gemini API key is not configured",
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: describePrompt(prompt)},
			},
		},
	}
	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopP:            genai.Ptr[float32](1),
		TopK:            genai.Ptr[float32](32),
		MaxOutputTokens: 2048,
	}

	util.LogDebug("Sending request to Gemini API for image description", logrus.Fields{"model": a.model})
	res, err := a.models.GenerateContent(callCtx, a.model, contents, genConfig)
	if err != nil {
		return models.Generation{}, geminiError(err)
	}

	return extractImage(res)
}

func describePrompt(prompt string) string {
	return fmt.Sprintf("I want to create an image based on this description: %s. Please provide either a URL to a relevant image that matches this description, or describe in detail what such an image would look like. If possible, include an image URL from a stock photo site.", prompt)
}

// extractImage prefers an inline image part, then the first image URL found in text
func extractImage(res *genai.GenerateContentResponse) (models.Generation, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return models.Generation{}, &models.AdapterError{
			Provider: models.ProviderTextToURL,
			Message:  "Invalid response from Gemini API",
		}
	}

	parts := res.Candidates[0].Content.Parts
	for _, part := range parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			return models.Generation{
				ImageURL:         "data:" + part.InlineData.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data),
				GeneratedByModel: true,
			}, nil
		}
	}

	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Text == "" {
			continue
		}
		if m := imageURLPattern.FindStringSubmatch(part.Text); m != nil {
			return models.Generation{ImageURL: m[1]}, nil
		}
		texts = append(texts, part.Text)
	}

	responseText := strings.Join(texts, " ")
	util.LogInfo("No image URL found in Gemini response text", logrus.Fields{
		"response": util.Truncate(responseText, 200, "..."),
	})

	return models.Generation{}, &models.NoImageError{
		Provider:     models.ProviderTextToURL,
		Message:      "No image URL found in Gemini response",
		ResponseText: util.Truncate(responseText, 100, "") + "...",
	}
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return &models.AdapterError{
			Provider:   models.ProviderTextToURL,
			StatusCode: apiErr.Code,
			Message:    "Gemini API error: " + msg,
			Err:        err,
		}
	}
	return &models.AdapterError{
		Provider: models.ProviderTextToURL,
		Message:  "Gemini API error: " + transportCause(err),
		Err:      err,
	}
}
