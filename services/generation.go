package svc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"genix/fallback"
	"genix/models"
	"genix/util"

	"github.com/sirupsen/logrus"
)

const (
	msgPreviewReference = "Using your reference image. API key not configured."

	msgVisionSuccess          = "I've created this image just for you with Genix Vision AI. What do you think?"
	msgVisionReferenceSuccess = "I've created this image inspired by your description and reference image using Genix Vision AI."
	msgTextFound              = "I found this relevant image based on your description with Genix AI's help."
	msgTextCreated            = "I've created this image just for you with Genix AI. What do you think?"

	msgVisionFailed          = "Genix Vision AI failed to generate an image. Using a similar image from Unsplash instead."
	msgTextFailed            = "Genix AI failed to generate an image. Using a similar image from Unsplash instead."
	msgReferenceSafety       = "I couldn't generate an image based on your reference due to content safety policies. Here's a similar image from Unsplash instead."
	msgReferenceFailed       = "I couldn't generate an image based on your reference. This might be due to technical limitations. Here's a similar image from Unsplash instead."
	msgConnectFailed         = "I couldn't connect to Genix AI properly. Using a similar image from Unsplash instead."
	msgInvalidURLFromAdapter = "Invalid image URL format returned from Genix AI"
)

var validImageURL = regexp.MustCompile(`(?i)^(data:|https?://)`)

// failureMessages is checked in order; the first row with any matching substring wins.
// Matching is case-sensitive against the upstream error text.
var failureMessages = []struct {
	substrings []string
	message    string
}{
	{[]string{"API key"}, "API key issue: Please check your Genix AI key configuration."},
	{[]string{"quota"}, "API quota exceeded: Your Genix AI free quota has been reached for today."},
	{[]string{"model"}, "Model issue: The Genix AI model specified is not available or cannot process this request."},
	{[]string{"permission", "access"}, "Permission denied: Your account doesn't have permission to use this Genix AI feature."},
	{[]string{"safety", "policy"}, "Your prompt was flagged by our safety system. Here's an alternative image from Unsplash."},
	{[]string{"rate", "limit"}, "We've hit our generation limit. Please try again later. Here's a similar image from Unsplash for now."},
}

// Adapter turns a prompt into an image URL through one upstream provider
type Adapter interface {
	Configured() bool
	Generate(ctx context.Context, prompt, referenceImage string) (models.Generation, error)
}

// ImageRouter produces exactly one result for every valid generation request
type ImageRouter interface {
	Route(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error)
}

// Router dispatches requests to provider adapters and substitutes a fallback
// image whenever an adapter fails
type Router struct {
	adapters map[models.Provider]Adapter
	pool     *fallback.Pool

	mu  sync.Mutex
	rng *rand.Rand
}

var _ ImageRouter = (*Router)(nil)

// NewRouter creates a Router. A nil rng is seeded from the clock.
func NewRouter(adapters map[models.Provider]Adapter, pool *fallback.Pool, rng *rand.Rand) *Router {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1))
	}
	if pool == nil {
		pool = fallback.NewPool()
	}
	return &Router{
		adapters: adapters,
		pool:     pool,
		rng:      rng,
	}
}

// Route validates the request, invokes the selected adapter and classifies the
// outcome. The only error it returns is a *models.ValidationError.
func (r *Router) Route(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if req.Prompt == "" {
		return nil, &models.ValidationError{Message: models.MsgPromptRequired}
	}
	if req.Provider == "" {
		req.Provider = models.ProviderVision
	}

	adapter, ok := r.adapters[req.Provider]
	if !ok || !adapter.Configured() {
		util.LogInfo("No API key configured for provider, returning test preview", logrus.Fields{"provider": req.Provider})
		return previewFor(req), nil
	}

	util.LogInfo("Starting image generation", logrus.Fields{
		"provider":          req.Provider,
		"prompt":            util.Truncate(req.Prompt, 100, "..."),
		"hasReferenceImage": req.HasReferenceImage(),
	})

	gen, err := invoke(ctx, adapter, req)
	if err == nil && !validImageURL.MatchString(gen.ImageURL) {
		err = errors.New(msgInvalidURLFromAdapter)
	}
	if err != nil {
		fields := logrus.Fields{
			"provider": req.Provider,
			"error":    err,
		}
		var noImage *models.NoImageError
		if errors.As(err, &noImage) && noImage.ResponseText != "" {
			fields["responseText"] = noImage.ResponseText
		}
		util.LogWarning("Image generation failed, using fallback image", fields)
		message := msgConnectFailed
		var p *panicError
		if !errors.As(err, &p) {
			message = ClassifyFailure(req.Provider, req.HasReferenceImage(), err.Error())
		}
		return models.Simulated{
			URL:     r.selectFallback(req.Prompt),
			Reason:  err.Error(),
			Message: message,
		}, nil
	}

	return models.Succeeded{
		URL:               gen.ImageURL,
		GeneratedByModel:  gen.GeneratedByModel,
		Provider:          req.Provider,
		HasReferenceImage: req.HasReferenceImage(),
		Message:           successMessage(req, gen),
	}, nil
}

// panicError is a recovered adapter panic
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("adapter panic: %v", e.value)
}

// invoke runs the adapter, converting a panic into a *panicError
func invoke(ctx context.Context, adapter Adapter, req models.GenerationRequest) (gen models.Generation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			gen = models.Generation{}
			err = &panicError{value: rec}
		}
	}()

	return adapter.Generate(ctx, req.Prompt, req.ReferenceImage)
}

func (r *Router) selectFallback(prompt string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool.Select(r.rng, prompt, "")
}

func previewFor(req models.GenerationRequest) models.TestPreview {
	if req.HasReferenceImage() && validImageURL.MatchString(req.ReferenceImage) {
		return models.TestPreview{URL: req.ReferenceImage, Message: msgPreviewReference}
	}
	return models.TestPreview{URL: fallback.PlaceholderURL}
}

func successMessage(req models.GenerationRequest, gen models.Generation) string {
	if req.Provider == models.ProviderTextToURL {
		if gen.GeneratedByModel {
			return msgTextCreated
		}
		return msgTextFound
	}
	if req.HasReferenceImage() {
		return msgVisionReferenceSuccess
	}
	return msgVisionSuccess
}

// ClassifyFailure maps upstream error text to the message shown to the user.
// It is a pure function of its inputs.
func ClassifyFailure(provider models.Provider, hasReferenceImage bool, errText string) string {
	referenceAware := provider == models.ProviderVision && hasReferenceImage
	if referenceAware && util.ContainsAny(errText, "safety", "policy", "content") {
		return msgReferenceSafety
	}

	for _, row := range failureMessages {
		if util.ContainsAny(errText, row.substrings...) {
			return row.message
		}
	}

	switch {
	case referenceAware:
		return msgReferenceFailed
	case provider == models.ProviderTextToURL:
		return msgTextFailed
	default:
		return msgVisionFailed
	}
}
