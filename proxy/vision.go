package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"genix/config"
	"genix/models"
	"genix/util"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

const (
	defaultVisionModel = "dall-e-3"
	maxSafeWords       = 8
)

var (
	promptAdjectives = []string{"stunning", "detailed", "high quality", "professional"}
	safetyMarkers    = []string{"safety", "policy", "content filter"}
	unsafeWords      = map[string]bool{"copy": true, "duplicate": true, "replicate": true, "reproduce": true, "mimic": true}
)

// imageGenerator is the slice of the OpenAI images API the vision adapter uses
type imageGenerator interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// VisionAdapter generates images through an OpenAI-compatible images/generations endpoint
type VisionAdapter struct {
	images  imageGenerator
	conf    config.VisionConfig
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewVisionAdapter builds the adapter around its own OpenAI client
func NewVisionAdapter(conf config.VisionConfig, timeout time.Duration, rng *rand.Rand, opts ...option.RequestOption) *VisionAdapter {
	baseURL := conf.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	clientOpts := append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(conf.APIKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(clientOpts...)

	return newVisionAdapter(&client.Images, conf, timeout, rng)
}

func newVisionAdapter(images imageGenerator, conf config.VisionConfig, timeout time.Duration, rng *rand.Rand) *VisionAdapter {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &VisionAdapter{
		images:  images,
		conf:    conf,
		timeout: timeout,
		rng:     rng,
	}
}

// Configured reports whether an API key is present
func (a *VisionAdapter) Configured() bool {
	return a.conf.APIKey != ""
}

// Generate renders one image for the prompt. A reference image rewrites the prompt
// and, when enabled, is forwarded as reference_image. A safety rejection is retried
// exactly once with a sanitized prompt on the default model.
func (a *VisionAdapter) Generate(ctx context.Context, prompt, referenceImage string) (models.Generation, error) {
	if !a.Configured() {
		return models.Generation{}, &models.AdapterError{
			Provider: models.ProviderVision,
			Message:  "Genix Vision API key is not configured",
		}
	}

	finalPrompt := prompt
	var opts []option.RequestOption
	if referenceImage != "" {
		finalPrompt = EnhancePrompt(prompt, a.pickAdjective())
		util.LogDebug("Enhanced prompt for reference image", logrus.Fields{"prompt": finalPrompt})

		if a.conf.EnableReferenceImages {
			encoded, err := PrepareReferenceImage(referenceImage, a.conf.ReferenceMaxDimension)
			if err != nil {
				util.LogWarning("Dropping reference image from request", logrus.Fields{"error": err})
			} else {
				opts = append(opts, option.WithJSONSet("reference_image", encoded))
			}
		}
	}

	gen, err := a.call(ctx, a.params(finalPrompt, a.model()), opts...)
	if err == nil {
		return gen, nil
	}

	var noImage *models.NoImageError
	if errors.As(err, &noImage) {
		return models.Generation{}, err
	}

	status, body := describeOpenAIError(err)
	if !isSafetyRejection(body) {
		return models.Generation{}, &models.AdapterError{
			Provider:   models.ProviderVision,
			StatusCode: status,
			Message:    fmt.Sprintf("Genix Vision API error: %d %s", status, body),
			Err:        err,
		}
	}

	return a.retrySafe(ctx, prompt)
}

// retrySafe is the single follow-up attempt after a safety rejection
func (a *VisionAdapter) retrySafe(ctx context.Context, prompt string) (models.Generation, error) {
	safe := SafePrompt(prompt)
	util.LogInfo("Retrying with a more generic prompt due to safety system rejection", logrus.Fields{"prompt": safe})

	gen, err := a.call(ctx, a.params(safe, defaultVisionModel))
	if err == nil {
		return gen, nil
	}

	var noImage *models.NoImageError
	if errors.As(err, &noImage) {
		noImage.Message = "No image URL was returned from Genix Vision API retry"
		return models.Generation{}, noImage
	}

	status, body := describeOpenAIError(err)
	return models.Generation{}, &models.AdapterError{
		Provider:   models.ProviderVision,
		StatusCode: status,
		Message:    fmt.Sprintf("Genix Vision API retry error: %d %s", status, body),
		Err:        err,
	}
}

func (a *VisionAdapter) call(ctx context.Context, params openai.ImageGenerateParams, opts ...option.RequestOption) (models.Generation, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.images.Generate(callCtx, params, opts...)
	if err != nil {
		return models.Generation{}, err
	}

	if res == nil || len(res.Data) == 0 || res.Data[0].URL == "" {
		return models.Generation{}, &models.NoImageError{
			Provider: models.ProviderVision,
			Message:  "No image URL was returned from Genix Vision API",
		}
	}

	return models.Generation{ImageURL: res.Data[0].URL, GeneratedByModel: true}, nil
}

func (a *VisionAdapter) params(prompt, model string) openai.ImageGenerateParams {
	size := a.conf.Size
	if size == "" {
		size = string(openai.ImageGenerateParamsSize1024x1024)
	}
	quality := a.conf.Quality
	if quality == "" {
		quality = string(openai.ImageGenerateParamsQualityStandard)
	}
	return openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
		Quality:        openai.ImageGenerateParamsQuality(quality),
	}
}

func (a *VisionAdapter) model() string {
	if a.conf.Model == "" {
		return defaultVisionModel
	}
	return a.conf.Model
}

func (a *VisionAdapter) pickAdjective() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return promptAdjectives[a.rng.IntN(len(promptAdjectives))]
}

// EnhancePrompt rewrites a prompt accompanied by a reference image
func EnhancePrompt(prompt, adjective string) string {
	lower := strings.ToLower(prompt)

	var b strings.Builder
	if strings.Contains(lower, "style") {
		fmt.Fprintf(&b, "Create a %s original artwork that captures the essence of: %s. Use creative artistic elements with expert attention to lighting, composition, and detail.", adjective, prompt)
	} else {
		fmt.Fprintf(&b, "Create a %s original image that represents: %s. Include clear visual elements and artistic details.", adjective, prompt)
	}

	switch {
	case strings.Contains(lower, "portrait"):
		b.WriteString(" Focus on creating a professional portrait with appropriate framing.")
	case strings.Contains(lower, "landscape"):
		b.WriteString(" Create a breathtaking landscape with depth and atmosphere.")
	case strings.Contains(lower, "cartoon"), strings.Contains(lower, "anime"):
		b.WriteString(" Create a vibrant, stylized illustration with clean lines and expressive elements.")
	}

	return b.String()
}

// SafePrompt builds the retry prompt: the first eight space-separated words
// that are not copy-style verbs
func SafePrompt(prompt string) string {
	words := make([]string, 0, maxSafeWords)
	for _, w := range strings.Split(prompt, " ") {
		if unsafeWords[strings.ToLower(w)] {
			continue
		}
		words = append(words, w)
		if len(words) == maxSafeWords {
			break
		}
	}
	return "Create an original artistic interpretation with the theme: " + strings.Join(words, " ")
}

func isSafetyRejection(body string) bool {
	return util.ContainsAny(body, safetyMarkers...)
}

// describeOpenAIError returns the HTTP status (0 for transport failures) and the
// upstream body text, whatever its shape
func describeOpenAIError(err error) (int, string) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := responseBody(apiErr.Response)
		if body == "" {
			body = apiErr.RawJSON()
		}
		if body == "" {
			body = apiErr.Message
		}
		return apiErr.StatusCode, body
	}
	return 0, transportCause(err)
}

// responseBody reads a buffered error response and puts the bytes back for later readers
func responseBody(res *http.Response) string {
	if res == nil || res.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(res.Body)
	res.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// transportCause drops the request URL from client errors so only the failure itself
// reaches message classification
func transportCause(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
