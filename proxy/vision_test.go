package proxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"genix/config"
	"genix/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const safetyRejection = `{"error":{"message":"Your request was rejected as a result of our safety system.","type":"invalid_request_error","param":null,"code":"content_policy_violation"}}`

type recordedImageRequest struct {
	body map[string]any
	auth string
}

// imagesServer replays the given status/body pairs in order and records each request
func imagesServer(t *testing.T, replies ...[2]any) (*httptest.Server, func() []recordedImageRequest) {
	t.Helper()
	var mu sync.Mutex
	var calls []recordedImageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		idx := len(calls)
		calls = append(calls, recordedImageRequest{body: body, auth: r.Header.Get("Authorization")})
		mu.Unlock()

		if idx >= len(replies) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		contentType := "application/json"
		if !strings.HasPrefix(replies[idx][1].(string), "{") {
			contentType = "text/plain"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(replies[idx][0].(int))
		_, _ = w.Write([]byte(replies[idx][1].(string)))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedImageRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedImageRequest(nil), calls...)
	}
}

func newTestVision(srv *httptest.Server, mutate ...func(*config.VisionConfig)) *VisionAdapter {
	conf := config.VisionConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "dall-e-3",
		Size:    "1024x1024",
		Quality: "standard",
	}
	for _, m := range mutate {
		m(&conf)
	}
	return NewVisionAdapter(conf, 5*time.Second, rand.New(rand.NewPCG(1, 2)))
}

func TestVisionAdapter_Success(t *testing.T) {
	srv, calls := imagesServer(t, [2]any{http.StatusOK, `{"created":1,"data":[{"url":"https://cdn.example.com/img.png"}]}`})
	a := newTestVision(srv)

	gen, err := a.Generate(context.Background(), "a red fox", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/img.png", gen.ImageURL)
	assert.True(t, gen.GeneratedByModel)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "Bearer sk-test", got[0].auth)
	assert.Equal(t, "a red fox", got[0].body["prompt"])
	assert.Equal(t, "dall-e-3", got[0].body["model"])
	assert.EqualValues(t, 1, got[0].body["n"])
	assert.Equal(t, "1024x1024", got[0].body["size"])
	assert.Equal(t, "url", got[0].body["response_format"])
	assert.Equal(t, "standard", got[0].body["quality"])
	assert.NotContains(t, got[0].body, "reference_image")
}

func TestVisionAdapter_SafetyRetrySucceeds(t *testing.T) {
	srv, calls := imagesServer(t,
		[2]any{http.StatusBadRequest, safetyRejection},
		[2]any{http.StatusOK, `{"created":1,"data":[{"url":"https://cdn.example.com/safe.png"}]}`},
	)
	a := newTestVision(srv, func(c *config.VisionConfig) { c.Model = "dall-e-2" })

	prompt := "copy this famous painting of a lighthouse at night with stars and waves"
	gen, err := a.Generate(context.Background(), prompt, "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/safe.png", gen.ImageURL)

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, "dall-e-2", got[0].body["model"])
	assert.Equal(t, "dall-e-3", got[1].body["model"])
	assert.Equal(t, "Create an original artistic interpretation with the theme: this famous painting of a lighthouse at night", got[1].body["prompt"])
}

func TestVisionAdapter_SafetyRetryFailsOnce(t *testing.T) {
	srv, calls := imagesServer(t,
		[2]any{http.StatusBadRequest, safetyRejection},
		[2]any{http.StatusBadRequest, safetyRejection},
	)
	a := newTestVision(srv)

	_, err := a.Generate(context.Background(), "something", "")
	require.Error(t, err)
	assert.Len(t, calls(), 2)

	var adapterErr *models.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, http.StatusBadRequest, adapterErr.StatusCode)
	assert.Contains(t, err.Error(), "Genix Vision API retry error: 400")
	assert.Contains(t, err.Error(), "safety")
}

func TestVisionAdapter_SafetyRetryOnUnwrappedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"plain text":      "Request blocked by content filter",
		"json no wrapper": `{"detail":"prompt rejected by content filter"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, calls := imagesServer(t,
				[2]any{http.StatusBadRequest, body},
				[2]any{http.StatusOK, `{"created":1,"data":[{"url":"https://cdn.example.com/safe.png"}]}`},
			)

			gen, err := newTestVision(srv).Generate(context.Background(), "copy the poster", "")
			require.NoError(t, err)
			assert.Equal(t, "https://cdn.example.com/safe.png", gen.ImageURL)
			assert.Len(t, calls(), 2)
		})
	}
}

func TestVisionAdapter_PlainTextErrorKeepsBody(t *testing.T) {
	srv, calls := imagesServer(t, [2]any{http.StatusBadGateway, "upstream exploded"})

	_, err := newTestVision(srv).Generate(context.Background(), "something", "")
	require.Error(t, err)
	assert.Len(t, calls(), 1)
	assert.EqualError(t, err, "Genix Vision API error: 502 upstream exploded")
}

func TestVisionAdapter_OtherErrorNoRetry(t *testing.T) {
	srv, calls := imagesServer(t,
		[2]any{http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached for images","type":"requests","code":"rate_limit_exceeded"}}`},
	)
	a := newTestVision(srv)

	_, err := a.Generate(context.Background(), "something", "")
	require.Error(t, err)
	assert.Len(t, calls(), 1)
	assert.Contains(t, err.Error(), "Genix Vision API error: 429")
	assert.Contains(t, err.Error(), "Rate limit")
}

func TestVisionAdapter_EmptyData(t *testing.T) {
	srv, _ := imagesServer(t, [2]any{http.StatusOK, `{"created":1,"data":[]}`})
	a := newTestVision(srv)

	_, err := a.Generate(context.Background(), "something", "")
	var noImage *models.NoImageError
	require.ErrorAs(t, err, &noImage)
	assert.Equal(t, "No image URL was returned from Genix Vision API", err.Error())
}

func TestVisionAdapter_ReferenceImage(t *testing.T) {
	srv, calls := imagesServer(t, [2]any{http.StatusOK, `{"created":1,"data":[{"url":"https://cdn.example.com/ref.png"}]}`})
	a := newTestVision(srv, func(c *config.VisionConfig) {
		c.EnableReferenceImages = true
		c.ReferenceMaxDimension = 64
	})

	ref := pngDataURL(t, 8, 8)
	_, err := a.Generate(context.Background(), "a portrait of my cat", ref)
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	prompt, _ := got[0].body["prompt"].(string)
	assert.Contains(t, prompt, "original image that represents: a portrait of my cat.")
	assert.Contains(t, prompt, "Focus on creating a professional portrait with appropriate framing.")
	assert.NotEmpty(t, got[0].body["reference_image"])
}

func TestVisionAdapter_ReferenceImageNotForwardedWhenDisabled(t *testing.T) {
	srv, calls := imagesServer(t, [2]any{http.StatusOK, `{"created":1,"data":[{"url":"https://cdn.example.com/ref.png"}]}`})
	a := newTestVision(srv)

	_, err := a.Generate(context.Background(), "a cat", pngDataURL(t, 4, 4))
	require.NoError(t, err)
	assert.NotContains(t, calls()[0].body, "reference_image")
}

func TestVisionAdapter_NotConfigured(t *testing.T) {
	a := NewVisionAdapter(config.VisionConfig{BaseURL: "http://127.0.0.1:1"}, time.Second, nil)
	assert.False(t, a.Configured())

	_, err := a.Generate(context.Background(), "x", "")
	assert.ErrorContains(t, err, "API key")
}

func TestEnhancePrompt(t *testing.T) {
	assert.Equal(t,
		"Create a stunning original artwork that captures the essence of: van gogh style. Use creative artistic elements with expert attention to lighting, composition, and detail.",
		EnhancePrompt("van gogh style", "stunning"))

	assert.Equal(t,
		"Create a detailed original image that represents: mountain landscape. Include clear visual elements and artistic details. Create a breathtaking landscape with depth and atmosphere.",
		EnhancePrompt("mountain landscape", "detailed"))

	// portrait wins over anime
	assert.Contains(t, EnhancePrompt("anime portrait", "x"), "professional portrait")
	assert.Contains(t, EnhancePrompt("Anime girl", "x"), "vibrant, stylized illustration")
	assert.NotContains(t, EnhancePrompt("a dog", "x"), "Focus")
}

func TestSafePrompt(t *testing.T) {
	assert.Equal(t, "Create an original artistic interpretation with the theme: a cat", SafePrompt("Replicate a MIMIC cat"))
	assert.Equal(t, "Create an original artistic interpretation with the theme: 1 2 3 4 5 6 7 8", SafePrompt("1 2 3 4 5 6 7 8 9 10"))
	assert.Equal(t, "Create an original artistic interpretation with the theme: ", SafePrompt("copy"))
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: 128, B: uint8(y * 16), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
