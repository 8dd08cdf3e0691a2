package proxy

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

var referenceFormats = map[string]imaging.Format{
	"image/png":  imaging.PNG,
	"image/jpeg": imaging.JPEG,
	"image/jpg":  imaging.JPEG,
	"image/gif":  imaging.GIF,
	"image/webp": imaging.PNG,
}

// ParseDataURL splits a base64 data URL into its MIME type and decoded payload
func ParseDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, fmt.Errorf("reference image is not a data URL")
	}

	header, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL")
	}

	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return "", nil, fmt.Errorf("data URL is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}

	return strings.ToLower(mimeType), data, nil
}

// PrepareReferenceImage validates a data URL reference image, shrinks it to fit
// within maxDim on both sides, and returns the re-encoded image as bare base64
func PrepareReferenceImage(dataURL string, maxDim int) (string, error) {
	mimeType, data, err := ParseDataURL(dataURL)
	if err != nil {
		return "", err
	}

	format, ok := referenceFormats[mimeType]
	if !ok {
		return "", fmt.Errorf("unsupported reference image type %q", mimeType)
	}

	// webp has no encoder here; pass it through untouched
	if mimeType == "image/webp" {
		return base64.StdEncoding.EncodeToString(data), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode reference image: %w", err)
	}

	bounds := img.Bounds()
	if maxDim <= 0 || (bounds.Dx() <= maxDim && bounds.Dy() <= maxDim) {
		return base64.StdEncoding.EncodeToString(data), nil
	}

	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return "", fmt.Errorf("failed to encode reference image: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
