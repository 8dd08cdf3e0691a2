package models

// GenerationRequest is one prompt to turn into an image
type GenerationRequest struct {
	Prompt         string
	ReferenceImage string
	Provider       Provider
}

// HasReferenceImage reports whether the caller attached a reference image
func (r GenerationRequest) HasReferenceImage() bool {
	return r.ReferenceImage != ""
}

// Generation is what an adapter hands back on success
type Generation struct {
	ImageURL string
	// GeneratedByModel is false when the URL was lifted from model text rather than rendered
	GeneratedByModel bool
}

// GenerationResult is exactly one of Succeeded, Simulated or TestPreview
type GenerationResult interface {
	ImageURL() string
	isGenerationResult()
}

// Succeeded carries an image produced by an upstream provider
type Succeeded struct {
	URL               string
	GeneratedByModel  bool
	Provider          Provider
	HasReferenceImage bool
	Message           string
}

// Simulated carries a fallback pool image substituted for a failed generation
type Simulated struct {
	URL     string
	Reason  string
	Message string
}

// TestPreview is returned when no upstream credential is configured
type TestPreview struct {
	URL     string
	Message string
}

func (r Succeeded) ImageURL() string   { return r.URL }
func (r Simulated) ImageURL() string   { return r.URL }
func (r TestPreview) ImageURL() string { return r.URL }

func (Succeeded) isGenerationResult()   {}
func (Simulated) isGenerationResult()   {}
func (TestPreview) isGenerationResult() {}

// GenerateImageRequest is the POST body of the generate-image endpoint.
// Prompt is untyped so a non-string value can be rejected as a validation error.
type GenerateImageRequest struct {
	Prompt         any    `json:"prompt"`
	ReferenceImage string `json:"referenceImage,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

// GenerateImageResponse is the JSON shape for every 200 outcome
type GenerateImageResponse struct {
	ImageURL          string   `json:"imageUrl"`
	IsAIGenerated     bool     `json:"isAiGenerated,omitempty"`
	IsTextGenerated   *bool    `json:"isTextGenerated,omitempty"`
	IsTest            bool     `json:"isTest,omitempty"`
	IsSimulated       bool     `json:"isSimulated,omitempty"`
	Provider          Provider `json:"provider,omitempty"`
	HasReferenceImage *bool    `json:"hasReferenceImage,omitempty"`
	FailureReason     string   `json:"failureReason,omitempty"`
	Message           string   `json:"message,omitempty"`
}

// NewGenerateImageResponse renders a result into its wire shape
func NewGenerateImageResponse(result GenerationResult) GenerateImageResponse {
	switch r := result.(type) {
	case Succeeded:
		textGenerated := !r.GeneratedByModel
		hasRef := r.HasReferenceImage
		return GenerateImageResponse{
			ImageURL:          r.URL,
			IsAIGenerated:     true,
			IsTextGenerated:   &textGenerated,
			Provider:          r.Provider,
			HasReferenceImage: &hasRef,
			Message:           r.Message,
		}
	case Simulated:
		return GenerateImageResponse{
			ImageURL:      r.URL,
			IsSimulated:   true,
			FailureReason: r.Reason,
			Message:       r.Message,
		}
	case TestPreview:
		return GenerateImageResponse{
			ImageURL: r.URL,
			IsTest:   true,
			Message:  r.Message,
		}
	}
	return GenerateImageResponse{ImageURL: result.ImageURL()}
}

// ErrorResponse is the JSON body for non-200 outcomes
type ErrorResponse struct {
	Error string `json:"error"`
}
