package imagestudio

import "fmt"

// Public model names. Providers map them to their API model names.
const (
	ModelImagen4    Model = "imagen-4"
	ModelFlashImage Model = "flash-image"
)

// Provider represents a model provider/backend.
type Provider string

const (
	ProviderGeminiAPI Provider = "gemini"
)

// ModelCapabilities describes what a model can be used for.
type ModelCapabilities struct {
	SupportsTextToImage  bool
	SupportsImageEditing bool
	SupportsMultiImage   bool // Multiple input images for editing

	MaxInputImages  int
	MaxOutputImages int
}

// Check reports whether the model can take a call with the given number of
// input images. Zero inputs means text-to-image.
func (c ModelCapabilities) Check(inputs int) error {
	switch {
	case inputs == 0 && !c.SupportsTextToImage:
		return fmt.Errorf("%w: text-to-image", ErrUnsupportedOperation)
	case inputs > 0 && !c.SupportsImageEditing:
		return fmt.Errorf("%w: image editing", ErrUnsupportedOperation)
	case inputs > 1 && !c.SupportsMultiImage:
		return fmt.Errorf("%w: multiple input images", ErrUnsupportedOperation)
	case c.MaxInputImages > 0 && inputs > c.MaxInputImages:
		return fmt.Errorf("%w: %d input images (max %d)", ErrUnsupportedOperation, inputs, c.MaxInputImages)
	}
	return nil
}

// RateLimits defines rate limiting parameters for a model.
type RateLimits struct {
	TokensPerMinute   int
	RequestsPerMinute int
}

// ModelInfo contains the metadata the client needs for a model.
type ModelInfo struct {
	Name         string   // Public model name (e.g., "imagen-4")
	Provider     Provider // Which provider serves this model
	APIModelName string   // Actual API name (e.g., "imagen-4.0-generate-001")

	Capabilities ModelCapabilities

	SupportedAspectRatios []AspectRatio

	RateLimits RateLimits
}

// Supports reports whether the model accepts the aspect ratio. An empty
// ratio is always accepted.
func (m ModelInfo) Supports(ratio AspectRatio) bool {
	if ratio == AspectRatioAuto || len(m.SupportedAspectRatios) == 0 {
		return true
	}
	for _, r := range m.SupportedAspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
