package imagestudio

import (
	"time"
)

// Model represents a specific image generation model.
type Model string

// AspectRatio represents the aspect ratio for generated images.
type AspectRatio string

const (
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio3x4  AspectRatio = "3:4"
	AspectRatioAuto AspectRatio = ""
)

// Output encodings accepted by the text-to-image model.
const (
	OutputJPEG = "image/jpeg"
	OutputPNG  = "image/png"
)

// GenerateConfig holds configuration options for a single service call.
type GenerateConfig struct {
	// Model to use (if empty, the client's default for the operation)
	Model Model

	// AspectRatio of the output image
	AspectRatio AspectRatio

	// NumberOfImages to request from text-to-image models
	NumberOfImages int

	// OutputMIMEType requested from text-to-image models
	OutputMIMEType string

	// SafetySettings for content filtering
	SafetySettings []SafetySetting

	// WaitOnRateLimit, if true, causes the Client to wait for capacity when
	// rate limited. If false, a RateLimitError is returned immediately.
	WaitOnRateLimit bool

	// MaxWaitDuration is the maximum time to wait when WaitOnRateLimit is true.
	// Zero means no limit.
	MaxWaitDuration time.Duration
}

// DefaultGenerateConfig returns the text-to-image settings: one square JPEG.
func DefaultGenerateConfig() *GenerateConfig {
	return &GenerateConfig{
		Model:          ModelImagen4,
		AspectRatio:    AspectRatio1x1,
		NumberOfImages: 1,
		OutputMIMEType: OutputJPEG,
	}
}

// DefaultEditConfig returns the settings for image edit calls.
func DefaultEditConfig() *GenerateConfig {
	return &GenerateConfig{
		Model:          ModelFlashImage,
		AspectRatio:    AspectRatioAuto,
		NumberOfImages: 1,
	}
}

// InputImage represents an image input for editing operations.
type InputImage struct {
	// Data is the raw image bytes
	Data []byte

	// MIMEType of the image as declared by the uploader
	MIMEType string
}

func (a AspectRatio) String() string {
	return string(a)
}

// String returns the model identifier.
func (m Model) String() string {
	return string(m)
}
