package imagestudio

import (
	"errors"
	"fmt"
	"strings"
)

// Provider-level validation errors
var (
	ErrEmptyImageData = errors.New("image data cannot be empty")
	ErrImageTooLarge  = errors.New("image data exceeds maximum size")
	ErrTooManyImages  = errors.New("too many input images")
)

const (
	// MaxInlineImageSize is the largest inline payload the service accepts (20MB).
	MaxInlineImageSize = 20 * 1024 * 1024

	// MaxInputImages is the maximum number of input images for a compose call.
	MaxInputImages = 2

	// UploadSizeHint is the advertised upload limit (10MB). It is not enforced.
	UploadSizeHint = 10 * 1024 * 1024
)

// UploadTypeHints are the advertised upload media types. They are not enforced.
var UploadTypeHints = []string{"image/png", "image/jpeg", "image/webp"}

// ValidatePrompt rejects blank and whitespace-only prompts.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// ValidateInputImage checks that an image can be sent inline.
func ValidateInputImage(img InputImage) error {
	if len(img.Data) == 0 {
		return ErrEmptyImageData
	}
	if len(img.Data) > MaxInlineImageSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(img.Data), MaxInlineImageSize)
	}
	return nil
}

// ValidateInputImages validates a slice of input images.
func ValidateInputImages(images []InputImage) error {
	if len(images) == 0 {
		return ErrEmptyImageData
	}

	if len(images) > MaxInputImages {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyImages, len(images), MaxInputImages)
	}

	for i, img := range images {
		if err := ValidateInputImage(img); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
	}

	return nil
}
