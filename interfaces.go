package imagestudio

import "context"

// ImageService is the provider-level contract for an external image model.
// Implement this interface to add support for new providers.
//
// The first model returned by Models() for each capability is that
// capability's default.
type ImageService interface {
	// Generate creates images from a text prompt.
	Generate(ctx context.Context, prompt string, genConfig *GenerateConfig) (*GenerateResult, error)

	// Edit modifies an existing image based on a text instruction.
	Edit(ctx context.Context, image InputImage, instruction string, genConfig *GenerateConfig) (*GenerateResult, error)

	// EditMultiple performs editing with multiple reference images.
	EditMultiple(ctx context.Context, images []InputImage, instruction string, genConfig *GenerateConfig) (*GenerateResult, error)

	// Models returns the model definitions supported by this provider.
	Models() []ModelInfo

	// Close releases any resources held by the service.
	Close() error
}

// GenerationClient is what a Session needs from the generation layer. Every
// operation returns a displayable data URI.
type GenerationClient interface {
	GenerateFromText(ctx context.Context, prompt string) (string, error)
	EditFromImageAndText(ctx context.Context, prompt string, image UploadedImage) (string, error)
	ComposeFromImages(ctx context.Context, prompt string, images ...UploadedImage) (string, error)
}

// Observer receives session lifecycle events. Implementations must not call
// back into the session. token is the request token of the submit; it is
// empty for submits rejected by validation, which never start a call.
type Observer interface {
	SubmitStarted(token string, mode Mode)
	SubmitFinished(token string, mode Mode, status Status, err error)
	ImageUploaded(slot Slot, err error)
}

type nopObserver struct{}

func (nopObserver) SubmitStarted(string, Mode)                 {}
func (nopObserver) SubmitFinished(string, Mode, Status, error) {}
func (nopObserver) ImageUploaded(Slot, error)                  {}
