package imagestudio

import (
	"context"
	"sync"
)

// MockImageService is a mock implementation of ImageService.
type MockImageService struct {
	GenerateFunc     func(ctx context.Context, prompt string, config *GenerateConfig) (*GenerateResult, error)
	EditFunc         func(ctx context.Context, image InputImage, instruction string, config *GenerateConfig) (*GenerateResult, error)
	EditMultipleFunc func(ctx context.Context, images []InputImage, instruction string, config *GenerateConfig) (*GenerateResult, error)
	ModelsFunc       func() []ModelInfo
	CloseFunc        func() error
}

func (m *MockImageService) Generate(ctx context.Context, prompt string, config *GenerateConfig) (*GenerateResult, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, config)
	}
	return &GenerateResult{}, nil
}

func (m *MockImageService) Edit(ctx context.Context, image InputImage, instruction string, config *GenerateConfig) (*GenerateResult, error) {
	if m.EditFunc != nil {
		return m.EditFunc(ctx, image, instruction, config)
	}
	return &GenerateResult{}, nil
}

func (m *MockImageService) EditMultiple(ctx context.Context, images []InputImage, instruction string, config *GenerateConfig) (*GenerateResult, error) {
	if m.EditMultipleFunc != nil {
		return m.EditMultipleFunc(ctx, images, instruction, config)
	}
	return &GenerateResult{}, nil
}

func (m *MockImageService) Models() []ModelInfo {
	if m.ModelsFunc != nil {
		return m.ModelsFunc()
	}
	return []ModelInfo{}
}

func (m *MockImageService) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockGenerationClient is a mock implementation of GenerationClient that
// records every call.
type MockGenerationClient struct {
	GenerateFromTextFunc     func(ctx context.Context, prompt string) (string, error)
	EditFromImageAndTextFunc func(ctx context.Context, prompt string, image UploadedImage) (string, error)
	ComposeFromImagesFunc    func(ctx context.Context, prompt string, images ...UploadedImage) (string, error)

	mu    sync.Mutex
	calls []mockCall
}

type mockCall struct {
	Method string
	Prompt string
	Images []UploadedImage
}

func (m *MockGenerationClient) record(method, prompt string, images ...UploadedImage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{Method: method, Prompt: prompt, Images: images})
}

// Calls returns a copy of the recorded calls.
func (m *MockGenerationClient) Calls() []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockCall(nil), m.calls...)
}

func (m *MockGenerationClient) GenerateFromText(ctx context.Context, prompt string) (string, error) {
	m.record("GenerateFromText", prompt)
	if m.GenerateFromTextFunc != nil {
		return m.GenerateFromTextFunc(ctx, prompt)
	}
	return "", nil
}

func (m *MockGenerationClient) EditFromImageAndText(ctx context.Context, prompt string, image UploadedImage) (string, error) {
	m.record("EditFromImageAndText", prompt, image)
	if m.EditFromImageAndTextFunc != nil {
		return m.EditFromImageAndTextFunc(ctx, prompt, image)
	}
	return "", nil
}

func (m *MockGenerationClient) ComposeFromImages(ctx context.Context, prompt string, images ...UploadedImage) (string, error) {
	m.record("ComposeFromImages", prompt, images...)
	if m.ComposeFromImagesFunc != nil {
		return m.ComposeFromImagesFunc(ctx, prompt, images...)
	}
	return "", nil
}

// recordingObserver collects Observer events.
type recordingObserver struct {
	mu       sync.Mutex
	started  []Mode
	finished []Status
	tokens   []string
	uploads  []error
}

func (o *recordingObserver) SubmitStarted(_ string, mode Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, mode)
}

func (o *recordingObserver) SubmitFinished(token string, _ Mode, status Status, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, status)
	o.tokens = append(o.tokens, token)
}

func (o *recordingObserver) ImageUploaded(_ Slot, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploads = append(o.uploads, err)
}
