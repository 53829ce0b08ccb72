// Package gemini provides an ImageService implementation using Google's
// generative AI models through the official Go SDK:
// https://github.com/googleapis/go-genai
//
// Text-to-image requests go to Imagen via Models.GenerateImages. Edit
// requests go to a Gemini image model via Models.GenerateContent with the
// input image sent inline.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mhpenta/imagestudio"
	"google.golang.org/genai"
)

// API model names.
const (
	// APIModelImagen4 is the text-to-image model.
	APIModelImagen4 = "imagen-4.0-generate-001"

	// APIModelFlashImage is the multimodal edit-capable model.
	APIModelFlashImage = "gemini-2.5-flash-image-preview"
)

// Generator implements ImageService on top of genai.
//
// The genai client is created on first use, so a missing API key surfaces as
// a failed call rather than a start-up error.
type Generator struct {
	clientCfg      genai.ClientConfig
	client         *genai.Client
	safetySettings []*genai.SafetySetting
	logger         *slog.Logger

	mu sync.Mutex
}

// Ensure Generator implements the interface.
var _ imagestudio.ImageService = (*Generator)(nil)

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for response diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithSafetySettings configures default safety settings for edit requests.
func WithSafetySettings(settings []imagestudio.SafetySetting) Option {
	return func(g *Generator) {
		g.safetySettings = convertSafetySettings(settings)
	}
}

// New creates a Generator for the Gemini API backend. If apiKey is empty the
// SDK falls back to the GOOGLE_API_KEY or GEMINI_API_KEY environment variables.
func New(apiKey string, opts ...Option) *Generator {
	g := &Generator{
		clientCfg: genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  apiKey,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewWithClient wraps an existing genai client.
func NewWithClient(client *genai.Client, opts ...Option) *Generator {
	g := New("", opts...)
	g.client = client
	return g
}

func (g *Generator) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	cfg := g.clientCfg
	client, err := genai.NewClient(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Generate creates images from a text prompt with Imagen.
func (g *Generator) Generate(ctx context.Context, prompt string, config *imagestudio.GenerateConfig) (*imagestudio.GenerateResult, error) {
	if err := imagestudio.ValidatePrompt(prompt); err != nil {
		return nil, err
	}
	if config == nil {
		config = imagestudio.DefaultGenerateConfig()
	}

	client, err := g.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	modelName := resolveModel(config, APIModelImagen4)

	resp, err := client.Models.GenerateImages(ctx, modelName, prompt, buildGenerateImagesConfig(config))
	if err != nil {
		if rlErr := checkRateLimitError(err, modelName); rlErr != nil {
			return nil, rlErr
		}
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return parseImagesResponse(resp)
}

// Edit modifies an existing image based on a text instruction. The image is
// sent before the instruction. A blank instruction is allowed.
func (g *Generator) Edit(ctx context.Context, image imagestudio.InputImage, instruction string, config *imagestudio.GenerateConfig) (*imagestudio.GenerateResult, error) {
	if err := imagestudio.ValidateInputImage(image); err != nil {
		return nil, err
	}
	return g.editContent(ctx, []imagestudio.InputImage{image}, instruction, config, "edit")
}

// EditMultiple performs editing with multiple reference images.
func (g *Generator) EditMultiple(ctx context.Context, images []imagestudio.InputImage, instruction string, config *imagestudio.GenerateConfig) (*imagestudio.GenerateResult, error) {
	if err := imagestudio.ValidateInputImages(images); err != nil {
		return nil, err
	}
	return g.editContent(ctx, images, instruction, config, "multi-image edit")
}

func (g *Generator) editContent(ctx context.Context, images []imagestudio.InputImage, instruction string, config *imagestudio.GenerateConfig, op string) (*imagestudio.GenerateResult, error) {
	if config == nil {
		config = imagestudio.DefaultEditConfig()
	}

	client, err := g.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	modelName := resolveModel(config, APIModelFlashImage)

	contents := []*genai.Content{
		{Role: "user", Parts: buildEditParts(images, instruction)},
	}

	resp, err := client.Models.GenerateContent(ctx, modelName, contents, g.buildGenerateContentConfig(config))
	if err != nil {
		if rlErr := checkRateLimitError(err, modelName); rlErr != nil {
			return nil, rlErr
		}
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	result, err := parseContentResponse(resp)
	if err != nil {
		return nil, err
	}
	if len(result.Images) == 0 && result.FilteredReason != "" {
		g.logger.WarnContext(ctx, "edit response carried no image",
			"model", modelName,
			"finish_reason", result.FilteredReason,
		)
	}
	return result, nil
}

// Models returns the model definitions supported by this provider.
func (g *Generator) Models() []imagestudio.ModelInfo {
	return []imagestudio.ModelInfo{
		Imagen4Info,
		FlashImageInfo,
	}
}

// Close releases any resources held by the generator.
func (g *Generator) Close() error {
	// The genai.Client doesn't require explicit closing in the current SDK
	return nil
}

func resolveModel(config *imagestudio.GenerateConfig, fallback string) string {
	if config != nil && config.Model != "" {
		return string(config.Model)
	}
	return fallback
}

func buildGenerateImagesConfig(config *imagestudio.GenerateConfig) *genai.GenerateImagesConfig {
	n := config.NumberOfImages
	if n <= 0 {
		n = 1
	}
	out := &genai.GenerateImagesConfig{
		NumberOfImages: int32(n),
		OutputMIMEType: config.OutputMIMEType,
		AspectRatio:    config.AspectRatio.String(),
	}
	if out.OutputMIMEType == "" {
		out.OutputMIMEType = imagestudio.OutputJPEG
	}
	return out
}

func buildEditParts(images []imagestudio.InputImage, instruction string) []*genai.Part {
	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				Data:     img.Data,
				MIMEType: img.MIMEType,
			},
		})
	}
	return append(parts, &genai.Part{Text: instruction})
}

// buildGenerateContentConfig converts our config to Gemini's GenerateContentConfig format.
func (g *Generator) buildGenerateContentConfig(config *imagestudio.GenerateConfig) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	if config.AspectRatio != "" {
		genConfig.ImageConfig = &genai.ImageConfig{
			AspectRatio: config.AspectRatio.String(),
		}
	}

	// Safety settings: per-request overrides provider defaults
	if len(config.SafetySettings) > 0 {
		genConfig.SafetySettings = convertSafetySettings(config.SafetySettings)
	} else if len(g.safetySettings) > 0 {
		genConfig.SafetySettings = g.safetySettings
	}

	return genConfig
}

// convertSafetySettings converts our SafetySettings to Gemini's format.
func convertSafetySettings(settings []imagestudio.SafetySetting) []*genai.SafetySetting {
	result := make([]*genai.SafetySetting, 0, len(settings))
	for _, s := range settings {
		result = append(result, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	return result
}

// parseImagesResponse keeps the generated images in order. Images withheld by
// the service's filters carry no bytes and are skipped.
func parseImagesResponse(resp *genai.GenerateImagesResponse) (*imagestudio.GenerateResult, error) {
	if resp == nil {
		return nil, errors.New("empty response from model")
	}

	result := &imagestudio.GenerateResult{}
	for _, generated := range resp.GeneratedImages {
		if generated == nil {
			continue
		}
		if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			if generated.RAIFilteredReason != "" {
				result.FilteredReason = generated.RAIFilteredReason
			}
			continue
		}
		result.Images = append(result.Images, imagestudio.GeneratedImage{
			Data:     generated.Image.ImageBytes,
			MIMEType: generated.Image.MIMEType,
			Index:    len(result.Images),
		})
	}
	return result, nil
}

// parseContentResponse reads the parts of the first candidate only. Inline
// data parts become images in order; text parts are concatenated.
func parseContentResponse(resp *genai.GenerateContentResponse) (*imagestudio.GenerateResult, error) {
	if resp == nil {
		return nil, errors.New("empty response from model")
	}

	result := &imagestudio.GenerateResult{}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		result.FilteredReason = string(resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return result, nil
	}
	candidate := resp.Candidates[0]

	if candidate.Content != nil {
		var text []string
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				text = append(text, part.Text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				result.Images = append(result.Images, imagestudio.GeneratedImage{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
					Index:    len(result.Images),
				})
			}
		}
		result.Text = strings.Join(text, "")
	}

	if len(result.Images) == 0 && candidate.FinishReason != "" &&
		candidate.FinishReason != genai.FinishReasonStop &&
		candidate.FinishReason != genai.FinishReasonUnspecified {
		result.FilteredReason = string(candidate.FinishReason)
	}

	if resp.UsageMetadata != nil {
		result.UsageMetadata = &imagestudio.UsageMetadata{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			ImageCount:       len(result.Images),
		}
	}

	return result, nil
}

// checkRateLimitError checks if an error from the Gemini API is a rate limit error.
// If so, it wraps it in a RateLimitError; otherwise returns nil.
func checkRateLimitError(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Code != 429 && apiErr.Status != "RESOURCE_EXHAUSTED" {
		return nil
	}

	return &imagestudio.RateLimitError{
		RetryAfter: 60 * time.Second, // API doesn't reliably provide Retry-After
		LimitType:  "requests",
		Model:      model,
		Err:        err,
	}
}
