package imagestudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mhpenta/imagestudio/ratelimiter"
)

// imageTokenCost approximates the prompt tokens billed per inline image.
const imageTokenCost = 258

// Client is the generation layer used by a Session. It wraps an ImageService
// with per-model rate limiting and logging, unwraps responses into data URIs
// and collapses provider failures into user-facing errors.
type Client struct {
	service ImageService

	generateConfig *GenerateConfig
	editConfig     *GenerateConfig

	// Public name and API name both resolve to the same info.
	models   map[Model]ModelInfo
	limiters ratelimiter.Registry

	logger *slog.Logger
}

// Ensure Client implements GenerationClient.
var _ GenerationClient = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithGenerateConfig overrides the text-to-image settings.
func WithGenerateConfig(cfg *GenerateConfig) ClientOption {
	return func(c *Client) {
		if cfg != nil {
			c.generateConfig = cfg
		}
	}
}

// WithEditConfig overrides the settings used for edit and compose calls.
func WithEditConfig(cfg *GenerateConfig) ClientOption {
	return func(c *Client) {
		if cfg != nil {
			c.editConfig = cfg
		}
	}
}

// WithRateLimiter sets a custom limiter for a public model name. A nil limiter
// disables throttling for that model.
func WithRateLimiter(model Model, limiter ratelimiter.Limiter) ClientOption {
	return func(c *Client) {
		c.limiters.Set(string(model), limiter)
	}
}

// NewClient creates a Client over service. Each model the service reports gets
// an in-memory limiter built from its RateLimits.
//
// Example:
//
//	svc := gemini.New(apiKey)
//	client := imagestudio.NewClient(svc, imagestudio.WithLogger(logger))
func NewClient(service ImageService, opts ...ClientOption) *Client {
	c := &Client{
		service:        service,
		generateConfig: DefaultGenerateConfig(),
		editConfig:     DefaultEditConfig(),
		models:         make(map[Model]ModelInfo),
		limiters:       ratelimiter.NewRegistry(),
		logger:         slog.Default(),
	}

	for _, info := range service.Models() {
		c.models[Model(info.Name)] = info
		c.models[Model(info.APIModelName)] = info
		if info.RateLimits.TokensPerMinute > 0 || info.RateLimits.RequestsPerMinute > 0 {
			c.limiters.Set(info.Name, ratelimiter.New(
				info.RateLimits.TokensPerMinute,
				info.RateLimits.RequestsPerMinute,
			))
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GenerateFromText requests one image for prompt and returns it as a JPEG
// data URI. The prompt must already be validated by the caller.
func (c *Client) GenerateFromText(ctx context.Context, prompt string) (string, error) {
	cfg, info, err := c.resolve(c.generateConfig, 0)
	if err != nil {
		c.logger.Error("model cannot generate", "model", info.Name, "error", err.Error())
		return "", serviceError(MsgGenerationFailed, fmt.Errorf("%w: %w", ErrGenerationFailed, err))
	}
	start := time.Now()

	c.logger.Debug("starting image generation",
		"model", info.Name,
		"prompt_length", len(prompt),
	)

	if err := c.checkRateLimit(ctx, info, cfg, prompt, 0); err != nil {
		c.logger.Warn("rate limit hit", "model", info.Name, "error", err.Error())
		return "", serviceError(MsgRateLimited, err)
	}

	result, err := c.service.Generate(ctx, prompt, cfg)
	duration := time.Since(start)
	if err != nil {
		c.logger.Error("generation failed",
			"model", info.Name,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return "", serviceError(MsgGenerationFailed, fmt.Errorf("%w: %w", ErrGenerationFailed, err))
	}

	img, ok := result.First()
	if !ok {
		c.logger.Warn("generation returned no image",
			"model", info.Name,
			"duration_ms", duration.Milliseconds(),
			"filtered_reason", result.FilteredReason,
		)
		return "", serviceError(MsgNoImageProduced, ErrNoImageProduced)
	}

	c.logger.Info("generation completed",
		"model", info.Name,
		"duration_ms", duration.Milliseconds(),
		"bytes", len(img.Data),
	)

	return DataURI(OutputJPEG, img.Data), nil
}

// EditFromImageAndText sends image and the instruction prompt to the edit
// model and returns the first returned image as a data URI carrying the
// media type reported by the service.
func (c *Client) EditFromImageAndText(ctx context.Context, prompt string, image UploadedImage) (string, error) {
	input, err := image.InputImage()
	if err != nil {
		return "", serviceError(MsgEditFailed, fmt.Errorf("%w: %w", ErrEditFailed, err))
	}

	return c.edit(ctx, "edit", prompt, []InputImage{input}, func(cfg *GenerateConfig) (*GenerateResult, error) {
		return c.service.Edit(ctx, input, prompt, cfg)
	})
}

// ComposeFromImages edits with every given image as a reference.
func (c *Client) ComposeFromImages(ctx context.Context, prompt string, images ...UploadedImage) (string, error) {
	inputs := make([]InputImage, 0, len(images))
	for i, img := range images {
		input, err := img.InputImage()
		if err != nil {
			return "", serviceError(MsgEditFailed, fmt.Errorf("%w: image %d: %w", ErrEditFailed, i, err))
		}
		inputs = append(inputs, input)
	}

	return c.edit(ctx, "compose", prompt, inputs, func(cfg *GenerateConfig) (*GenerateResult, error) {
		return c.service.EditMultiple(ctx, inputs, prompt, cfg)
	})
}

func (c *Client) edit(ctx context.Context, op, prompt string, inputs []InputImage, call func(*GenerateConfig) (*GenerateResult, error)) (string, error) {
	cfg, info, err := c.resolve(c.editConfig, len(inputs))
	if err != nil {
		c.logger.Error("model cannot "+op, "model", info.Name, "error", err.Error())
		return "", serviceError(MsgEditFailed, fmt.Errorf("%w: %w", ErrEditFailed, err))
	}
	start := time.Now()

	c.logger.Debug("starting image "+op,
		"model", info.Name,
		"instruction_length", len(prompt),
		"input_images", len(inputs),
	)

	if err := c.checkRateLimit(ctx, info, cfg, prompt, len(inputs)); err != nil {
		c.logger.Warn("rate limit hit for "+op, "model", info.Name, "error", err.Error())
		return "", serviceError(MsgRateLimited, err)
	}

	result, err := call(cfg)
	duration := time.Since(start)
	if err != nil {
		c.logger.Error(op+" failed",
			"model", info.Name,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return "", serviceError(MsgEditFailed, fmt.Errorf("%w: %w", ErrEditFailed, err))
	}

	img, ok := result.First()
	if !ok {
		c.logger.Warn(op+" returned no image",
			"model", info.Name,
			"duration_ms", duration.Milliseconds(),
			"filtered_reason", result.FilteredReason,
			"text", result.Text,
		)
		return "", serviceError(MsgNoImageReturned, ErrNoImageReturned)
	}

	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = OutputPNG
	}

	logAttrs := []any{
		"model", info.Name,
		"duration_ms", duration.Milliseconds(),
		"input_images", len(inputs),
		"mime_type", mimeType,
	}
	if result.UsageMetadata != nil {
		logAttrs = append(logAttrs,
			"prompt_tokens", result.UsageMetadata.PromptTokens,
			"total_tokens", result.UsageMetadata.TotalTokens,
		)
	}
	c.logger.Info(op+" completed", logAttrs...)

	return DataURI(mimeType, img.Data), nil
}

// Models returns the definitions of the underlying service.
func (c *Client) Models() []ModelInfo {
	return c.service.Models()
}

// Close releases the underlying service.
func (c *Client) Close() error {
	return c.service.Close()
}

// resolve maps the configured model to the provider's API name and checks
// that it can take a call with inputs images. Unknown models are passed
// through unchanged and unchecked.
func (c *Client) resolve(base *GenerateConfig, inputs int) (*GenerateConfig, ModelInfo, error) {
	cfg := *base
	info, ok := c.models[cfg.Model]
	if !ok {
		return &cfg, ModelInfo{Name: string(cfg.Model), APIModelName: string(cfg.Model)}, nil
	}
	if err := info.Capabilities.Check(inputs); err != nil {
		return nil, info, err
	}
	cfg.Model = Model(info.APIModelName)
	if !info.Supports(cfg.AspectRatio) {
		c.logger.Warn("aspect ratio not supported by model, using model default",
			"model", info.Name,
			"aspect_ratio", cfg.AspectRatio.String(),
		)
		cfg.AspectRatio = AspectRatioAuto
	}
	if limit := info.Capabilities.MaxOutputImages; limit > 0 && cfg.NumberOfImages > limit {
		cfg.NumberOfImages = limit
	}
	return &cfg, info, nil
}

// checkRateLimit checks the model's limiter and optionally waits.
func (c *Client) checkRateLimit(ctx context.Context, info ModelInfo, cfg *GenerateConfig, prompt string, images int) error {
	limiter, ok := c.limiters.Get(info.Name)
	if !ok {
		return nil
	}

	tokens := estimateTokens(prompt, images)

	if cfg.WaitOnRateLimit {
		err := limiter.WaitAndConsume(ctx, tokens, cfg.MaxWaitDuration)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return &RateLimitError{
				RetryAfter: limiter.TimeUntilAvailable(tokens),
				LimitType:  "tokens",
				Model:      info.Name,
				Err:        err,
			}
		}
		return err
	}

	if !limiter.TryConsume(tokens) {
		return &RateLimitError{
			RetryAfter: limiter.TimeUntilAvailable(tokens),
			LimitType:  "tokens",
			Model:      info.Name,
		}
	}

	return nil
}

// estimateTokens approximates prompt tokens as four characters per token
// with a 20% margin, plus a fixed cost per inline image.
func estimateTokens(prompt string, images int) int {
	text := 0
	if n := len([]rune(prompt)); n > 0 {
		text = int(math.Ceil(float64(n)/4.0*1.2)) + 3
	}
	return text + images*imageTokenCost
}
