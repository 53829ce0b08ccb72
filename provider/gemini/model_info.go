package gemini

import "github.com/mhpenta/imagestudio"

var squareAndCommonRatios = []imagestudio.AspectRatio{
	imagestudio.AspectRatio1x1,
	imagestudio.AspectRatio16x9,
	imagestudio.AspectRatio9x16,
	imagestudio.AspectRatio4x3,
	imagestudio.AspectRatio3x4,
}

// Imagen4Info describes the text-to-image model.
var Imagen4Info = imagestudio.ModelInfo{
	Name:         string(imagestudio.ModelImagen4),
	Provider:     imagestudio.ProviderGeminiAPI,
	APIModelName: APIModelImagen4,

	Capabilities: imagestudio.ModelCapabilities{
		SupportsTextToImage: true,
		MaxOutputImages:     4,
	},

	SupportedAspectRatios: squareAndCommonRatios,

	// Imagen is billed per image; only the request rate matters here.
	RateLimits: imagestudio.RateLimits{
		RequestsPerMinute: 20,
	},
}

// FlashImageInfo describes the multimodal edit model.
var FlashImageInfo = imagestudio.ModelInfo{
	Name:         string(imagestudio.ModelFlashImage),
	Provider:     imagestudio.ProviderGeminiAPI,
	APIModelName: APIModelFlashImage,

	Capabilities: imagestudio.ModelCapabilities{
		SupportsTextToImage:  true,
		SupportsImageEditing: true,
		SupportsMultiImage:   true,
		MaxInputImages:       imagestudio.MaxInputImages,
		MaxOutputImages:      1,
	},

	SupportedAspectRatios: squareAndCommonRatios,

	RateLimits: imagestudio.RateLimits{
		TokensPerMinute:   4000000,
		RequestsPerMinute: 500,
	},
}
