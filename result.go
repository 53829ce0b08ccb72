package imagestudio

import "fmt"

// SafetyCategory represents a content safety category.
type SafetyCategory string

const (
	SafetyCategoryHarassment       SafetyCategory = "HARM_CATEGORY_HARASSMENT"
	SafetyCategoryHateSpeech       SafetyCategory = "HARM_CATEGORY_HATE_SPEECH"
	SafetyCategorySexuallyExplicit SafetyCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	SafetyCategoryDangerousContent SafetyCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// SafetyThreshold represents the blocking threshold for safety filters.
type SafetyThreshold string

const (
	SafetyThresholdBlockNone      SafetyThreshold = "BLOCK_NONE"
	SafetyThresholdBlockLowAndUp  SafetyThreshold = "BLOCK_LOW_AND_ABOVE"
	SafetyThresholdBlockMedAndUp  SafetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	SafetyThresholdBlockHighAndUp SafetyThreshold = "BLOCK_ONLY_HIGH"
)

// SafetySetting configures content filtering for a specific category.
type SafetySetting struct {
	Category  SafetyCategory
	Threshold SafetyThreshold
}

// Validate rejects categories and thresholds the service does not know.
func (s SafetySetting) Validate() error {
	switch s.Category {
	case SafetyCategoryHarassment, SafetyCategoryHateSpeech,
		SafetyCategorySexuallyExplicit, SafetyCategoryDangerousContent:
	default:
		return fmt.Errorf("unknown safety category %q", s.Category)
	}
	switch s.Threshold {
	case SafetyThresholdBlockNone, SafetyThresholdBlockLowAndUp,
		SafetyThresholdBlockMedAndUp, SafetyThresholdBlockHighAndUp:
	default:
		return fmt.Errorf("unknown safety threshold %q for %s", s.Threshold, s.Category)
	}
	return nil
}

// GeneratedImage is one image returned by the service.
type GeneratedImage struct {
	Data     []byte
	MIMEType string

	// Index is the position in a multi-image result (0-indexed)
	Index int
}

// GenerateResult holds the complete result of a service call.
type GenerateResult struct {
	// Images in the order the service returned them
	Images []GeneratedImage

	// Text contains any text parts returned alongside the images
	Text string

	// FilteredReason is set when the service withheld output for policy reasons
	FilteredReason string

	UsageMetadata *UsageMetadata
}

// UsageMetadata contains usage information for billing and monitoring.
type UsageMetadata struct {
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
	ImageCount       int
}

// First returns the first image, if any.
func (r *GenerateResult) First() (GeneratedImage, bool) {
	if r == nil || len(r.Images) == 0 {
		return GeneratedImage{}, false
	}
	return r.Images[0], true
}
