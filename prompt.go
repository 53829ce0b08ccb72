package imagestudio

// createTemplates maps each create function to its style directive. The
// user's text is appended after the directive's label.
var createTemplates = [createFunctionCount]struct {
	directive string
	label     string
}{
	CreateFree:    {},
	CreateSticker: {directive: "sticker design, vector, vibrant colors, die-cut, white background.", label: "Prompt"},
	CreateText:    {directive: "typography logo, clean, modern, vector, high contrast.", label: "Text"},
	CreateComic:   {directive: "comic book style, dynamic, panel art, bold lines, vibrant colors.", label: "Scene"},
}

// ComposePrompt builds the prompt sent to the model. Templating applies in
// Create mode only; Edit mode and CreateFree pass the text through unchanged.
func ComposePrompt(mode Mode, fn CreateFunction, text string) string {
	if mode != ModeCreate || fn < 0 || fn >= createFunctionCount {
		return text
	}
	tmpl := createTemplates[fn]
	if tmpl.directive == "" {
		return text
	}
	return tmpl.directive + " " + tmpl.label + ": " + text
}
