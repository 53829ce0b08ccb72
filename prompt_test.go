package imagestudio

import "testing"

func TestComposePrompt(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		fn   CreateFunction
		text string
		want string
	}{
		{
			name: "free passes text through",
			mode: ModeCreate,
			fn:   CreateFree,
			text: "a red fox",
			want: "a red fox",
		},
		{
			name: "sticker",
			mode: ModeCreate,
			fn:   CreateSticker,
			text: "a happy cat",
			want: "sticker design, vector, vibrant colors, die-cut, white background. Prompt: a happy cat",
		},
		{
			name: "text",
			mode: ModeCreate,
			fn:   CreateText,
			text: "ACME",
			want: "typography logo, clean, modern, vector, high contrast. Text: ACME",
		},
		{
			name: "comic",
			mode: ModeCreate,
			fn:   CreateComic,
			text: "a hero lands",
			want: "comic book style, dynamic, panel art, bold lines, vibrant colors. Scene: a hero lands",
		},
		{
			name: "edit mode ignores create function",
			mode: ModeEdit,
			fn:   CreateSticker,
			text: "remove the background",
			want: "remove the background",
		},
		{
			name: "edit mode allows empty text",
			mode: ModeEdit,
			fn:   CreateFree,
			text: "",
			want: "",
		},
		{
			name: "out of range function passes through",
			mode: ModeCreate,
			fn:   createFunctionCount,
			text: "x",
			want: "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComposePrompt(tt.mode, tt.fn, tt.text); got != tt.want {
				t.Errorf("ComposePrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposePrompt_Deterministic(t *testing.T) {
	for _, fn := range CreateFunctions() {
		first := ComposePrompt(ModeCreate, fn, "same input")
		second := ComposePrompt(ModeCreate, fn, "same input")
		if first != second {
			t.Errorf("%s: got %q then %q", fn, first, second)
		}
	}
}

func TestCreateTemplates_Complete(t *testing.T) {
	for _, fn := range CreateFunctions() {
		tmpl := createTemplates[fn]
		if fn == CreateFree {
			if tmpl.directive != "" {
				t.Errorf("free must not carry a directive, got %q", tmpl.directive)
			}
			continue
		}
		if tmpl.directive == "" || tmpl.label == "" {
			t.Errorf("%s: missing template", fn)
		}
	}
}
