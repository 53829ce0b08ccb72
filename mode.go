package imagestudio

import (
	"fmt"
	"strings"
)

// Mode is the top-level choice between creating a new image from text and
// editing an uploaded one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit

	modeCount
)

var modeNames = [modeCount]string{
	ModeCreate: "create",
	ModeEdit:   "edit",
}

// String returns the wire name of the mode.
func (m Mode) String() string {
	if m < 0 || m >= modeCount {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode converts a wire name into a Mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: mode %q", ErrUnknownOption, s)
}

// CreateFunction selects the prompt template used in Create mode.
type CreateFunction int

const (
	CreateFree CreateFunction = iota
	CreateSticker
	CreateText
	CreateComic

	createFunctionCount
)

var createFunctionNames = [createFunctionCount]string{
	CreateFree:    "free",
	CreateSticker: "sticker",
	CreateText:    "text",
	CreateComic:   "comic",
}

func (f CreateFunction) String() string {
	if f < 0 || f >= createFunctionCount {
		return fmt.Sprintf("CreateFunction(%d)", int(f))
	}
	return createFunctionNames[f]
}

// ParseCreateFunction converts a wire name into a CreateFunction.
func ParseCreateFunction(s string) (CreateFunction, error) {
	for i, name := range createFunctionNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return CreateFunction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: create function %q", ErrUnknownOption, s)
}

// CreateFunctions lists every create function in display order.
func CreateFunctions() []CreateFunction {
	out := make([]CreateFunction, 0, createFunctionCount)
	for f := CreateFunction(0); f < createFunctionCount; f++ {
		out = append(out, f)
	}
	return out
}

// EditFunction selects the editing intent in Edit mode. Only EditCompose
// changes the upload layout.
type EditFunction int

const (
	EditAddRemove EditFunction = iota
	EditRetouch
	EditStyle
	EditCompose

	editFunctionCount
)

var editFunctionNames = [editFunctionCount]string{
	EditAddRemove: "add-remove",
	EditRetouch:   "retouch",
	EditStyle:     "style",
	EditCompose:   "compose",
}

func (f EditFunction) String() string {
	if f < 0 || f >= editFunctionCount {
		return fmt.Sprintf("EditFunction(%d)", int(f))
	}
	return editFunctionNames[f]
}

// ParseEditFunction converts a wire name into an EditFunction.
func ParseEditFunction(s string) (EditFunction, error) {
	for i, name := range editFunctionNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return EditFunction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: edit function %q", ErrUnknownOption, s)
}

// EditFunctions lists every edit function in display order.
func EditFunctions() []EditFunction {
	out := make([]EditFunction, 0, editFunctionCount)
	for f := EditFunction(0); f < editFunctionCount; f++ {
		out = append(out, f)
	}
	return out
}

// DualImage reports whether the function uses the two-slot upload layout.
func (f EditFunction) DualImage() bool {
	return f == EditCompose
}
