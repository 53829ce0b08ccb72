package imagestudio

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies errors surfaced to the user.
type ErrorKind int

const (
	// KindValidation covers locally prevented submissions; no call is made.
	KindValidation ErrorKind = iota + 1
	// KindImageLoad covers file read or encode failures.
	KindImageLoad
	// KindService covers failures of the generate or edit call.
	KindService
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindImageLoad:
		return "image_load"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// Error is a user-facing failure. Message is safe to show to the end user;
// Err keeps the underlying cause for logging and errors.Is checks.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Condition sentinels carried inside *Error.
var (
	ErrEmptyPrompt      = errors.New("prompt cannot be blank")
	ErrMissingImage     = errors.New("slot 1 has no image")
	ErrImageLoad        = errors.New("image could not be loaded")
	ErrNoImageProduced  = errors.New("no image produced")
	ErrNoImageReturned  = errors.New("no image returned")
	ErrGenerationFailed = errors.New("generation failed")
	ErrEditFailed       = errors.New("edit failed")
	ErrCallPanicked     = errors.New("generation call panicked")

	ErrUnsupportedOperation = errors.New("model does not support this operation")
)

// Transition guards returned by Session operations. They never change state.
var (
	ErrSubmitInProgress = errors.New("a request is already in flight")
	ErrSuperseded       = errors.New("response discarded: session moved on")
	ErrWrongMode        = errors.New("operation not available in the current mode")
	ErrSlotUnavailable  = errors.New("image slot not available in the current layout")
	ErrNoFileChosen     = errors.New("no file chosen")
	ErrNoResult         = errors.New("no generated image")
	ErrUnknownOption    = errors.New("unknown option")
)

// User-facing messages.
const (
	MsgEnterPrompt      = "Please enter an idea."
	MsgUploadImage      = "Please upload an image to edit."
	MsgImageLoadFailed  = "Failed to load the image."
	MsgGenerationFailed = "Failed to generate image."
	MsgNoImageProduced  = "No image generated."
	MsgEditFailed       = "Failed to edit image."
	MsgNoImageReturned  = "No image was returned from the edit operation."
	MsgRateLimited      = "Too many requests, please try again shortly."
	MsgUnknown          = "An unknown error occurred."
)

func validationError(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: cause}
}

func imageLoadError(cause error) *Error {
	return &Error{Kind: KindImageLoad, Message: MsgImageLoadFailed, Err: fmt.Errorf("%w: %w", ErrImageLoad, cause)}
}

func serviceError(msg string, cause error) *Error {
	return &Error{Kind: KindService, Message: msg, Err: cause}
}

// UserMessage returns the message to display for err. Errors that carry no
// message fall back to MsgUnknown.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgUnknown
}

// KindOf returns the kind of err, or zero if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// RateLimitError is returned when a rate limit is hit.
type RateLimitError struct {
	RetryAfter time.Duration
	LimitType  string
	Model      string
	Err        error // Underlying error from the provider
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s limit, retry after %v",
		e.Model, e.LimitType, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimitError checks if an error is a RateLimitError.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// ErrStorageNotConfigured is returned when a download is saved without a
// configured storage backend.
var ErrStorageNotConfigured = errors.New("storage not configured")
