package imagestudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of the latest generation attempt.
type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusResulted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusResulted:
		return "resulted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Slot identifies an image attachment point.
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

func (s Slot) valid() bool { return s == Slot1 || s == Slot2 }

// Snapshot is a copy of the session record at one instant.
type Snapshot struct {
	Mode           Mode
	CreateFunction CreateFunction
	EditFunction   EditFunction
	Prompt         string
	Slot1          *UploadedImage
	Slot2          *UploadedImage
	Result         string
	Status         Status
	Error          string
	DualImage      bool
	RequestToken   string
}

// Loading reports whether a generation call is in flight.
func (s Snapshot) Loading() bool { return s.Status == StatusSubmitting }

// Session is the single state record behind the UI. It is mutated only
// through its methods, which may be called from any goroutine.
type Session struct {
	client      GenerationClient
	logger      *slog.Logger
	observer    Observer
	now         func() time.Time
	newToken    func() string
	dualCompose bool

	mu             sync.Mutex
	mode           Mode
	createFn       CreateFunction
	editFn         EditFunction
	prompt         string
	slots          [2]*UploadedImage
	result         string
	errMsg         string
	status         Status
	dual           bool
	inflight       string
	cancelInflight context.CancelFunc
	// epoch changes on every mode switch so late uploads can be dropped.
	epoch uint64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger for transition diagnostics.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithObserver registers lifecycle hooks, typically metrics.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock overrides the time source used for download names.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithTokenSource overrides request token generation.
func WithTokenSource(next func() string) SessionOption {
	return func(s *Session) {
		s.newToken = next
	}
}

// WithDualImageCompose routes Compose submissions with both slots filled to
// ComposeFromImages. Without it every edit uses slot 1 only.
func WithDualImageCompose() SessionOption {
	return func(s *Session) {
		s.dualCompose = true
	}
}

// NewSession creates a session in Create mode with the Free function.
func NewSession(client GenerationClient, opts ...SessionOption) *Session {
	s := &Session{
		client:   client,
		logger:   slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
		newToken: uuid.NewString,
		mode:     ModeCreate,
		createFn: CreateFree,
		editFn:   EditAddRemove,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current record.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Mode:           s.mode,
		CreateFunction: s.createFn,
		EditFunction:   s.editFn,
		Prompt:         s.prompt,
		Result:         s.result,
		Status:         s.status,
		Error:          s.errMsg,
		DualImage:      s.dual,
		RequestToken:   s.inflight,
	}
	if img := s.slots[0]; img != nil {
		cp := *img
		snap.Slot1 = &cp
	}
	if img := s.slots[1]; img != nil {
		cp := *img
		snap.Slot2 = &cp
	}
	return snap
}

// SetPrompt replaces the free-text prompt. Allowed in any state.
func (s *Session) SetPrompt(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = text
}

// SwitchMode activates mode and starts fresh: result, error and both slots
// are cleared and any in-flight request is cancelled and its response will
// be discarded.
func (s *Session) SwitchMode(mode Mode) error {
	if mode < 0 || mode >= modeCount {
		return ErrUnknownOption
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchModeLocked(mode)
	return nil
}

func (s *Session) switchModeLocked(mode Mode) {
	s.abandonInflightLocked()
	s.mode = mode
	s.result = ""
	s.errMsg = ""
	s.slots = [2]*UploadedImage{}
	s.status = StatusIdle
	s.epoch++

	s.logger.Debug("mode switched", "mode", mode.String())
}

func (s *Session) abandonInflightLocked() {
	if s.inflight == "" {
		return
	}
	s.logger.Debug("abandoning in-flight request", "token", s.inflight)
	if s.cancelInflight != nil {
		s.cancelInflight()
	}
	s.inflight = ""
	s.cancelInflight = nil
}

// SelectCreateFunction picks the prompt template. Create mode only.
func (s *Session) SelectCreateFunction(fn CreateFunction) error {
	if fn < 0 || fn >= createFunctionCount {
		return ErrUnknownOption
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeCreate {
		return ErrWrongMode
	}
	s.createFn = fn
	return nil
}

// SelectEditFunction picks the editing intent and the matching layout.
// Edit mode only. Slot contents are kept.
func (s *Session) SelectEditFunction(fn EditFunction) error {
	if fn < 0 || fn >= editFunctionCount {
		return ErrUnknownOption
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeEdit {
		return ErrWrongMode
	}
	s.editFn = fn
	s.dual = fn.DualImage()
	return nil
}

// Upload encodes the file read from r into slot. Edit mode only; slot 2
// requires the dual-image layout. On encode failure the load error becomes
// the session error and the slot keeps its previous content.
func (s *Session) Upload(ctx context.Context, slot Slot, r io.Reader, name, mimeType string) (Snapshot, error) {
	if !slot.valid() {
		return s.Snapshot(), ErrSlotUnavailable
	}
	if r == nil {
		return s.Snapshot(), ErrNoFileChosen
	}

	s.mu.Lock()
	if s.mode != ModeEdit {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrWrongMode
	}
	if slot == Slot2 && !s.dual {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrSlotUnavailable
	}
	epoch := s.epoch
	s.mu.Unlock()

	img, err := EncodeImage(r, name, mimeType)
	s.observer.ImageUploaded(slot, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.logger.Debug("discarding upload finished after mode switch", "slot", int(slot))
		return s.snapshotLocked(), ErrSuperseded
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "image upload failed", "slot", int(slot), "file", name, "error", err)
		s.errMsg = UserMessage(err)
		if s.status != StatusSubmitting {
			s.result = ""
			s.status = StatusFailed
		}
		return s.snapshotLocked(), err
	}

	s.slots[slot-1] = &img
	s.logger.Debug("image uploaded", "slot", int(slot), "file", name, "bytes", img.Size, "mime_type", img.MIMEType)
	return s.snapshotLocked(), nil
}

// Submit runs one generation or edit for the current record and blocks until
// it resolves. While a request is in flight Submit is inert and returns
// ErrSubmitInProgress. Validation failures surface without any call.
func (s *Session) Submit(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()

	if s.status == StatusSubmitting {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrSubmitInProgress
	}

	mode := s.mode
	var call func(context.Context) (string, error)

	switch mode {
	case ModeCreate:
		if err := ValidatePrompt(s.prompt); err != nil {
			return s.failValidationLocked(validationError(MsgEnterPrompt, err))
		}
		prompt := ComposePrompt(mode, s.createFn, s.prompt)
		call = func(ctx context.Context) (string, error) {
			return s.client.GenerateFromText(ctx, prompt)
		}
	case ModeEdit:
		if s.slots[0] == nil {
			return s.failValidationLocked(validationError(MsgUploadImage, ErrMissingImage))
		}
		prompt := ComposePrompt(mode, s.createFn, s.prompt)
		first := *s.slots[0]
		if s.dualCompose && s.editFn == EditCompose && s.slots[1] != nil {
			second := *s.slots[1]
			call = func(ctx context.Context) (string, error) {
				return s.client.ComposeFromImages(ctx, prompt, first, second)
			}
		} else {
			call = func(ctx context.Context) (string, error) {
				return s.client.EditFromImageAndText(ctx, prompt, first)
			}
		}
	}

	token := s.newToken()
	callCtx, cancel := context.WithCancel(ctx)
	s.result = ""
	s.errMsg = ""
	s.status = StatusSubmitting
	s.inflight = token
	s.cancelInflight = cancel
	s.mu.Unlock()

	s.observer.SubmitStarted(token, mode)
	s.logger.Debug("request submitted", "mode", mode.String(), "token", token)

	uri, err := s.invoke(callCtx, token, call)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != token {
		s.logger.Debug("discarding stale response", "token", token)
		s.observer.SubmitFinished(token, mode, StatusIdle, ErrSuperseded)
		return s.snapshotLocked(), ErrSuperseded
	}

	s.inflight = ""
	s.cancelInflight = nil

	if err != nil {
		s.status = StatusFailed
		s.errMsg = UserMessage(err)
		s.observer.SubmitFinished(token, mode, StatusFailed, err)
		return s.snapshotLocked(), err
	}

	s.status = StatusResulted
	s.result = uri
	s.errMsg = ""
	s.observer.SubmitFinished(token, mode, StatusResulted, nil)
	return s.snapshotLocked(), nil
}

// invoke runs call and turns a panic into an error so Submitting is always
// left through the failure branch.
func (s *Session) invoke(ctx context.Context, token string, call func(context.Context) (string, error)) (uri string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "generation call panicked", "token", token, "panic", r)
			uri = ""
			err = &Error{Kind: KindService, Message: MsgUnknown, Err: fmt.Errorf("%w: %v", ErrCallPanicked, r)}
		}
	}()
	return call(ctx)
}

// failValidationLocked records a validation error and releases the lock.
func (s *Session) failValidationLocked(err *Error) (Snapshot, error) {
	s.result = ""
	s.errMsg = err.Message
	s.status = StatusFailed
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.observer.SubmitFinished("", snap.Mode, StatusFailed, err)
	return snap, err
}

// EditResult moves to Edit mode after a successful generation. The mode
// switch clears the record, so the result is not carried into slot 1.
func (s *Session) EditResult() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusResulted || s.result == "" {
		return ErrNoResult
	}
	s.switchModeLocked(ModeEdit)
	return nil
}

// IsStale reports whether err means the response was dropped because the
// session moved on.
func IsStale(err error) bool {
	return errors.Is(err, ErrSuperseded)
}
