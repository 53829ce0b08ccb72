package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mhpenta/imagestudio"
)

type slotView struct {
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

type sessionView struct {
	Mode           string    `json:"mode"`
	CreateFunction string    `json:"create_function"`
	EditFunction   string    `json:"edit_function"`
	Prompt         string    `json:"prompt"`
	Slot1          *slotView `json:"slot1,omitempty"`
	Slot2          *slotView `json:"slot2,omitempty"`
	Result         string    `json:"result,omitempty"`
	Status         string    `json:"status"`
	Loading        bool      `json:"loading"`
	Error          string    `json:"error,omitempty"`
	DualImage      bool      `json:"dual_image"`

	CreateFunctions []string `json:"create_functions"`
	EditFunctions   []string `json:"edit_functions"`
	UploadTypes     []string `json:"upload_types"`
	UploadMaxBytes  int      `json:"upload_max_bytes"`
}

type errorResponse struct {
	Error   string       `json:"error"`
	Session *sessionView `json:"session,omitempty"`
}

func newSlotView(img *imagestudio.UploadedImage) *slotView {
	if img == nil {
		return nil
	}
	return &slotView{FileName: img.FileName, MIMEType: img.MIMEType, Size: img.Size}
}

func newSessionView(snap imagestudio.Snapshot) *sessionView {
	v := &sessionView{
		Mode:           snap.Mode.String(),
		CreateFunction: snap.CreateFunction.String(),
		EditFunction:   snap.EditFunction.String(),
		Prompt:         snap.Prompt,
		Slot1:          newSlotView(snap.Slot1),
		Slot2:          newSlotView(snap.Slot2),
		Result:         snap.Result,
		Status:         snap.Status.String(),
		Loading:        snap.Loading(),
		Error:          snap.Error,
		DualImage:      snap.DualImage,
		UploadTypes:    imagestudio.UploadTypeHints,
		UploadMaxBytes: imagestudio.UploadSizeHint,
	}
	for _, fn := range imagestudio.CreateFunctions() {
		v.CreateFunctions = append(v.CreateFunctions, fn.String())
	}
	for _, fn := range imagestudio.EditFunctions() {
		v.EditFunctions = append(v.EditFunctions, fn.String())
	}
	return v
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeSession(w http.ResponseWriter) {
	s.json(w, http.StatusOK, newSessionView(s.session.Snapshot()))
}

// writeError maps session errors to status codes. Errors from the
// generation call itself are not transport failures: the snapshot carries
// the message and the response is 200.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, snap *imagestudio.Snapshot) {
	code := statusFor(err)
	if code == http.StatusOK && snap != nil {
		s.json(w, code, newSessionView(*snap))
		return
	}
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", RequestID(r.Context()),
			"error", err,
		)
	}
	resp := errorResponse{Error: imagestudio.UserMessage(err)}
	if snap != nil {
		resp.Session = newSessionView(*snap)
	}
	s.json(w, code, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, imagestudio.ErrUnknownOption),
		errors.Is(err, imagestudio.ErrNoFileChosen),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, imagestudio.ErrWrongMode),
		errors.Is(err, imagestudio.ErrSlotUnavailable),
		errors.Is(err, imagestudio.ErrSubmitInProgress),
		errors.Is(err, imagestudio.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, imagestudio.ErrNoResult):
		return http.StatusNotFound
	case errors.Is(err, imagestudio.ErrStorageNotConfigured):
		return http.StatusServiceUnavailable
	}
	switch imagestudio.KindOf(err) {
	case imagestudio.KindValidation, imagestudio.KindImageLoad:
		return http.StatusUnprocessableEntity
	case imagestudio.KindService:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	s.writeSession(w)
}

func (s *Server) setPrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.session.SetPrompt(body.Prompt)
	s.writeSession(w)
}

func (s *Server) switchMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	mode, err := imagestudio.ParseMode(body.Mode)
	if err == nil {
		err = s.session.SwitchMode(mode)
	}
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.writeSession(w)
}

func (s *Server) selectCreateFunction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Function string `json:"function"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	fn, err := imagestudio.ParseCreateFunction(body.Function)
	if err == nil {
		err = s.session.SelectCreateFunction(fn)
	}
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.writeSession(w)
}

func (s *Server) selectEditFunction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Function string `json:"function"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	fn, err := imagestudio.ParseEditFunction(body.Function)
	if err == nil {
		err = s.session.SelectEditFunction(fn)
	}
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.writeSession(w)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		s.writeError(w, r, imagestudio.ErrSlotUnavailable, nil)
		return
	}
	slot := imagestudio.Slot(n)

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		snap, err := s.session.Upload(r.Context(), slot, nil, "", "")
		s.writeError(w, r, err, &snap)
		return
	}
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}
	defer file.Close()

	snap, err := s.session.Upload(r.Context(), slot, file, header.Filename, declaredType(header))
	if err != nil {
		s.writeError(w, r, err, &snap)
		return
	}
	s.json(w, http.StatusOK, newSessionView(snap))
}

// declaredType prefers the part's Content-Type and falls back to the file
// extension.
func declaredType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return imagestudio.MIMETypeFromName(h.Filename)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Submit(r.Context())
	if err != nil && !(snap.Status == imagestudio.StatusFailed && imagestudio.KindOf(err) != imagestudio.KindValidation) {
		s.writeError(w, r, err, &snap)
		return
	}
	if err != nil {
		s.logger.WarnContext(r.Context(), "generation failed",
			"request_id", RequestID(r.Context()),
			"mode", snap.Mode.String(),
			"error", err,
		)
	}
	s.json(w, http.StatusOK, newSessionView(snap))
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	d, err := s.session.Download()
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", d.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Data)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.writeError(w, r, imagestudio.ErrStorageNotConfigured, nil)
		return
	}
	res, err := s.session.SaveDownload(r.Context(), s.storage)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.json(w, http.StatusOK, map[string]any{
		"url":  res.URL,
		"path": res.Path,
		"size": res.Size,
	})
}

func (s *Server) editResult(w http.ResponseWriter, r *http.Request) {
	if err := s.session.EditResult(); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.writeSession(w)
}
