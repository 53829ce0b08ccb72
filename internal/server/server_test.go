package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/imagestudio"
	"github.com/mhpenta/imagestudio/internal/metrics"
)

type stubClient struct {
	generate func(ctx context.Context, prompt string) (string, error)
	edit     func(ctx context.Context, prompt string, image imagestudio.UploadedImage) (string, error)
}

func (c *stubClient) GenerateFromText(ctx context.Context, prompt string) (string, error) {
	if c.generate != nil {
		return c.generate(ctx, prompt)
	}
	return imagestudio.DataURI(imagestudio.OutputJPEG, []byte("jpeg")), nil
}

func (c *stubClient) EditFromImageAndText(ctx context.Context, prompt string, image imagestudio.UploadedImage) (string, error) {
	if c.edit != nil {
		return c.edit(ctx, prompt, image)
	}
	return imagestudio.DataURI(imagestudio.OutputPNG, []byte("png")), nil
}

func (c *stubClient) ComposeFromImages(ctx context.Context, prompt string, images ...imagestudio.UploadedImage) (string, error) {
	return c.EditFromImageAndText(ctx, prompt, images[0])
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestServer(t *testing.T, client imagestudio.GenerationClient, opts ...Option) http.Handler {
	t.Helper()
	session := imagestudio.NewSession(client,
		imagestudio.WithSessionLogger(testLogger),
		imagestudio.WithClock(func() time.Time { return time.UnixMilli(1000) }),
	)
	opts = append([]Option{WithLogger(testLogger)}, opts...)
	return New(session, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, slot, name, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+name+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/session/slots/"+slot, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) sessionView {
	t.Helper()
	var v sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestHealthAndRequestID(t *testing.T) {
	h := newTestServer(t, &stubClient{})

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "response must carry a uuid request id")

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestGetSession(t *testing.T) {
	h := newTestServer(t, &stubClient{})

	rec := do(t, h, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decodeView(t, rec)
	assert.Equal(t, "create", v.Mode)
	assert.Equal(t, "free", v.CreateFunction)
	assert.Equal(t, "add-remove", v.EditFunction)
	assert.Equal(t, "idle", v.Status)
	assert.Equal(t, []string{"free", "sticker", "text", "comic"}, v.CreateFunctions)
	assert.Equal(t, []string{"add-remove", "retouch", "style", "compose"}, v.EditFunctions)
	assert.Equal(t, imagestudio.UploadSizeHint, v.UploadMaxBytes)
}

func TestCreateFlow(t *testing.T) {
	var gotPrompt string
	h := newTestServer(t, &stubClient{
		generate: func(ctx context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return imagestudio.DataURI(imagestudio.OutputJPEG, []byte("jpeg")), nil
		},
	})

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, "/api/session/create-function", map[string]string{"function": "comic"}).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, "/api/session/prompt", map[string]string{"prompt": "a hero lands"}).Code)

	rec := do(t, h, http.MethodPost, "/api/session/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, "resulted", v.Status)
	assert.Equal(t, "data:image/jpeg;base64,anBlZw==", v.Result)
	assert.Equal(t, "comic book style, dynamic, panel art, bold lines, vibrant colors. Scene: a hero lands", gotPrompt)

	rec = do(t, h, http.MethodGet, "/api/session/result/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ai-image-1000.jpg"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/session/result/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.Equal(t, "edit", v.Mode)
	assert.Empty(t, v.Result)
	assert.Nil(t, v.Slot1)
}

func TestGenerate_Validation(t *testing.T) {
	h := newTestServer(t, &stubClient{})

	rec := do(t, h, http.MethodPost, "/api/session/generate", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, imagestudio.MsgEnterPrompt, e.Error)
	require.NotNil(t, e.Session)
	assert.Equal(t, "failed", e.Session.Status)
}

func TestGenerate_ServiceFailureReturnsSnapshot(t *testing.T) {
	h := newTestServer(t, &stubClient{
		generate: func(ctx context.Context, prompt string) (string, error) {
			return "", &imagestudio.Error{Kind: imagestudio.KindService, Message: imagestudio.MsgGenerationFailed, Err: errors.New("503")}
		},
	})
	do(t, h, http.MethodPut, "/api/session/prompt", map[string]string{"prompt": "x"})

	rec := do(t, h, http.MethodPost, "/api/session/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, "failed", v.Status)
	assert.Equal(t, imagestudio.MsgGenerationFailed, v.Error)
}

func TestEditFlow(t *testing.T) {
	var gotImage imagestudio.UploadedImage
	h := newTestServer(t, &stubClient{
		edit: func(ctx context.Context, prompt string, image imagestudio.UploadedImage) (string, error) {
			gotImage = image
			return imagestudio.DataURI("image/png", []byte("out")), nil
		},
	})

	// Uploads are rejected outside Edit mode.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "1", "cat.png", "image/png", []byte("cat")))
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, "/api/session/mode", map[string]string{"mode": "edit"}).Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "2", "dog.png", "image/png", []byte("dog")))
	assert.Equal(t, http.StatusConflict, rec.Code, "slot 2 needs the compose layout")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "1", "cat.png", "image/png", []byte("cat")))
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	require.NotNil(t, v.Slot1)
	assert.Equal(t, "cat.png", v.Slot1.FileName)
	assert.Equal(t, 3, v.Slot1.Size)

	rec = do(t, h, http.MethodPost, "/api/session/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data:image/png;base64,b3V0", decodeView(t, rec).Result)
	assert.Equal(t, "image/png", gotImage.MIMEType)

	rec = do(t, h, http.MethodPut, "/api/session/edit-function", map[string]string{"function": "compose"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeView(t, rec).DualImage)
}

func TestUpload_NoFileChosen(t *testing.T) {
	h := newTestServer(t, &stubClient{})
	do(t, h, http.MethodPut, "/api/session/mode", map[string]string{"mode": "edit"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "1", "", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadInput(t *testing.T) {
	h := newTestServer(t, &stubClient{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown mode", http.MethodPut, "/api/session/mode", map[string]string{"mode": "paint"}, http.StatusBadRequest},
		{"unknown function", http.MethodPut, "/api/session/create-function", map[string]string{"function": "pixel"}, http.StatusBadRequest},
		{"edit function in create mode", http.MethodPut, "/api/session/edit-function", map[string]string{"function": "style"}, http.StatusConflict},
		{"download without result", http.MethodGet, "/api/session/result/download", nil, http.StatusNotFound},
		{"edit result without result", http.MethodPost, "/api/session/result/edit", nil, http.StatusNotFound},
		{"save without storage", http.MethodPost, "/api/session/result/save", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPut, "/api/session/prompt", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveDownload(t *testing.T) {
	dir := t.TempDir()
	storage, err := imagestudio.NewFileStorage(dir)
	require.NoError(t, err)

	h := newTestServer(t, &stubClient{}, WithStorage(storage))
	do(t, h, http.MethodPut, "/api/session/prompt", map[string]string{"prompt": "x"})
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/session/generate", nil).Code)

	rec := do(t, h, http.MethodPost, "/api/session/result/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "ai-image-1000.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector("imagestudio")
	h := newTestServer(t, &stubClient{}, WithMetrics(collector))

	do(t, h, http.MethodGet, "/api/session", nil)

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `imagestudio_http_requests_total{method="GET",route="/api/session`)
	assert.NotContains(t, rec.Body.String(), `route="/healthz"`)
}
