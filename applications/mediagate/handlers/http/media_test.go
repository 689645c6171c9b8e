package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/mediagate/applications/mediagate/adapters/inmemory"
	"github.com/donmikel/mediagate/applications/mediagate/adapters/wsdevice"
	"github.com/donmikel/mediagate/applications/mediagate/domain"
	"github.com/donmikel/mediagate/applications/mediagate/services"
)

type fixture struct {
	router http.Handler
	device *inmemory.Device
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	logger := log.NewNopLogger()
	device := inmemory.NewDevice("audio/webm", logger)
	rule := domain.NewValidationRule([]string{"audio/wav"}, 51200, 52428800)
	svc := services.NewService(rule, device, inmemory.NewMediaStore(logger), logger)

	return fixture{
		router: NewRouter(svc, nil, 60*domain.MiB, logger),
		device: device,
	}
}

func multipartBody(t *testing.T, name, contentType string, size int) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0x52}, size))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return body, w.FormDataContentType()
}

func (f fixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f fixture) upload(t *testing.T, name, contentType string, size int) *httptest.ResponseRecorder {
	t.Helper()

	body, ct := multipartBody(t, name, contentType, size)
	return f.do(t, http.MethodPost, "/upload", body, ct)
}

func TestUploadHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.upload(t, "take.wav", "audio/wav", 51200)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view assetView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "take.wav", view.Name)
	assert.Equal(t, "audio/wav", view.MimeType)
	assert.Equal(t, int64(51200), view.Size)
	assert.Equal(t, "50 KiB", view.SizeHuman)
	assert.Equal(t, "upload", view.Source)

	rec = f.do(t, http.MethodGet, "/results/upload", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, 51200, rec.Body.Len())
}

func TestUploadHandlerRejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name        string
		fileName    string
		contentType string
		size        int
		want        string
	}{
		{"too small", "take.wav", "audio/wav", 51199, "too small"},
		{"invalid type", "clip.mp4", "video/mp4", 1000000, "not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.upload(t, tt.fileName, tt.contentType, tt.size)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}

	rec := f.do(t, http.MethodGet, "/results", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view resultsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Nil(t, view.Uploaded)
}

func TestUploadHandlerMissingFile(t *testing.T) {
	f := newFixture(t)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("note", "nothing attached"))
	require.NoError(t, w.Close())

	rec := f.do(t, http.MethodPost, "/upload", body, w.FormDataContentType())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no file selected", rec.Body.String())
}

func TestUploadHandlerOversizedFileIsNotBuffered(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int64
	}{
		{"rule matches upload limit", 1000},
		{"rule above upload limit", 10000},
		{"rule without maximum", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := log.NewNopLogger()
			rule := domain.NewValidationRule([]string{"audio/wav"}, 0, tt.maxSize)
			svc := services.NewService(rule, inmemory.NewDevice("", logger), inmemory.NewMediaStore(logger), logger)
			f := fixture{router: NewRouter(svc, nil, 1000, logger)}

			rec := f.upload(t, "long.wav", "audio/wav", 4096)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, "file size is too large, maximum is 1000 B", rec.Body.String())

			rec = f.do(t, http.MethodGet, "/results", nil, "")
			require.Equal(t, http.StatusOK, rec.Code)
			var view resultsView
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
			assert.Nil(t, view.Uploaded)
		})
	}
}

func TestCaptureHandlers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/capture/stop", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/capture/start?video=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/capture/start?video=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"state":"active"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/capture/start", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	f.device.Last().Emit([]byte("chunk-1|"))
	f.device.Last().Emit([]byte("chunk-2"))

	rec = f.do(t, http.MethodPost, "/capture/stop", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var view assetView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "recording", view.Source)
	assert.Equal(t, int64(len("chunk-1|chunk-2")), view.Size)
	assert.True(t, strings.HasPrefix(view.Name, "recording-"))

	rec = f.do(t, http.MethodGet, "/results/recording", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chunk-1|chunk-2", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/capture/state", nil, "")
	assert.JSONEq(t, `{"state":"idle"}`, rec.Body.String())
}

func TestCaptureHandlerDenied(t *testing.T) {
	f := newFixture(t)
	f.device.Fail(domain.ErrPermissionDenied)

	rec := f.do(t, http.MethodPost, "/capture/start", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/capture/state", nil, "")
	assert.JSONEq(t, `{"state":"denied"}`, rec.Body.String())

	f.device.Fail(domain.ErrDeviceUnavailable)
	rec = f.do(t, http.MethodPost, "/capture/start", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCancelCaptureHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/capture/start", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/capture/cancel", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, f.device.Last().Releases())

	rec = f.do(t, http.MethodGet, "/results/recording", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultsHandlers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/results/elsewhere", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/results", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uploaded":null,"recorded":null}`, rec.Body.String())

	require.Equal(t, http.StatusCreated, f.upload(t, "take.wav", "audio/wav", 60000).Code)

	rec = f.do(t, http.MethodDelete, "/results", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/results/upload", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCaptureThroughBrowserSocket(t *testing.T) {
	logger := log.NewNopLogger()
	device := wsdevice.New(logger)
	defer device.Close()

	rule := domain.DefaultValidationRule()
	svc := services.NewService(rule, device, inmemory.NewMediaStore(logger), logger,
		services.WithRequestTimeout(5*time.Second))
	srv := httptest.NewServer(NewRouter(svc, device, 0, logger))
	defer srv.Close()

	browser, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/capture/device", nil)
	require.NoError(t, err)
	defer browser.Close()

	started := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/capture/start?video=true", "", nil)
		if err != nil {
			started <- nil
			return
		}
		started <- resp
	}()

	var req map[string]interface{}
	require.NoError(t, browser.ReadJSON(&req))
	assert.Equal(t, "request", req["type"])
	assert.Equal(t, true, req["video"])
	require.NoError(t, browser.WriteJSON(map[string]string{"type": "grant", "contentType": "video/webm"}))

	resp := <-started
	require.NotNil(t, resp)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/capture/stop", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view assetView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "video/webm", view.MimeType)
	assert.True(t, strings.HasSuffix(view.Name, ".webm"))

	_, _, err = browser.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestWriteErrLogsFailedWrite(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogfmtLogger(&buf)

	w := brokenWriter{httptest.NewRecorder()}
	writeErr(w, domain.ErrNoAsset, http.StatusNotFound, logger)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), `msg="can't write response"`)
	assert.Contains(t, buf.String(), io.ErrClosedPipe.Error())
}
