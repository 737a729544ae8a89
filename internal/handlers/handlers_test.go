package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hosplant/hosplant/internal/catalog"
	apierr "github.com/hosplant/hosplant/internal/errors"
	"github.com/hosplant/hosplant/internal/labels"
	"github.com/hosplant/hosplant/internal/model"
	"github.com/hosplant/hosplant/internal/preprocess"
)

type fakeRunner struct {
	scores []float32
	err    error
}

func (f *fakeRunner) Run(input []float32) ([]float32, error) { return f.scores, f.err }
func (f *fakeRunner) Close() error { return nil }

func scoresFor(idx int, val float32) []float32 {
	scores := make([]float32, labels.Len())
	scores[idx] = val
	return scores
}

func newTestRouter(t *testing.T, runner model.Runner, size preprocess.InputSize) http.Handler {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	h, err := NewHandler(model.NewServer(model.NewModel(runner, size, labels.Len())), c)
	require.NoError(t, err)
	return h.Router(logr.Discard(), io.Discard)
}

var size64 = preprocess.InputSize{Width: 64, Height: 64, Layout: preprocess.LayoutNHWC}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 140, B: 40, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, gif.Encode(buf, image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black}), nil))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, "leaf.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, path, field string, data []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, field, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPredictFromImage(t *testing.T) {
	router := newTestRouter(t, &fakeRunner{scores: scoresFor(37, 0.92)}, size64)

	rec := serve(router, uploadRequest(t, "/api/v1/predict", "image", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	got := model.Prediction{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.Prediction{Plant: "Tomato", Condition: "healthy", Confidence: 0.92, ClassIndex: 37}, got)
}

func TestPredictFromImageErrors(t *testing.T) {
	tests := []struct {
		name     string
		runner   model.Runner
		size     preprocess.InputSize
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  apierr.ErrCode
	}{
		{
			name:     "wrong field",
			runner:   &fakeRunner{scores: scoresFor(0, 1)},
			size:     size64,
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/v1/predict", "file", pngBytes(t)) },
			wantCode: http.StatusBadRequest,
			wantErr:  apierr.ErrCodeInvalidImage,
		},
		{
			name:     "not an image",
			runner:   &fakeRunner{scores: scoresFor(0, 1)},
			size:     size64,
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/v1/predict", "image", []byte("hello")) },
			wantCode: http.StatusBadRequest,
			wantErr:  apierr.ErrCodeInvalidImage,
		},
		{
			name:     "gif rejected",
			runner:   &fakeRunner{scores: scoresFor(0, 1)},
			size:     size64,
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/v1/predict", "image", gifBytes(t)) },
			wantCode: http.StatusBadRequest,
			wantErr:  apierr.ErrCodeInvalidImage,
		},
		{
			name:     "dynamic model shape",
			runner:   &fakeRunner{scores: scoresFor(0, 1)},
			size:     preprocess.InputSize{Width: -1, Height: -1},
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/v1/predict", "image", pngBytes(t)) },
			wantCode: http.StatusInternalServerError,
			wantErr:  apierr.ErrCodeUnsupportedModelShape,
		},
		{
			name:     "inference failure",
			runner:   &fakeRunner{err: errors.New("session broke")},
			size:     size64,
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/v1/predict", "image", pngBytes(t)) },
			wantCode: http.StatusInternalServerError,
			wantErr:  apierr.ErrCodeInferenceFailed,
		},
		{
			name:     "no inference session",
			runner:   nil,
			size:     size64,
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/v1/predict", "image", pngBytes(t)) },
			wantCode: http.StatusServiceUnavailable,
			wantErr:  apierr.ErrCodeModelUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestRouter(t, tt.runner, tt.size), tt.req(t))
			assert.Equal(t, tt.wantCode, rec.Code)

			info := apierr.ErrorInfo{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, tt.wantErr, info.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(t, &fakeRunner{}, size64), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := struct {
		Status string     `json:"status"`
		Model  model.Info `json:"model"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, 64, got.Model.InputWidth)
	assert.Equal(t, 38, got.Model.Classes)
}

func TestHealthDegraded(t *testing.T) {
	rec := serve(newTestRouter(t, nil, size64), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	got := struct {
		Status string `json:"status"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got.Status)
}

func TestUploadRemovesTempFiles(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	srv := httptest.NewServer(newTestRouter(t, &fakeRunner{scores: scoresFor(37, 0.92)}, size64))
	defer srv.Close()

	// larger than the in-memory budget of the multipart parser, within the body cap
	data := make([]byte, MaxUploadBytes+MaxUploadBytes/20)
	copy(data, pngBytes(t))

	for _, path := range []string{"/api/v1/predict", "/analyze"} {
		t.Run(path, func(t *testing.T) {
			body, contentType := multipartBody(t, "image", data)
			resp, err := srv.Client().Post(srv.URL+path, contentType, body)
			require.NoError(t, err)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			leftover, err := filepath.Glob(filepath.Join(tmp, "multipart-*"))
			require.NoError(t, err)
			assert.Empty(t, leftover)
		})
	}
}

func TestPlants(t *testing.T) {
	rec := serve(newTestRouter(t, &fakeRunner{}, size64), httptest.NewRequest(http.MethodGet, "/api/v1/plants", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := catalog.Catalog{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Plants, 14)
}

func TestNavigation(t *testing.T) {
	router := newTestRouter(t, &fakeRunner{}, size64)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Plant Disease Detection")

	form := url.Values{"to": {"plants"}}
	req := httptest.NewRequest(http.MethodPost, "/navigate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = serve(router, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Diseases supported by our AI model")
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		data     func(t *testing.T) []byte
		wantCode int
		want     []string
	}{
		{
			name:     "healthy",
			runner:   &fakeRunner{scores: scoresFor(37, 0.92)},
			data:     pngBytes,
			wantCode: http.StatusOK,
			want:     []string{"Tomato HEALTHY", "92.0%", "data:image/jpeg;base64,"},
		},
		{
			name:     "diseased",
			runner:   &fakeRunner{scores: scoresFor(0, 0.81)},
			data:     pngBytes,
			wantCode: http.StatusOK,
			want:     []string{"Apple DISEASED", "81.0%", "Apple Scab"},
		},
		{
			name:     "bad upload",
			runner:   &fakeRunner{scores: scoresFor(0, 0.81)},
			data:     func(t *testing.T) []byte { return []byte("not an image") },
			wantCode: http.StatusBadRequest,
			want:     []string{"Invalid image format. Supported: JPEG, PNG"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestRouter(t, tt.runner, size64), uploadRequest(t, "/analyze", "image", tt.data(t)))
			assert.Equal(t, tt.wantCode, rec.Code)
			for _, want := range tt.want {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	router := newTestRouter(t, &fakeRunner{scores: scoresFor(37, 0.92)}, size64)
	serve(router, uploadRequest(t, "/api/v1/predict", "image", pngBytes(t)))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hosplant_predictions_total{plant="Tomato",status="healthy"} 1`)
}

func TestStatic(t *testing.T) {
	rec := serve(newTestRouter(t, &fakeRunner{}, size64), httptest.NewRequest(http.MethodGet, "/static/hosplant.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".plant-card")
}

func TestRequestIDPropagates(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := serve(newTestRouter(t, &fakeRunner{}, size64), req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
