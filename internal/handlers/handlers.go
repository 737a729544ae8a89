package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hosplant/hosplant/internal/catalog"
	apierr "github.com/hosplant/hosplant/internal/errors"
	"github.com/hosplant/hosplant/internal/model"
	"github.com/hosplant/hosplant/internal/preprocess"
	"github.com/hosplant/hosplant/internal/ui"
)

const (
	MaxUploadBytes = 10 << 20
	imageField     = "image"
)

type Handler struct {
	modelServer *model.Server
	catalog     *catalog.Catalog
	renderer    *ui.Renderer
	metrics     *metrics
	registry    *prometheus.Registry
}

func NewHandler(modelServer *model.Server, c *catalog.Catalog) (*Handler, error) {
	renderer, err := ui.NewRenderer(c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	registry := prometheus.NewRegistry()
	return &Handler{
		modelServer: modelServer,
		catalog:     c,
		renderer:    renderer,
		metrics:     newMetrics(registry),
		registry:    registry,
	}, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if !h.modelServer.Model.Ready() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	ResponseJSON(w, code, map[string]any{
		"status": status,
		"model":  h.modelServer.Model.Info(),
	})
}

func (h *Handler) Plants(w http.ResponseWriter, r *http.Request) {
	ResponseOK(w, h.catalog)
}

// PredictFromImage classifies an uploaded image and answers with JSON.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	img, err := readUpload(r)
	if err != nil {
		h.metrics.failures.WithLabelValues(string(toErrorInfo(err).Code)).Inc()
		ResponseError(w, err)
		return
	}

	result, err := h.predict(r.Context(), img)
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, result)
}

// Index renders the page the browser is currently on.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, ui.View{Page: ui.CurrentPage(r)})
}

// Navigate applies a navigation event and sends the browser back to the
// refreshed view.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	next := ui.Transition(ui.CurrentPage(r), ui.ParseEvent(r.FormValue("to")))
	ui.StorePage(w, next)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Analyze runs the detection pipeline on an uploaded image and renders the
// result on the Detect page.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	log := logr.FromContextOrDiscard(r.Context())
	view := ui.View{Page: ui.Transition(ui.CurrentPage(r), ui.EventShowDetect)}
	ui.StorePage(w, view.Page)

	img, err := readUpload(r)
	if err != nil {
		info := toErrorInfo(err)
		h.metrics.failures.WithLabelValues(string(info.Code)).Inc()
		view.Error = info.Message
		h.render(w, r, info.HttpStatus, view)
		return
	}

	result, err := h.predict(r.Context(), img)
	if err != nil {
		info := toErrorInfo(err)
		view.Error = info.Message
		h.render(w, r, info.HttpStatus, view)
		return
	}
	view.Result = result

	preview, err := ui.Preview(img)
	if err != nil {
		log.Error(err, "failed to encode preview")
	}
	view.Preview = preview
	h.render(w, r, http.StatusOK, view)
}

func (h *Handler) predict(ctx context.Context, img image.Image) (*model.Prediction, error) {
	log := logr.FromContextOrDiscard(ctx)
	start := time.Now()

	result, err := h.modelServer.Predict(ctx, img)
	if err != nil {
		info := toErrorInfo(err)
		h.metrics.failures.WithLabelValues(string(info.Code)).Inc()
		log.Error(err, "prediction failed", "code", info.Code)
		return nil, err
	}
	h.metrics.duration.Observe(time.Since(start).Seconds())
	h.metrics.observe(result)

	log.Info("prediction",
		"plant", result.Plant,
		"condition", result.Condition,
		"confidence", result.Confidence,
		"elapsed", time.Since(start).String())
	return result, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, view ui.View) {
	buf := &bytes.Buffer{}
	if err := h.renderer.Render(buf, view); err != nil {
		logr.FromContextOrDiscard(r.Context()).Error(err, "render failed", "page", view.Page.String())
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// readUpload extracts the JPEG or PNG image from the multipart field "image",
// applies its EXIF orientation and converts it to opaque RGB.
func readUpload(r *http.Request) (image.Image, error) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, apierr.NewInvalidImageError("Failed to parse form")
	}
	// r may be a copy made by MaxBytesHandler, the server only cleans up the original.
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(imageField)
	if err != nil {
		return nil, apierr.NewInvalidImageError("No image file provided. Use 'image' as the form field name")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apierr.NewInvalidImageError("Failed to read image")
	}

	log := logr.FromContextOrDiscard(r.Context())
	img, format, err := preprocess.Decode(data)
	if err != nil {
		log.Info("rejected upload", "filename", header.Filename, "format", format, "error", err.Error())
		return nil, apierr.NewInvalidImageError("Invalid image format. Supported: JPEG, PNG")
	}
	log.V(1).Info("received image",
		"filename", header.Filename,
		"size", header.Size,
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	return img, nil
}
