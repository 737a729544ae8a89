package handlers

import (
	"io"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hosplant/hosplant/internal/ui"
)

const RequestIDHeader = "X-Request-ID"

// Router wires every endpoint. Access logs go to accessLog in combined log
// format.
func (h *Handler) Router(log logr.Logger, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	r.Use(withRequestLogger(log))

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(h.Health)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	r.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(ui.Static()))))

	// ui
	r.Methods(http.MethodGet).Path("/").HandlerFunc(h.Index)
	r.Methods(http.MethodPost).Path("/navigate").HandlerFunc(h.Navigate)
	r.Methods(http.MethodPost).Path("/analyze").HandlerFunc(MaxBytesHandler(h.Analyze, MaxUploadBytes))

	// api
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Methods(http.MethodPost).Path("/predict").HandlerFunc(MaxBytesHandler(h.PredictFromImage, MaxUploadBytes))
	api.Methods(http.MethodGet).Path("/plants").HandlerFunc(h.Plants)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.CombinedLoggingHandler(accessLog, cors(r))
}

// withRequestLogger tags every request with an ID and puts a logger carrying
// it in the request context.
func withRequestLogger(log logr.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := logr.NewContext(r.Context(), log.WithValues("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MaxBytesHandler caps the request body of h at n bytes, with some slack for
// the multipart envelope.
func MaxBytesHandler(h http.HandlerFunc, n int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := *r
		r2.Body = http.MaxBytesReader(w, r.Body, n+1<<20)
		h.ServeHTTP(w, &r2)
	}
}
