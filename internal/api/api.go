// Package api serves page inspection over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/optiscope/internal/logger"
	"github.com/jmylchreest/optiscope/internal/version"
	"github.com/jmylchreest/optiscope/pkg/fetcher"
	"github.com/jmylchreest/optiscope/pkg/inspector"
	"github.com/jmylchreest/optiscope/pkg/schema"
)

// maxRequestBody caps the JSON request body.
const maxRequestBody = 64 << 10

// Inspector is the part of inspector.Inspector the API needs.
type Inspector interface {
	Inspect(ctx context.Context, rawURL string) (*inspector.Report, error)
}

// Handler holds the inspection API state.
type Handler struct {
	inspector Inspector
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(i Inspector) *Handler {
	return &Handler{inspector: i, now: time.Now}
}

// NewRouter returns a chi router with the API routes and middleware mounted.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(CORS)
	r.Use(RequestLog)
	r.Use(chimw.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotFound, "Not found")
	})

	h.Routes(r)
	return r
}

// Routes mounts the API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/inspect", h.Inspect)
	r.Get("/healthz", h.Health)
}

type inspectRequest struct {
	URL         string `json:"url" validate:"required"`
	RunningOnly bool   `json:"runningOnly"`
}

type inspectResponse struct {
	Success         bool                     `json:"success"`
	Data            *inspector.Report        `json:"data"`
	Screenshot      string                   `json:"screenshot,omitempty"`
	NetworkRequests []fetcher.NetworkRequest `json:"networkRequests"`
	Timestamp       string                   `json:"timestamp"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Inspect handles POST /api/inspect.
func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	var req inspectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := schema.ValidateStruct(req); err != nil {
		Error(w, http.StatusBadRequest, "URL is required")
		return
	}
	if _, err := inspector.ValidateURL(req.URL); err != nil {
		Error(w, http.StatusBadRequest, "Invalid URL provided")
		return
	}

	ctx := r.Context()
	report, err := h.inspector.Inspect(ctx, req.URL)
	if err != nil {
		logger.ErrorContext(ctx, "inspection failed", "url", req.URL, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.RunningOnly {
		report.Optimizely = inspector.RunningOnly(report.Optimizely)
	}

	JSON(w, http.StatusOK, inspectResponse{
		Success:         true,
		Data:            report,
		Screenshot:      report.Screenshot,
		NetworkRequests: report.NetworkRequests,
		Timestamp:       h.now().UTC().Format(time.RFC3339),
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.String(),
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorResponse{Error: message})
}

// CORS allows any origin to call the API. Preflight requests end here.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLog attaches a request-scoped logger to the context and logs each
// request once it completes.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := logger.FromContext(r.Context()).With("request_id", chimw.GetReqID(r.Context()))
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logger.NewContext(r.Context(), log)))

		log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}
