package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localchat/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Statuses(ctx context.Context) []types.ProviderStatus
	Reconnect(ctx context.Context, provider string) (types.ProviderStatus, error)
	ListModels(ctx context.Context, provider string) ([]types.ModelRecord, error)
	ListLoaded(ctx context.Context) []types.ModelRecord
	Chat(ctx context.Context, provider string, req types.ChatRequest) (<-chan types.ChatDelta, error)
	Download(ctx context.Context, req types.DownloadRequest) (<-chan types.DownloadProgress, error)
	Delete(ctx context.Context, provider, modelID string) error
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints; event streams are not compressible types
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if c := corsHandler(); c != nil {
		r.Use(c)
	}

	h := &handlers{svc: svc}
	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)
		r.Get("/api/status", h.status)
		r.Post("/api/reconnect", h.reconnect)
		r.Get("/api/models", h.models)
		r.Get("/api/models/loaded", h.loaded)
		r.Post("/api/models/download", h.download)
		r.Delete("/api/models/{modelId}", h.delete)
		r.Post("/api/chat", h.chat)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Statuses(r.Context()))
}

func (h *handlers) reconnect(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Reconnect(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	// An unreachable backend is reported in the body, not as an HTTP error.
	writeJSON(w, st)
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	if models == nil {
		models = []types.ModelRecord{}
	}
	writeJSON(w, models)
}

func (h *handlers) loaded(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ListLoaded(r.Context()))
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "modelId")
	if u, err := url.PathUnescape(id); err == nil {
		id = u
	}
	log, lvl := requestLogger(r)
	err := h.svc.Delete(r.Context(), r.URL.Query().Get("provider"), id)
	if err != nil {
		if lvl >= LevelError {
			log.Error().Err(err).Str("model", id).Msg("delete failed")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(err))
		_ = json.NewEncoder(w).Encode(types.DeleteResponse{Success: false, Message: err.Error()})
		return
	}
	if lvl >= LevelInfo {
		log.Info().Str("model", id).Msg("deleted")
	}
	writeJSON(w, types.DeleteResponse{Success: true, Message: "deleted " + id})
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	log, lvl := requestLogger(r)
	timeout := time.Duration(chatTimeout) * time.Second
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := streamContext(r, timeout)
	defer cancel()

	ch, err := h.svc.Chat(ctx, r.URL.Query().Get("provider"), req)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	start := time.Now()
	if lvl >= LevelInfo {
		log.Info().Str("model", req.Model).Msg("chat start")
	}
	sw := newSSEWriter(w, log, lvl)
	var last types.ChatDelta
	var sent bool
	for d := range ch {
		last, sent = d, true
		if err := sw.event(d); err != nil {
			cancel()
		}
	}
	outcome := "complete"
	switch {
	case clientGone(r):
		outcome = "canceled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && !(sent && last.Done):
		outcome = "timeout"
		last = types.ChatDelta{Done: true, Error: "chat timed out after " + timeout.String()}
		_ = sw.event(last)
	case last.Error != "":
		outcome = "error"
	}
	countStream("chat", outcome)
	if lvl >= LevelInfo {
		log.Info().Str("model", req.Model).Str("outcome", outcome).Dur("dur", time.Since(start)).Msg("chat end")
	}
}

func (h *handlers) download(w http.ResponseWriter, r *http.Request) {
	var req types.DownloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	log, lvl := requestLogger(r)
	ctx, cancel := streamContext(r, 0)
	defer cancel()

	ch, err := h.svc.Download(ctx, req)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	start := time.Now()
	if lvl >= LevelInfo {
		log.Info().Str("model", req.ModelID).Msg("download start")
	}
	sw := newSSEWriter(w, log, lvl)
	var last types.DownloadProgress
	for p := range ch {
		last = p
		if err := sw.event(p); err != nil {
			cancel()
		}
	}
	outcome := "complete"
	switch {
	case clientGone(r) || !last.Terminal():
		outcome = "canceled"
	case last.Status != types.DownloadComplete:
		outcome = "error"
	}
	countStream("download", outcome)
	if lvl >= LevelInfo {
		log.Info().Str("model", req.ModelID).Str("outcome", outcome).Dur("dur", time.Since(start)).Msg("download end")
	}
}

// decodeJSON enforces the JSON content type and body limit, writing the
// error response itself when it returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	// Content-Type check
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
