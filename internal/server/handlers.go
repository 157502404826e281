package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/launchfeed/launchfeed/internal/launchapi"
	"github.com/launchfeed/launchfeed/internal/models"
	"github.com/launchfeed/launchfeed/internal/service"
)

// LaunchService is the slice of the orchestrator the handlers consume.
type LaunchService interface {
	GetLaunches(ctx context.Context) ([]models.Launch, error)
	GetMoreLaunches(ctx context.Context) ([]models.Launch, error)
	GetLaunch(ctx context.Context, id string) (models.Launch, error)
	Updates() *service.UpdateBus
}

// Handler serves the consumer endpoints.
type Handler struct {
	svc     LaunchService
	metrics http.Handler // may be nil
	logger  *slog.Logger
}

// NewHandler creates the endpoint handler. A nil metricsHandler disables the
// /metrics route.
func NewHandler(svc LaunchService, metricsHandler http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		svc:     svc,
		metrics: metricsHandler,
		logger:  logger,
	}
}

// Router builds the route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/launches", h.getLaunches)
		r.Get("/launches/more", h.getMoreLaunches)
		r.Get("/launches/{id}", h.getLaunch)
		r.Get("/events", h.streamEvents)
	})
	r.Get("/healthz", h.health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

type listResponse struct {
	Launches []models.Launch `json:"launches"`
	Count    int             `json:"count"`
	Message  string          `json:"message,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (h *Handler) getLaunches(w http.ResponseWriter, r *http.Request) {
	launches, err := h.svc.GetLaunches(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeList(w, launches)
}

func (h *Handler) getMoreLaunches(w http.ResponseWriter, r *http.Request) {
	launches, err := h.svc.GetMoreLaunches(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeList(w, launches)
}

func (h *Handler) getLaunch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	launch, err := h.svc.GetLaunch(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, launch)
}

// streamEvents serves the launch-updated feed as server-sent events. Each
// update is one "launch_updated" event whose data is the launch id.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, cancel := h.svc.Updates().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case id := <-updates:
			fmt.Fprintf(w, "event: launch_updated\ndata: %s\n\n", id)
			flusher.Flush()
		}
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeList renders a launch list; an empty list carries an explicit message
// so consumers can distinguish "nothing scheduled" from a rendering bug.
func (h *Handler) writeList(w http.ResponseWriter, launches []models.Launch) {
	resp := listResponse{Launches: launches, Count: len(launches)}
	if resp.Launches == nil {
		resp.Launches = []models.Launch{}
	}
	if len(launches) == 0 {
		resp.Message = "no data available"
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, launchapi.ErrCancelled) || r.Context().Err() != nil:
		// The client is gone; nothing useful to write.
		return
	case errors.Is(err, launchapi.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "launch not found", Retryable: false,
		})
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:     "launch data unavailable",
			Retryable: launchapi.Retryable(err),
		})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
