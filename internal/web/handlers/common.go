package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/photobooth/internal/compose"
	"github.com/kozaktomas/photobooth/internal/feed"
	"github.com/kozaktomas/photobooth/internal/filter"
	"github.com/kozaktomas/photobooth/internal/session"
	"github.com/kozaktomas/photobooth/internal/video"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondSessionError maps session and pipeline errors to HTTP statuses.
func respondSessionError(w http.ResponseWriter, err error) {
	var acqErr *video.AcquisitionError
	switch {
	case errors.Is(err, session.ErrUnknownPhoto):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, filter.ErrUnknownFilter), errors.Is(err, session.ErrUnsupportedFormat):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, feed.ErrToggleDebounced):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, session.ErrWrongStep),
		errors.Is(err, session.ErrSelectionIncomplete),
		errors.Is(err, session.ErrNoResult),
		errors.Is(err, session.ErrNotAssisted):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &acqErr), errors.Is(err, video.ErrNotReady):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, compose.ErrCompositionStall):
		slog.Error("composition failed", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// FeedMonitor reports the health of the AI backend's gesture feed.
type FeedMonitor interface {
	Connected() bool
	Malformed() int64
}

// HealthHandler serves the health check endpoint.
type HealthHandler struct {
	monitor FeedMonitor
}

// NewHealthHandler creates a health handler. monitor is nil in the local variant.
func NewHealthHandler(monitor FeedMonitor) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// Get handles the health check endpoint.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.monitor != nil {
		body["feed_connected"] = h.monitor.Connected()
		body["feed_malformed"] = h.monitor.Malformed()
	}
	respondJSON(w, http.StatusOK, body)
}
