package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kozaktomas/photobooth/internal/session"
)

// SessionHandler exposes the booth session.
type SessionHandler struct {
	booth *session.Controller
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(booth *session.Controller) *SessionHandler {
	return &SessionHandler{booth: booth}
}

// Get returns the session state
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.booth.State())
}

// Events streams session changes as server-sent events
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.booth, h.booth.State())
}

// Frame returns the current live frame as JPEG
func (h *SessionHandler) Frame(w http.ResponseWriter, r *http.Request) {
	data, err := h.booth.Frame()
	if err != nil {
		respondSessionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CountdownResponse is returned when a countdown is requested.
type CountdownResponse struct {
	Started bool          `json:"started"`
	State   session.State `json:"state"`
}

// StartCountdown starts a capture countdown
func (h *SessionHandler) StartCountdown(w http.ResponseWriter, r *http.Request) {
	started, err := h.booth.StartCountdown(r.Context())
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CountdownResponse{Started: started, State: h.booth.State()})
}

// ToggleMode flips the AI backend's capture mode
func (h *SessionHandler) ToggleMode(w http.ResponseWriter, r *http.Request) {
	res, err := h.booth.ToggleMode(r.Context())
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Confirm composes the selected photos
func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	res, err := h.booth.Confirm(r.Context())
	if err != nil {
		respondSessionError(w, err)
		return
	}
	if res == nil {
		// Composing in the background; the result arrives as an event.
		respondJSON(w, http.StatusAccepted, h.booth.State())
		return
	}
	respondJSON(w, http.StatusOK, h.booth.State())
}

// FilterRequest selects a color filter.
type FilterRequest struct {
	Filter string `json:"filter"`
}

// SetFilter applies a color filter to the composition
func (h *SessionHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	id, err := h.booth.ApplyFilter(req.Filter)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"filter": string(id)})
}

// Download returns the filtered composition as an attachment
func (h *SessionHandler) Download(w http.ResponseWriter, r *http.Request) {
	dl, err := h.booth.Download(r.URL.Query().Get("format"))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

// Reset clears the session and starts over
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.booth.Reset(r.Context()); err != nil {
		// The local session is reset even if the backend did not answer.
		slog.Warn("reset incomplete", "error", err)
	}
	respondJSON(w, http.StatusOK, h.booth.State())
}
