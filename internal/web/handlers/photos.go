package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/photo"
	"github.com/kozaktomas/photobooth/internal/session"
)

const (
	minThumbSize = 32
	maxThumbSize = 1024
)

// PhotosHandler serves the captured photos and their selection.
type PhotosHandler struct {
	booth *session.Controller
}

// NewPhotosHandler creates a new photos handler
func NewPhotosHandler(booth *session.Controller) *PhotosHandler {
	return &PhotosHandler{booth: booth}
}

// PhotoResponse represents a captured photo in API responses
type PhotoResponse struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Slot       int       `json:"slot,omitempty"` // 1-based, 0 when not selected
	URL        string    `json:"url"`
	ThumbURL   string    `json:"thumb_url"`
}

func photoToResponse(p photo.Photo, slots []string) PhotoResponse {
	resp := PhotoResponse{
		ID:         p.ID,
		CapturedAt: p.CapturedAt,
		URL:        "/api/v1/session/photos/" + p.ID,
		ThumbURL:   "/api/v1/session/photos/" + p.ID + "/thumb",
	}
	for i, id := range slots {
		if id == p.ID {
			resp.Slot = i + 1
		}
	}
	return resp
}

// List returns the captured photos in capture order
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	slots := h.booth.State().Slots
	photos := h.booth.Photos()

	result := make([]PhotoResponse, len(photos))
	for i, p := range photos {
		result[i] = photoToResponse(p, slots)
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns the original image of a photo
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.booth.Photo(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(p.Data))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Data)
}

// Thumbnail returns a downscaled JPEG of a photo
func (h *PhotosHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.booth.Photo(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	size := constants.DefaultThumbnailSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < minThumbSize || n > maxThumbSize {
			respondError(w, http.StatusBadRequest, "invalid size")
			return
		}
		size = n
	}

	data, err := photo.Thumbnail(p.Data, size, constants.ThumbnailQuality)
	if err != nil {
		slog.Error("thumbnail failed", "id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ToggleResponse reports the outcome of a selection toggle
type ToggleResponse struct {
	ID       string   `json:"id"`
	Slot     int      `json:"slot"` // affected slot, 1-based; 0 when nothing changed
	Selected bool     `json:"selected"`
	Slots    []string `json:"slots"`
	Complete bool     `json:"complete"`
}

// Toggle selects or deselects a photo
func (h *PhotosHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slot, err := h.booth.Toggle(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	slots := h.booth.State().Slots
	resp := ToggleResponse{ID: id, Slot: slot + 1, Slots: slots, Complete: true}
	for _, s := range slots {
		if s == id {
			resp.Selected = true
		}
		if s == "" {
			resp.Complete = false
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
