package handlers

import (
	"net/http"

	"github.com/kozaktomas/photobooth/internal/compose"
	"github.com/kozaktomas/photobooth/internal/config"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/filter"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config  *config.Config
	catalog *compose.Catalog
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, catalog *compose.Catalog) *ConfigHandler {
	return &ConfigHandler{
		config:  cfg,
		catalog: catalog,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Variant          string          `json:"variant"`
	Template         string          `json:"template"`
	Templates        []string        `json:"templates"`
	MaxPhotos        int             `json:"max_photos"`
	Slots            int             `json:"slots"`
	CountdownSeconds int             `json:"countdown_seconds"`
	Filters          []filter.Option `json:"filters"`
	BackendURL       string          `json:"backend_url,omitempty"`
}

// Get returns the booth configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Variant:          h.config.Session.Variant,
		Template:         h.config.Session.Template,
		MaxPhotos:        constants.MaxPhotos,
		Slots:            constants.SlotCount,
		CountdownSeconds: constants.CountdownSeconds,
		Filters:          filter.Palette(),
	}
	if h.catalog != nil {
		response.Templates = h.catalog.Names()
		if response.Template == "" {
			response.Template = h.catalog.Default()
		}
	}
	if h.config.Session.IsAssisted() {
		response.BackendURL = h.config.Backend.URL
	}

	respondJSON(w, http.StatusOK, response)
}

// ListFilters returns the filter palette
func ListFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, filter.Palette())
}
