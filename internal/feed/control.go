package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/photobooth/internal/constants"
	"golang.org/x/time/rate"
)

// ErrToggleDebounced is returned when a mode toggle follows the previous one too quickly.
var ErrToggleDebounced = errors.New("mode toggle ignored, previous toggle too recent")

// ToggleResult is the backend answer to a mode toggle.
type ToggleResult struct {
	Mode        string `json:"mode"`
	IsCapturing bool   `json:"is_capturing"`
	Countdown   int    `json:"countdown"`
}

// BackendStatus is the backend's summary state.
type BackendStatus struct {
	Mode        string  `json:"mode"`
	ZoomLevel   float64 `json:"zoom_level"`
	IsCapturing bool    `json:"is_capturing"`
	Countdown   int     `json:"countdown"`
	PhotosCount int     `json:"photos_count"`
	MaxPhotos   int     `json:"max_photos"`
}

// Control calls the backend HTTP control endpoints.
type Control struct {
	baseURL string
	client  *http.Client
	toggles *rate.Limiter
}

// NewControl creates a control client for the backend base URL.
func NewControl(baseURL string, client *http.Client) *Control {
	if client == nil {
		client = &http.Client{Timeout: constants.ControlTimeout}
	}
	return &Control{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		toggles: rate.NewLimiter(rate.Every(constants.ToggleCooldown), 1),
	}
}

// ToggleMode flips the backend between gesture-only and capture mode.
func (c *Control) ToggleMode(ctx context.Context) (*ToggleResult, error) {
	if !c.toggles.Allow() {
		return nil, ErrToggleDebounced
	}
	return doJSON[ToggleResult](ctx, c, http.MethodPost, "/toggle_mode")
}

// Reset clears the backend's captured photos and switches its mode off.
func (c *Control) Reset(ctx context.Context) error {
	_, err := doJSON[map[string]any](ctx, c, http.MethodPost, "/reset")
	return err
}

// Status fetches the backend summary.
func (c *Control) Status(ctx context.Context) (*BackendStatus, error) {
	return doJSON[BackendStatus](ctx, c, http.MethodGet, "/status")
}

func doJSON[T any](ctx context.Context, c *Control, method, endpoint string) (*T, error) {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req) //nolint:gosec // base URL is operator configuration
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s %s failed with status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &result, nil
}
