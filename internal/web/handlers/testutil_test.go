package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photobooth/internal/capture"
	"github.com/kozaktomas/photobooth/internal/compose"
	"github.com/kozaktomas/photobooth/internal/config"
	"github.com/kozaktomas/photobooth/internal/feed"
	"github.com/kozaktomas/photobooth/internal/photo"
	"github.com/kozaktomas/photobooth/internal/session"
	"golang.org/x/image/draw"
)

// testConfig creates a minimal config for testing
func testConfig(variant string) *config.Config {
	return &config.Config{
		Session: config.SessionConfig{Variant: variant},
		Backend: config.BackendConfig{URL: "http://localhost:8000"},
		Templates: config.TemplatesConfig{
			Default: "frame",
			Templates: map[string]config.TemplateConfig{
				"frame": {Kind: "frame", Width: 300, Height: 900, Border: 20},
			},
		},
	}
}

func solidImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// testSource is a camera that always has a gray frame.
type testSource struct{}

func (testSource) Acquire(context.Context) error { return nil }
func (testSource) Frame() (image.Image, error) {
	return solidImage(color.RGBA{128, 128, 128, 255}), nil
}
func (testSource) Ready() bool    { return true }
func (testSource) Release() error { return nil }

type testBackend struct {
	mu      sync.Mutex
	toggles int
}

func (b *testBackend) ToggleMode(context.Context) (*feed.ToggleResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toggles++
	return &feed.ToggleResult{Mode: feed.ModeOn, IsCapturing: true, Countdown: 5}, nil
}

func (b *testBackend) Reset(context.Context) error { return nil }

func testTemplate(t *testing.T) *compose.Template {
	t.Helper()
	tmpl, err := compose.TemplateFromConfig("frame", config.TemplateConfig{Kind: "frame", Width: 300, Height: 900, Border: 20})
	if err != nil {
		t.Fatalf("TemplateFromConfig: %v", err)
	}
	return tmpl
}

// newLocalBooth creates a local-variant session with a fast countdown.
func newLocalBooth(t *testing.T) *session.Controller {
	t.Helper()
	booth := session.New(session.Options{
		Variant:        config.VariantLocal,
		Source:         testSource{},
		Template:       testTemplate(t),
		SelectingDelay: time.Millisecond,
		TimerOptions:   []capture.TimerOption{capture.WithInterval(time.Millisecond), capture.WithSeconds(1)},
	})
	t.Cleanup(func() { _ = booth.Close() })
	return booth
}

// newAssistedBooth creates an assisted-variant session fed directly by tests.
func newAssistedBooth(t *testing.T) (*session.Controller, *testBackend) {
	t.Helper()
	backend := &testBackend{}
	booth := session.New(session.Options{
		Variant:        config.VariantAssisted,
		Template:       testTemplate(t),
		Backend:        backend,
		SelectingDelay: time.Millisecond,
	})
	t.Cleanup(func() { _ = booth.Close() })
	return booth, backend
}

// feedSixPhotos pushes six photos through the feed and waits for the selecting step.
func feedSixPhotos(t *testing.T, booth *session.Controller) []string {
	t.Helper()
	data, err := photo.EncodeJPEG(solidImage(color.RGBA{200, 50, 50, 255}), 90)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	ids := make([]string, 6)
	captured := make([]feed.CapturedPhoto, 6)
	for i := range captured {
		ts := int64(1700000000000 + i)
		ids[i] = strconv.FormatInt(ts, 10)
		captured[i] = feed.CapturedPhoto{ID: ids[i], DataURL: dataURL, Timestamp: ts}
	}
	booth.ApplyFeedStatus(&feed.Status{Mode: feed.ModeOff, CapturedPhotos: captured})
	waitForStep(t, booth, session.StepSelecting)
	return ids
}

func waitForStep(t *testing.T, booth *session.Controller, step session.Step) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for booth.State().Step != step {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for step %s, at %s", step, booth.State().Step)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
