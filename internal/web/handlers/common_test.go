package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/photobooth/internal/compose"
	"github.com/kozaktomas/photobooth/internal/feed"
	"github.com/kozaktomas/photobooth/internal/filter"
	"github.com/kozaktomas/photobooth/internal/session"
	"github.com/kozaktomas/photobooth/internal/video"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})
	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, nil)

	assertStatusCode(t, recorder, http.StatusCreated)
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestRespondSessionError_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"unknown photo", fmt.Errorf("%w: photo-9", session.ErrUnknownPhoto), http.StatusNotFound},
		{"unknown filter", filter.ErrUnknownFilter, http.StatusBadRequest},
		{"unsupported format", session.ErrUnsupportedFormat, http.StatusBadRequest},
		{"debounced toggle", feed.ErrToggleDebounced, http.StatusTooManyRequests},
		{"wrong step", session.ErrWrongStep, http.StatusConflict},
		{"incomplete", session.ErrSelectionIncomplete, http.StatusConflict},
		{"no result", session.ErrNoResult, http.StatusConflict},
		{"not assisted", session.ErrNotAssisted, http.StatusConflict},
		{"acquisition", &video.AcquisitionError{Reason: video.ReasonPermissionDenied}, http.StatusServiceUnavailable},
		{"frame not ready", video.ErrNotReady, http.StatusServiceUnavailable},
		{"stall", compose.ErrCompositionStall, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondSessionError(recorder, tc.err)
			assertStatusCode(t, recorder, tc.expected)
			assertJSONError(t, recorder, tc.err.Error())
		})
	}
}

type fakeFeedMonitor struct {
	connected bool
	malformed int64
}

func (f fakeFeedMonitor) Connected() bool  { return f.connected }
func (f fakeFeedMonitor) Malformed() int64 { return f.malformed }

func getHealth(t *testing.T, handler *HealthHandler) map[string]any {
	t.Helper()
	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return result
}

func TestHealthHandler_Get_ReturnsStatusOk(t *testing.T) {
	result := getHealth(t, NewHealthHandler(nil))
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%v'", result["status"])
	}
	if _, ok := result["feed_connected"]; ok {
		t.Error("local health must not report a feed")
	}
}

func TestHealthHandler_Get_ReportsFeed(t *testing.T) {
	result := getHealth(t, NewHealthHandler(fakeFeedMonitor{connected: true, malformed: 3}))
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%v'", result["status"])
	}
	if result["feed_connected"] != true {
		t.Errorf("feed_connected = %v, want true", result["feed_connected"])
	}
	if result["feed_malformed"] != float64(3) {
		t.Errorf("feed_malformed = %v, want 3", result["feed_malformed"])
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("photo-1\r\nINFO fake"); got != "photo-1INFO fake" {
		t.Errorf("sanitizeForLog = %q", got)
	}
}
