package handlers

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/photobooth/internal/session"
)

func TestSessionHandler_Get(t *testing.T) {
	handler := NewSessionHandler(newLocalBooth(t))

	req := httptest.NewRequest("GET", "/api/v1/session", nil)
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var state session.State
	parseJSONResponse(t, recorder, &state)
	if state.Step != session.StepCapturing {
		t.Errorf("expected step capturing, got %s", state.Step)
	}
	if state.MaxPhotos != 6 {
		t.Errorf("expected max photos 6, got %d", state.MaxPhotos)
	}
	if len(state.Slots) != 3 {
		t.Errorf("expected 3 slots, got %d", len(state.Slots))
	}
}

func TestSessionHandler_StartCountdown_CapturesPhoto(t *testing.T) {
	booth := newLocalBooth(t)
	handler := NewSessionHandler(booth)

	req := httptest.NewRequest("POST", "/api/v1/session/countdown", nil)
	recorder := httptest.NewRecorder()
	handler.StartCountdown(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp CountdownResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.Started {
		t.Fatal("expected countdown to start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for booth.State().PhotosCount != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for capture, state %+v", booth.State())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSessionHandler_Frame(t *testing.T) {
	handler := NewSessionHandler(newLocalBooth(t))

	recorder := httptest.NewRecorder()
	handler.Frame(recorder, httptest.NewRequest("GET", "/api/v1/session/frame", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "image/jpeg")
	if !bytes.HasPrefix(recorder.Body.Bytes(), []byte{0xFF, 0xD8}) {
		t.Error("expected JPEG body")
	}
}

func TestSessionHandler_Frame_NoSource(t *testing.T) {
	booth, _ := newAssistedBooth(t)
	handler := NewSessionHandler(booth)

	recorder := httptest.NewRecorder()
	handler.Frame(recorder, httptest.NewRequest("GET", "/api/v1/session/frame", nil))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}

func TestSessionHandler_ToggleMode_LocalConflict(t *testing.T) {
	handler := NewSessionHandler(newLocalBooth(t))

	recorder := httptest.NewRecorder()
	handler.ToggleMode(recorder, httptest.NewRequest("POST", "/api/v1/session/mode", nil))

	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestSessionHandler_ToggleMode_Assisted(t *testing.T) {
	booth, backend := newAssistedBooth(t)
	handler := NewSessionHandler(booth)

	recorder := httptest.NewRecorder()
	handler.ToggleMode(recorder, httptest.NewRequest("POST", "/api/v1/session/mode", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if backend.toggles != 1 {
		t.Errorf("expected 1 backend toggle, got %d", backend.toggles)
	}
	if st := booth.State(); st.Countdown != 5 || !st.IsCapturing {
		t.Errorf("expected mirrored countdown, got %+v", st)
	}
}

func TestSessionHandler_Confirm_Incomplete(t *testing.T) {
	booth, _ := newAssistedBooth(t)
	feedSixPhotos(t, booth)
	handler := NewSessionHandler(booth)

	recorder := httptest.NewRecorder()
	handler.Confirm(recorder, httptest.NewRequest("POST", "/api/v1/session/confirm", nil))

	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, session.ErrSelectionIncomplete.Error())
}

func TestSessionHandler_ConfirmFilterDownload(t *testing.T) {
	booth, _ := newAssistedBooth(t)
	ids := feedSixPhotos(t, booth)
	for _, id := range ids[:3] {
		if _, err := booth.Toggle(id); err != nil {
			t.Fatalf("Toggle(%s): %v", id, err)
		}
	}
	handler := NewSessionHandler(booth)

	recorder := httptest.NewRecorder()
	handler.Confirm(recorder, httptest.NewRequest("POST", "/api/v1/session/confirm", nil))
	assertStatusCode(t, recorder, http.StatusAccepted)
	waitForStep(t, booth, session.StepResult)

	recorder = httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/session/filter", strings.NewReader(`{"filter":"pink"}`))
	handler.SetFilter(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)
	var filterResp map[string]string
	parseJSONResponse(t, recorder, &filterResp)
	if filterResp["filter"] != "pink" {
		t.Errorf("expected filter pink, got %q", filterResp["filter"])
	}

	recorder = httptest.NewRecorder()
	handler.Download(recorder, httptest.NewRequest("GET", "/api/v1/session/result", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "image/jpeg")
	disposition := recorder.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, `attachment; filename="photobooth-`) || !strings.HasSuffix(disposition, `.jpg"`) {
		t.Errorf("unexpected Content-Disposition %q", disposition)
	}

	recorder = httptest.NewRecorder()
	handler.Download(recorder, httptest.NewRequest("GET", "/api/v1/session/result?format=png", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "image/png")

	recorder = httptest.NewRecorder()
	handler.Download(recorder, httptest.NewRequest("GET", "/api/v1/session/result?format=gif", nil))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestSessionHandler_SetFilter_Errors(t *testing.T) {
	handler := NewSessionHandler(newLocalBooth(t))

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"unknown filter", `{"filter":"teal"}`, http.StatusBadRequest},
		{"no result yet", `{"filter":"white"}`, http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest("PUT", "/api/v1/session/filter", strings.NewReader(tc.body))
			handler.SetFilter(recorder, req)
			assertStatusCode(t, recorder, tc.expected)
		})
	}
}

func TestSessionHandler_Download_NoResult(t *testing.T) {
	handler := NewSessionHandler(newLocalBooth(t))

	recorder := httptest.NewRecorder()
	handler.Download(recorder, httptest.NewRequest("GET", "/api/v1/session/result", nil))

	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestSessionHandler_Reset(t *testing.T) {
	booth, _ := newAssistedBooth(t)
	ids := feedSixPhotos(t, booth)
	if _, err := booth.Toggle(ids[0]); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	handler := NewSessionHandler(booth)

	recorder := httptest.NewRecorder()
	handler.Reset(recorder, httptest.NewRequest("POST", "/api/v1/session/reset", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var state session.State
	parseJSONResponse(t, recorder, &state)
	if state.Step != session.StepCapturing || state.PhotosCount != 0 {
		t.Errorf("expected a fresh session, got %+v", state)
	}
	for i, slot := range state.Slots {
		if slot != "" {
			t.Errorf("slot %d not cleared: %q", i, slot)
		}
	}
}

func TestSessionHandler_Events_SendsInitialState(t *testing.T) {
	booth := newLocalBooth(t)
	handler := NewSessionHandler(booth)

	server := httptest.NewServer(http.HandlerFunc(handler.Events))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading first event: %v", err)
	}
	if line != "event: "+session.EventState+"\n" {
		t.Errorf("expected state event first, got %q", line)
	}

	// A reset is published to every listener.
	if err := booth.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("waiting for reset event: %v", err)
		}
		if line == "event: "+session.EventReset+"\n" {
			break
		}
	}
}
