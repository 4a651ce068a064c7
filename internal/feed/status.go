// Package feed talks to the gesture-recognition backend of the assisted booth:
// a websocket stream of status documents and a small HTTP control API.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/photo"
	"github.com/vmihailenco/msgpack/v5"
)

// Backend capture modes.
const (
	ModeOn  = "ON"
	ModeOff = "OFF"
)

// CapturedPhoto is a photo taken by the backend.
type CapturedPhoto struct {
	ID        string `json:"id"        msgpack:"id"`
	DataURL   string `json:"dataUrl"   msgpack:"dataUrl"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"` // unix milliseconds
}

// Status is one message of the gesture feed.
type Status struct {
	Frame                    string          `json:"frame"                      msgpack:"frame"`
	Gesture                  string          `json:"gesture"                    msgpack:"gesture"`
	ZoomLevel                float64         `json:"zoom_level"                 msgpack:"zoom_level"`
	Mode                     string          `json:"mode"                       msgpack:"mode"`
	IsCapturing              bool            `json:"is_capturing"               msgpack:"is_capturing"`
	Countdown                int             `json:"countdown"                  msgpack:"countdown"`
	CapturedPhotos           []CapturedPhoto `json:"captured_photos"            msgpack:"captured_photos"`
	PhotosCount              int             `json:"photos_count"               msgpack:"photos_count"`
	PeaceSignCount           int             `json:"peace_sign_count"           msgpack:"peace_sign_count"`
	RequiredPeaceCount       int             `json:"required_peace_count"       msgpack:"required_peace_count"`
	GestureStabilityCount    int             `json:"gesture_stability_count"    msgpack:"gesture_stability_count"`
	GestureStabilityRequired int             `json:"gesture_stability_required" msgpack:"gesture_stability_required"`
	Error                    string          `json:"error,omitempty"            msgpack:"error,omitempty"`
}

// MalformedMessage is returned for feed messages that cannot be used.
// The caller logs it and keeps its previous state.
type MalformedMessage struct {
	Size int
	Err  error
}

func (e *MalformedMessage) Error() string {
	return fmt.Sprintf("malformed feed message (%d bytes): %v", e.Size, e.Err)
}

func (e *MalformedMessage) Unwrap() error {
	return e.Err
}

// Parse decodes a websocket message. Text messages carry JSON, binary
// messages carry the same document encoded as msgpack.
func Parse(messageType int, data []byte) (*Status, error) {
	var st Status
	var err error
	switch messageType {
	case websocket.TextMessage:
		err = json.Unmarshal(data, &st)
	case websocket.BinaryMessage:
		err = msgpack.Unmarshal(data, &st)
	default:
		err = fmt.Errorf("unsupported message type %d", messageType)
	}
	if err != nil {
		return nil, &MalformedMessage{Size: len(data), Err: err}
	}
	if st.Error != "" {
		return nil, &MalformedMessage{Size: len(data), Err: errors.New("backend error: " + st.Error)}
	}

	// Missing or zero values fall back to the backend defaults.
	if st.ZoomLevel <= 0 {
		st.ZoomLevel = constants.DefaultZoomLevel
	}
	if st.RequiredPeaceCount <= 0 {
		st.RequiredPeaceCount = constants.DefaultRequiredPeaceCount
	}
	if st.GestureStabilityRequired <= 0 {
		st.GestureStabilityRequired = constants.DefaultGestureStabilityRequired
	}
	if st.PhotosCount == 0 {
		st.PhotosCount = len(st.CapturedPhotos)
	}
	return &st, nil
}

// Photos decodes the captured photo list. Entries that do not decode are
// logged and skipped.
func (s *Status) Photos() []photo.Photo {
	photos := make([]photo.Photo, 0, len(s.CapturedPhotos))
	for _, cp := range s.CapturedPhotos {
		p, err := photo.FromDataURL(cp.ID, cp.DataURL, time.UnixMilli(cp.Timestamp))
		if err != nil {
			slog.Warn("skipping feed photo", "id", cp.ID, "error", err)
			continue
		}
		photos = append(photos, p)
	}
	return photos
}
