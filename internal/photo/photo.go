// Package photo holds captured photos and the ordered, capacity-bounded store
// a photobooth session fills during capture.
package photo

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// ErrInvalidDataURL is returned for data URLs that are not base64 images.
var ErrInvalidDataURL = errors.New("invalid image data URL")

// Photo is a single capture. It is immutable once created; Data holds the
// encoded raster (JPEG unless the source pushed something else).
type Photo struct {
	ID         string    `json:"id"`
	Data       []byte    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}

// New creates a photo from encoded image bytes.
func New(id string, data []byte, capturedAt time.Time) Photo {
	return Photo{ID: id, Data: data, CapturedAt: capturedAt}
}

// Decode decodes the photo's pixel data.
func (p Photo) Decode() (image.Image, error) {
	img, err := DecodeImage(p.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding photo %s: %w", p.ID, err)
	}
	return img, nil
}

// DataURL renders the photo as a data URL the way the AI backend sends them.
func (p Photo) DataURL() string {
	return "data:" + sniffMIME(p.Data) + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// ParseDataURL extracts the raw bytes from a "data:image/...;base64," URL.
func ParseDataURL(dataURL string) ([]byte, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, nil
}

// FromDataURL creates a photo from a data URL.
func FromDataURL(id, dataURL string, capturedAt time.Time) (Photo, error) {
	data, err := ParseDataURL(dataURL)
	if err != nil {
		return Photo{}, err
	}
	return New(id, data, capturedAt), nil
}

func sniffMIME(data []byte) string {
	switch {
	case len(data) > 3 && data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
		return "image/png"
	case len(data) > 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
