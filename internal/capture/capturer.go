// Package capture runs the photo countdown and grabs frames from the live
// video source when it reaches zero.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/photo"
)

// ErrCaptureSkipped is returned when the frame source had no valid frame on
// both the first attempt and the retry. The capture is abandoned, not fatal.
var ErrCaptureSkipped = errors.New("capture skipped: frame not ready")

// FrameSource provides the current live frame.
type FrameSource interface {
	Frame() (image.Image, error)
}

// Capturer turns the current frame of a source into a Photo. The photo has
// no ID yet; the owner assigns one when it accepts the photo.
type Capturer struct {
	source     FrameSource
	retryDelay time.Duration
	quality    int
	now        func() time.Time
}

// NewCapturer creates a capturer encoding JPEG frames from source.
func NewCapturer(source FrameSource) *Capturer {
	return &Capturer{
		source:     source,
		retryDelay: constants.CaptureRetryDelay,
		quality:    constants.JPEGQuality,
		now:        time.Now,
	}
}

// WithRetryDelay overrides the pause before the single retry.
func (c *Capturer) WithRetryDelay(d time.Duration) *Capturer {
	c.retryDelay = d
	return c
}

// Capture grabs one frame. A source that is not producing a valid frame is
// retried once after the retry delay; if it still has none the capture is
// abandoned with ErrCaptureSkipped.
func (c *Capturer) Capture(ctx context.Context) (photo.Photo, error) {
	img, err := c.grab()
	if err != nil {
		slog.Debug("frame not ready, retrying capture", "delay", c.retryDelay, "error", err)

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return photo.Photo{}, fmt.Errorf("capture cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		img, err = c.grab()
		if err != nil {
			return photo.Photo{}, fmt.Errorf("%w: %v", ErrCaptureSkipped, err)
		}
	}

	data, err := photo.EncodeJPEG(img, c.quality)
	if err != nil {
		return photo.Photo{}, fmt.Errorf("encoding capture: %w", err)
	}
	if len(data) < constants.MinEncodedPhotoBytes {
		return photo.Photo{}, fmt.Errorf("%w: encoded frame is only %d bytes", ErrCaptureSkipped, len(data))
	}

	return photo.New("", data, c.now()), nil
}

func (c *Capturer) grab() (image.Image, error) {
	img, err := c.source.Frame()
	if err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, errors.New("frame has no pixels")
	}
	return img, nil
}
