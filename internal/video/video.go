// Package video provides the live frame sources a photobooth captures from:
// a local camera device, or frames pushed by the AI backend's gesture feed.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"time"

	"github.com/kozaktomas/photobooth/internal/constants"
)

// ErrNotReady is returned by Frame while the source has no frame with valid dimensions.
var ErrNotReady = errors.New("video source not ready")

// ErrReleased is returned by Acquire when the source was released before it became ready.
var ErrReleased = errors.New("video source released while acquiring")

// Reason classifies why a source could not be acquired.
type Reason string

// Acquisition failure reasons.
const (
	ReasonPermissionDenied Reason = "permission-denied"
	ReasonNoDevice         Reason = "no-device"
	ReasonTimeout          Reason = "timeout"
)

// AcquisitionError reports a camera or feed that could not be acquired.
type AcquisitionError struct {
	Reason Reason
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return "video acquisition failed: " + string(e.Reason)
	}
	return fmt.Sprintf("video acquisition failed: %s: %v", e.Reason, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Source is a live frame source. Frame may be called at any time after
// Acquire; Release stops the underlying device and is safe to call repeatedly.
type Source interface {
	Acquire(ctx context.Context) error
	Frame() (image.Image, error)
	Ready() bool
	Release() error
}

// Option configures readiness polling of a source.
type Option func(*polling)

type polling struct {
	interval time.Duration
	attempts int
}

func defaultPolling() polling {
	return polling{
		interval: constants.ReadyPollInterval,
		attempts: constants.ReadyPollAttempts,
	}
}

// WithReadyPolling overrides how often and how many times Acquire checks readiness.
func WithReadyPolling(interval time.Duration, attempts int) Option {
	return func(p *polling) {
		p.interval = interval
		p.attempts = attempts
	}
}

// WaitReady polls ready at a fixed interval until it reports true, the
// attempts are used up, or ctx ends. It returns the final readiness.
func WaitReady(ctx context.Context, ready func() bool, interval time.Duration, attempts int) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if ready() {
			return true
		}
		if attempt >= attempts {
			return false
		}
		select {
		case <-ctx.Done():
			return ready()
		case <-ticker.C:
		}
	}
}

// validFrame reports whether img has usable pixel dimensions.
func validFrame(img image.Image) bool {
	return img != nil && img.Bounds().Dx() > 0 && img.Bounds().Dy() > 0
}

// classify maps device errors onto the acquisition taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return err
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return &AcquisitionError{Reason: ReasonPermissionDenied, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &AcquisitionError{Reason: ReasonTimeout, Err: err}
	default:
		return &AcquisitionError{Reason: ReasonNoDevice, Err: err}
	}
}
