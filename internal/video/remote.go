package video

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/kozaktomas/photobooth/internal/photo"
)

// RemoteSource exposes frames pushed by an external producer, typically the
// annotated frames of the AI backend's gesture feed.
type RemoteSource struct {
	poll polling

	mu    sync.RWMutex
	frame image.Image
}

// NewRemoteSource creates an empty pushed-frame source.
func NewRemoteSource(opts ...Option) *RemoteSource {
	s := &RemoteSource{poll: defaultPolling()}
	for _, opt := range opts {
		opt(&s.poll)
	}
	return s
}

// Acquire waits a bounded time for a first pushed frame.
func (s *RemoteSource) Acquire(ctx context.Context) error {
	if !WaitReady(ctx, s.Ready, s.poll.interval, s.poll.attempts) {
		slog.Warn("no frame from AI backend yet, proceeding", "attempts", s.poll.attempts)
	}
	return nil
}

// Push decodes and publishes an encoded frame.
func (s *RemoteSource) Push(data []byte) error {
	img, err := photo.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("decoding pushed frame: %w", err)
	}
	if !validFrame(img) {
		return ErrNotReady
	}

	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
	return nil
}

// PushDataURL publishes a frame received as a base64 data URL.
func (s *RemoteSource) PushDataURL(dataURL string) error {
	data, err := photo.ParseDataURL(dataURL)
	if err != nil {
		return err
	}
	return s.Push(data)
}

// Frame returns the latest pushed frame.
func (s *RemoteSource) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !validFrame(s.frame) {
		return nil, ErrNotReady
	}
	return s.frame, nil
}

// Ready reports whether a frame has been pushed.
func (s *RemoteSource) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return validFrame(s.frame)
}

// Release drops the current frame. Frames pushed afterwards are kept so the
// live view recovers on the next acquire without waiting for the feed.
func (s *RemoteSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
	return nil
}
