package video

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"
)

// Device is a camera that can be opened, read frame by frame and closed.
type Device interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (image.Image, error)
	Close() error
	Name() string
}

// LocalSource keeps the latest frame of a Device refreshed in the background.
type LocalSource struct {
	device   Device
	interval time.Duration
	poll     polling

	// acquireMu serializes opening and closing the device.
	acquireMu sync.Mutex

	mu     sync.RWMutex
	frame  image.Image
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLocalSource creates a source refreshing device frames fps times per second.
func NewLocalSource(device Device, fps int, opts ...Option) *LocalSource {
	if fps <= 0 {
		fps = 1
	}
	s := &LocalSource{
		device:   device,
		interval: time.Second / time.Duration(fps),
		poll:     defaultPolling(),
	}
	for _, opt := range opts {
		opt(&s.poll)
	}
	return s
}

// Acquire opens the device and starts the refresh loop. If no valid frame
// shows up within the readiness window the source proceeds anyway and Frame
// keeps returning ErrNotReady until one arrives. Concurrent calls open the
// device once. A Release during the readiness wait ends it with ErrReleased.
func (s *LocalSource) Acquire(ctx context.Context) error {
	s.acquireMu.Lock()
	s.mu.RLock()
	running := s.cancel != nil
	s.mu.RUnlock()
	if running {
		s.acquireMu.Unlock()
		return nil
	}

	if err := s.device.Open(ctx); err != nil {
		s.acquireMu.Unlock()
		return classify(err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.refresh(loopCtx, done)
	s.acquireMu.Unlock()

	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()
	stop := context.AfterFunc(loopCtx, stopWait)
	defer stop()

	ready := WaitReady(waitCtx, s.Ready, s.poll.interval, s.poll.attempts)
	switch {
	case loopCtx.Err() != nil:
		return ErrReleased
	case !ready:
		slog.Warn("camera not ready after readiness window, proceeding",
			"device", s.device.Name(),
			"attempts", s.poll.attempts,
		)
	default:
		slog.Info("camera ready", "device", s.device.Name())
	}
	return nil
}

func (s *LocalSource) refresh(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		img, err := s.device.Read(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				slog.Debug("camera read failed", "device", s.device.Name(), "error", err)
			}
		case validFrame(img):
			s.mu.Lock()
			s.frame = img
			s.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Frame returns the latest frame.
func (s *LocalSource) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !validFrame(s.frame) {
		return nil, ErrNotReady
	}
	return s.frame, nil
}

// Ready reports whether a valid frame is available.
func (s *LocalSource) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return validFrame(s.frame)
}

// Release stops the refresh loop and closes the device.
func (s *LocalSource) Release() error {
	s.acquireMu.Lock()
	defer s.acquireMu.Unlock()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.frame = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	if err := s.device.Close(); err != nil {
		return err
	}
	slog.Info("camera released", "device", s.device.Name())
	return nil
}
