package session

import (
	"context"
	"log/slog"
	"slices"

	"github.com/kozaktomas/photobooth/internal/feed"
	"github.com/kozaktomas/photobooth/internal/photo"
)

// ToggleMode flips the backend's capture mode and reflects the returned
// mode, capturing flag and countdown right away.
func (c *Controller) ToggleMode(ctx context.Context) (*feed.ToggleResult, error) {
	if !c.assisted || c.backend == nil {
		return nil, ErrNotAssisted
	}

	res, err := c.backend.ToggleMode(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.mirror.mode = res.Mode
	c.mirror.isCapturing = res.IsCapturing
	c.mirror.countdown = res.Countdown
	c.mu.Unlock()

	slog.Info("backend mode toggled", "mode", res.Mode, "capturing", res.IsCapturing)
	c.publish(EventFeed, "mode")
	return res, nil
}

// ApplyBackendStatus seeds the mirror from the backend's summary, used at
// startup before the first feed message arrives.
func (c *Controller) ApplyBackendStatus(st *feed.BackendStatus) {
	if !c.assisted || st == nil {
		return
	}

	c.mu.Lock()
	c.mirror.mode = st.Mode
	c.mirror.isCapturing = st.IsCapturing
	c.mirror.countdown = st.Countdown
	if st.ZoomLevel > 0 {
		c.mirror.zoomLevel = st.ZoomLevel
	}
	c.mu.Unlock()

	slog.Info("backend status loaded", "mode", st.Mode, "photos", st.PhotosCount)
	c.publish(EventFeed, "status")
}

// ApplyFeedStatus mirrors one gesture feed message. The backend is the
// source of truth for mode, countdown and the captured photo list.
func (c *Controller) ApplyFeedStatus(st *feed.Status) {
	if !c.assisted {
		return
	}

	if st.Frame != "" {
		if pusher, ok := c.source.(framePusher); ok {
			if err := pusher.PushDataURL(st.Frame); err != nil {
				slog.Debug("dropping feed frame", "error", err)
			}
		}
	}

	mirror := feedMirror{
		mode:                     st.Mode,
		zoomLevel:                st.ZoomLevel,
		gesture:                  st.Gesture,
		countdown:                st.Countdown,
		isCapturing:              st.IsCapturing,
		peaceSignCount:           st.PeaceSignCount,
		requiredPeaceCount:       st.RequiredPeaceCount,
		gestureStabilityCount:    st.GestureStabilityCount,
		gestureStabilityRequired: st.GestureStabilityRequired,
	}

	wantIDs := make([]string, len(st.CapturedPhotos))
	for i, cp := range st.CapturedPhotos {
		wantIDs[i] = cp.ID
	}
	c.mu.Lock()
	photosChanged := !slices.Equal(wantIDs, c.photoIDsLocked())
	c.mu.Unlock()

	// Decode outside the lock.
	var photos []photo.Photo
	if photosChanged {
		photos = st.Photos()
	}

	c.mu.Lock()
	changed := c.mirror != mirror
	c.mirror = mirror
	if photosChanged && (c.step == StepCapturing || c.step == StepSelecting) {
		c.store.Replace(photos)
		c.sel.Retain(func(id string) bool {
			_, ok := c.store.Get(id)
			return ok
		})
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.publish(EventFeed, "")
	}
}

func (c *Controller) photoIDsLocked() []string {
	photos := c.store.List()
	ids := make([]string, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	return ids
}
