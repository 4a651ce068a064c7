// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Session capacity constants
const (
	// MaxPhotos is the number of photos a session captures before moving to selection
	MaxPhotos = 6

	// SlotCount is the number of photos that go into one composition
	SlotCount = 3
)

// Countdown constants
const (
	// CountdownSeconds is the countdown length preceding each capture
	CountdownSeconds = 5

	// CountdownTick is the period of a single countdown step
	CountdownTick = time.Second

	// CaptureRetryDelay is how long a capture waits for the frame source before its single retry
	CaptureRetryDelay = 500 * time.Millisecond

	// MinEncodedPhotoBytes is the smallest encoded capture accepted as a real photo
	MinEncodedPhotoBytes = 100
)

// Video source constants
const (
	// ReadyPollInterval is the period between readiness checks of a freshly acquired source
	ReadyPollInterval = 100 * time.Millisecond

	// ReadyPollAttempts caps readiness polling (50 x 100ms = 5s)
	ReadyPollAttempts = 50

	// DefaultCameraFPS is the live frame refresh rate of local devices
	DefaultCameraFPS = 10
)

// Session controller constants
const (
	// SelectingDelay keeps the last capture on screen before switching to selection
	SelectingDelay = 2 * time.Second
)

// Composition constants
const (
	// JPEGQuality is the quality of captured photos, compositions and downloads
	JPEGQuality = 90

	// ThumbnailQuality is the JPEG quality used for thumbnails
	ThumbnailQuality = 85

	// DefaultThumbnailSize is the longest edge of a photo thumbnail
	DefaultThumbnailSize = 320

	// CompositionTimeout bounds the wait for all slot images to decode
	CompositionTimeout = 10 * time.Second

	// FrameSlotWidthRatio is the share of the frame width a photo occupies in its band
	FrameSlotWidthRatio = 0.95

	// DecodeCacheTTL is how long decoded photos stay cached by the compositor
	DecodeCacheTTL = 30 * time.Minute

	// DecodeCacheCleanup is the eviction interval of the decode cache
	DecodeCacheCleanup = time.Hour
)
