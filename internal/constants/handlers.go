// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Gesture feed constants
const (
	// FeedReconnectDelay is the pause before redialing a closed gesture feed
	FeedReconnectDelay = 3 * time.Second

	// FeedReadLimit caps a single feed message (annotated frames are large data URLs)
	FeedReadLimit = 16 << 20

	// ToggleCooldown debounces mode toggles sent to the AI backend
	ToggleCooldown = time.Second

	// ControlTimeout bounds a single control request to the AI backend
	ControlTimeout = 5 * time.Second
)

// Defaults used when the backend omits a field
const (
	DefaultRequiredPeaceCount       = 1
	DefaultGestureStabilityRequired = 3
	DefaultZoomLevel                = 1.0
)

// Web constants
const (
	// EventChannelBuffer is the buffer size of an SSE listener channel
	EventChannelBuffer = 64

	// DefaultWebPort is the port the web server listens on
	DefaultWebPort = 8080
)
