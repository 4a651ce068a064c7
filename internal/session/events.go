package session

import (
	"slices"
	"sync"

	"github.com/kozaktomas/photobooth/internal/constants"
)

// Event types published by the controller.
const (
	EventState       = "state"
	EventCountdown   = "countdown"
	EventPhoto       = "photo"
	EventSelecting   = "selecting"
	EventSelection   = "selection"
	EventComposing   = "composing"
	EventResult      = "result"
	EventComposeFail = "composition_failed"
	EventFilter      = "filter"
	EventFeed        = "feed"
	EventReset       = "reset"
)

// Event is a session change pushed to listeners.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Broadcaster fans events out to listener channels. Slow listeners miss
// events rather than block the session.
type Broadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.Index(b.listeners, ch); i >= 0 {
		b.listeners = slices.Delete(b.listeners, i, i+1)
		close(ch)
	}
}

// SendEvent sends an event to all listeners.
func (b *Broadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
