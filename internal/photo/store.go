package photo

import (
	"slices"
	"sync"
)

// Store is the ordered collection of a session's photos. Insertion order is
// the display order and the default composition order.
type Store struct {
	mu       sync.RWMutex
	photos   []Photo
	capacity int
	onFull   func()
}

// NewStore creates a store holding at most capacity photos.
func NewStore(capacity int) *Store {
	return &Store{
		photos:   make([]Photo, 0, capacity),
		capacity: capacity,
	}
}

// OnFull registers fn to be called when an append or replace fills the store.
// fn runs on the mutating goroutine after the store lock is released and must not block.
func (s *Store) OnFull(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFull = fn
}

// Append adds a photo. It is a no-op returning false when the store is full
// or a photo with the same ID is already present.
func (s *Store) Append(p Photo) bool {
	s.mu.Lock()
	if len(s.photos) >= s.capacity || s.indexLocked(p.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.photos = append(s.photos, p)
	full := len(s.photos) == s.capacity
	onFull := s.onFull
	s.mu.Unlock()

	if full && onFull != nil {
		onFull()
	}
	return true
}

// Replace swaps the whole collection, keeping the first occurrence of each ID
// and at most capacity photos. Used when an external source owns the list.
func (s *Store) Replace(photos []Photo) {
	s.mu.Lock()
	wasFull := len(s.photos) >= s.capacity
	next := make([]Photo, 0, s.capacity)
	seen := make(map[string]struct{}, len(photos))
	for _, p := range photos {
		if len(next) == s.capacity {
			break
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		next = append(next, p)
	}
	s.photos = next
	full := len(s.photos) == s.capacity
	onFull := s.onFull
	s.mu.Unlock()

	if full && !wasFull && onFull != nil {
		onFull()
	}
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = make([]Photo, 0, s.capacity)
}

// List returns the photos in insertion order.
func (s *Store) List() []Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.photos)
}

// Get looks up a photo by ID.
func (s *Store) Get(id string) (Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.photos[i], true
	}
	return Photo{}, false
}

// Len returns the number of stored photos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos)
}

// Full reports whether the store is at capacity.
func (s *Store) Full() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos) >= s.capacity
}

// Capacity returns the maximum number of photos.
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.photos, func(p Photo) bool { return p.ID == id })
}
