// Package selection tracks which captured photos go into the composition.
// A Set has a fixed number of ordered slots holding photo IDs; it never
// copies or touches photo data.
package selection

import "slices"

// Set is an ordered group of slots. The zero value is not usable, use New.
type Set struct {
	slots []string
}

// New creates a set with n empty slots.
func New(n int) *Set {
	return &Set{slots: make([]string, n)}
}

// Toggle clears the slot holding id, or places id in the lowest empty slot.
// When id is not selected and every slot is filled the call is a no-op.
// It returns the affected slot index, or -1 when nothing changed.
func (s *Set) Toggle(id string) int {
	if id == "" {
		return -1
	}
	if i := s.Position(id); i >= 0 {
		s.slots[i] = ""
		return i
	}
	for i, slot := range s.slots {
		if slot == "" {
			s.slots[i] = id
			return i
		}
	}
	return -1
}

// Position returns the slot index holding id, or -1.
func (s *Set) Position(id string) int {
	if id == "" {
		return -1
	}
	return slices.Index(s.slots, id)
}

// IsComplete reports whether every slot is filled.
func (s *Set) IsComplete() bool {
	return !slices.Contains(s.slots, "")
}

// Count returns the number of filled slots.
func (s *Set) Count() int {
	n := 0
	for _, slot := range s.slots {
		if slot != "" {
			n++
		}
	}
	return n
}

// Slots returns a copy of the slots; empty slots are "".
func (s *Set) Slots() []string {
	return slices.Clone(s.slots)
}

// Selected returns the filled slots in slot order.
func (s *Set) Selected() []string {
	ids := make([]string, 0, len(s.slots))
	for _, slot := range s.slots {
		if slot != "" {
			ids = append(ids, slot)
		}
	}
	return ids
}

// Retain clears slots whose photo no longer satisfies keep.
func (s *Set) Retain(keep func(id string) bool) {
	for i, slot := range s.slots {
		if slot != "" && !keep(slot) {
			s.slots[i] = ""
		}
	}
}

// Reset clears all slots.
func (s *Set) Reset() {
	clear(s.slots)
}
