package filter

import (
	"image"
	"sync"
)

// Applier holds a composition and the filter currently shown over it.
type Applier struct {
	base image.Image

	mu       sync.Mutex
	current  ID
	rendered image.Image
}

// NewApplier starts with no filter applied.
func NewApplier(base image.Image) *Applier {
	return &Applier{base: base, current: None, rendered: base}
}

// Apply switches to the given filter, always recomputing from the base image.
func (a *Applier) Apply(id ID) (image.Image, error) {
	var rendered image.Image = a.base
	if id != None {
		img, err := Apply(a.base, id)
		if err != nil {
			return nil, err
		}
		rendered = img
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = id
	a.rendered = rendered
	return rendered, nil
}

// Current returns the applied filter.
func (a *Applier) Current() ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Image returns the base image with the current filter applied.
func (a *Applier) Image() image.Image {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rendered
}

