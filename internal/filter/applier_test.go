package filter

import (
	"errors"
	"testing"
)

func TestApplier_SwitchBackToNoneRestoresOriginal(t *testing.T) {
	base := gradientImage(24, 24)
	a := NewApplier(base)

	if _, err := a.Apply(Pink); err != nil {
		t.Fatalf("Apply(pink): %v", err)
	}
	if a.Current() != Pink {
		t.Errorf("Current = %q, want pink", a.Current())
	}
	if samePixels(t, a.Image(), base) {
		t.Error("pink should change the image")
	}

	if _, err := a.Apply(None); err != nil {
		t.Fatalf("Apply(none): %v", err)
	}
	if !samePixels(t, a.Image(), base) {
		t.Error("none after pink must match the original")
	}
}

func TestApplier_Idempotent(t *testing.T) {
	a := NewApplier(gradientImage(24, 24))

	once, err := a.Apply(Yellow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := a.Apply(Black); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	twice, err := a.Apply(Yellow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !samePixels(t, once, twice) {
		t.Error("applying the same filter again must give the same pixels")
	}
}

func TestApplier_UnknownFilterKeepsState(t *testing.T) {
	a := NewApplier(gradientImage(4, 4))
	if _, err := a.Apply(White); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := a.Apply("sparkle"); !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("err = %v, want ErrUnknownFilter", err)
	}
	if a.Current() != White {
		t.Errorf("Current = %q, want white", a.Current())
	}
}
