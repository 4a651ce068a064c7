package compose

import (
	"errors"
	"image/color"
	"testing"

	"github.com/kozaktomas/photobooth/internal/config"
)

func TestTemplate_SlotRects_Frame(t *testing.T) {
	tmpl := &Template{Kind: KindFrame, Frame: DefaultFrame(600, 1800, 36, color.RGBA{A: 255})}
	rects := tmpl.SlotRects()
	if len(rects) != 3 {
		t.Fatalf("got %d slots, want 3", len(rects))
	}
	for i, r := range rects {
		if r.Dx() != 570 || r.Dy() != 600 {
			t.Errorf("slot %d size = %dx%d, want 570x600", i, r.Dx(), r.Dy())
		}
		if r.Min.X != 15 || r.Min.Y != i*600 {
			t.Errorf("slot %d origin = %v", i, r.Min)
		}
	}
}

func TestTemplate_CanvasSize_Card(t *testing.T) {
	tmpl := &Template{Kind: KindCard, PhotoWidth: 480, PhotoHeight: 320, Padding: 40, Spacing: 24}
	w, h := tmpl.CanvasSize()
	if w != 560 || h != (320+24)*3-24+80 {
		t.Errorf("canvas = %dx%d", w, h)
	}
}

func TestDefaultFrame_WindowsAreTransparent(t *testing.T) {
	frame := DefaultFrame(300, 900, 20, color.RGBA{255, 255, 255, 255})
	for _, y := range []int{150, 450, 750} {
		if _, _, _, a := frame.At(150, y).RGBA(); a != 0 {
			t.Errorf("window at y=%d alpha = %d, want 0", y, a)
		}
	}
	if _, _, _, a := frame.At(5, 5).RGBA(); a == 0 {
		t.Error("border must be opaque")
	}
}

func TestTemplateFromConfig(t *testing.T) {
	tmpl, err := TemplateFromConfig("card", config.TemplateConfig{
		Kind: "card", PhotoWidth: 10, PhotoHeight: 10, GradientTop: "#ff0000",
	})
	if err != nil {
		t.Fatalf("TemplateFromConfig: %v", err)
	}
	if tmpl.GradientTop != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("GradientTop = %v", tmpl.GradientTop)
	}

	if _, err := TemplateFromConfig("x", config.TemplateConfig{Kind: "poster"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := TemplateFromConfig("x", config.TemplateConfig{Kind: "card", PhotoWidth: 10, PhotoHeight: 10, GradientTop: "#zz"}); err == nil {
		t.Error("expected error for bad color")
	}
	if _, err := TemplateFromConfig("x", config.TemplateConfig{Kind: "frame", FramePath: "/nonexistent/frame.png"}); err == nil {
		t.Error("expected error for missing frame asset")
	}
}

func TestNewCatalog(t *testing.T) {
	t.Setenv("PHOTOBOOTH_FRAME_PATH", "")
	cfg := config.Load().Templates
	cat, err := NewCatalog(cfg)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	def, err := cat.Get("")
	if err != nil {
		t.Fatalf("Get default: %v", err)
	}
	if def.Name != cat.Default() {
		t.Errorf("default = %q, want %q", def.Name, cat.Default())
	}
	if _, err := cat.Get("missing"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("err = %v, want ErrUnknownTemplate", err)
	}
	if len(cat.Names()) != len(cfg.Templates) {
		t.Errorf("names = %v", cat.Names())
	}
}
