// Package compose renders the selected photos into a single framed image.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/kozaktomas/photobooth/internal/config"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/photo"
	"golang.org/x/image/draw"
)

// Kind is a layout family.
type Kind string

// Layout kinds.
const (
	// KindFrame stretches each photo over a horizontal band and draws a frame overlay on top.
	KindFrame Kind = "frame"
	// KindCard places rounded photos on a vertical gradient.
	KindCard Kind = "card"
)

// ErrUnknownTemplate is returned for template names missing from the catalog.
var ErrUnknownTemplate = errors.New("unknown template")

// Template is a resolved layout ready for rendering.
type Template struct {
	Name string
	Kind Kind

	// Frame layouts: the overlay defines the canvas size.
	Frame image.Image

	// Card layouts.
	PhotoWidth     int
	PhotoHeight    int
	Padding        int
	Spacing        int
	CornerRadius   int
	GradientTop    color.RGBA
	GradientBottom color.RGBA
}

// CanvasSize returns the output dimensions.
func (t *Template) CanvasSize() (int, int) {
	if t.Kind == KindFrame {
		b := t.Frame.Bounds()
		return b.Dx(), b.Dy()
	}
	n := constants.SlotCount
	width := t.PhotoWidth + 2*t.Padding
	height := (t.PhotoHeight+t.Spacing)*n - t.Spacing + 2*t.Padding
	return width, height
}

// SlotRects returns the target rectangle of every slot, in slot order.
func (t *Template) SlotRects() []image.Rectangle {
	n := constants.SlotCount
	rects := make([]image.Rectangle, n)

	if t.Kind == KindFrame {
		width, height := t.CanvasSize()
		slotHeight := height / n
		slotWidth := int(float64(width) * constants.FrameSlotWidthRatio)
		slotX := (width - slotWidth) / 2
		for i := range n {
			y := i * slotHeight
			rects[i] = image.Rect(slotX, y, slotX+slotWidth, y+slotHeight)
		}
		return rects
	}

	for i := range n {
		x := t.Padding
		y := t.Padding + i*(t.PhotoHeight+t.Spacing)
		rects[i] = image.Rect(x, y, x+t.PhotoWidth, y+t.PhotoHeight)
	}
	return rects
}

// TemplateFromConfig resolves a configured template, loading or generating its frame.
func TemplateFromConfig(name string, cfg config.TemplateConfig) (*Template, error) {
	switch Kind(cfg.Kind) {
	case KindFrame:
		tmpl := &Template{Name: name, Kind: KindFrame}
		if cfg.FramePath != "" {
			frame, err := loadFrame(cfg.FramePath)
			if err != nil {
				return nil, fmt.Errorf("template %s: %w", name, err)
			}
			tmpl.Frame = frame
			return tmpl, nil
		}
		if cfg.Width <= 0 || cfg.Height < constants.SlotCount {
			return nil, fmt.Errorf("template %s: frame size %dx%d is invalid", name, cfg.Width, cfg.Height)
		}
		frameColor, err := parseHexColor(cfg.FrameColor, color.RGBA{255, 255, 255, 255})
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		tmpl.Frame = DefaultFrame(cfg.Width, cfg.Height, cfg.Border, frameColor)
		return tmpl, nil

	case KindCard:
		if cfg.PhotoWidth <= 0 || cfg.PhotoHeight <= 0 || cfg.Padding < 0 || cfg.Spacing < 0 {
			return nil, fmt.Errorf("template %s: invalid card geometry", name)
		}
		top, err := parseHexColor(cfg.GradientTop, color.RGBA{253, 242, 248, 255})
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		bottom, err := parseHexColor(cfg.GradientBottom, color.RGBA{224, 231, 255, 255})
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		return &Template{
			Name:           name,
			Kind:           KindCard,
			PhotoWidth:     cfg.PhotoWidth,
			PhotoHeight:    cfg.PhotoHeight,
			Padding:        cfg.Padding,
			Spacing:        cfg.Spacing,
			CornerRadius:   cfg.CornerRadius,
			GradientTop:    top,
			GradientBottom: bottom,
		}, nil

	default:
		return nil, fmt.Errorf("template %s: unsupported kind %q", name, cfg.Kind)
	}
}

func loadFrame(path string) (image.Image, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator configuration
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	frame, err := photo.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", path, err)
	}
	if frame.Bounds().Dy() < constants.SlotCount {
		return nil, fmt.Errorf("frame %s is too small", path)
	}
	return frame, nil
}

// DefaultFrame draws a solid frame with one transparent window per band.
func DefaultFrame(width, height, border int, c color.RGBA) image.Image {
	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	n := constants.SlotCount
	band := height / n
	half := border / 2
	for i := range n {
		top, bottom := i*band+half, (i+1)*band-half
		if i == 0 {
			top = border
		}
		if i == n-1 {
			bottom = height - border
		}
		window := image.Rect(border, top, width-border, bottom)
		draw.Draw(frame, window, image.Transparent, image.Point{}, draw.Src)
	}
	return frame
}

func parseHexColor(s string, fallback color.RGBA) (color.RGBA, error) {
	if s == "" {
		return fallback, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Catalog holds the resolved templates.
type Catalog struct {
	templates map[string]*Template
	def       string
}

// NewCatalog resolves every configured template.
func NewCatalog(cfg config.TemplatesConfig) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]*Template, len(cfg.Templates)), def: cfg.Default}
	for name, tc := range cfg.Templates {
		tmpl, err := TemplateFromConfig(name, tc)
		if err != nil {
			return nil, err
		}
		c.templates[name] = tmpl
	}
	if _, ok := c.templates[c.def]; !ok {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownTemplate, c.def)
	}
	return c, nil
}

// Get returns the named template, or the default for an empty name.
func (c *Catalog) Get(name string) (*Template, error) {
	if name == "" {
		name = c.def
	}
	tmpl, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return tmpl, nil
}

// Default returns the default template name.
func (c *Catalog) Default() string {
	return c.def
}

// Names returns the template names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
