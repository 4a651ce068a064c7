package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/photo"
	"github.com/patrickmn/go-cache"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrCompositionStall is returned when the slot images did not all load in time.
	ErrCompositionStall = errors.New("composition stalled")
	// ErrIncompleteSelection is returned when fewer photos than slots are passed.
	ErrIncompleteSelection = errors.New("every slot must be filled")
)

// DecodeFunc turns a stored photo into an image.
type DecodeFunc func(p photo.Photo) (image.Image, error)

// Result is a finished composition.
type Result struct {
	ID        string      `json:"id"`
	Template  string      `json:"template"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	CreatedAt time.Time   `json:"created_at"`
	Image     image.Image `json:"-"`
	Encoded   []byte      `json:"-"`
}

// FileName returns the download name for the given extension.
func (r *Result) FileName(ext string) string {
	return "photobooth-" + r.ID + "." + ext
}

// Compositor merges three photos into one image.
type Compositor struct {
	decode  DecodeFunc
	cache   *cache.Cache
	timeout time.Duration
	quality int
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithDecoder replaces the photo decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(c *Compositor) { c.decode = fn }
}

// WithTimeout bounds how long Compose waits for the slot images.
func WithTimeout(d time.Duration) Option {
	return func(c *Compositor) { c.timeout = d }
}

// WithQuality sets the JPEG quality of the encoded result.
func WithQuality(q int) Option {
	return func(c *Compositor) { c.quality = q }
}

// NewCompositor creates a compositor with a decode cache.
func NewCompositor(opts ...Option) *Compositor {
	c := &Compositor{
		decode:  func(p photo.Photo) (image.Image, error) { return p.Decode() },
		cache:   cache.New(constants.DecodeCacheTTL, constants.DecodeCacheCleanup),
		timeout: constants.CompositionTimeout,
		quality: constants.JPEGQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Flush drops every cached decode. Photo ids restart after a session reset.
func (c *Compositor) Flush() {
	c.cache.Flush()
}

func cacheKey(p photo.Photo) string {
	return p.ID + "@" + strconv.FormatInt(p.CapturedAt.UnixNano(), 10)
}

func (c *Compositor) load(p photo.Photo) (image.Image, error) {
	key := cacheKey(p)
	if v, ok := c.cache.Get(key); ok {
		if img, ok := v.(image.Image); ok {
			return img, nil
		}
	}
	img, err := c.decode(p)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, img)
	return img, nil
}

// Compose decodes the photos concurrently and renders them in slot order.
// Nothing is produced unless every slot image loaded before the timeout.
func (c *Compositor) Compose(ctx context.Context, photos []photo.Photo, tmpl *Template) (*Result, error) {
	n := constants.SlotCount
	if len(photos) != n {
		return nil, fmt.Errorf("%w: got %d of %d", ErrIncompleteSelection, len(photos), n)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	decoded := make([]image.Image, n)
	var loaded atomic.Int32

	var eg errgroup.Group
	for i, p := range photos {
		eg.Go(func() error {
			img, err := c.load(p)
			if err != nil {
				return fmt.Errorf("slot %d (%s): %w", i+1, p.ID, err)
			}
			decoded[i] = img
			loaded.Add(1)
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()

	select {
	case <-ctx.Done():
		slog.Warn("composition stalled", "loaded", loaded.Load(), "expected", n, "error", ctx.Err())
		return nil, fmt.Errorf("%w: %d of %d images loaded: %w", ErrCompositionStall, loaded.Load(), n, ctx.Err())
	case err := <-done:
		if err != nil {
			slog.Warn("composition decode failed", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrCompositionStall, err)
		}
	}
	if got := int(loaded.Load()); got != n {
		return nil, fmt.Errorf("%w: %d of %d images loaded", ErrCompositionStall, got, n)
	}

	canvas := Render(tmpl, decoded)
	encoded, err := photo.EncodeJPEG(canvas, c.quality)
	if err != nil {
		return nil, fmt.Errorf("encoding composition: %w", err)
	}

	b := canvas.Bounds()
	return &Result{
		ID:        uuid.NewString(),
		Template:  tmpl.Name,
		Width:     b.Dx(),
		Height:    b.Dy(),
		CreatedAt: time.Now(),
		Image:     canvas,
		Encoded:   encoded,
	}, nil
}

// Render draws already decoded images onto a new canvas.
func Render(tmpl *Template, images []image.Image) *image.RGBA {
	width, height := tmpl.CanvasSize()
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	slots := tmpl.SlotRects()

	switch tmpl.Kind {
	case KindCard:
		fillGradient(canvas, tmpl.GradientTop, tmpl.GradientBottom)
		for i, img := range images {
			if img == nil {
				continue
			}
			drawCover(canvas, slots[i], img, tmpl.CornerRadius)
		}
	default:
		for i, img := range images {
			if img == nil {
				continue
			}
			draw.BiLinear.Scale(canvas, slots[i], img, img.Bounds(), draw.Src, nil)
		}
		draw.Draw(canvas, canvas.Bounds(), tmpl.Frame, tmpl.Frame.Bounds().Min, draw.Over)
	}
	return canvas
}

func fillGradient(dst *image.RGBA, top, bottom color.RGBA) {
	b := dst.Bounds()
	span := b.Dy() - 1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		t := 0.0
		if span > 0 {
			t = float64(y-b.Min.Y) / float64(span)
		}
		row := color.RGBA{
			R: lerp(top.R, bottom.R, t),
			G: lerp(top.G, bottom.G, t),
			B: lerp(top.B, bottom.B, t),
			A: 255,
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetRGBA(x, y, row)
		}
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// drawCover scales img to cover box, crops the overflow evenly and clips the corners.
func drawCover(dst *image.RGBA, box image.Rectangle, img image.Image, radius int) {
	src := coverCrop(img.Bounds(), box.Dx(), box.Dy())
	scaled := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, src, draw.Src, nil)
	mask := &roundedMask{w: box.Dx(), h: box.Dy(), r: radius}
	draw.DrawMask(dst, box, scaled, image.Point{}, mask, image.Point{}, draw.Over)
}

// coverCrop returns the centered region of src with the box aspect ratio.
func coverCrop(src image.Rectangle, boxW, boxH int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	scale := max(float64(boxW)/float64(sw), float64(boxH)/float64(sh))
	cw := min(sw, int(float64(boxW)/scale+0.5))
	ch := min(sh, int(float64(boxH)/scale+0.5))
	x := src.Min.X + (sw-cw)/2
	y := src.Min.Y + (sh-ch)/2
	return image.Rect(x, y, x+cw, y+ch)
}

// roundedMask is an alpha mask of a w×h rectangle with rounded corners.
type roundedMask struct {
	w, h, r int
}

func (m *roundedMask) ColorModel() color.Model { return color.AlphaModel }

func (m *roundedMask) Bounds() image.Rectangle { return image.Rect(0, 0, m.w, m.h) }

func (m *roundedMask) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return color.Transparent
	}
	r := min(m.r, m.w/2, m.h/2)
	if r <= 0 {
		return color.Opaque
	}
	cx, cy := -1, -1
	switch {
	case x < r:
		cx = r
	case x >= m.w-r:
		cx = m.w - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= m.h-r:
		cy = m.h - r - 1
	}
	if cx < 0 || cy < 0 {
		return color.Opaque
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > r*r {
		return color.Transparent
	}
	return color.Opaque
}
