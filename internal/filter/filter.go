// Package filter implements the cosmetic color filters offered after composition.
//
// Each filter is a chain of CSS filter functions evaluated in sRGB space with
// clamping after every step, the same way a browser renders them. Filters are
// always computed from the untouched base image so switching between them
// never accumulates.
package filter

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID names a filter.
type ID string

// Available filters.
const (
	None   ID = "none"
	White  ID = "white"
	Pink   ID = "pink"
	Black  ID = "black"
	Yellow ID = "yellow"
)

// ErrUnknownFilter is returned for ids outside the palette.
var ErrUnknownFilter = errors.New("unknown filter")

// order is the palette order shown to users.
var order = []ID{None, White, Pink, Black, Yellow}

// chains lists the CSS functions per filter in browser evaluation order.
var chains = map[ID][]op{
	None:   nil,
	White:  {brightness(1.1), contrast(1.05)},
	Pink:   {hueRotate(320), saturate(1.5), sepia(0.2)},
	Black:  {brightness(0.7), contrast(1.2), saturate(0.8)},
	Yellow: {brightness(1.05), hueRotate(30), saturate(1.5), sepia(0.4)},
}

// Parse normalizes a filter name. "original" and the empty string mean None.
func Parse(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if id == "" || id == "original" {
		return None, nil
	}
	if _, ok := chains[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
	return id, nil
}

// Option is a palette entry.
type Option struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

// Palette returns the filters in display order.
func Palette() []Option {
	title := cases.Title(language.English)
	opts := make([]Option, 0, len(order))
	for _, id := range order {
		label := title.String(string(id))
		if id == None {
			label = "Original"
		}
		opts = append(opts, Option{ID: id, Label: label})
	}
	return opts
}

// Apply returns a filtered copy of img. The input is never modified.
func Apply(img image.Image, id ID) (*image.NRGBA, error) {
	chain, ok := chains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, id)
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	if len(chain) == 0 {
		return out, nil
	}

	rows := out.Bounds().Dy()
	workers := max(1, min(runtime.GOMAXPROCS(0), rows))
	chunk := (rows + workers - 1) / workers

	var eg errgroup.Group
	for start := 0; start < rows; start += chunk {
		end := min(start+chunk, rows)
		eg.Go(func() error {
			applyRows(out, chain, start, end)
			return nil
		})
	}
	_ = eg.Wait()
	return out, nil
}

func applyRows(img *image.NRGBA, chain []op, start, end int) {
	width := img.Bounds().Dx()
	for y := start; y < end; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for i := 0; i < len(row); i += 4 {
			px := [3]float64{
				float64(row[i]) / 255,
				float64(row[i+1]) / 255,
				float64(row[i+2]) / 255,
			}
			for _, o := range chain {
				px = o.apply(px)
			}
			row[i] = toByte(px[0])
			row[i+1] = toByte(px[1])
			row[i+2] = toByte(px[2])
		}
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(clamp(v) * 255))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
