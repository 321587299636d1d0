// Package imaging produces post images: a rendered title card or the
// entry's own image fetched from the feed host.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/semaphore"
)

const (
	fontSize   = 56
	fontDPI    = 72
	marginX    = 80
	lineGap    = 12
	ellipsis   = "…"
)

var (
	backgroundColor = color.RGBA{R: 0x1f, G: 0x26, B: 0x33, A: 0xff}
	textColor       = color.RGBA{R: 0xf2, G: 0xf4, B: 0xf8, A: 0xff}
)

// Renderer draws fixed-layout title cards. Rendering is CPU-bound, so a
// weighted semaphore bounds how many renders run at once.
type Renderer struct {
	width    int
	height   int
	maxLines int
	face     font.Face
	sem      *semaphore.Weighted
}

// NewRenderer creates a Renderer with the given canvas size, line cap
// and worker bound.
func NewRenderer(width, height, maxLines, workers int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	if maxLines <= 0 {
		maxLines = 1
	}
	if workers <= 0 {
		workers = 1
	}

	ft, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}

	return &Renderer{
		width:    width,
		height:   height,
		maxLines: maxLines,
		face:     face,
		sem:      semaphore.NewWeighted(int64(workers)),
	}, nil
}

// RenderTemplate draws the title onto the card and returns it as PNG.
func (r *Renderer) RenderTemplate(ctx context.Context, title string) ([]byte, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire render slot: %w", err)
	}
	defer r.sem.Release(1)

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: r.face,
	}

	lines := r.wrap(drawer, title)

	metrics := r.face.Metrics()
	lineHeight := metrics.Height.Ceil() + lineGap
	blockHeight := len(lines) * lineHeight
	y := (r.height-blockHeight)/2 + metrics.Ascent.Ceil()

	for _, line := range lines {
		w := drawer.MeasureString(line).Ceil()
		drawer.Dot = fixed.P((r.width-w)/2, y)
		drawer.DrawString(line)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// wrap splits the title into lines that fit the card, greedily packing
// words. Text past the line cap is truncated with an ellipsis.
func (r *Renderer) wrap(drawer *font.Drawer, title string) []string {
	maxWidth := fixed.I(r.width - 2*marginX)

	var lines []string
	var current string
	for _, word := range splitWords(title) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if drawer.MeasureString(candidate) <= maxWidth || current == "" {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
		if len(lines) == r.maxLines {
			break
		}
	}
	if len(lines) < r.maxLines && current != "" {
		lines = append(lines, current)
	} else if len(lines) == r.maxLines && current != "" {
		lines[r.maxLines-1] = trimToWidth(drawer, lines[r.maxLines-1], maxWidth) + ellipsis
	}
	if len(lines) == 0 {
		lines = []string{ellipsis}
	}
	return lines
}

// trimToWidth shortens a line until it fits the card with the ellipsis
// appended.
func trimToWidth(drawer *font.Drawer, line string, maxWidth fixed.Int26_6) string {
	runes := []rune(line)
	for len(runes) > 0 {
		if drawer.MeasureString(string(runes)+ellipsis) <= maxWidth {
			break
		}
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}
