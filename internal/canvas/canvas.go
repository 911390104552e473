// Package canvas holds the drawing surface and the rasterisation of strokes and shapes onto it.
package canvas

import (
	"bytes"
	"image"
	"image/draw"
)

// Canvas is a transparent RGBA surface the size of a camera frame.
// Pixels with zero alpha are empty; the compositor shows the camera through them.
type Canvas struct {
	img *image.RGBA
}

// New creates a fully transparent canvas.
func New(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// FromImage creates a canvas from any image, converting it to RGBA and
// moving its origin to (0,0).
func FromImage(src image.Image) *Canvas {
	b := src.Bounds()
	c := New(b.Dx(), b.Dy())
	draw.Draw(c.img, c.img.Bounds(), src, b.Min, draw.Src)
	return c
}

// Image returns the backing image. Callers must not retain it across frames
// if the canvas is still being drawn on.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle {
	return c.img.Bounds()
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int {
	return c.img.Rect.Dx()
}

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int {
	return c.img.Rect.Dy()
}

// Bytes returns the size of the pixel buffer.
func (c *Canvas) Bytes() int {
	return len(c.img.Pix)
}

// Clone returns a deep copy.
func (c *Canvas) Clone() *Canvas {
	pix := make([]uint8, len(c.img.Pix))
	copy(pix, c.img.Pix)
	return &Canvas{img: &image.RGBA{
		Pix:    pix,
		Stride: c.img.Stride,
		Rect:   c.img.Rect,
	}}
}

// CopyFrom overwrites c with the pixels of src. Both canvases must have the same bounds.
func (c *Canvas) CopyFrom(src *Canvas) {
	copy(c.img.Pix, src.img.Pix)
}

// Clear makes every pixel transparent.
func (c *Canvas) Clear() {
	clear(c.img.Pix)
}

// ClearRect makes every pixel inside r transparent.
func (c *Canvas) ClearRect(r image.Rectangle) {
	r = r.Intersect(c.img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := c.img.PixOffset(r.Min.X, y)
		clear(c.img.Pix[i : i+4*r.Dx()])
	}
}

// Resized returns a canvas of the given size holding c's pixels anchored at
// the top-left corner, cropped or padded with transparency.
func (c *Canvas) Resized(width, height int) *Canvas {
	if c.Width() == width && c.Height() == height {
		return c
	}
	out := New(width, height)
	draw.Draw(out.img, out.img.Rect, c.img, c.img.Rect.Min, draw.Src)
	return out
}

// Equal reports whether both canvases have the same bounds and pixels.
func (c *Canvas) Equal(o *Canvas) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.img.Rect == o.img.Rect && bytes.Equal(c.img.Pix, o.img.Pix)
}

// IsEmpty reports whether every pixel is transparent.
func (c *Canvas) IsEmpty() bool {
	for i := 3; i < len(c.img.Pix); i += 4 {
		if c.img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// AlphaSum returns the sum of alpha values inside r.
func (c *Canvas) AlphaSum(r image.Rectangle) uint64 {
	r = r.Intersect(c.img.Rect)
	var sum uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := c.img.PixOffset(r.Min.X, y) + 3
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += uint64(c.img.Pix[i])
			i += 4
		}
	}
	return sum
}
