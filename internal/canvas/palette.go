package canvas

import (
	"fmt"
	"image/color"
)

// Swatch is a named palette color.
type Swatch struct {
	Name  string
	Color color.RGBA
}

// Palette is the fixed set of drawing colors, selected by keys 1-8.
var Palette = [...]Swatch{
	{"red", color.RGBA{R: 255, A: 255}},
	{"green", color.RGBA{G: 255, A: 255}},
	{"blue", color.RGBA{B: 255, A: 255}},
	{"yellow", color.RGBA{R: 255, G: 255, A: 255}},
	{"purple", color.RGBA{R: 255, B: 255, A: 255}},
	{"cyan", color.RGBA{G: 255, B: 255, A: 255}},
	{"white", color.RGBA{R: 255, G: 255, B: 255, A: 255}},
	{"orange", color.RGBA{R: 255, G: 165, A: 255}},
}

// DefaultColor is the palette index selected at start (green).
const DefaultColor = 1

// BrushSizes are the selectable stroke widths in pixels.
var BrushSizes = [...]float64{3, 5, 8, 12, 16}

// DefaultBrush is the BrushSizes index selected at start.
const DefaultBrush = 1

// DefaultEraserSize is the eraser width in pixels.
const DefaultEraserSize = 50

// ShapeKind selects the geometry drawn in shape mode.
type ShapeKind int

const (
	Line ShapeKind = iota
	Rectangle
	Circle
	Arrow
	numShapes
)

var shapeNames = [...]string{"line", "rectangle", "circle", "arrow"}

// String returns the lowercase shape name.
func (k ShapeKind) String() string {
	if k < 0 || k >= numShapes {
		return fmt.Sprintf("shape(%d)", int(k))
	}
	return shapeNames[k]
}

// Next returns the following shape in the cycle line, rectangle, circle, arrow.
func (k ShapeKind) Next() ShapeKind {
	return (k + 1) % numShapes
}

// ParseShape returns the ShapeKind with the given name.
func ParseShape(name string) (ShapeKind, error) {
	for i, n := range shapeNames {
		if n == name {
			return ShapeKind(i), nil
		}
	}
	return Line, fmt.Errorf("unknown shape %q", name)
}
