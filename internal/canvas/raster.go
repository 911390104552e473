package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
	"seehuhn.de/go/geom/vec"
)

const (
	// ArrowHeadLength is the length of each arrow head barb in pixels.
	ArrowHeadLength = 20
	// ArrowHeadAngle is the angle between the shaft and each barb.
	ArrowHeadAngle = math.Pi / 6

	// zeroLength is the distance below which two points are treated as one.
	zeroLength = 1e-9
)

var transparent = image.NewUniform(color.Transparent)

// contour is one closed polygon of a filled outline. Outer contours are
// wound with a decreasing angle, holes with an increasing one.
type contour []vec.Vec2

// center maps an integer pixel to its center in raster space.
func center(p image.Point) vec.Vec2 {
	return vec.Vec2{X: float64(p.X) + 0.5, Y: float64(p.Y) + 0.5}
}

// arc appends points on a circle around c, starting at angle start and
// turning by sweep radians.
func arc(dst contour, c vec.Vec2, r, start, sweep float64) contour {
	steps := int(math.Ceil(math.Abs(sweep) / (2 * math.Pi) * segmentsFor(r)))
	if steps < 2 {
		steps = 2
	}
	for i := 0; i <= steps; i++ {
		a := start + sweep*float64(i)/float64(steps)
		dst = append(dst, c.Add(vec.Vec2{X: math.Cos(a), Y: math.Sin(a)}.Mul(r)))
	}
	return dst
}

// segmentsFor picks a polygon resolution for a full circle of radius r.
func segmentsFor(r float64) float64 {
	return math.Max(16, math.Min(128, 2*math.Pi*r/2))
}

func disc(c vec.Vec2, r float64) contour {
	return arc(nil, c, r, 0, -2*math.Pi)
}

// capsule returns the outline of a segment from a to b with round ends of radius r.
func capsule(a, b vec.Vec2, r float64) contour {
	d := b.Sub(a)
	length := d.Length()
	if length < zeroLength {
		return disc(a, r)
	}
	t := d.Mul(1 / length)
	n := vec.Vec2{X: -t.Y, Y: t.X}
	theta := math.Atan2(n.Y, n.X)

	out := contour{a.Add(n.Mul(r)), b.Add(n.Mul(r))}
	out = arc(out, b, r, theta, -math.Pi)
	out = append(out, a.Sub(n.Mul(r)))
	out = arc(out, a, r, theta+math.Pi, -math.Pi)
	return out
}

// box returns an axis-aligned rectangle outline; hole reverses the winding.
func box(x0, y0, x1, y1 float64, hole bool) contour {
	pts := contour{{X: x1, Y: y0}, {X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}}
	if hole {
		pts[0], pts[3] = pts[3], pts[0]
		pts[1], pts[2] = pts[2], pts[1]
	}
	return pts
}

// fill rasterises the union of contours onto the canvas and returns the
// rectangle that may have changed.
func (c *Canvas) fill(contours []contour, src image.Image, op draw.Op) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, ct := range contours {
		for _, p := range ct {
			minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
			maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return image.Rectangle{}
	}

	bbox := image.Rect(
		int(math.Floor(minX))-1, int(math.Floor(minY))-1,
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1,
	).Intersect(c.img.Rect)
	if bbox.Empty() {
		return image.Rectangle{}
	}

	ox, oy := float64(bbox.Min.X), float64(bbox.Min.Y)
	z := vector.NewRasterizer(bbox.Dx(), bbox.Dy())
	z.DrawOp = op
	for _, ct := range contours {
		if len(ct) < 3 {
			continue
		}
		z.MoveTo(float32(ct[0].X-ox), float32(ct[0].Y-oy))
		for _, p := range ct[1:] {
			z.LineTo(float32(p.X-ox), float32(p.Y-oy))
		}
		z.ClosePath()
	}
	z.Draw(c.img, bbox, src, image.Point{})
	return bbox
}

// Segment draws a round-capped line from a to b.
func (c *Canvas) Segment(a, b image.Point, width float64, col color.Color) image.Rectangle {
	return c.fill([]contour{capsule(center(a), center(b), width/2)}, image.NewUniform(col), draw.Over)
}

// Dot draws a filled disc of the given diameter.
func (c *Canvas) Dot(p image.Point, width float64, col color.Color) image.Rectangle {
	return c.fill([]contour{disc(center(p), width/2)}, image.NewUniform(col), draw.Over)
}

// Erase clears a round-capped band of the given width from a to b and
// reports whether any pixel changed.
func (c *Canvas) Erase(a, b image.Point, width float64) bool {
	ct := capsule(center(a), center(b), width/2)

	before := c.AlphaSum(bounds(ct, c.img.Rect))
	if before == 0 {
		return false
	}
	r := c.fill([]contour{ct}, transparent, draw.Src)
	return c.AlphaSum(r) < before
}

func bounds(ct contour, clip image.Rectangle) image.Rectangle {
	var r image.Rectangle
	for i, p := range ct {
		q := image.Rect(int(math.Floor(p.X))-1, int(math.Floor(p.Y))-1, int(math.Ceil(p.X))+1, int(math.Ceil(p.Y))+1)
		if i == 0 {
			r = q
		} else {
			r = r.Union(q)
		}
	}
	return r.Intersect(clip)
}

// Shape draws kind between anchor and current with the given stroke width.
// For Circle, anchor is the center and the radius is the anchor-current distance.
func (c *Canvas) Shape(kind ShapeKind, anchor, current image.Point, width float64, col color.Color) image.Rectangle {
	contours := shapeOutline(kind, anchor, current, width)
	return c.fill(contours, image.NewUniform(col), draw.Over)
}

// shapeOutline returns the filled outline of a stroked shape.
func shapeOutline(kind ShapeKind, anchor, current image.Point, width float64) []contour {
	a, b := center(anchor), center(current)
	hw := width / 2

	switch kind {
	case Rectangle:
		x0, x1 := math.Min(a.X, b.X), math.Max(a.X, b.X)
		y0, y1 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
		out := []contour{box(x0-hw, y0-hw, x1+hw, y1+hw, false)}
		if x1-x0 > width && y1-y0 > width {
			out = append(out, box(x0+hw, y0+hw, x1-hw, y1-hw, true))
		}
		return out

	case Circle:
		r := b.Sub(a).Length()
		out := []contour{arc(nil, a, r+hw, 0, -2*math.Pi)}
		if r-hw > 0 {
			out = append(out, arc(nil, a, r-hw, 0, 2*math.Pi))
		}
		return out

	case Arrow:
		out := []contour{capsule(a, b, hw)}
		d := b.Sub(a)
		if d.Length() < zeroLength {
			return out
		}
		angle := math.Atan2(d.Y, d.X)
		for _, s := range []float64{-1, 1} {
			barb := vec.Vec2{
				X: b.X - ArrowHeadLength*math.Cos(angle+s*ArrowHeadAngle),
				Y: b.Y - ArrowHeadLength*math.Sin(angle+s*ArrowHeadAngle),
			}
			out = append(out, capsule(b, barb, hw))
		}
		return out

	default:
		return []contour{capsule(a, b, hw)}
	}
}
