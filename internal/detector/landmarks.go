// Package detector provides hand landmark types and the landmark source used by the drawing board.
package detector

import (
	"image"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pixel rounds the point's X and Y to the nearest integer pixel.
func (p Point3D) Pixel() image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Distance returns the Euclidean distance between two landmark points.
// Z is ignored: MediaPipe depth is relative and far noisier than X and Y.
func Distance(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PalmCenter returns the mean of the wrist and the four finger MCP joints.
func (h *HandLandmarks) PalmCenter() Point3D {
	ids := [...]int{Wrist, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

	var c Point3D
	for _, id := range ids {
		c.X += h.Points[id].X
		c.Y += h.Points[id].Y
		c.Z += h.Points[id].Z
	}
	n := float64(len(ids))
	c.X /= n
	c.Y /= n
	c.Z /= n
	return c
}

// Scale returns a copy of the landmarks with X multiplied by width and Y by height.
// The model reports coordinates normalized to [0,1]; the board works in frame pixels.
// When mirror is set, X is flipped so the image behaves like a mirror.
func (h *HandLandmarks) Scale(width, height int, mirror bool) *HandLandmarks {
	if h == nil {
		return nil
	}

	scaled := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	w := float64(width)
	ht := float64(height)
	for i := 0; i < NumLandmarks; i++ {
		x := h.Points[i].X
		if mirror {
			x = 1 - x
		}
		scaled.Points[i] = Point3D{
			X: x * w,
			Y: h.Points[i].Y * ht,
			Z: h.Points[i].Z,
		}
	}

	return scaled
}

// Translate returns a copy of the landmarks shifted by (dx, dy).
func (h HandLandmarks) Translate(dx, dy float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
	return h
}

// MoveTipTo returns a copy of the landmarks translated so that the index
// fingertip lands exactly on p.
func (h HandLandmarks) MoveTipTo(p image.Point) HandLandmarks {
	tip := h.Points[IndexTip]
	return h.Translate(float64(p.X)-tip.X, float64(p.Y)-tip.Y)
}
