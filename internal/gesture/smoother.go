package gesture

import "image"

// Smoother averages the most recent cursor positions to damp landmark jitter.
type Smoother struct {
	window int
	points []image.Point
}

// NewSmoother creates a Smoother over the last window points.
// A window of 1 or less passes points through unchanged.
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = 1
	}
	return &Smoother{
		window: window,
		points: make([]image.Point, 0, window),
	}
}

// Add records p and returns the rounded mean of the retained points.
func (s *Smoother) Add(p image.Point) image.Point {
	if len(s.points) == s.window {
		copy(s.points, s.points[1:])
		s.points = s.points[:s.window-1]
	}
	s.points = append(s.points, p)

	var sx, sy int
	for _, q := range s.points {
		sx += q.X
		sy += q.Y
	}
	n := len(s.points)
	return image.Point{X: roundDiv(sx, n), Y: roundDiv(sy, n)}
}

// Reset drops the retained points. Call it whenever the cursor is lost so a
// new stroke does not start from a stale average.
func (s *Smoother) Reset() {
	s.points = s.points[:0]
}

func roundDiv(sum, n int) int {
	if sum >= 0 {
		return (sum + n/2) / n
	}
	return -((-sum + n/2) / n)
}
