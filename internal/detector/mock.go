package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hands []HandLandmarks
	queue [][]HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.hands = hands
}

// Enqueue appends per-frame results that Detect returns in order before
// falling back to the hands set with SetHands. A nil entry means "no hand".
func (m *MockDetector) Enqueue(frames ...[]HandLandmarks) {
	m.queue = append(m.queue, frames...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Place scales a normalized pose uniformly by size and translates it so the
// index fingertip sits on tip. It produces pixel-space landmarks for tests.
func Place(h HandLandmarks, size float64, tip image.Point) *HandLandmarks {
	for i := range h.Points {
		h.Points[i].X *= size
		h.Points[i].Y *= size
	}
	placed := h.MoveTipTo(tip)
	return &placed
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	// Wrist at base
	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	// Index finger extended upward
	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	// Middle finger extended upward (slightly longer)
	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	// Ring finger extended upward
	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	// Pinky finger extended upward
	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}

// Finger identifies one of the five fingers for pose presets.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

// curled holds the joint positions of a finger folded toward the palm,
// matching the open palm preset's MCP joints.
var curled = map[Finger][3]Point3D{
	Thumb:  {{X: 0.60, Y: 0.66}, {X: 0.60, Y: 0.66}, {X: 0.54, Y: 0.68}},
	Index:  {{X: 0.55, Y: 0.62}, {X: 0.54, Y: 0.66}, {X: 0.52, Y: 0.69}},
	Middle: {{X: 0.50, Y: 0.60}, {X: 0.49, Y: 0.65}, {X: 0.48, Y: 0.68}},
	Ring:   {{X: 0.45, Y: 0.61}, {X: 0.45, Y: 0.66}, {X: 0.46, Y: 0.69}},
	Pinky:  {{X: 0.40, Y: 0.63}, {X: 0.41, Y: 0.67}, {X: 0.42, Y: 0.70}},
}

// joints returns the mid, distal and tip landmark indices of a finger.
// The thumb has no separate distal joint, so its IP is reported twice.
func joints(f Finger) [3]int {
	switch f {
	case Thumb:
		return [3]int{ThumbIP, ThumbIP, ThumbTip}
	case Index:
		return [3]int{IndexPIP, IndexDIP, IndexTip}
	case Middle:
		return [3]int{MiddlePIP, MiddleDIP, MiddleTip}
	case Ring:
		return [3]int{RingPIP, RingDIP, RingTip}
	default:
		return [3]int{PinkyPIP, PinkyDIP, PinkyTip}
	}
}

// PoseLandmarks returns an open palm with every finger not listed in extended folded in.
func PoseLandmarks(extended ...Finger) HandLandmarks {
	landmarks := OpenPalmLandmarks()

	keep := make(map[Finger]bool, len(extended))
	for _, f := range extended {
		keep[f] = true
	}

	for _, f := range []Finger{Thumb, Index, Middle, Ring, Pinky} {
		if keep[f] {
			continue
		}
		for i, id := range joints(f) {
			landmarks.Points[id] = curled[f][i]
		}
	}

	return landmarks
}

// PointingLandmarks returns a preset with only the index finger extended.
func PointingLandmarks() HandLandmarks {
	return PoseLandmarks(Index)
}

// PeaceLandmarks returns a preset with the index and middle fingers extended.
func PeaceLandmarks() HandLandmarks {
	return PoseLandmarks(Index, Middle)
}

// FistLandmarks returns a preset with every finger folded.
func FistLandmarks() HandLandmarks {
	return PoseLandmarks()
}

// ThumbsUpLandmarks returns a preset with only the thumb extended.
// The board does not assign a gesture to it.
func ThumbsUpLandmarks() HandLandmarks {
	return PoseLandmarks(Thumb)
}
