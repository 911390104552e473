// Package gesture turns per-frame hand landmarks into one of the board's interaction states.
package gesture

import (
	"image"

	"github.com/ayusman/mudra/internal/detector"
)

// State is the interaction state derived from a hand pose.
type State int

const (
	// Idle means no drawing action: no hand, a fist, or an unrecognised pose.
	Idle State = iota
	// Draw is the index finger alone.
	Draw
	// Erase is an open palm.
	Erase
	// Shape is the index and middle fingers together.
	Shape
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Draw:
		return "draw"
	case Erase:
		return "erase"
	case Shape:
		return "shape"
	default:
		return "idle"
	}
}

// Config tunes the classifier.
type Config struct {
	// ExtensionRatio scales the mid-joint distance a fingertip must exceed
	// to count as extended.
	ExtensionRatio float64

	// MaxHoldFrames is how many consecutive unrecognised frames keep the
	// previous state before falling back to Idle.
	MaxHoldFrames int

	// LenientThumb ignores the thumb: Draw and Shape accept either thumb
	// position and four extended fingers count as Erase.
	LenientThumb bool
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		ExtensionRatio: 1.0,
		MaxHoldFrames:  3,
	}
}

// Result is the outcome of classifying one frame.
type Result struct {
	State State

	// Cursor is the index fingertip. Valid only when HasCursor is set,
	// which is the case for Draw and Shape.
	Cursor    image.Point
	HasCursor bool

	// Palm is the palm center, reported whenever a hand is present.
	Palm    image.Point
	HasHand bool

	// Held is set when State was carried over from an earlier frame.
	Held bool
}

// Fingers records which fingers are extended, thumb first.
type Fingers [5]bool

// Count returns the number of extended fingers.
func (f Fingers) Count() int {
	n := 0
	for _, e := range f {
		if e {
			n++
		}
	}
	return n
}

var fingerJoints = [5][2]int{
	{detector.ThumbIP, detector.ThumbTip},
	{detector.IndexPIP, detector.IndexTip},
	{detector.MiddlePIP, detector.MiddleTip},
	{detector.RingPIP, detector.RingTip},
	{detector.PinkyPIP, detector.PinkyTip},
}

// Extended reports which fingers of hand are extended. A finger is extended
// when its tip lies farther from the palm center than its mid joint does,
// scaled by ratio.
func Extended(hand *detector.HandLandmarks, ratio float64) Fingers {
	var f Fingers
	if hand == nil {
		return f
	}

	palm := hand.PalmCenter()
	for i, j := range fingerJoints {
		mid := detector.Distance(hand.Points[j[0]], palm)
		tip := detector.Distance(hand.Points[j[1]], palm)
		f[i] = tip > mid*ratio
	}
	return f
}

// Classifier maps landmarks to a State with a bounded hold on ambiguous frames.
// It is not safe for concurrent use.
type Classifier struct {
	config Config
	last   State
	held   int
}

// NewClassifier creates a Classifier. A non-positive ExtensionRatio takes its
// default; a negative MaxHoldFrames is treated as zero.
func NewClassifier(config Config) *Classifier {
	def := DefaultConfig()
	if config.ExtensionRatio <= 0 {
		config.ExtensionRatio = def.ExtensionRatio
	}
	if config.MaxHoldFrames < 0 {
		config.MaxHoldFrames = 0
	}
	return &Classifier{config: config}
}

// Config returns the classifier's effective configuration.
func (c *Classifier) Config() Config {
	return c.config
}

// Reset forgets the previous state and hold counter.
func (c *Classifier) Reset() {
	c.last = Idle
	c.held = 0
}

// Classify resolves the state for one frame. hand must be in pixel
// coordinates; nil means no hand was detected.
func (c *Classifier) Classify(hand *detector.HandLandmarks) Result {
	if hand == nil {
		c.Reset()
		return Result{State: Idle}
	}

	res := Result{
		Palm:    hand.PalmCenter().Pixel(),
		HasHand: true,
	}

	state, ok := c.resolve(Extended(hand, c.config.ExtensionRatio))
	switch {
	case ok:
		c.last = state
		c.held = 0
	case c.held < c.config.MaxHoldFrames:
		c.held++
		state = c.last
		res.Held = true
	default:
		c.last = Idle
		state = Idle
	}

	res.State = state
	if state == Draw || state == Shape {
		res.Cursor = hand.Points[detector.IndexTip].Pixel()
		res.HasCursor = true
	}
	return res
}

// resolve maps an extension pattern to a state. ok is false when the
// pattern is not one the board assigns meaning to.
func (c *Classifier) resolve(f Fingers) (State, bool) {
	index, middle, ring, pinky := f[1], f[2], f[3], f[4]

	if c.config.LenientThumb {
		switch {
		case index && middle && ring && pinky:
			return Erase, true
		case index && !middle && !ring && !pinky:
			return Draw, true
		case index && middle && !ring && !pinky:
			return Shape, true
		case !index && !middle && !ring && !pinky:
			return Idle, true
		}
		return Idle, false
	}

	switch {
	case f.Count() == 5:
		return Erase, true
	case f.Count() == 0:
		return Idle, true
	case index && f.Count() == 1:
		return Draw, true
	case index && middle && f.Count() == 2:
		return Shape, true
	}
	return Idle, false
}
