// Package engine applies gesture states to the canvas: freehand strokes,
// erasing and previewed shapes, with one commit event per finished action.
package engine

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/gesture"
)

// Mode is the engine's drawing mode.
type Mode int

const (
	Inactive Mode = iota
	Drawing
	Erasing
	ShapePreview
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case Drawing:
		return "drawing"
	case Erasing:
		return "erasing"
	case ShapePreview:
		return "shape_preview"
	default:
		return "inactive"
	}
}

// ExitPolicy decides what happens to a shape preview when the shape gesture ends
// without an explicit completion.
type ExitPolicy int

const (
	// Abandon discards the preview.
	Abandon ExitPolicy = iota
	// AutoCommit burns the previewed shape into the canvas.
	AutoCommit
)

// ParseExitPolicy parses "abandon" or "commit".
func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch s {
	case "", "abandon":
		return Abandon, nil
	case "commit", "auto_commit":
		return AutoCommit, nil
	}
	return Abandon, fmt.Errorf("unknown shape exit policy %q", s)
}

// CommitKind identifies the action a commit event records.
type CommitKind int

const (
	KindStroke CommitKind = iota
	KindErase
	KindShape
	KindClear
)

// String returns the lowercase kind name.
func (k CommitKind) String() string {
	switch k {
	case KindErase:
		return "erase"
	case KindShape:
		return "shape"
	case KindClear:
		return "clear"
	default:
		return "stroke"
	}
}

// CommitEvent marks the end of an undoable action.
type CommitEvent struct {
	Kind CommitKind
	// Before is a private copy of the canvas as it was just before the action.
	Before *canvas.Canvas
	// Shape is the kind of shape committed; only meaningful for KindShape.
	Shape canvas.ShapeKind
}

// Config holds the engine's initial tool settings.
type Config struct {
	Width, Height int

	Color      int
	Brush      int
	EraserSize float64
	Shape      canvas.ShapeKind
	ExitPolicy ExitPolicy

	TrailLength int
	ShowTrail   bool
}

// DefaultConfig returns the default tool settings for a width×height canvas.
func DefaultConfig(width, height int) Config {
	return Config{
		Width:       width,
		Height:      height,
		Color:       canvas.DefaultColor,
		Brush:       canvas.DefaultBrush,
		EraserSize:  canvas.DefaultEraserSize,
		Shape:       canvas.Line,
		ExitPolicy:  Abandon,
		TrailLength: 8,
		ShowTrail:   true,
	}
}

// Engine owns the committed canvas and the shape preview overlay.
// It is not safe for concurrent use; the board serialises access.
type Engine struct {
	canvas  *canvas.Canvas
	overlay *canvas.Canvas

	mode     Mode
	prev     image.Point
	baseline *canvas.Canvas
	modified bool

	anchor      image.Point
	current     image.Point
	previewRect image.Rectangle

	color  int
	brush  int
	eraser float64
	shape  canvas.ShapeKind
	exit   ExitPolicy

	trail     []image.Point
	trailLen  int
	showTrail bool

	revision uint64
}

// New creates an Engine with an empty canvas.
func New(cfg Config) *Engine {
	if cfg.Color < 0 || cfg.Color >= len(canvas.Palette) {
		cfg.Color = canvas.DefaultColor
	}
	if cfg.Brush < 0 || cfg.Brush >= len(canvas.BrushSizes) {
		cfg.Brush = canvas.DefaultBrush
	}
	if cfg.EraserSize <= 0 {
		cfg.EraserSize = canvas.DefaultEraserSize
	}

	return &Engine{
		canvas:    canvas.New(cfg.Width, cfg.Height),
		overlay:   canvas.New(cfg.Width, cfg.Height),
		color:     cfg.Color,
		brush:     cfg.Brush,
		eraser:    cfg.EraserSize,
		shape:     cfg.Shape,
		exit:      cfg.ExitPolicy,
		trailLen:  cfg.TrailLength,
		showTrail: cfg.ShowTrail,
	}
}

// Update advances the engine by one frame. cursor is the index fingertip for
// Draw and Shape and the palm center for Erase; ok reports whether it is valid.
// At most one commit event is returned per call.
func (e *Engine) Update(state gesture.State, cursor image.Point, ok bool) *CommitEvent {
	e.track(state, cursor, ok)

	switch e.mode {
	case Drawing:
		if state == gesture.Draw && ok {
			if cursor != e.prev {
				e.canvas.Segment(e.prev, cursor, e.BrushWidth(), e.Color())
				e.modified = true
				e.revision++
			}
			e.prev = cursor
			return nil
		}
		ev := e.finishSession(KindStroke)
		e.enter(state, cursor, ok)
		return ev

	case Erasing:
		if state == gesture.Erase && ok {
			if e.canvas.Erase(e.prev, cursor, e.eraser) {
				e.modified = true
				e.revision++
			}
			e.prev = cursor
			return nil
		}
		ev := e.finishSession(KindErase)
		e.enter(state, cursor, ok)
		return ev

	case ShapePreview:
		if state == gesture.Shape && ok {
			if cursor != e.current {
				e.current = cursor
				e.renderPreview()
			}
			return nil
		}
		ev := e.leaveShape()
		e.enter(state, cursor, ok)
		return ev

	default:
		e.enter(state, cursor, ok)
		return nil
	}
}

// enter starts a new mode from Inactive.
func (e *Engine) enter(state gesture.State, cursor image.Point, ok bool) {
	e.mode = Inactive
	if !ok {
		return
	}

	switch state {
	case gesture.Draw:
		e.mode = Drawing
		e.baseline = e.canvas.Clone()
		e.modified = false
		e.prev = cursor

	case gesture.Erase:
		e.mode = Erasing
		e.baseline = e.canvas.Clone()
		e.modified = e.canvas.Erase(cursor, cursor, e.eraser)
		if e.modified {
			e.revision++
		}
		e.prev = cursor

	case gesture.Shape:
		e.mode = ShapePreview
		e.anchor = cursor
		e.current = cursor
		e.renderPreview()
	}
}

// finishSession ends a stroke or erase session, returning a commit if it changed the canvas.
func (e *Engine) finishSession(kind CommitKind) *CommitEvent {
	var ev *CommitEvent
	if e.modified {
		ev = &CommitEvent{Kind: kind, Before: e.baseline}
		// the committed canvas changed even though the pixels did not
		e.revision++
	}
	e.mode = Inactive
	e.baseline = nil
	e.modified = false
	return ev
}

// leaveShape applies the exit policy to an unfinished shape.
func (e *Engine) leaveShape() *CommitEvent {
	if e.exit == AutoCommit && e.anchor != e.current {
		return e.burnShape()
	}
	e.clearPreview()
	e.mode = Inactive
	return nil
}

func (e *Engine) burnShape() *CommitEvent {
	ev := &CommitEvent{Kind: KindShape, Before: e.canvas.Clone(), Shape: e.shape}
	e.canvas.Shape(e.shape, e.anchor, e.current, e.BrushWidth(), e.Color())
	e.revision++
	e.clearPreview()
	e.mode = Inactive
	return ev
}

func (e *Engine) renderPreview() {
	e.overlay.ClearRect(e.previewRect)
	e.previewRect = e.overlay.Shape(e.shape, e.anchor, e.current, e.BrushWidth(), e.Color())
}

func (e *Engine) clearPreview() {
	e.overlay.ClearRect(e.previewRect)
	e.previewRect = image.Rectangle{}
}

// abandon drops any in-progress session without committing it.
func (e *Engine) abandon() {
	if e.mode == ShapePreview {
		e.clearPreview()
	}
	e.mode = Inactive
	e.baseline = nil
	e.modified = false
}

// Discard drops any in-progress session without committing it. A stroke or
// erase that already touched the canvas is rolled back to its baseline.
func (e *Engine) Discard() {
	if (e.mode == Drawing || e.mode == Erasing) && e.modified {
		e.canvas.CopyFrom(e.baseline)
		e.revision++
	}
	e.abandon()
}

// Committed returns a copy of the canvas without the ink of a stroke or
// erase still in progress.
func (e *Engine) Committed() *canvas.Canvas {
	if (e.mode == Drawing || e.mode == Erasing) && e.baseline != nil {
		return e.baseline.Clone()
	}
	return e.canvas.Clone()
}

// CompleteShape burns the previewed shape into the canvas. It returns nil when
// no shape is being previewed or when anchor and current coincide; in the
// latter case the preview stays active.
func (e *Engine) CompleteShape() *CommitEvent {
	if e.mode != ShapePreview || e.anchor == e.current {
		return nil
	}
	return e.burnShape()
}

// Clear wipes the canvas and discards any in-progress session.
// It always returns a commit so that the clear can be undone.
func (e *Engine) Clear() *CommitEvent {
	e.Discard()
	ev := &CommitEvent{Kind: KindClear, Before: e.canvas.Clone()}
	e.canvas.Clear()
	e.revision++
	return ev
}

// Restore installs c as the committed canvas, abandoning any in-progress
// session. The engine takes ownership of c. A canvas of a different size is
// cropped or padded to the engine's size.
func (e *Engine) Restore(c *canvas.Canvas) {
	e.abandon()
	e.canvas = c.Resized(e.canvas.Width(), e.canvas.Height())
	e.revision++
}

// SetColor selects a palette entry.
func (e *Engine) SetColor(i int) error {
	if i < 0 || i >= len(canvas.Palette) {
		return fmt.Errorf("color index %d out of range [0,%d)", i, len(canvas.Palette))
	}
	e.color = i
	if e.mode == ShapePreview {
		e.renderPreview()
	}
	return nil
}

// IncreaseBrush selects the next larger brush size and returns its width.
func (e *Engine) IncreaseBrush() float64 {
	return e.setBrush(e.brush + 1)
}

// DecreaseBrush selects the next smaller brush size and returns its width.
func (e *Engine) DecreaseBrush() float64 {
	return e.setBrush(e.brush - 1)
}

func (e *Engine) setBrush(i int) float64 {
	e.brush = max(0, min(i, len(canvas.BrushSizes)-1))
	if e.mode == ShapePreview {
		e.renderPreview()
	}
	return e.BrushWidth()
}

// CycleShape advances the shape kind and re-renders any active preview with
// the same anchor and current point.
func (e *Engine) CycleShape() canvas.ShapeKind {
	e.shape = e.shape.Next()
	if e.mode == ShapePreview {
		e.renderPreview()
	}
	return e.shape
}

// SetShape selects a shape kind directly.
func (e *Engine) SetShape(k canvas.ShapeKind) {
	e.shape = k
	if e.mode == ShapePreview {
		e.renderPreview()
	}
}

// ToggleTrail flips the fingertip trail display and returns the new setting.
func (e *Engine) ToggleTrail() bool {
	e.showTrail = !e.showTrail
	if !e.showTrail {
		e.trail = e.trail[:0]
	}
	return e.showTrail
}

// track records the fingertip trail shown by the compositor. It has no
// effect on the canvas.
func (e *Engine) track(state gesture.State, cursor image.Point, ok bool) {
	if !e.showTrail || e.trailLen <= 0 {
		return
	}
	if !ok || state != gesture.Draw {
		e.trail = e.trail[:0]
		return
	}
	if len(e.trail) == e.trailLen {
		copy(e.trail, e.trail[1:])
		e.trail = e.trail[:e.trailLen-1]
	}
	e.trail = append(e.trail, cursor)
}

// Canvas returns the committed canvas. It must only be read between updates.
func (e *Engine) Canvas() *canvas.Canvas { return e.canvas }

// Overlay returns the shape preview overlay.
func (e *Engine) Overlay() *canvas.Canvas { return e.overlay }

// Previewing reports whether a shape preview is shown on the overlay.
func (e *Engine) Previewing() bool { return e.mode == ShapePreview }

// Mode returns the current drawing mode.
func (e *Engine) Mode() Mode { return e.mode }

// Anchor returns the shape anchor and current point while previewing.
func (e *Engine) Anchor() (anchor, current image.Point) { return e.anchor, e.current }

// ColorIndex returns the selected palette index.
func (e *Engine) ColorIndex() int { return e.color }

// Color returns the selected drawing color.
func (e *Engine) Color() color.RGBA { return canvas.Palette[e.color].Color }

// ColorName returns the name of the selected palette entry.
func (e *Engine) ColorName() string { return canvas.Palette[e.color].Name }

// BrushIndex returns the selected brush size index.
func (e *Engine) BrushIndex() int { return e.brush }

// BrushWidth returns the selected brush width in pixels.
func (e *Engine) BrushWidth() float64 { return canvas.BrushSizes[e.brush] }

// EraserSize returns the eraser width in pixels.
func (e *Engine) EraserSize() float64 { return e.eraser }

// Shape returns the selected shape kind.
func (e *Engine) Shape() canvas.ShapeKind { return e.shape }

// Trail returns a copy of the recent fingertip positions, oldest first.
func (e *Engine) Trail() []image.Point {
	return append([]image.Point(nil), e.trail...)
}

// TrailEnabled reports whether the trail is displayed.
func (e *Engine) TrailEnabled() bool { return e.showTrail }

// Revision increases every time the committed canvas changes.
func (e *Engine) Revision() uint64 { return e.revision }
