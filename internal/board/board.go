// Package board wires the gesture classifier, drawing engine and history into
// the single object the frame loop drives.
package board

import (
	"image"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/history"
)

// Config configures a Board.
type Config struct {
	Gesture      gesture.Config
	Engine       engine.Config
	HistoryDepth int
	// Smoothing is the cursor moving-average window; 1 disables smoothing.
	Smoothing int
}

// DefaultConfig returns the board defaults for a width×height frame.
func DefaultConfig(width, height int) Config {
	return Config{
		Gesture:      gesture.DefaultConfig(),
		Engine:       engine.DefaultConfig(width, height),
		HistoryDepth: history.DefaultDepth,
		Smoothing:    1,
	}
}

// Event types published to OnEvent.
const (
	EventGesture  = "gesture"
	EventCommit   = "commit"
	EventUndo     = "undo"
	EventRedo     = "redo"
	EventSettings = "settings"
)

// Event describes a change observers may want to show.
type Event struct {
	Type     string `json:"type"`
	Gesture  string `json:"gesture,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Revision uint64 `json:"revision"`
}

// Frame is the outcome of one Step.
type Frame struct {
	Gesture gesture.Result
	Mode    engine.Mode
	// Cursor is the position fed to the engine: the smoothed fingertip for
	// Draw and Shape, the palm center for Erase.
	Cursor    image.Point
	HasCursor bool
	Commit    *engine.CommitEvent
}

// Outcome is the result of a trigger.
type Outcome struct {
	// Applied is false when the trigger had nothing to act on.
	Applied bool
	// Save asks the caller to persist the canvas.
	Save   bool
	Commit *engine.CommitEvent
}

// Status summarises the board for the HUD and the API.
type Status struct {
	Gesture    string  `json:"gesture"`
	Mode       string  `json:"mode"`
	Color      string  `json:"color"`
	ColorIndex int     `json:"color_index"`
	Brush      float64 `json:"brush"`
	BrushIndex int     `json:"brush_index"`
	Shape      string  `json:"shape"`
	Trail      bool    `json:"trail"`
	Undo       int     `json:"undo"`
	Redo       int     `json:"redo"`
	Depth      int     `json:"depth"`
	Revision   uint64  `json:"revision"`
	Previewing bool    `json:"previewing"`
}

// Settings are the tool selections that survive a restart.
type Settings struct {
	Color int
	Brush int
	Shape canvas.ShapeKind
	Trail bool
}

// Board owns the drawing state. It is not safe for concurrent use: the app
// calls Step and Do from its frame goroutine only.
type Board struct {
	classifier *gesture.Classifier
	smoother   *gesture.Smoother
	engine     *engine.Engine
	history    *history.Manager

	last gesture.State

	// OnEvent, when set, is called synchronously for every Event.
	OnEvent func(Event)
}

// New creates a Board.
func New(cfg Config) *Board {
	return &Board{
		classifier: gesture.NewClassifier(cfg.Gesture),
		smoother:   gesture.NewSmoother(cfg.Smoothing),
		engine:     engine.New(cfg.Engine),
		history:    history.New(cfg.HistoryDepth),
	}
}

func (b *Board) emit(e Event) {
	e.Revision = b.engine.Revision()
	if b.OnEvent != nil {
		b.OnEvent(e)
	}
}

// Step runs one classify, update and commit cycle. hand is in frame pixels,
// or nil when no hand was detected.
func (b *Board) Step(hand *detector.HandLandmarks) Frame {
	res := b.classifier.Classify(hand)

	f := Frame{Gesture: res}
	switch {
	case res.HasCursor:
		f.Cursor = b.smoother.Add(res.Cursor)
		f.HasCursor = true
	case res.State == gesture.Erase && res.HasHand:
		b.smoother.Reset()
		f.Cursor = res.Palm
		f.HasCursor = true
	default:
		b.smoother.Reset()
	}

	f.Commit = b.engine.Update(res.State, f.Cursor, f.HasCursor)
	f.Mode = b.engine.Mode()

	if res.State != b.last {
		log.WithFields(log.Fields{
			"from": b.last,
			"to":   res.State,
			"held": res.Held,
		}).Debug("gesture changed")
		b.last = res.State
		b.emit(Event{Type: EventGesture, Gesture: res.State.String(), Mode: f.Mode.String()})
	}

	b.record(f.Commit)
	return f
}

// record pushes a commit onto history.
func (b *Board) record(ev *engine.CommitEvent) {
	if ev == nil {
		return
	}
	b.history.OnCommit(ev.Before)
	log.WithFields(log.Fields{
		"kind": ev.Kind,
		"undo": b.history.Len(),
	}).Info("committed")
	b.emit(Event{Type: EventCommit, Kind: ev.Kind.String(), Mode: b.engine.Mode().String()})
}

// Do applies one external trigger.
func (b *Board) Do(t Trigger) Outcome {
	switch t.Kind {
	case SelectColor:
		if err := b.engine.SetColor(t.Color); err != nil {
			log.WithError(err).Warn("ignoring color selection")
			return Outcome{}
		}
		b.settingsChanged()

	case BrushUp:
		b.engine.IncreaseBrush()
		b.settingsChanged()

	case BrushDown:
		b.engine.DecreaseBrush()
		b.settingsChanged()

	case CycleShape:
		b.engine.CycleShape()
		b.settingsChanged()

	case ToggleTrail:
		b.engine.ToggleTrail()
		b.settingsChanged()

	case CompleteShape:
		ev := b.engine.CompleteShape()
		if ev == nil {
			return Outcome{}
		}
		b.record(ev)
		return Outcome{Applied: true, Commit: ev}

	case Clear:
		ev := b.engine.Clear()
		b.record(ev)
		return Outcome{Applied: true, Commit: ev}

	case Undo:
		if !b.history.CanUndo() {
			return Outcome{}
		}
		b.engine.Discard()
		prev, ok := b.history.Undo(b.engine.Canvas())
		if !ok {
			return Outcome{}
		}
		b.engine.Restore(prev)
		log.WithField("undo", b.history.Len()).Info("undo")
		b.emit(Event{Type: EventUndo})

	case Redo:
		if !b.history.CanRedo() {
			return Outcome{}
		}
		b.engine.Discard()
		next, ok := b.history.Redo(b.engine.Canvas())
		if !ok {
			return Outcome{}
		}
		b.engine.Restore(next)
		log.WithField("redo", b.history.RedoLen()).Info("redo")
		b.emit(Event{Type: EventRedo})

	case Save:
		return Outcome{Applied: true, Save: true}

	default:
		return Outcome{}
	}
	return Outcome{Applied: true}
}

func (b *Board) settingsChanged() {
	log.WithFields(log.Fields{
		"color": b.engine.ColorName(),
		"brush": b.engine.BrushWidth(),
		"shape": b.engine.Shape(),
		"trail": b.engine.TrailEnabled(),
	}).Debug("tools changed")
	b.emit(Event{Type: EventSettings})
}

// Load replaces the canvas with c as an undoable action.
func (b *Board) Load(c *canvas.Canvas) {
	b.engine.Discard()
	b.history.OnCommit(b.engine.Canvas())
	b.engine.Restore(c.Clone())
	b.emit(Event{Type: EventCommit, Kind: "load"})
}

// Snapshot returns a copy of the committed canvas. Ink from a stroke still
// in progress is left out.
func (b *Board) Snapshot() *canvas.Canvas {
	return b.engine.Committed()
}

// Engine exposes the engine for read-only use by the compositor.
func (b *Board) Engine() *engine.Engine {
	return b.engine
}

// Revision returns the committed canvas revision.
func (b *Board) Revision() uint64 {
	return b.engine.Revision()
}

// Status returns a summary of the current state.
func (b *Board) Status() Status {
	e := b.engine
	return Status{
		Gesture:    b.last.String(),
		Mode:       e.Mode().String(),
		Color:      e.ColorName(),
		ColorIndex: e.ColorIndex(),
		Brush:      e.BrushWidth(),
		BrushIndex: e.BrushIndex(),
		Shape:      e.Shape().String(),
		Trail:      e.TrailEnabled(),
		Undo:       b.history.Len(),
		Redo:       b.history.RedoLen(),
		Depth:      b.history.Depth(),
		Revision:   e.Revision(),
		Previewing: e.Previewing(),
	}
}

// Settings returns the current tool selections.
func (b *Board) Settings() Settings {
	return Settings{
		Color: b.engine.ColorIndex(),
		Brush: b.engine.BrushIndex(),
		Shape: b.engine.Shape(),
		Trail: b.engine.TrailEnabled(),
	}
}

// ApplySettings restores tool selections saved earlier. Invalid values are skipped.
func (b *Board) ApplySettings(s Settings) {
	if err := b.engine.SetColor(s.Color); err != nil {
		log.WithError(err).Warn("saved color ignored")
	}
	for b.engine.BrushIndex() < s.Brush && b.engine.BrushIndex() < len(canvas.BrushSizes)-1 {
		b.engine.IncreaseBrush()
	}
	for b.engine.BrushIndex() > s.Brush && b.engine.BrushIndex() > 0 {
		b.engine.DecreaseBrush()
	}
	if s.Shape >= canvas.Line && s.Shape <= canvas.Arrow {
		b.engine.SetShape(s.Shape)
	}
	if b.engine.TrailEnabled() != s.Trail {
		b.engine.ToggleTrail()
	}
}
