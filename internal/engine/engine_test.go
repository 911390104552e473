package engine

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/gesture"
)

func newEngine() *Engine {
	return New(DefaultConfig(100, 100))
}

func alpha(c *canvas.Canvas, x, y int) uint8 {
	return c.Image().RGBAAt(x, y).A
}

func TestEngine_VerticalStroke(t *testing.T) {
	e := newEngine()

	frames := []image.Point{{10, 10}, {10, 20}, {10, 30}}
	for i, p := range frames {
		ev := e.Update(gesture.Draw, p, true)
		assert.Nil(t, ev, "frame %d must not commit", i+1)
		assert.Equal(t, Drawing, e.Mode())
	}

	ev := e.Update(gesture.Idle, image.Point{}, false)

	require.NotNil(t, ev, "leaving draw must commit exactly once")
	assert.Equal(t, KindStroke, ev.Kind)
	assert.True(t, ev.Before.IsEmpty(), "snapshot is the canvas before the stroke")
	assert.Equal(t, Inactive, e.Mode())

	for y := 10; y <= 30; y++ {
		assert.NotZero(t, alpha(e.Canvas(), 10, y), "ink missing at (10,%d)", y)
	}
	assert.Zero(t, alpha(e.Canvas(), 40, 20))

	assert.Nil(t, e.Update(gesture.Idle, image.Point{}, false), "no second commit")
}

func TestEngine_ZeroLengthStroke(t *testing.T) {
	e := newEngine()

	assert.Nil(t, e.Update(gesture.Draw, image.Pt(5, 5), true))
	assert.Nil(t, e.Update(gesture.Draw, image.Pt(5, 5), true))
	assert.Nil(t, e.Update(gesture.Idle, image.Point{}, false))

	assert.True(t, e.Canvas().IsEmpty())
	assert.Equal(t, uint64(0), e.Revision())
}

func TestEngine_CursorLossEndsStroke(t *testing.T) {
	e := newEngine()

	e.Update(gesture.Draw, image.Pt(10, 10), true)
	e.Update(gesture.Draw, image.Pt(30, 10), true)
	ev := e.Update(gesture.Draw, image.Point{}, false)

	require.NotNil(t, ev)
	assert.Equal(t, KindStroke, ev.Kind)
	assert.Equal(t, Inactive, e.Mode())
}

func TestEngine_RectangleShape(t *testing.T) {
	e := newEngine()
	e.SetShape(canvas.Rectangle)

	assert.Nil(t, e.Update(gesture.Shape, image.Pt(0, 0), true))
	assert.Nil(t, e.Update(gesture.Shape, image.Pt(50, 50), true))

	require.True(t, e.Previewing())
	assert.True(t, e.Canvas().IsEmpty(), "preview must not touch the canvas")
	assert.False(t, e.Overlay().IsEmpty())

	ev := e.CompleteShape()

	require.NotNil(t, ev)
	assert.Equal(t, KindShape, ev.Kind)
	assert.Equal(t, canvas.Rectangle, ev.Shape)
	assert.True(t, ev.Before.IsEmpty())
	assert.Equal(t, Inactive, e.Mode())
	assert.True(t, e.Overlay().IsEmpty(), "preview cleared after completion")

	c := e.Canvas()
	assert.NotZero(t, alpha(c, 0, 25), "left edge")
	assert.NotZero(t, alpha(c, 50, 25), "right edge")
	assert.NotZero(t, alpha(c, 25, 0), "top edge")
	assert.NotZero(t, alpha(c, 25, 50), "bottom edge")
	assert.NotZero(t, alpha(c, 50, 50), "corner")
	assert.Zero(t, alpha(c, 25, 25), "interior")
	assert.Zero(t, alpha(c, 80, 80), "outside")

	assert.Nil(t, e.CompleteShape(), "nothing left to complete")
}

func TestEngine_ShapeAbandoned(t *testing.T) {
	e := newEngine()

	e.Update(gesture.Shape, image.Pt(10, 10), true)
	e.Update(gesture.Shape, image.Pt(40, 40), true)
	ev := e.Update(gesture.Idle, image.Point{}, false)

	assert.Nil(t, ev)
	assert.True(t, e.Canvas().IsEmpty())
	assert.True(t, e.Overlay().IsEmpty())
	assert.False(t, e.Previewing())
}

func TestEngine_ShapeAutoCommit(t *testing.T) {
	cfg := DefaultConfig(100, 100)
	cfg.ExitPolicy = AutoCommit
	e := New(cfg)

	e.Update(gesture.Shape, image.Pt(10, 10), true)
	e.Update(gesture.Shape, image.Pt(40, 40), true)
	ev := e.Update(gesture.Idle, image.Point{}, false)

	require.NotNil(t, ev)
	assert.Equal(t, KindShape, ev.Kind)
	assert.NotZero(t, alpha(e.Canvas(), 25, 25))
}

func TestEngine_DegenerateShape(t *testing.T) {
	e := newEngine()

	e.Update(gesture.Shape, image.Pt(20, 20), true)
	e.Update(gesture.Shape, image.Pt(20, 20), true)

	assert.Nil(t, e.CompleteShape())
	assert.True(t, e.Previewing(), "degenerate completion keeps previewing")
	assert.True(t, e.Canvas().IsEmpty())

	cfg := DefaultConfig(100, 100)
	cfg.ExitPolicy = AutoCommit
	auto := New(cfg)
	auto.Update(gesture.Shape, image.Pt(20, 20), true)
	assert.Nil(t, auto.Update(gesture.Idle, image.Point{}, false))
}

func TestEngine_CycleShapeKeepsAnchor(t *testing.T) {
	e := newEngine()

	e.Update(gesture.Shape, image.Pt(10, 10), true)
	e.Update(gesture.Shape, image.Pt(60, 60), true)
	line := e.Overlay().Clone()

	assert.Equal(t, canvas.Rectangle, e.CycleShape())

	anchor, current := e.Anchor()
	assert.Equal(t, image.Pt(10, 10), anchor)
	assert.Equal(t, image.Pt(60, 60), current)
	assert.False(t, e.Overlay().Equal(line), "preview re-rendered with the new kind")
	assert.NotZero(t, alpha(e.Overlay(), 10, 35), "rectangle left edge in preview")
	assert.Zero(t, alpha(e.Overlay(), 35, 35), "old diagonal line gone from preview")
}

func TestEngine_Erase(t *testing.T) {
	e := newEngine()
	e.Update(gesture.Draw, image.Pt(10, 50), true)
	e.Update(gesture.Draw, image.Pt(90, 50), true)
	require.NotNil(t, e.Update(gesture.Idle, image.Point{}, false))
	drawn := e.Canvas().Clone()

	t.Run("over ink commits", func(t *testing.T) {
		assert.Nil(t, e.Update(gesture.Erase, image.Pt(50, 40), true))
		assert.Nil(t, e.Update(gesture.Erase, image.Pt(50, 60), true))
		ev := e.Update(gesture.Idle, image.Point{}, false)

		require.NotNil(t, ev)
		assert.Equal(t, KindErase, ev.Kind)
		assert.True(t, ev.Before.Equal(drawn))
		assert.Zero(t, alpha(e.Canvas(), 50, 50))
		assert.NotZero(t, alpha(e.Canvas(), 12, 50))
	})

	t.Run("over empty area does not commit", func(t *testing.T) {
		e.Update(gesture.Erase, image.Pt(50, 5), true)
		assert.Nil(t, e.Update(gesture.Idle, image.Point{}, false))
	})
}

func TestEngine_ModeSwitchCommitsAndEnters(t *testing.T) {
	e := newEngine()

	e.Update(gesture.Draw, image.Pt(10, 10), true)
	e.Update(gesture.Draw, image.Pt(20, 20), true)
	ev := e.Update(gesture.Shape, image.Pt(30, 30), true)

	require.NotNil(t, ev)
	assert.Equal(t, KindStroke, ev.Kind)
	assert.Equal(t, ShapePreview, e.Mode())

	anchor, _ := e.Anchor()
	assert.Equal(t, image.Pt(30, 30), anchor)
}

func TestEngine_Clear(t *testing.T) {
	t.Run("always commits", func(t *testing.T) {
		e := newEngine()

		ev := e.Clear()

		require.NotNil(t, ev)
		assert.Equal(t, KindClear, ev.Kind)
	})

	t.Run("wipes ink and abandons preview", func(t *testing.T) {
		e := newEngine()
		e.Update(gesture.Draw, image.Pt(10, 10), true)
		e.Update(gesture.Draw, image.Pt(50, 10), true)
		e.Update(gesture.Idle, image.Point{}, false)
		e.Update(gesture.Shape, image.Pt(20, 20), true)
		e.Update(gesture.Shape, image.Pt(60, 60), true)

		ev := e.Clear()

		require.NotNil(t, ev)
		assert.False(t, ev.Before.IsEmpty())
		assert.True(t, e.Canvas().IsEmpty())
		assert.True(t, e.Overlay().IsEmpty())
		assert.False(t, e.Previewing())
	})

	t.Run("mid-stroke keeps partial ink out of the undo state", func(t *testing.T) {
		e := newEngine()
		e.Update(gesture.Draw, image.Pt(10, 10), true)
		e.Update(gesture.Draw, image.Pt(50, 10), true)

		ev := e.Clear()

		require.NotNil(t, ev)
		assert.True(t, ev.Before.IsEmpty())
		assert.Equal(t, Inactive, e.Mode())
	})
}

func TestEngine_RestoreAbandonsStroke(t *testing.T) {
	e := newEngine()
	e.Update(gesture.Draw, image.Pt(10, 10), true)
	e.Update(gesture.Draw, image.Pt(40, 10), true)

	e.Restore(canvas.New(100, 100))

	assert.Equal(t, Inactive, e.Mode())
	assert.True(t, e.Canvas().IsEmpty())
	assert.Nil(t, e.Update(gesture.Idle, image.Point{}, false), "abandoned stroke must not commit")
}

func TestEngine_RestoreResizes(t *testing.T) {
	e := newEngine()

	e.Restore(canvas.New(40, 300))

	assert.Equal(t, image.Rect(0, 0, 100, 100), e.Canvas().Bounds())
}

func TestEngine_Tools(t *testing.T) {
	e := newEngine()

	assert.Equal(t, "green", e.ColorName())
	require.NoError(t, e.SetColor(7))
	assert.Equal(t, canvas.Palette[7].Color, e.Color())
	assert.Error(t, e.SetColor(8))
	assert.Error(t, e.SetColor(-1))
	assert.Equal(t, 7, e.ColorIndex())

	assert.Equal(t, 5.0, e.BrushWidth())
	assert.Equal(t, 3.0, e.DecreaseBrush())
	assert.Equal(t, 3.0, e.DecreaseBrush(), "clamped at the smallest size")
	for i := 0; i < 10; i++ {
		e.IncreaseBrush()
	}
	assert.Equal(t, 16.0, e.BrushWidth(), "clamped at the largest size")

	assert.Equal(t, canvas.Rectangle, e.CycleShape())
	assert.Equal(t, canvas.Circle, e.CycleShape())
	assert.Equal(t, canvas.Arrow, e.CycleShape())
	assert.Equal(t, canvas.Line, e.CycleShape())
}

func TestEngine_Trail(t *testing.T) {
	e := newEngine()

	for i := 0; i < 12; i++ {
		e.Update(gesture.Draw, image.Pt(i*5, 10), true)
	}
	trail := e.Trail()
	require.Len(t, trail, 8)
	assert.Equal(t, image.Pt(55, 10), trail[7])
	assert.Equal(t, image.Pt(20, 10), trail[0])

	e.Update(gesture.Idle, image.Point{}, false)
	assert.Empty(t, e.Trail())

	assert.False(t, e.ToggleTrail())
	e.Update(gesture.Draw, image.Pt(1, 1), true)
	assert.Empty(t, e.Trail())
}

func TestEngine_Revision(t *testing.T) {
	e := newEngine()
	start := e.Revision()

	e.Update(gesture.Draw, image.Pt(10, 10), true)
	e.Update(gesture.Draw, image.Pt(20, 10), true)
	afterStroke := e.Revision()
	assert.Greater(t, afterStroke, start)

	e.Update(gesture.Shape, image.Pt(10, 10), true)
	committed := e.Revision()
	assert.Greater(t, committed, afterStroke, "committing moves the revision")

	e.Update(gesture.Shape, image.Pt(50, 50), true)
	assert.Equal(t, committed, e.Revision(), "previews do not change the canvas")
}

func TestEngine_Discard(t *testing.T) {
	t.Run("rolls back a stroke", func(t *testing.T) {
		e := newEngine()
		e.Update(gesture.Draw, image.Pt(10, 10), true)
		e.Update(gesture.Draw, image.Pt(40, 10), true)
		before := e.Revision()

		e.Discard()

		assert.Equal(t, Inactive, e.Mode())
		assert.True(t, e.Canvas().IsEmpty())
		assert.Greater(t, e.Revision(), before)
		assert.Nil(t, e.Update(gesture.Idle, image.Point{}, false), "discarded stroke must not commit")
	})

	t.Run("rolls back an erase", func(t *testing.T) {
		e := newEngine()
		e.Update(gesture.Draw, image.Pt(10, 50), true)
		e.Update(gesture.Draw, image.Pt(90, 50), true)
		e.Update(gesture.Idle, image.Point{}, false)
		inked := e.Canvas().Clone()

		e.Update(gesture.Erase, image.Pt(50, 50), true)
		require.False(t, e.Canvas().Equal(inked))

		e.Discard()
		assert.True(t, e.Canvas().Equal(inked))
	})

	t.Run("idle engine is untouched", func(t *testing.T) {
		e := newEngine()
		rev := e.Revision()

		e.Discard()

		assert.Equal(t, rev, e.Revision())
	})

	t.Run("clears a preview", func(t *testing.T) {
		e := newEngine()
		e.Update(gesture.Shape, image.Pt(10, 10), true)
		e.Update(gesture.Shape, image.Pt(60, 60), true)

		e.Discard()

		assert.False(t, e.Previewing())
		assert.True(t, e.Overlay().IsEmpty())
		assert.True(t, e.Canvas().IsEmpty())
	})
}

func TestEngine_Committed(t *testing.T) {
	e := newEngine()
	e.Update(gesture.Draw, image.Pt(10, 10), true)
	e.Update(gesture.Draw, image.Pt(10, 40), true)
	e.Update(gesture.Idle, image.Point{}, false)
	first := e.Canvas().Clone()

	e.Update(gesture.Draw, image.Pt(50, 10), true)
	e.Update(gesture.Draw, image.Pt(50, 40), true)
	require.NotZero(t, alpha(e.Canvas(), 50, 20))

	c := e.Committed()
	assert.True(t, c.Equal(first), "partial ink is left out")
	assert.Zero(t, alpha(c, 50, 20))

	e.Update(gesture.Idle, image.Point{}, false)
	assert.NotZero(t, alpha(e.Committed(), 50, 20))
}

func TestParseExitPolicy(t *testing.T) {
	p, err := ParseExitPolicy("commit")
	require.NoError(t, err)
	assert.Equal(t, AutoCommit, p)

	p, err = ParseExitPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Abandon, p)

	_, err = ParseExitPolicy("maybe")
	assert.Error(t, err)
}
