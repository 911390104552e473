package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/board"
	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/gesture"
)

func TestNew_Alpha(t *testing.T) {
	tests := []struct {
		name  string
		alpha float64
		want  float64
	}{
		{"explicit", 0.5, 0.5},
		{"opaque camera", 1, 1},
		{"zero selects default", 0, DefaultAlpha},
		{"above one selects default", 1.5, DefaultAlpha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.alpha)
			defer c.Close()
			assert.Equal(t, tt.want, c.Alpha())
			assert.True(t, c.HUD)
		})
	}
}

func TestGestureColor(t *testing.T) {
	assert.Equal(t, color.RGBA{G: 255, A: 255}, GestureColor(gesture.Draw))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, GestureColor(gesture.Erase))
	assert.Equal(t, color.RGBA{G: 255, B: 255, A: 255}, GestureColor(gesture.Shape))
	assert.Equal(t, textColor, GestureColor(gesture.Idle))
}

func TestFade(t *testing.T) {
	c := color.RGBA{R: 200, G: 100, A: 255}

	assert.Equal(t, color.RGBA{R: 50, G: 25, A: 255}, Fade(c, 1, 4))
	assert.Equal(t, c, Fade(c, 4, 4), "newest segment keeps full color")
	assert.Equal(t, c, Fade(c, 1, 0))
}

func TestToBGR(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{B: 200, A: 255})

	m, err := ToBGR(img)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 2, m.Cols())
	assert.Equal(t, 3, m.Channels())
	assert.Equal(t, []uint8{0, 0, 255}, []uint8(m.GetVecbAt(0, 0)))
	assert.Equal(t, []uint8{200, 0, 0}, []uint8(m.GetVecbAt(1, 1)))
	assert.Equal(t, []uint8{0, 0, 0}, []uint8(m.GetVecbAt(0, 1)), "transparent is black")
}

func TestToBGR_SubImage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 2, color.RGBA{G: 255, A: 255})
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	m, err := ToBGR(sub)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 2, m.Cols())
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, []uint8{0, 255, 0}, []uint8(m.GetVecbAt(1, 1)))
}

func inkedCanvas(w, h int, c color.RGBA) *canvas.Canvas {
	cv := canvas.New(w, h)
	cv.Dot(image.Pt(w/2, h/2), 20, c)
	return cv
}

func TestRender_BlendsCanvas(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(100, 100, 100, 0))

	c := New(0.7)
	defer c.Close()
	c.HUD = false

	err := c.Render(&frame, Scene{
		Status: board.Status{Revision: 1},
		Canvas: inkedCanvas(100, 100, color.RGBA{R: 255, A: 255}),
	})
	require.NoError(t, err)

	ink := frame.GetVecbAt(50, 50)
	assert.InDelta(t, 70, int(ink[0]), 1, "blue channel is camera only")
	assert.InDelta(t, 146, int(ink[2]), 1, "red channel mixes camera and ink")

	bare := frame.GetVecbAt(2, 2)
	assert.InDelta(t, 70, int(bare[2]), 1)
}

func TestRender_CachesByRevision(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(60, 60, gocv.MatTypeCV8UC3)
	defer frame.Close()

	c := New(0.5)
	defer c.Close()
	c.HUD = false

	cv := canvas.New(60, 60)
	require.NoError(t, c.Render(&frame, Scene{Status: board.Status{Revision: 3}, Canvas: cv}))

	// same revision: the stale conversion is reused
	cv.Dot(image.Pt(30, 30), 10, color.RGBA{G: 255, A: 255})
	frame.SetTo(gocv.NewScalar(0, 0, 0, 0))
	require.NoError(t, c.Render(&frame, Scene{Status: board.Status{Revision: 3}, Canvas: cv}))
	assert.Equal(t, uint8(0), frame.GetVecbAt(30, 30)[1])

	c.Invalidate()
	frame.SetTo(gocv.NewScalar(0, 0, 0, 0))
	require.NoError(t, c.Render(&frame, Scene{Status: board.Status{Revision: 3}, Canvas: cv}))
	assert.InDelta(t, 128, int(frame.GetVecbAt(30, 30)[1]), 1)
}

func TestRender_OverlayIsOpaque(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(80, 80, gocv.MatTypeCV8UC3)
	defer frame.Close()

	c := New(0.7)
	defer c.Close()
	c.HUD = false

	err := c.Render(&frame, Scene{
		Canvas:  canvas.New(80, 80),
		Overlay: inkedCanvas(80, 80, color.RGBA{B: 255, A: 255}),
	})
	require.NoError(t, err)

	assert.Equal(t, []uint8{255, 0, 0}, []uint8(frame.GetVecbAt(40, 40)))
	assert.Equal(t, []uint8{0, 0, 0}, []uint8(frame.GetVecbAt(2, 2)))
}

func TestRender_ScalesToFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	c := New(0.7)
	defer c.Close()

	s := Scene{
		Status:  board.Status{Revision: 1, Depth: 10},
		Canvas:  inkedCanvas(80, 60, color.RGBA{R: 255, A: 255}),
		Overlay: inkedCanvas(80, 60, color.RGBA{G: 255, A: 255}),
		Frame: board.Frame{
			Gesture:   gesture.Result{State: gesture.Draw},
			Cursor:    image.Pt(40, 40),
			HasCursor: true,
		},
		Trail: []image.Point{{10, 10}, {20, 20}, {30, 30}},
	}
	require.NoError(t, c.Render(&frame, s))
	assert.Equal(t, 160, frame.Cols())
}

func TestRender_EmptyFrame(t *testing.T) {
	c := New(0.7)
	defer c.Close()

	assert.Error(t, c.Render(nil, Scene{}))
}

func TestNotify(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(100, 200, gocv.MatTypeCV8UC3)
	defer frame.Close()

	c := New(0.7)
	defer c.Close()
	c.Notify("Auto-saved: drawing.jpg")

	require.NoError(t, c.Render(&frame, Scene{}))
	assert.Equal(t, noticeFrames-1, c.noticeLeft)
}
