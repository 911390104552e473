// Package compose draws the canvas, the shape preview, the cursor and the
// status panel over a camera frame.
package compose

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/board"
	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/gesture"
)

// DefaultAlpha is the weight of the camera frame in the blend.
const DefaultAlpha = 0.7

const (
	crosshairSize  = 15
	crosshairWidth = 2
	cursorRadius   = 8
	noticeFrames   = 60
	paletteY       = 200
	swatchWidth    = 30
	swatchSpacing  = 35
)

var (
	panelRect      = image.Rect(10, 10, 360, 190)
	panelColor     = color.RGBA{R: 50, G: 50, B: 50, A: 255}
	textColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	secondaryColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	eraserColor    = color.RGBA{R: 255, A: 255}
	noticeColor    = color.RGBA{G: 255, A: 255}
)

var instructions = []string{
	"GESTURES: Index=Draw | Open Palm=Erase | Peace=Shapes | Fist=Pause",
	"KEYS: 1-8=Colors | -/+=Brush | Space=Shapes | Enter=Place | Z=Undo | X=Redo | C=Clear | S=Save",
}

// GestureColor is the accent used for a gesture's cursor and label.
func GestureColor(s gesture.State) color.RGBA {
	switch s {
	case gesture.Draw:
		return color.RGBA{G: 255, A: 255}
	case gesture.Erase:
		return eraserColor
	case gesture.Shape:
		return color.RGBA{G: 255, B: 255, A: 255}
	default:
		return textColor
	}
}

// Scene is everything drawn on top of one camera frame.
type Scene struct {
	Status board.Status
	Frame  board.Frame
	Canvas *canvas.Canvas
	// Overlay holds the shape preview; nil when nothing is previewed.
	Overlay *canvas.Canvas
	Color   color.RGBA
	Eraser  float64
	Trail   []image.Point
	FPS     int
}

// SceneOf collects the scene for the frame b just produced.
func SceneOf(b *board.Board, f board.Frame, fps int) Scene {
	e := b.Engine()
	s := Scene{
		Status: b.Status(),
		Frame:  f,
		Canvas: e.Canvas(),
		Color:  e.Color(),
		Eraser: e.EraserSize(),
		FPS:    fps,
	}
	if e.Previewing() {
		s.Overlay = e.Overlay()
	}
	if e.TrailEnabled() {
		s.Trail = e.Trail()
	}
	return s
}

// Compositor renders scenes onto camera frames. It caches the converted
// canvas between frames and is not safe for concurrent use.
type Compositor struct {
	alpha float64
	// HUD toggles the status panel, palette and instructions.
	HUD bool

	ink      gocv.Mat
	inkRev   uint64
	inkValid bool

	notice     string
	noticeLeft int
}

// New creates a compositor. alpha outside (0, 1] selects DefaultAlpha.
func New(alpha float64) *Compositor {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Compositor{alpha: alpha, HUD: true, ink: gocv.NewMat()}
}

// Alpha returns the camera weight used in the blend.
func (c *Compositor) Alpha() float64 { return c.alpha }

// Notify shows msg near the bottom of the frame for the next few frames.
func (c *Compositor) Notify(msg string) {
	c.notice = msg
	c.noticeLeft = noticeFrames
}

// Close releases the cached canvas.
func (c *Compositor) Close() error {
	return c.ink.Close()
}

// Render draws s onto frame, a BGR image, in place.
func (c *Compositor) Render(frame *gocv.Mat, s Scene) error {
	if frame == nil || frame.Empty() {
		return fmt.Errorf("compose: empty frame")
	}
	size := image.Pt(frame.Cols(), frame.Rows())

	if s.Canvas != nil {
		if err := c.refreshInk(s.Canvas, s.Status.Revision, size); err != nil {
			return err
		}
		gocv.AddWeighted(*frame, c.alpha, c.ink, 1-c.alpha, 0, frame)
	}
	if s.Overlay != nil {
		if err := overlay(frame, s.Overlay, size); err != nil {
			return err
		}
	}

	if c.HUD {
		c.drawPanel(frame, s)
		drawPalette(frame, s.Status.ColorIndex)
		drawInstructions(frame)
	}
	drawCursor(frame, s)
	c.drawNotice(frame)
	return nil
}

// refreshInk converts the canvas to BGR when its revision moved.
func (c *Compositor) refreshInk(cv *canvas.Canvas, rev uint64, size image.Point) error {
	if c.inkValid && c.inkRev == rev && c.ink.Cols() == size.X && c.ink.Rows() == size.Y {
		return nil
	}
	bgr, err := ToBGR(cv.Image())
	if err != nil {
		return err
	}
	defer bgr.Close()

	if bgr.Cols() != size.X || bgr.Rows() != size.Y {
		gocv.Resize(bgr, &c.ink, size, 0, 0, gocv.InterpolationLinear)
	} else {
		bgr.CopyTo(&c.ink)
	}
	c.inkRev = rev
	c.inkValid = true
	return nil
}

// Invalidate forces the next Render to convert the canvas again.
func (c *Compositor) Invalidate() {
	c.inkValid = false
}

// ToBGR converts an RGBA image into a new 3-channel BGR mat. Transparent
// pixels become black.
func ToBGR(img *image.RGBA) (gocv.Mat, error) {
	src, err := rgbaMat(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer src.Close()

	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorRGBAToBGR)
	return dst, nil
}

func rgbaMat(img *image.RGBA) (gocv.Mat, error) {
	b := img.Bounds()
	pix := img.Pix
	if img.Stride != 4*b.Dx() {
		packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(packed.Pix[y*packed.Stride:], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):][:4*b.Dx()])
		}
		pix = packed.Pix
	}
	m, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return m, fmt.Errorf("compose: wrap image: %w", err)
	}
	return m, nil
}

// overlay copies every non-transparent overlay pixel onto frame.
func overlay(frame *gocv.Mat, o *canvas.Canvas, size image.Point) error {
	src, err := rgbaMat(o.Image())
	if err != nil {
		return err
	}
	defer src.Close()

	channels := gocv.Split(src)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	mask := channels[3]

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR)

	if bgr.Cols() == size.X && bgr.Rows() == size.Y {
		bgr.CopyToWithMask(frame, mask)
		return nil
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	scaledMask := gocv.NewMat()
	defer scaledMask.Close()
	gocv.Resize(bgr, &scaled, size, 0, 0, gocv.InterpolationNearestNeighbor)
	gocv.Resize(mask, &scaledMask, size, 0, 0, gocv.InterpolationNearestNeighbor)
	scaled.CopyToWithMask(frame, scaledMask)
	return nil
}

func (c *Compositor) drawPanel(frame *gocv.Mat, s Scene) {
	st := s.Status
	x, y := panelRect.Min.X, panelRect.Min.Y

	gocv.Rectangle(frame, panelRect, panelColor, -1)

	state := s.Frame.Gesture.State
	gocv.PutText(frame, "Mode: "+strings.ToUpper(state.String()), image.Pt(x+10, y+25),
		gocv.FontHersheySimplex, 0.6, GestureColor(state), 2)
	gocv.PutText(frame, "Color: "+strings.ToUpper(st.Color), image.Pt(x+10, y+50),
		gocv.FontHersheySimplex, 0.5, s.Color, 2)
	gocv.PutText(frame, fmt.Sprintf("Brush Size: %g", st.Brush), image.Pt(x+10, y+70),
		gocv.FontHersheySimplex, 0.5, textColor, 1)
	if state == gesture.Shape || st.Previewing {
		gocv.PutText(frame, "Shape: "+strings.ToUpper(st.Shape), image.Pt(x+10, y+90),
			gocv.FontHersheySimplex, 0.5, GestureColor(gesture.Shape), 1)
	}
	if s.Frame.HasCursor {
		gocv.PutText(frame, fmt.Sprintf("Position: (%d, %d)", s.Frame.Cursor.X, s.Frame.Cursor.Y),
			image.Pt(x+10, y+110), gocv.FontHersheySimplex, 0.4, secondaryColor, 1)
	}
	gocv.PutText(frame, fmt.Sprintf("FPS: %d", s.FPS), image.Pt(x+10, y+130),
		gocv.FontHersheySimplex, 0.4, secondaryColor, 1)
	gocv.PutText(frame, fmt.Sprintf("History: %d/%d  Redo: %d", st.Undo, st.Depth, st.Redo),
		image.Pt(x+10, y+150), gocv.FontHersheySimplex, 0.4, secondaryColor, 1)
}

func drawPalette(frame *gocv.Mat, selected int) {
	for i, sw := range canvas.Palette {
		x := 20 + i*swatchSpacing
		gocv.Rectangle(frame, image.Rect(x, paletteY, x+swatchWidth, paletteY+20), sw.Color, -1)
		if i == selected {
			gocv.Rectangle(frame, image.Rect(x-2, paletteY-2, x+swatchWidth+2, paletteY+22), textColor, 2)
		}
	}
}

func drawInstructions(frame *gocv.Mat) {
	h := frame.Rows()
	for i, line := range instructions {
		gocv.PutText(frame, line, image.Pt(10, h-40+i*20),
			gocv.FontHersheySimplex, 0.45, secondaryColor, 1)
	}
}

func drawCursor(frame *gocv.Mat, s Scene) {
	if !s.Frame.HasCursor {
		return
	}
	p := s.Frame.Cursor
	state := s.Frame.Gesture.State

	if state == gesture.Erase {
		r := int(s.Eraser / 2)
		gocv.Circle(frame, p, r, eraserColor, 3)
		gocv.PutText(frame, "ERASING", image.Pt(p.X-40, p.Y-r-10),
			gocv.FontHersheySimplex, 0.7, eraserColor, 2)
		return
	}

	accent := GestureColor(state)
	gocv.Line(frame, image.Pt(p.X-crosshairSize, p.Y), image.Pt(p.X+crosshairSize, p.Y), accent, crosshairWidth)
	gocv.Line(frame, image.Pt(p.X, p.Y-crosshairSize), image.Pt(p.X, p.Y+crosshairSize), accent, crosshairWidth)
	gocv.Circle(frame, p, cursorRadius, accent, crosshairWidth)

	for i := 1; i < len(s.Trail); i++ {
		gocv.Line(frame, s.Trail[i-1], s.Trail[i], Fade(accent, i, len(s.Trail)), 2)
	}
}

// Fade scales c for trail segment i of n, older segments darker.
func Fade(c color.RGBA, i, n int) color.RGBA {
	if n <= 0 {
		return c
	}
	k := func(v uint8) uint8 { return uint8(int(v) * i / n) }
	return color.RGBA{R: k(c.R), G: k(c.G), B: k(c.B), A: 255}
}

func (c *Compositor) drawNotice(frame *gocv.Mat) {
	if c.noticeLeft <= 0 {
		return
	}
	c.noticeLeft--
	gocv.PutText(frame, c.notice, image.Pt(10, frame.Rows()-80),
		gocv.FontHersheySimplex, 0.5, noticeColor, 1)
}
