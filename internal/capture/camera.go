// Package capture provides camera capture using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Frame rates used by the drawing loop. The loop runs at ActiveFPS while the
// scene moves and drops to IdleFPS when it is still.
const (
	IdleFPS   = 5
	ActiveFPS = 30
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Resolutions are tried in order until the device accepts one.
var Resolutions = []image.Point{
	{1280, 720},
	{1024, 768},
	{800, 600},
	{640, 480},
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns a BGR frame the caller must close.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Size returns the negotiated frame size. It is zero before Open.
	Size() image.Point
}

// Config selects the capture device and its preferred format.
type Config struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
	// Mirror flips frames horizontally so the view behaves like a mirror.
	Mirror bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
	size    image.Point
}

// NewCamera creates a new Camera. The device is not opened until Open.
func NewCamera(config Config) Camera {
	if config.FPS <= 0 {
		config.FPS = ActiveFPS
	}
	return &cameraImpl{
		config: config,
		fps:    config.FPS,
	}
}

// candidates returns the resolutions to try: the configured one first,
// then every smaller fallback.
func (c *cameraImpl) candidates() []image.Point {
	want := image.Pt(c.config.Width, c.config.Height)
	out := []image.Point{}
	if want.X > 0 && want.Y > 0 {
		out = append(out, want)
	}
	for _, r := range Resolutions {
		if r != want && (len(out) == 0 || r.X <= out[0].X) {
			out = append(out, r)
		}
	}
	return out
}

// Open opens the camera, negotiating the largest supported resolution.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.config.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open camera %d: device unavailable", c.config.DeviceID)
	}

	var got image.Point
	for _, r := range c.candidates() {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(r.X))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(r.Y))
		got = image.Pt(
			int(capture.Get(gocv.VideoCaptureFrameWidth)),
			int(capture.Get(gocv.VideoCaptureFrameHeight)),
		)
		if got == r {
			break
		}
		log.WithFields(log.Fields{"wanted": r, "got": got}).Debug("resolution rejected")
	}
	if got.X <= 0 || got.Y <= 0 {
		capture.Close()
		return fmt.Errorf("open camera %d: no usable resolution", c.config.DeviceID)
	}
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	log.WithFields(log.Fields{
		"device": c.config.DeviceID,
		"size":   fmt.Sprintf("%dx%d", got.X, got.Y),
		"fps":    c.fps,
	}).Info("camera opened")

	c.capture = capture
	c.size = got
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	if c.config.Mirror {
		gocv.Flip(mat, &mat, 1)
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// Size returns the negotiated frame size.
func (c *cameraImpl) Size() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}
