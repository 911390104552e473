package capture

import (
	"errors"
	"image"
	"reflect"
	"testing"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantFPS int
	}{
		{
			name:    "default fps",
			config:  Config{DeviceID: 0},
			wantFPS: ActiveFPS,
		},
		{
			name:    "explicit fps",
			config:  Config{DeviceID: 1, FPS: 12},
			wantFPS: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.config)

			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
			if cam.Size() != (image.Point{}) {
				t.Errorf("Size() = %v before Open, want zero", cam.Size())
			}
		})
	}
}

func TestCamera_Candidates(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []image.Point
	}{
		{
			name:   "preferred is a known resolution",
			config: Config{Width: 1280, Height: 720},
			want:   []image.Point{{1280, 720}, {1024, 768}, {800, 600}, {640, 480}},
		},
		{
			name:   "smaller preference skips larger fallbacks",
			config: Config{Width: 800, Height: 600},
			want:   []image.Point{{800, 600}, {640, 480}},
		},
		{
			name:   "custom size first",
			config: Config{Width: 960, Height: 540},
			want:   []image.Point{{960, 540}, {800, 600}, {640, 480}},
		},
		{
			name:   "no preference",
			config: Config{},
			want:   Resolutions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.config).(*cameraImpl)

			if got := cam.candidates(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("candidates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(Config{})

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 10", fps: 10, wantFPS: 10},
		{name: "set to 1", fps: 1, wantFPS: 1},
		{name: "set to 0 should keep previous", fps: 0, wantFPS: 1},
		{name: "set to negative should keep previous", fps: -5, wantFPS: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(Config{Width: 640, Height: 480, Mirror: true})

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		size := cam.Size()
		if mat.Cols() != size.X || mat.Rows() != size.Y {
			t.Logf("frame is %dx%d, negotiated %v", mat.Cols(), mat.Rows(), size)
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(Config{})

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(Config{})

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened camera should return nil, got: %v", err)
	}
}
