package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// idleShutdown is how long the service may sit unused before it is stopped.
	idleShutdown = 30 * time.Second

	// maxSendWidth bounds the width of frames sent to the service. Landmarks
	// come back normalized, so downscaling does not change their meaning.
	maxSendWidth = 640

	scriptName = "mediapipe_service.py"
)

// Environment overrides for locating the landmark service.
const (
	EnvScript = "MUDRA_MEDIAPIPE_SCRIPT"
	EnvPython = "MUDRA_PYTHON"
)

// ErrServiceNotFound is returned when mediapipe_service.py cannot be located.
var ErrServiceNotFound = errors.New(scriptName + " not found")

// MediaPipeDetector runs hand detection in a Python MediaPipe subprocess.
//
// Each request is a 4-byte big-endian length followed by a JPEG frame; each
// reply is one JSON line {"hands": [...]} or {"error": "..."}. The process
// starts on first use, stops after idleShutdown without frames and is
// restarted after it dies.
type MediaPipeDetector struct {
	config Config
	python string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	small     gocv.Mat
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector locates the service script and an interpreter. The
// subprocess itself is started lazily.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	if config.ScriptPath == "" {
		config.ScriptPath = locate(os.Getenv(EnvScript), searchDirs("scripts"), scriptName)
	}
	if config.ScriptPath == "" {
		return nil, ErrServiceNotFound
	}

	python := locate(os.Getenv(EnvPython), searchDirs("venv"), filepath.Join("bin", "python"))
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		python: python,
		small:  gocv.NewMat(),
	}, nil
}

// Detect sends frame to the service and returns the hands it found in
// normalized coordinates.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	src := frame
	if w := frame.Cols(); w > maxSendWidth {
		size := image.Pt(maxSendWidth, frame.Rows()*maxSendWidth/w)
		gocv.Resize(*frame, &d.small, size, 0, 0, gocv.InterpolationArea)
		src = &d.small
	}

	buf, err := gocv.IMEncode(".jpg", *src)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.fail(err)
		return nil, err
	}
	hands, err := readHands(d.stdout)
	if err != nil {
		var se *serviceError
		if !errors.As(err, &se) {
			d.fail(err)
		}
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()
	return hands, nil
}

// Close stops the subprocess.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.shutdown()
	d.small.Close()
	return err
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.cmd != nil {
		return nil
	}

	cmd := exec.Command(d.python, d.config.ScriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = log.StandardLogger().WriterLevel(log.DebugLevel)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.lastUsed = time.Now()

	log.WithFields(log.Fields{
		"python": d.python,
		"script": d.config.ScriptPath,
		"pid":    cmd.Process.Pid,
	}).Info("landmark service started")
	return nil
}

// fail tears the service down after a broken pipe so the next frame
// starts a fresh one.
func (d *MediaPipeDetector) fail(cause error) {
	log.WithError(cause).Warn("landmark service failed, restarting on next frame")
	if err := d.shutdown(); err != nil {
		log.WithError(err).Debug("landmark service exit")
	}
}

func (d *MediaPipeDetector) shutdown() error {
	if d.cmd == nil {
		return nil
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()
	log.WithField("idle", time.Since(d.lastUsed).Round(time.Second)).Debug("landmark service stopped")

	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			log.WithError(err).Warn("landmark service exited uncleanly")
		}
	})
}

// writeFrame writes one length-prefixed JPEG.
func writeFrame(w io.Writer, data []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// serviceError is an error the service reported for one frame; the service
// itself is still healthy.
type serviceError struct{ msg string }

func (e *serviceError) Error() string { return "landmark service: " + e.msg }

type serviceReply struct {
	Hands []jsonHand `json:"hands"`
	Error string     `json:"error,omitempty"`
}

type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// readHands reads one reply line. Hands without a full landmark set are
// dropped: the classifier needs every joint.
func readHands(r *bufio.Reader) ([]HandLandmarks, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	var reply serviceReply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if reply.Error != "" {
		return nil, &serviceError{msg: reply.Error}
	}

	hands := make([]HandLandmarks, 0, len(reply.Hands))
	for _, h := range reply.Hands {
		if len(h.Points) != NumLandmarks {
			log.WithField("points", len(h.Points)).Debug("dropping partial hand")
			continue
		}
		lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
		for i, p := range h.Points {
			lm.Points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z}
		}
		hands = append(hands, lm)
	}
	return hands, nil
}

// searchDirs lists where bundled files are looked for: the working
// directory and its parents, next to the executable, then ~/.mudra.
func searchDirs(sub string) []string {
	dirs := []string{sub, filepath.Join("..", sub), filepath.Join("..", "..", sub)}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), sub))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".mudra", sub))
	}
	return dirs
}

// locate returns override when set, else the first existing dir/name as an
// absolute path, else "".
func locate(override string, dirs []string, name string) string {
	if override != "" {
		return override
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
