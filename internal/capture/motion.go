package capture

import (
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// blurKernel is the Gaussian kernel applied before differencing.
	blurKernel = 21
	// diffLevel is the per-pixel intensity change counted as motion.
	diffLevel = 25
	// DefaultMotionPercent is the share of changed pixels that counts as motion.
	DefaultMotionPercent = 1.0
	// IdleTimeout is how long the scene must stay still before the loop slows down.
	IdleTimeout = 2 * time.Second
)

// MotionDetector compares consecutive frames and reports the share of
// pixels that changed between them.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewMotionDetector returns a detector that reports motion once more than
// threshold percent of the pixels change.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionPercent
	}
	return &MotionDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous one and by how
// much, in percent. The first frame after construction or Reset only primes
// the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)

	if !m.primed || m.prev.Rows() != gray.Rows() || m.prev.Cols() != gray.Cols() {
		gray.CopyTo(&m.prev)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, m.prev, &diff)
	gocv.Threshold(diff, &diff, diffLevel, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	gray.CopyTo(&m.prev)

	return changed > m.threshold, changed
}

// Reset drops the baseline so the next frame primes it again.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prev.Empty() {
		m.prev.Close()
		m.prev = gocv.NewMat()
	}
	m.primed = false
}

// SetThreshold changes the motion threshold. Non-positive values are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Threshold returns the current motion threshold in percent.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Throttle picks the frame rate for the drawing loop. Any activity switches
// it to ActiveFPS at once; it falls back to IdleFPS only after the scene has
// been still for the idle timeout.
type Throttle struct {
	timeout time.Duration
	now     func() time.Time
	active  bool
	last    time.Time
}

// NewThrottle returns a throttle that starts idle. A non-positive timeout
// selects IdleTimeout.
func NewThrottle(timeout time.Duration) *Throttle {
	if timeout <= 0 {
		timeout = IdleTimeout
	}
	return &Throttle{timeout: timeout, now: time.Now}
}

// Observe records whether the current frame showed activity and returns the
// frame rate to use next, plus whether it changed.
func (t *Throttle) Observe(activity bool) (fps int, changed bool) {
	now := t.now()
	switch {
	case activity:
		t.last = now
		if !t.active {
			t.active = true
			log.Debug("capture: switched to active rate")
			return ActiveFPS, true
		}
	case t.active && now.Sub(t.last) > t.timeout:
		t.active = false
		log.Debug("capture: switched to idle rate")
		return IdleFPS, true
	}
	return t.FPS(), false
}

// Active reports whether the throttle is at the active rate.
func (t *Throttle) Active() bool { return t.active }

// FPS returns the current frame rate.
func (t *Throttle) FPS() int {
	if t.active {
		return ActiveFPS
	}
	return IdleFPS
}

// Interval returns the frame period at the current rate.
func (t *Throttle) Interval() time.Duration {
	return time.Second / time.Duration(t.FPS())
}
