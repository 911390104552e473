package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// streamInterval spaces MJPEG parts to about 15 FPS.
const streamInterval = 66 * time.Millisecond

// FrameBuffer holds the latest composited frame as JPEG. The frame loop
// publishes into it and stream clients read from it.
type FrameBuffer struct {
	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	updated chan struct{}

	viewers atomic.Int32
	last    time.Time
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{updated: make(chan struct{})}
}

// Viewers returns the number of connected stream clients.
func (b *FrameBuffer) Viewers() int {
	return int(b.viewers.Load())
}

// Publish encodes frame as JPEG. It does nothing without viewers or when
// the previous frame was published less than a stream interval ago.
func (b *FrameBuffer) Publish(frame *gocv.Mat) error {
	if b.Viewers() == 0 || frame == nil || frame.Empty() {
		return nil
	}
	b.mu.Lock()
	recent := time.Since(b.last) < streamInterval
	b.mu.Unlock()
	if recent {
		return nil
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	b.Set(buf.GetBytes())
	return nil
}

// Set stores an encoded JPEG and wakes waiting clients.
func (b *FrameBuffer) Set(jpeg []byte) {
	data := make([]byte, len(jpeg))
	copy(data, jpeg)

	b.mu.Lock()
	b.jpeg = data
	b.seq++
	b.last = time.Now()
	close(b.updated)
	b.updated = make(chan struct{})
	b.mu.Unlock()
}

// Latest returns the current JPEG, its sequence number and a channel closed
// on the next Set.
func (b *FrameBuffer) Latest() ([]byte, uint64, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jpeg, b.seq, b.updated
}

// StreamHandler serves MJPEG frames from a FrameBuffer.
type StreamHandler struct {
	frames *FrameBuffer
}

// NewStreamHandler creates a new StreamHandler reading from frames.
func NewStreamHandler(frames *FrameBuffer) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.frames.viewers.Add(1)
	defer h.frames.viewers.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	var sent uint64
	for {
		data, seq, updated := h.frames.Latest()
		if seq != sent && len(data) > 0 {
			if err := writePart(w, data); err != nil {
				return
			}
			sent = seq

			select {
			case <-r.Context().Done():
				return
			case <-time.After(streamInterval):
			}
			continue
		}

		select {
		case <-r.Context().Done():
			return
		case <-updated:
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
