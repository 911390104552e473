package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/persist"
)

// canvasCacheSize is the number of encoded revisions kept.
const canvasCacheSize = 8

// CanvasHandler serves the committed canvas as PNG, caching encodings by
// revision.
type CanvasHandler struct {
	ctrl  Controller
	cache *lru.Cache[uint64, []byte]
}

// NewCanvasHandler creates a CanvasHandler reading from ctrl.
func NewCanvasHandler(ctrl Controller) *CanvasHandler {
	cache, err := lru.New[uint64, []byte](canvasCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &CanvasHandler{ctrl: ctrl, cache: cache}
}

func etag(revision uint64) string {
	return `"rev-` + strconv.FormatUint(revision, 10) + `"`
}

// ServeHTTP handles GET /api/canvas.
func (h *CanvasHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := h.ctrl.Status(r.Context())
	if err != nil {
		http.Error(w, "Board unavailable", http.StatusServiceUnavailable)
		return
	}

	revision := status.Revision
	if r.Header.Get("If-None-Match") == etag(revision) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, ok := h.cache.Get(revision)
	if !ok {
		c, rev, err := h.ctrl.Snapshot(r.Context())
		if err != nil {
			http.Error(w, "Board unavailable", http.StatusServiceUnavailable)
			return
		}
		var buf bytes.Buffer
		if err := persist.Encode(&buf, c.Image(), persist.FormatPNG); err != nil {
			log.WithError(err).Error("canvas encode failed")
			http.Error(w, "Failed to encode canvas", http.StatusInternalServerError)
			return
		}
		// the board may have moved on between the two queries
		revision = rev
		data = buf.Bytes()
		h.cache.Add(revision, data)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Header().Set("ETag", etag(revision))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// Cached reports whether the PNG for revision is cached.
func (h *CanvasHandler) Cached(revision uint64) bool {
	return h.cache.Contains(revision)
}
