package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/persist"
	"github.com/ayusman/mudra/internal/store"
)

// DrawingHandler serves saved drawings.
type DrawingHandler struct {
	persister *persist.Persister
}

// NewDrawingHandler creates a DrawingHandler backed by p, which must have a store.
func NewDrawingHandler(p *persist.Persister) *DrawingHandler {
	return &DrawingHandler{persister: p}
}

type listDrawingsResponse struct {
	Drawings []*store.Drawing `json:"drawings"`
}

// ServeHTTP routes:
//
//	GET    /api/drawings[?kind=manual|auto]
//	GET    /api/drawings/{id}
//	DELETE /api/drawings/{id}
//	GET    /api/drawings/{id}/image
//	GET    /api/drawings/{id}/pdf
func (h *DrawingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/drawings")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "image":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, r, id)
	case "pdf":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.pdf(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// lookup fetches a drawing record, writing the error response on failure.
func (h *DrawingHandler) lookup(w http.ResponseWriter, id string) (*store.Drawing, bool) {
	d, err := h.persister.Store().Drawings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Drawing not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get drawing")
		return nil, false
	}
	return d, true
}

// list handles GET /api/drawings.
func (h *DrawingHandler) list(w http.ResponseWriter, r *http.Request) {
	kind := store.Kind(r.URL.Query().Get("kind"))
	if kind != "" && kind != store.KindManual && kind != store.KindAuto {
		writeError(w, http.StatusBadRequest, "kind must be manual or auto")
		return
	}

	drawings, err := h.persister.Store().Drawings().List(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list drawings")
		return
	}
	writeJSON(w, http.StatusOK, listDrawingsResponse{Drawings: drawings})
}

// get handles GET /api/drawings/{id}.
func (h *DrawingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// delete handles DELETE /api/drawings/{id}.
func (h *DrawingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.persister.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Drawing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete drawing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// image handles GET /api/drawings/{id}/image.
func (h *DrawingHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := h.lookup(w, id)
	if !ok {
		return
	}
	http.ServeFile(w, r, d.Path)
}

// pdf handles GET /api/drawings/{id}/pdf.
func (h *DrawingHandler) pdf(w http.ResponseWriter, r *http.Request, id string) {
	d, ok := h.lookup(w, id)
	if !ok {
		return
	}

	// render fully before writing so failures still get a JSON error
	var buf bytes.Buffer
	if err := h.persister.ExportPDF(r.Context(), id, &buf); err != nil {
		log.WithError(err).WithField("id", id).Error("pdf export failed")
		writeError(w, http.StatusInternalServerError, "Failed to export drawing")
		return
	}

	name := strings.TrimSuffix(filepath.Base(d.Path), filepath.Ext(d.Path)) + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
