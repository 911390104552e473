package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/persist"
	"github.com/ayusman/mudra/internal/store"
)

// newTestPersister creates a Persister with a store in a temporary directory.
func newTestPersister(t *testing.T) *persist.Persister {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})

	p, err := persist.New(persist.Config{
		Dir:     dir,
		AutoDir: filepath.Join(dir, "auto_saves"),
		MaxAuto: 5,
	}, st)
	if err != nil {
		t.Fatalf("failed to create persister: %v", err)
	}
	return p
}

func sketch() *canvas.Canvas {
	c := canvas.New(40, 30)
	c.Segment(image.Pt(5, 5), image.Pt(35, 25), 4, color.RGBA{G: 255, A: 255})
	return c
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDrawingHandler_List(t *testing.T) {
	p := newTestPersister(t)
	ctx := context.Background()

	manual, err := p.Save(ctx, sketch())
	require.NoError(t, err)
	auto, err := p.AutoSave(ctx, sketch(), 1)
	require.NoError(t, err)
	require.NotNil(t, auto)

	h := NewDrawingHandler(p)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{manual.ID, auto.ID}},
		{"?kind=manual", []string{manual.ID}},
		{"?kind=auto", []string{auto.ID}},
	}
	for _, tt := range tests {
		t.Run("list"+tt.query, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/api/drawings"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var res listDrawingsResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
			var ids []string
			for _, d := range res.Drawings {
				ids = append(ids, d.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	t.Run("rejects unknown kind", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/drawings?kind=sketch")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		rec := serve(NewDrawingHandler(newTestPersister(t)), http.MethodGet, "/api/drawings")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"drawings":[]}`, rec.Body.String())
	})
}

func TestDrawingHandler_Get(t *testing.T) {
	p := newTestPersister(t)
	d, err := p.Save(context.Background(), sketch())
	require.NoError(t, err)
	h := NewDrawingHandler(p)

	t.Run("metadata", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/drawings/"+d.ID)
		require.Equal(t, http.StatusOK, rec.Code)

		var got store.Drawing
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, store.KindManual, got.Kind)
		assert.Equal(t, 40, got.Width)
		assert.Equal(t, 30, got.Height)
	})

	t.Run("image", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/drawings/"+d.ID+"/image")
		require.Equal(t, http.StatusOK, rec.Code)

		img, err := png.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	})

	t.Run("not found", func(t *testing.T) {
		for _, target := range []string{"/api/drawings/missing", "/api/drawings/missing/image", "/api/drawings/missing/pdf"} {
			rec := serve(h, http.MethodGet, target)
			assert.Equal(t, http.StatusNotFound, rec.Code, target)
		}
	})

	t.Run("unknown sub-resource", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/drawings/"+d.ID+"/thumbnail")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDrawingHandler_PDF(t *testing.T) {
	p := newTestPersister(t)
	d, err := p.Save(context.Background(), sketch())
	require.NoError(t, err)

	rec := serve(NewDrawingHandler(p), http.MethodGet, "/api/drawings/"+d.ID+"/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestDrawingHandler_Delete(t *testing.T) {
	p := newTestPersister(t)
	d, err := p.Save(context.Background(), sketch())
	require.NoError(t, err)
	h := NewDrawingHandler(p)

	rec := serve(h, http.MethodDelete, "/api/drawings/"+d.ID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = os.Stat(d.Path)
	assert.True(t, os.IsNotExist(err), "file should be removed")

	rec = serve(h, http.MethodDelete, "/api/drawings/"+d.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrawingHandler_MethodNotAllowed(t *testing.T) {
	h := NewDrawingHandler(newTestPersister(t))

	tests := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/drawings"},
		{http.MethodPut, "/api/drawings/abc"},
		{http.MethodPost, "/api/drawings/abc/pdf"},
		{http.MethodDelete, "/api/drawings/abc/image"},
	}
	for _, tt := range tests {
		rec := serve(h, tt.method, tt.target)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tt.method, tt.target)
	}
}
