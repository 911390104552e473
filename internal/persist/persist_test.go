package persist

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/store"
)

var red = color.RGBA{R: 255, A: 255}

func newPersister(t *testing.T, withStore bool) (*Persister, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	var st *store.Store
	if withStore {
		var err error
		st, err = store.New(filepath.Join(dir, "mudra.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}

	p, err := New(Config{
		Dir:     dir,
		AutoDir: filepath.Join(dir, "auto_saves"),
		MaxAuto: 10,
	}, st)
	require.NoError(t, err)

	clock := time.Date(2026, 10, 19, 14, 30, 5, 0, time.Local)
	p.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return p, st
}

func drawn() *canvas.Canvas {
	c := canvas.New(64, 48)
	c.Segment(image.Pt(10, 10), image.Pt(50, 10), 5, red)
	return c
}

// opaque returns a canvas without partially transparent pixels, which
// survive a PNG round trip exactly.
func opaque() *canvas.Canvas {
	c := canvas.New(64, 48)
	for y := 10; y < 20; y++ {
		for x := 8; x < 40; x++ {
			c.Image().SetRGBA(x, y, red)
		}
	}
	return c
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{".PNG", FormatPNG, false},
		{"jpg", FormatJPG, false},
		{"jpeg", FormatJPG, false},
		{"gif", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_RejectsFormat(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir(), AutoDir: t.TempDir(), Format: "bmp"}, nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSave(t *testing.T) {
	p, st := newPersister(t, true)

	d, err := p.Save(context.Background(), drawn())
	require.NoError(t, err)

	assert.Equal(t, "drawing_20261019_143006.png", filepath.Base(d.Path))
	assert.Equal(t, store.KindManual, d.Kind)
	assert.Equal(t, 64, d.Width)
	assert.FileExists(t, d.Path)

	got, err := st.Drawings().GetByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Path, got.Path)
}

func TestSave_SameSecond(t *testing.T) {
	p, _ := newPersister(t, false)
	fixed := time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local)
	p.now = func() time.Time { return fixed }

	a, err := p.Save(context.Background(), drawn())
	require.NoError(t, err)
	b, err := p.Save(context.Background(), drawn())
	require.NoError(t, err)

	assert.Equal(t, "drawing_20261019_090000.png", filepath.Base(a.Path))
	assert.Equal(t, "drawing_20261019_090000_1.png", filepath.Base(b.Path))
}

func TestLoad_PNGRoundTrip(t *testing.T) {
	p, _ := newPersister(t, false)
	c := opaque()

	d, err := p.Save(context.Background(), c)
	require.NoError(t, err)

	loaded, err := Load(d.Path)
	require.NoError(t, err)
	assert.True(t, c.Equal(loaded), "png keeps every pixel")
}

func TestLoad_JPGKeysOutBackground(t *testing.T) {
	p, _ := newPersister(t, false)
	p.cfg.Format = FormatJPG

	c := canvas.New(64, 48)
	c.Dot(image.Pt(32, 24), 16, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	d, err := p.Save(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(d.Path))

	loaded, err := Load(d.Path)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), loaded.Image().RGBAAt(2, 2).A, "background is transparent")
	assert.Equal(t, uint8(255), loaded.Image().RGBAAt(32, 24).A, "ink is kept")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAutoSave_SkipsUnchangedRevision(t *testing.T) {
	p, _ := newPersister(t, true)
	ctx := context.Background()

	d, err := p.AutoSave(ctx, drawn(), 0)
	require.NoError(t, err)
	assert.Nil(t, d, "revision 0 is the empty start")

	d, err = p.AutoSave(ctx, drawn(), 4)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, store.KindAuto, d.Kind)
	assert.Equal(t, ".jpg", filepath.Ext(d.Path))
	assert.Contains(t, filepath.Base(d.Path), "auto_save_")

	d, err = p.AutoSave(ctx, drawn(), 4)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestAutoSave_Rotation(t *testing.T) {
	for _, withStore := range []bool{true, false} {
		name := "directory"
		if withStore {
			name = "store"
		}
		t.Run(name, func(t *testing.T) {
			p, st := newPersister(t, withStore)
			ctx := context.Background()

			var paths []string
			for rev := uint64(1); rev <= 12; rev++ {
				d, err := p.AutoSave(ctx, drawn(), rev)
				require.NoError(t, err)
				paths = append(paths, d.Path)
			}

			files, err := filepath.Glob(filepath.Join(p.cfg.AutoDir, "*.jpg"))
			require.NoError(t, err)
			assert.Len(t, files, 10)
			assert.NoFileExists(t, paths[0])
			assert.NoFileExists(t, paths[1])
			assert.FileExists(t, paths[11])

			if st != nil {
				n, err := st.Drawings().Count(store.KindAuto)
				require.NoError(t, err)
				assert.Equal(t, 10, n)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	p, _ := newPersister(t, true)
	c := opaque()

	d, err := p.Save(context.Background(), c)
	require.NoError(t, err)

	byID, err := p.Open(d.ID)
	require.NoError(t, err)
	assert.True(t, c.Equal(byID))

	byPath, err := p.Open(d.Path)
	require.NoError(t, err)
	assert.True(t, c.Equal(byPath))
}

func TestDelete(t *testing.T) {
	p, st := newPersister(t, true)

	d, err := p.Save(context.Background(), drawn())
	require.NoError(t, err)

	require.NoError(t, p.Delete(d.ID))
	assert.NoFileExists(t, d.Path)
	_, err = st.Drawings().GetByID(d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, p.Delete(d.ID), store.ErrNotFound)
}

func TestPDF(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"landscape", 1280, 720},
		{"portrait", 480, 640},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := canvas.New(tt.w, tt.h)
			c.Dot(image.Pt(tt.w/2, tt.h/2), 40, red)

			var buf bytes.Buffer
			require.NoError(t, PDF(&buf, c.Image(), "test drawing"))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
		})
	}

	assert.Error(t, PDF(&bytes.Buffer{}, image.NewRGBA(image.Rect(0, 0, 0, 0)), "empty"))
}

func TestExportPDFFile(t *testing.T) {
	p, st := newPersister(t, true)
	ctx := context.Background()

	d, err := p.Save(ctx, drawn())
	require.NoError(t, err)

	out, err := p.ExportPDFFile(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(out))
	assert.FileExists(t, out)

	exports, err := st.Exports().ListByDrawing(d.ID)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, out, exports[0].Path)

	_, err = p.ExportPDFFile(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
