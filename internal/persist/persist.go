// Package persist writes canvases to image files, rotates auto-saves, loads
// drawings back and renders them as PDF pages.
package persist

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/telemetry"
)

// Image formats.
const (
	FormatPNG = "png"
	FormatJPG = "jpg"
)

const (
	timestampLayout = "20060102_150405"
	manualPrefix    = "drawing_"
	autoPrefix      = "auto_save_"
	jpegQuality     = 95
	// keyLevel is the channel sum under which a JPEG pixel counts as background.
	keyLevel = 48
)

// ErrUnknownFormat is returned for formats other than png and jpg.
var ErrUnknownFormat = errors.New("unknown image format")

// Config configures a Persister.
type Config struct {
	Dir        string
	AutoDir    string
	Format     string
	AutoFormat string
	MaxAuto    int
}

// Persister saves and loads drawings. Rows are recorded in the store when
// one is given.
type Persister struct {
	cfg   Config
	store *store.Store
	now   func() time.Time

	mu       sync.Mutex
	lastAuto uint64
}

// New creates the output directories and returns a Persister. st may be nil.
func New(cfg Config, st *store.Store) (*Persister, error) {
	if cfg.Format == "" {
		cfg.Format = FormatPNG
	}
	if cfg.AutoFormat == "" {
		cfg.AutoFormat = FormatJPG
	}
	var err error
	if cfg.Format, err = NormalizeFormat(cfg.Format); err != nil {
		return nil, err
	}
	if cfg.AutoFormat, err = NormalizeFormat(cfg.AutoFormat); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.Dir, cfg.AutoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Persister{cfg: cfg, store: st, now: time.Now}, nil
}

// NormalizeFormat maps a format or file extension to png or jpg.
func NormalizeFormat(f string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(f, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Encode writes img in the given format. JPEG has no alpha, so transparent
// pixels are flattened onto black.
func Encode(w io.Writer, img image.Image, format string) error {
	f, err := NormalizeFormat(format)
	if err != nil {
		return err
	}
	if f == FormatPNG {
		return png.Encode(w, img)
	}
	return jpeg.Encode(w, Flatten(img, color.Black), &jpeg.Options{Quality: jpegQuality})
}

// Flatten draws img over an opaque background.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

func (p *Persister) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Save writes c to the drawings directory and records it.
func (p *Persister) Save(ctx context.Context, c *canvas.Canvas) (*store.Drawing, error) {
	return p.write(ctx, c, store.KindManual)
}

// AutoSave writes c to the auto-save directory unless revision is the one
// saved last, then keeps only the newest MaxAuto auto-saves. It returns nil
// when nothing was written.
func (p *Persister) AutoSave(ctx context.Context, c *canvas.Canvas, revision uint64) (*store.Drawing, error) {
	p.mu.Lock()
	if revision == p.lastAuto {
		p.mu.Unlock()
		return nil, nil
	}
	p.mu.Unlock()

	d, err := p.write(ctx, c, store.KindAuto)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.lastAuto = revision
	p.mu.Unlock()

	if err := p.rotate(); err != nil {
		log.WithError(err).Warn("auto-save rotation failed")
	}
	return d, nil
}

func (p *Persister) write(ctx context.Context, c *canvas.Canvas, kind store.Kind) (*store.Drawing, error) {
	dir, prefix, format := p.cfg.Dir, manualPrefix, p.cfg.Format
	if kind == store.KindAuto {
		dir, prefix, format = p.cfg.AutoDir, autoPrefix, p.cfg.AutoFormat
	}

	_, span := p.span(ctx, "persist.save",
		attribute.String("kind", string(kind)),
		attribute.String("format", format),
	)
	defer span.End()

	created := p.now()
	path, err := uniquePath(dir, prefix+created.Format(timestampLayout), format)
	if err != nil {
		return nil, fail(span, err)
	}

	if err := writeFile(path, c.Image(), format); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("path", path))

	d := &store.Drawing{
		Kind:      kind,
		Path:      path,
		Format:    format,
		Width:     c.Width(),
		Height:    c.Height(),
		CreatedAt: created.UTC(),
	}
	if p.store != nil {
		if err := p.store.Drawings().Create(d); err != nil {
			return nil, fail(span, fmt.Errorf("record %s: %w", path, err))
		}
	}

	log.WithFields(log.Fields{
		"kind": kind,
		"path": path,
		"id":   d.ID,
	}).Info("drawing saved")
	return d, nil
}

// uniquePath returns dir/base.ext, adding a counter when that file exists.
func uniquePath(dir, base, ext string) (string, error) {
	path := filepath.Join(dir, base+"."+ext)
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", base, i, ext))
	}
}

func writeFile(path string, img image.Image, format string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, img, format); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// rotate keeps the newest MaxAuto auto-saves.
func (p *Persister) rotate() error {
	if p.cfg.MaxAuto <= 0 {
		return nil
	}

	if p.store != nil {
		stale, err := p.store.Drawings().Prune(store.KindAuto, p.cfg.MaxAuto)
		if err != nil {
			return err
		}
		for _, d := range stale {
			removeFile(d.Path)
		}
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(p.cfg.AutoDir, autoPrefix+"*."+p.cfg.AutoFormat))
	if err != nil {
		return err
	}
	// timestamped names sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for i := p.cfg.MaxAuto; i < len(matches); i++ {
		removeFile(matches[i])
	}
	return nil
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("path", path).Warn("remove old drawing")
		return
	}
	log.WithField("path", path).Debug("removed old drawing")
}

// Load reads an image file into a canvas. Near-black pixels of JPEG files
// become transparent since JPEG saves flatten the canvas onto black.
func Load(path string) (*canvas.Canvas, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	c := canvas.FromImage(img)
	if format == "jpeg" {
		keyOutBlack(c.Image())
	}
	return c, nil
}

func keyOutBlack(img *image.RGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		if int(img.Pix[i])+int(img.Pix[i+1])+int(img.Pix[i+2]) < keyLevel {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
		}
	}
}

// Open loads a drawing by store ID or, failing that, by file path.
func (p *Persister) Open(ref string) (*canvas.Canvas, error) {
	if p.store != nil {
		d, err := p.store.Drawings().GetByID(ref)
		if err == nil {
			return Load(d.Path)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return Load(ref)
}

// Delete removes a recorded drawing and its file.
func (p *Persister) Delete(id string) error {
	if p.store == nil {
		return store.ErrNotFound
	}
	d, err := p.store.Drawings().GetByID(id)
	if err != nil {
		return err
	}
	if err := p.store.Drawings().Delete(id); err != nil {
		return err
	}
	removeFile(d.Path)
	return nil
}

// Store returns the backing store, which may be nil.
func (p *Persister) Store() *store.Store {
	return p.store
}
