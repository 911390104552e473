package persist

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ayusman/mudra/internal/store"
)

// A4 page size and layout in millimetres.
const (
	a4Short   = 210.0
	a4Long    = 297.0
	pageInset = 15.0
	titleRoom = 12.0
)

// PDF renders a drawing onto a single A4 page, landscape when the drawing is
// wider than tall, scaled to fit inside the margins.
func PDF(w io.Writer, img image.Image, title string) error {
	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("pdf: empty image")
	}

	orientation, pw, ph := "P", a4Short, a4Long
	if b.Dx() > b.Dy() {
		orientation, pw, ph = "L", a4Long, a4Short
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Flatten(img, color.Black)); err != nil {
		return fmt.Errorf("pdf: encode image: %w", err)
	}

	doc := gofpdf.New(orientation, "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetCreator("mudra", true)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 11)
	doc.SetTextColor(60, 60, 60)
	doc.Text(pageInset, pageInset, title)

	availW := pw - 2*pageInset
	availH := ph - 2*pageInset - titleRoom
	scale := availW / float64(b.Dx())
	if s := availH / float64(b.Dy()); s < scale {
		scale = s
	}
	iw, ih := float64(b.Dx())*scale, float64(b.Dy())*scale
	x := (pw - iw) / 2
	y := pageInset + titleRoom

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("drawing", opts, &buf)
	doc.ImageOptions("drawing", x, y, iw, ih, false, opts, 0, "")
	doc.SetDrawColor(120, 120, 120)
	doc.SetLineWidth(0.3)
	doc.Rect(x, y, iw, ih, "D")

	if err := doc.Error(); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}
	return doc.Output(w)
}

// ExportPDF renders the drawing with the given ID to w.
func (p *Persister) ExportPDF(ctx context.Context, id string, w io.Writer) error {
	_, span := p.span(ctx, "persist.export_pdf", attribute.String("drawing.id", id))
	defer span.End()

	d, img, err := p.drawing(id)
	if err != nil {
		return fail(span, err)
	}
	if err := PDF(w, img, title(d)); err != nil {
		return fail(span, err)
	}
	return nil
}

// ExportPDFFile writes the drawing's PDF next to its image, records the
// export and returns the PDF path.
func (p *Persister) ExportPDFFile(ctx context.Context, id string) (string, error) {
	d, _, err := p.drawing(id)
	if err != nil {
		return "", err
	}
	out := strings.TrimSuffix(d.Path, filepath.Ext(d.Path)) + ".pdf"

	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	if err := p.ExportPDF(ctx, id, f); err != nil {
		f.Close()
		os.Remove(out)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if err := p.store.Exports().Create(&store.Export{DrawingID: id, Format: "pdf", Path: out}); err != nil {
		return "", fmt.Errorf("record export: %w", err)
	}
	log.WithFields(log.Fields{"id": id, "path": out}).Info("pdf exported")
	return out, nil
}

func (p *Persister) drawing(id string) (*store.Drawing, image.Image, error) {
	if p.store == nil {
		return nil, nil, store.ErrNotFound
	}
	d, err := p.store.Drawings().GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	c, err := Load(d.Path)
	if err != nil {
		return nil, nil, err
	}
	return d, c.Image(), nil
}

func title(d *store.Drawing) string {
	return fmt.Sprintf("%s (%dx%d, %s)", filepath.Base(d.Path), d.Width, d.Height,
		d.CreatedAt.Local().Format("2006-01-02 15:04"))
}
