package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tells manual saves from auto-saves.
type Kind string

const (
	KindManual Kind = "manual"
	KindAuto   Kind = "auto"
)

// Drawing is a saved canvas image.
type Drawing struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

// DrawingRepository provides CRUD operations for drawings.
type DrawingRepository struct {
	db *sql.DB
}

// Drawings returns the drawing repository for this store.
func (s *Store) Drawings() *DrawingRepository {
	return &DrawingRepository{db: s.db}
}

const drawingColumns = `id, kind, path, format, width, height, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDrawing(row scanner) (*Drawing, error) {
	d := &Drawing{}
	var kind string
	if err := row.Scan(&d.ID, &kind, &d.Path, &d.Format, &d.Width, &d.Height, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Kind = Kind(kind)
	return d, nil
}

// Create inserts d, assigning an ID and creation time when they are unset.
func (r *DrawingRepository) Create(d *Drawing) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO drawings (`+drawingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.Kind), d.Path, d.Format, d.Width, d.Height, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert drawing: %w", err)
	}
	return nil
}

// GetByID retrieves a drawing by its ID.
func (r *DrawingRepository) GetByID(id string) (*Drawing, error) {
	d, err := scanDrawing(r.db.QueryRow(
		`SELECT `+drawingColumns+` FROM drawings WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns drawings newest first. An empty kind lists every drawing.
func (r *DrawingRepository) List(kind Kind) ([]*Drawing, error) {
	query := `SELECT ` + drawingColumns + ` FROM drawings`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drawings := []*Drawing{}
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, err
		}
		drawings = append(drawings, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drawings, nil
}

// Count returns the number of drawings of the given kind.
func (r *DrawingRepository) Count(kind Kind) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM drawings WHERE kind = ?`, string(kind)).Scan(&n)
	return n, err
}

// Delete removes a drawing and its exports.
func (r *DrawingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM drawings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

// Prune deletes all but the newest keep drawings of kind and returns the
// deleted rows so their files can be removed.
func (r *DrawingRepository) Prune(kind Kind, keep int) ([]*Drawing, error) {
	all, err := r.List(kind)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(all) <= keep {
		return nil, nil
	}

	stale := all[keep:]
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, d := range stale {
		if _, err := tx.Exec(`DELETE FROM drawings WHERE id = ?`, d.ID); err != nil {
			return nil, fmt.Errorf("prune %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stale, nil
}
