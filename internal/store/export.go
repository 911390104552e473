package store

import (
	"database/sql"
	"time"
)

// Export records a document rendered from a drawing.
type Export struct {
	ID        int64     `json:"id"`
	DrawingID string    `json:"drawing_id"`
	Format    string    `json:"format"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportRepository provides access to exports.
type ExportRepository struct {
	db *sql.DB
}

// Exports returns the export repository for this store.
func (s *Store) Exports() *ExportRepository {
	return &ExportRepository{db: s.db}
}

// Create inserts e and fills in its ID.
func (r *ExportRepository) Create(e *Export) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.Exec(
		`INSERT INTO exports (drawing_id, format, path, created_at) VALUES (?, ?, ?, ?)`,
		e.DrawingID, e.Format, e.Path, e.CreatedAt,
	)
	if err != nil {
		return err
	}
	e.ID, err = result.LastInsertId()
	return err
}

// ListByDrawing returns the exports of a drawing, oldest first.
func (r *ExportRepository) ListByDrawing(drawingID string) ([]Export, error) {
	rows, err := r.db.Query(
		`SELECT id, drawing_id, format, path, created_at
		 FROM exports WHERE drawing_id = ? ORDER BY id`,
		drawingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.DrawingID, &e.Format, &e.Path, &e.CreatedAt); err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}
