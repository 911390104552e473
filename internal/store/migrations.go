package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Drawings table - one row per saved image file
		`CREATE TABLE IF NOT EXISTS drawings (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('manual', 'auto')),
			path TEXT NOT NULL UNIQUE,
			format TEXT NOT NULL CHECK(format IN ('png', 'jpg')),
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Exports table - documents rendered from a drawing
		`CREATE TABLE IF NOT EXISTS exports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			drawing_id TEXT NOT NULL REFERENCES drawings(id) ON DELETE CASCADE,
			format TEXT NOT NULL,
			path TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Settings table - tool selections as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_drawings_kind_created ON drawings(kind, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_drawing_id ON exports(drawing_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
