package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Models table - serialized classifier datasets keyed by name
		`CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			examples INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Training sessions table - one row per finished or cancelled session
		`CREATE TABLE IF NOT EXISTS training_sessions (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			captured INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL CHECK(outcome IN ('completed', 'cancelled')),
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_training_sessions_label ON training_sessions(label)`,
		`CREATE INDEX IF NOT EXISTS idx_training_sessions_finished_at ON training_sessions(finished_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
