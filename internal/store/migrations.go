package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per analyzed recording
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'created' CHECK(state IN ('created', 'analyzing', 'done', 'degraded')),
			frame_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Session metrics table - the posture summary per session
		`CREATE TABLE IF NOT EXISTS session_metrics (
			session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
			spine_address REAL NOT NULL,
			spine_impact REAL NOT NULL,
			spine_change REAL NOT NULL,
			head_lateral REAL NOT NULL,
			head_vertical REAL NOT NULL,
			interval_start_ms REAL NOT NULL,
			interval_end_ms REAL NOT NULL
		)`,

		// Frame estimates table - per-frame club orientation samples.
		// Frames without a usable estimate have no row: a gap is absent,
		// not zero.
		`CREATE TABLE IF NOT EXISTS frame_estimates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			timestamp_ms REAL NOT NULL,
			angle REAL NOT NULL,
			score REAL NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_frame_estimates_session_id ON frame_estimates(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
