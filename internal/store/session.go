package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// SessionState tracks a session through its lifecycle.
type SessionState string

const (
	// StateCreated is a registered session without analysis results yet.
	StateCreated SessionState = "created"
	// StateAnalyzing is a session whose frame sweep is in progress.
	StateAnalyzing SessionState = "analyzing"
	// StateDone is a fully analyzed session.
	StateDone SessionState = "done"
	// StateDegraded is a session analyzed without club orientation
	// because the model was unavailable.
	StateDegraded SessionState = "degraded"
)

// Session represents an analysis session stored in the database.
type Session struct {
	ID         string
	Name       string
	State      SessionState
	FrameCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session into the database.
func (r *SessionRepository) Create(sess *Session) error {
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	if sess.State == "" {
		sess.State = StateCreated
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, name, state, frame_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, string(sess.State), sess.FrameCount, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var state string

	err := r.db.QueryRow(
		`SELECT id, name, state, frame_count, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Name, &state, &sess.FrameCount, &sess.CreatedAt, &sess.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sess.State = SessionState(state)
	return sess, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, name, state, frame_count, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		var state string

		if err := rows.Scan(&sess.ID, &sess.Name, &state, &sess.FrameCount, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}

		sess.State = SessionState(state)
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Update updates a session's mutable fields.
func (r *SessionRepository) Update(sess *Session) error {
	sess.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE sessions SET name = ?, state = ?, frame_count = ?, updated_at = ?
		 WHERE id = ?`,
		sess.Name, string(sess.State), sess.FrameCount, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a session and, via cascade, its results.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
