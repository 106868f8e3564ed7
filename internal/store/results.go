package store

import (
	"database/sql"
	"errors"

	"github.com/ayusman/swinglab/internal/swing"
)

// FrameEstimate is a persisted per-frame club orientation estimate.
// Frames without an estimate have no row, so gaps are visible as
// missing timestamps rather than sentinel values.
type FrameEstimate struct {
	TimestampMs float64
	Angle       float64
	Score       float64
}

// ResultRepository persists analysis results for sessions.
type ResultRepository struct {
	db *sql.DB
}

// Results returns the result repository for this store.
func (s *Store) Results() *ResultRepository {
	return &ResultRepository{db: s.db}
}

// SaveMetrics stores the swing metrics for a session, replacing any
// previous result.
func (r *ResultRepository) SaveMetrics(sessionID string, m *swing.Metrics) error {
	_, err := r.db.Exec(
		`INSERT INTO session_metrics
		 (session_id, spine_address, spine_impact, spine_change,
		  head_lateral, head_vertical, interval_start_ms, interval_end_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		  spine_address = excluded.spine_address,
		  spine_impact = excluded.spine_impact,
		  spine_change = excluded.spine_change,
		  head_lateral = excluded.head_lateral,
		  head_vertical = excluded.head_vertical,
		  interval_start_ms = excluded.interval_start_ms,
		  interval_end_ms = excluded.interval_end_ms`,
		sessionID,
		m.Spine.Address, m.Spine.Impact, m.Spine.Change,
		m.Head.Lateral, m.Head.Vertical,
		m.Interval.StartMs, m.Interval.EndMs,
	)
	return err
}

// GetMetrics retrieves the stored swing metrics for a session.
func (r *ResultRepository) GetMetrics(sessionID string) (*swing.Metrics, error) {
	m := &swing.Metrics{}

	err := r.db.QueryRow(
		`SELECT spine_address, spine_impact, spine_change,
		        head_lateral, head_vertical, interval_start_ms, interval_end_ms
		 FROM session_metrics WHERE session_id = ?`,
		sessionID,
	).Scan(
		&m.Spine.Address, &m.Spine.Impact, &m.Spine.Change,
		&m.Head.Lateral, &m.Head.Vertical,
		&m.Interval.StartMs, &m.Interval.EndMs,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return m, nil
}

// SaveEstimates batch-inserts frame estimates for a session inside a
// single transaction.
func (r *ResultRepository) SaveEstimates(sessionID string, estimates []FrameEstimate) error {
	if len(estimates) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO frame_estimates (session_id, timestamp_ms, angle, score)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range estimates {
		if _, err := stmt.Exec(sessionID, e.TimestampMs, e.Angle, e.Score); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListEstimates retrieves all frame estimates for a session, ordered
// by timestamp.
func (r *ResultRepository) ListEstimates(sessionID string) ([]FrameEstimate, error) {
	rows, err := r.db.Query(
		`SELECT timestamp_ms, angle, score
		 FROM frame_estimates WHERE session_id = ? ORDER BY timestamp_ms`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var estimates []FrameEstimate
	for rows.Next() {
		var e FrameEstimate
		if err := rows.Scan(&e.TimestampMs, &e.Angle, &e.Score); err != nil {
			return nil, err
		}
		estimates = append(estimates, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return estimates, nil
}
