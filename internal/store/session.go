package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SessionOutcome is how a training session ended.
type SessionOutcome string

const (
	// OutcomeCompleted marks a session whose capture window ran out.
	OutcomeCompleted SessionOutcome = "completed"
	// OutcomeCancelled marks a session stopped before it finished.
	OutcomeCancelled SessionOutcome = "cancelled"
)

// TrainingSession is one row of training history.
type TrainingSession struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Captured   int            `json:"captured"`
	Outcome    SessionOutcome `json:"outcome"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// SessionRepository records training session history.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a finished session. An empty ID is filled with a new UUID.
func (r *SessionRepository) Create(ts *TrainingSession) error {
	if ts.ID == "" {
		ts.ID = uuid.NewString()
	}
	if ts.FinishedAt.IsZero() {
		ts.FinishedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO training_sessions (id, label, captured, outcome, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ts.ID, ts.Label, ts.Captured, string(ts.Outcome), ts.StartedAt, ts.FinishedAt,
	)
	return err
}

// List retrieves the most recent sessions, newest first. A limit of zero or
// less returns every session.
func (r *SessionRepository) List(limit int) ([]TrainingSession, error) {
	query := `SELECT id, label, captured, outcome, started_at, finished_at
		 FROM training_sessions ORDER BY finished_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []TrainingSession
	for rows.Next() {
		var ts TrainingSession
		var outcome string
		if err := rows.Scan(&ts.ID, &ts.Label, &ts.Captured, &outcome, &ts.StartedAt, &ts.FinishedAt); err != nil {
			return nil, err
		}
		ts.Outcome = SessionOutcome(outcome)
		sessions = append(sessions, ts)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// CapturedByLabel sums captured examples per label across completed and
// cancelled sessions.
func (r *SessionRepository) CapturedByLabel() (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT label, SUM(captured) FROM training_sessions GROUP BY label`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		totals[label] = n
	}

	return totals, rows.Err()
}
