package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the pilot.
type Session struct {
	ID        string
	Agent     string
	Quest     string
	StartedAt time.Time
	EndedAt   *time.Time
	Ticks     int64
}

// CreateSession records the start of a session.
func (s *Store) CreateSession(agent, quest string) (*Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, agent, quest, started_at)
		VALUES (?, ?, ?, ?)
	`, id, agent, quest, now)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &Session{ID: id, Agent: agent, Quest: quest, StartedAt: now}, nil
}

// EndSession stamps the end time and tick count.
func (s *Store) EndSession(id string, ticks int64) error {
	result, err := s.db.Exec(`
		UPDATE sessions SET ended_at = ?, ticks = ? WHERE id = ?
	`, time.Now().UTC(), ticks, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, agent, quest, started_at, ended_at, ticks
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(limit int) ([]*Session, error) {
	rows, err := s.db.Query(`
		SELECT id, agent, quest, started_at, ended_at, ticks
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SaveInefficiencyCounts upserts the per-kind counters of a session.
func (s *Store) SaveInefficiencyCounts(sessionID string, counts map[string]int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		for kind, n := range counts {
			if _, err := tx.Exec(`
				INSERT INTO inefficiency_counts (session_id, kind, count) VALUES (?, ?, ?)
				ON CONFLICT(session_id, kind) DO UPDATE SET count = excluded.count
			`, sessionID, kind, n); err != nil {
				return fmt.Errorf("save %s count: %w", kind, err)
			}
		}
		return nil
	})
}

// InefficiencyCounts returns the saved counters of a session.
func (s *Store) InefficiencyCounts(sessionID string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT kind, count FROM inefficiency_counts WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Agent, &sess.Quest, &sess.StartedAt, &ended, &sess.Ticks); err != nil {
		return nil, err
	}
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return &sess, nil
}
