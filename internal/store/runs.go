package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskRun is a task that reached a terminal state.
type TaskRun struct {
	ID           string
	SessionID    string
	TaskID       string
	Description  string
	Priority     string
	State        string
	Error        string
	StartedTick  int64
	FinishedTick int64
	FinishedAt   time.Time
}

// RecordTaskRun stores a finished task.
func (s *Store) RecordTaskRun(run TaskRun) (*TaskRun, error) {
	run.ID = uuid.New().String()
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO task_runs (id, session_id, task_id, description, priority, state, error, started_tick, finished_tick, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SessionID, run.TaskID, run.Description, run.Priority, run.State, run.Error,
		run.StartedTick, run.FinishedTick, run.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("insert task run: %w", err)
	}
	return &run, nil
}

// ListTaskRuns returns a session's finished tasks, oldest first.
func (s *Store) ListTaskRuns(sessionID string) ([]*TaskRun, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, task_id, description, priority, state, error, started_tick, finished_tick, finished_at
		FROM task_runs WHERE session_id = ? ORDER BY finished_at ASC, finished_tick ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query task runs: %w", err)
	}
	defer rows.Close()

	var runs []*TaskRun
	for rows.Next() {
		var r TaskRun
		if err := rows.Scan(&r.ID, &r.SessionID, &r.TaskID, &r.Description, &r.Priority, &r.State,
			&r.Error, &r.StartedTick, &r.FinishedTick, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// Emergency is a triggered emergency and how it ended.
type Emergency struct {
	ID          string
	SessionID   string
	ConditionID string
	TaskID      string
	Tick        int64
	Outcome     string
	TriggeredAt time.Time
	ResolvedAt  *time.Time
}

// RecordEmergency stores a newly triggered emergency.
func (s *Store) RecordEmergency(sessionID, conditionID, taskID string, tick int64) (*Emergency, error) {
	e := &Emergency{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		ConditionID: conditionID,
		TaskID:      taskID,
		Tick:        tick,
		TriggeredAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(`
		INSERT INTO emergencies (id, session_id, condition_id, task_id, tick, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.ConditionID, e.TaskID, e.Tick, e.TriggeredAt)
	if err != nil {
		return nil, fmt.Errorf("insert emergency: %w", err)
	}
	return e, nil
}

// ResolveEmergency records the outcome of the emergency's response task.
func (s *Store) ResolveEmergency(id, outcome string) error {
	result, err := s.db.Exec(`
		UPDATE emergencies SET outcome = ?, resolved_at = ? WHERE id = ?
	`, outcome, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("resolve emergency: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListEmergencies returns a session's emergencies, oldest first.
func (s *Store) ListEmergencies(sessionID string) ([]*Emergency, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, condition_id, task_id, tick, outcome, triggered_at, resolved_at
		FROM emergencies WHERE session_id = ? ORDER BY triggered_at ASC, tick ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query emergencies: %w", err)
	}
	defer rows.Close()

	var out []*Emergency
	for rows.Next() {
		var e Emergency
		var resolved sql.NullTime
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ConditionID, &e.TaskID, &e.Tick, &e.Outcome,
			&e.TriggeredAt, &resolved); err != nil {
			return nil, err
		}
		if resolved.Valid {
			e.ResolvedAt = &resolved.Time
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
