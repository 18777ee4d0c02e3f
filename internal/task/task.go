// Package task provides the execution unit abstraction: a small state
// machine per task, composites that sequence child tasks, and a priority
// executor that runs at most one task at a time.
package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/xonecas/zoea-pilot/internal/activity"
)

// State is a task lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var validTransitions = map[State][]State{
	StatePending: {StateRunning, StateCancelled},
	StateRunning: {StateCompleted, StateFailed, StateCancelled},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Priority orders tasks in the executor. Urgent is reserved for emergencies.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority maps a name to a Priority, defaulting to Normal.
func ParsePriority(name string) Priority {
	switch name {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

var (
	ErrInvalidTransition = errors.New("invalid task state transition")
	ErrTimeout           = errors.New("task timed out")
)

// Task is a cooperative unit of work. Tick must do at most one tick's worth
// of work and never block.
type Task interface {
	ID() string
	Description() string
	Priority() Priority
	State() State
	Err() error
	CanExecute(tc Context) bool
	Tick(tc Context) State
	Cancel() bool
}

// Classified is implemented by tasks that declare their activity intensity.
type Classified interface {
	Activity() activity.Type
}

// Base carries identity and the guarded state machine. Concrete tasks embed it.
type Base struct {
	mu sync.RWMutex

	id          string
	description string
	priority    Priority
	activity    activity.Type
	state       State
	err         error
}

// NewBase creates a pending task base with a fresh id.
func NewBase(description string, priority Priority) *Base {
	return &Base{
		id:          uuid.New().String(),
		description: description,
		priority:    priority,
		activity:    activity.Medium,
		state:       StatePending,
	}
}

func (b *Base) ID() string {
	return b.id
}

func (b *Base) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

func (b *Base) SetDescription(d string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = d
}

func (b *Base) Priority() Priority {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.priority
}

func (b *Base) SetPriority(p Priority) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.priority = p
}

func (b *Base) Activity() activity.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activity
}

func (b *Base) SetActivity(a activity.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activity = a
}

func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Err returns the failure cause, if any.
func (b *Base) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// CanExecute has no precondition by default.
func (b *Base) CanExecute(Context) bool {
	return true
}

// Start moves pending to running.
func (b *Base) Start() error {
	return b.transition(StateRunning, nil)
}

// Complete moves running to completed.
func (b *Base) Complete() error {
	return b.transition(StateCompleted, nil)
}

// Fail moves running to failed and records the cause.
func (b *Base) Fail(err error) error {
	return b.transition(StateFailed, err)
}

// Cancel moves a non-terminal task to cancelled. It returns false when the
// task had already finished.
func (b *Base) Cancel() bool {
	return b.transition(StateCancelled, nil) == nil
}

func (b *Base) transition(to State, cause error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !canTransition(b.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.state, to)
	}
	b.state = to
	if cause != nil {
		b.err = cause
	}
	return nil
}
