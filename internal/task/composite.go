package task

import (
	"sync"

	"github.com/google/uuid"
	"github.com/xonecas/zoea-pilot/internal/activity"
)

// Mode controls how a composite combines its children.
type Mode string

const (
	// ModeSequential runs children in order and fails fast.
	ModeSequential Mode = "sequential"
	// ModeFallback tries children in order until one completes.
	ModeFallback Mode = "fallback"
)

// Composite owns an ordered list of child tasks. Its state is derived from
// the children; only cancellation is tracked independently.
type Composite struct {
	mu sync.Mutex

	id          string
	description string
	priority    Priority
	mode        Mode
	children    []Task
	current     int
	started     bool
	cancelled   bool
}

// NewSequence creates a fail-fast sequential composite.
func NewSequence(description string, priority Priority, children ...Task) *Composite {
	return newComposite(ModeSequential, description, priority, children)
}

// NewFallback creates a composite that completes with the first child that does.
func NewFallback(description string, priority Priority, children ...Task) *Composite {
	return newComposite(ModeFallback, description, priority, children)
}

func newComposite(mode Mode, description string, priority Priority, children []Task) *Composite {
	return &Composite{
		id:          uuid.New().String(),
		description: description,
		priority:    priority,
		mode:        mode,
		children:    children,
	}
}

func (c *Composite) ID() string {
	return c.id
}

func (c *Composite) Description() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.description
}

func (c *Composite) SetDescription(d string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.description = d
}

func (c *Composite) Priority() Priority {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priority
}

func (c *Composite) SetPriority(p Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.priority = p
}

func (c *Composite) Mode() Mode {
	return c.mode
}

// Children returns the child tasks in order.
func (c *Composite) Children() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, len(c.children))
	copy(out, c.children)
	return out
}

func (c *Composite) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Composite) stateLocked() State {
	if c.cancelled {
		return StateCancelled
	}
	if len(c.children) == 0 {
		return StateCompleted
	}

	switch c.mode {
	case ModeFallback:
		exhausted := true
		for _, child := range c.children {
			switch child.State() {
			case StateCompleted:
				return StateCompleted
			case StateFailed, StateCancelled:
			default:
				exhausted = false
			}
		}
		if exhausted {
			return StateFailed
		}
	default:
		completed := 0
		for _, child := range c.children {
			switch child.State() {
			case StateFailed:
				return StateFailed
			case StateCancelled:
				return StateCancelled
			case StateCompleted:
				completed++
			}
		}
		if completed == len(c.children) {
			return StateCompleted
		}
	}

	if c.started {
		return StateRunning
	}
	return StatePending
}

// Err returns the error of the first failed child.
func (c *Composite) Err() error {
	for _, child := range c.Children() {
		if child.State() == StateFailed {
			return child.Err()
		}
	}
	return nil
}

// Activity reports the classification of the child currently in play.
func (c *Composite) Activity() activity.Type {
	if child := c.currentChild(); child != nil {
		if cl, ok := child.(Classified); ok {
			return cl.Activity()
		}
	}
	return activity.Medium
}

// CanExecute delegates to the child that would run next.
func (c *Composite) CanExecute(tc Context) bool {
	child := c.currentChild()
	if child == nil {
		return true
	}
	if child.State() != StatePending {
		return true
	}
	return child.CanExecute(tc)
}

// Tick advances at most one child.
func (c *Composite) Tick(tc Context) State {
	c.mu.Lock()
	if s := c.stateLocked(); s.IsTerminal() {
		c.mu.Unlock()
		return s
	}
	c.started = true
	c.advanceLocked()
	child := c.children[c.current]
	c.mu.Unlock()

	if child.State() == StatePending && !child.CanExecute(tc) {
		return c.State()
	}
	child.Tick(tc)
	return c.State()
}

// Cancel stops the composite. The running child is cancelled; children
// that never started stay pending.
func (c *Composite) Cancel() bool {
	c.mu.Lock()
	if c.stateLocked().IsTerminal() {
		c.mu.Unlock()
		return false
	}
	c.cancelled = true
	var child Task
	if c.current < len(c.children) {
		child = c.children[c.current]
	}
	c.mu.Unlock()

	if child != nil && child.State() == StateRunning {
		child.Cancel()
	}
	return true
}

// advanceLocked moves current past children that no longer need ticks.
func (c *Composite) advanceLocked() {
	for c.current < len(c.children)-1 {
		s := c.children[c.current].State()
		if c.mode == ModeFallback {
			if s != StateFailed && s != StateCancelled {
				return
			}
		} else if s != StateCompleted {
			return
		}
		c.current++
	}
}

func (c *Composite) currentChild() Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.children) == 0 {
		return nil
	}
	c.advanceLocked()
	return c.children[c.current]
}
