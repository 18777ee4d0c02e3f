package task

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

type queued struct {
	task     Task
	priority Priority
	seq      uint64
}

// Executor runs at most one task at a time, picking from a queue ordered by
// priority then arrival. A queued task that outranks the active one
// preempts it by cancellation.
type Executor struct {
	mu sync.Mutex

	pending []queued
	active  *queued
	seq     uint64

	onStart  []func(Task, Priority)
	onFinish []func(Task, Priority)
}

// NewExecutor creates an empty executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// OnStart registers a hook called when a task becomes active.
func (e *Executor) OnStart(fn func(Task, Priority)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStart = append(e.onStart, fn)
}

// OnFinish registers a hook called once per task that reaches a terminal
// state while owned by the executor.
func (e *Executor) OnFinish(fn func(Task, Priority)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFinish = append(e.onFinish, fn)
}

// Queue adds a task with the given priority.
func (e *Executor) Queue(t Task, p Priority) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	e.pending = append(e.pending, queued{task: t, priority: p, seq: e.seq})
	sort.SliceStable(e.pending, func(i, j int) bool {
		if e.pending[i].priority != e.pending[j].priority {
			return e.pending[i].priority > e.pending[j].priority
		}
		return e.pending[i].seq < e.pending[j].seq
	})
	log.Debug().Str("task", t.ID()).Str("description", t.Description()).Str("priority", p.String()).Msg("Task queued")
}

// Active returns the current task, or nil.
func (e *Executor) Active() Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	return e.active.task
}

// ActivePriority returns the priority the active task was queued with.
func (e *Executor) ActivePriority() (Priority, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return 0, false
	}
	return e.active.priority, true
}

// Pending returns the number of queued tasks.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Idle reports whether nothing is active or queued.
func (e *Executor) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active == nil && len(e.pending) == 0
}

// Preempt swaps in a queued task that outranks the active one without
// advancing anything. It returns true when a swap happened.
func (e *Executor) Preempt(tc Context) bool {
	e.mu.Lock()
	finished := e.retireLocked(nil)
	started, swapped := e.preemptLocked(tc, &finished)
	e.mu.Unlock()

	e.fire(finished, started)
	return swapped
}

// Tick retires finished work, applies preemption, starts the next runnable
// task if none is active, and advances the active task once.
func (e *Executor) Tick(tc Context) {
	e.mu.Lock()
	finished := e.retireLocked(nil)
	started, _ := e.preemptLocked(tc, &finished)
	if e.active == nil {
		if q, ok := e.popRunnableLocked(tc, -1, &finished); ok {
			e.active = &q
			started = &q
		}
	}
	active := e.active
	e.mu.Unlock()

	e.fire(finished, started)
	if active == nil {
		return
	}

	if state := active.task.Tick(tc); state.IsTerminal() {
		e.mu.Lock()
		finished = e.retireLocked(nil)
		e.mu.Unlock()
		e.fire(finished, nil)
	}
}

// Clear cancels the active task and discards everything queued.
func (e *Executor) Clear() {
	e.mu.Lock()
	var finished []queued
	if e.active != nil {
		e.active.task.Cancel()
		finished = append(finished, *e.active)
		e.active = nil
	}
	for _, q := range e.pending {
		q.task.Cancel()
		finished = append(finished, q)
	}
	e.pending = nil
	e.mu.Unlock()

	e.fire(finished, nil)
}

func (e *Executor) retireLocked(finished []queued) []queued {
	if e.active != nil && e.active.task.State().IsTerminal() {
		finished = append(finished, *e.active)
		e.active = nil
	}
	return finished
}

func (e *Executor) preemptLocked(tc Context, finished *[]queued) (*queued, bool) {
	if e.active == nil {
		return nil, false
	}

	interruptible := true
	if cl, ok := e.active.task.(Classified); ok {
		interruptible = cl.Activity().Interruptible()
	}

	floor := e.active.priority
	if !interruptible {
		if floor >= PriorityUrgent {
			return nil, false
		}
		floor = PriorityUrgent - 1
	}

	q, ok := e.popRunnableLocked(tc, floor, finished)
	if !ok {
		return nil, false
	}

	log.Info().
		Str("preempted", e.active.task.Description()).
		Str("by", q.task.Description()).
		Str("priority", q.priority.String()).
		Msg("Task preempted")
	e.active.task.Cancel()
	*finished = append(*finished, *e.active)
	e.active = &q
	return &q, true
}

// popRunnableLocked removes and returns the first queued task above floor
// whose precondition holds. Tasks cancelled while queued are moved to finished.
func (e *Executor) popRunnableLocked(tc Context, floor Priority, finished *[]queued) (queued, bool) {
	kept := e.pending[:0]
	var found queued
	ok := false
	for _, q := range e.pending {
		if q.task.State().IsTerminal() {
			*finished = append(*finished, q)
			continue
		}
		if !ok && q.priority > floor && q.task.CanExecute(tc) {
			found, ok = q, true
			continue
		}
		kept = append(kept, q)
	}
	e.pending = kept
	return found, ok
}

func (e *Executor) fire(finished []queued, started *queued) {
	if len(finished) == 0 && started == nil {
		return
	}
	e.mu.Lock()
	onFinish := append([]func(Task, Priority){}, e.onFinish...)
	onStart := append([]func(Task, Priority){}, e.onStart...)
	e.mu.Unlock()

	for _, q := range finished {
		for _, fn := range onFinish {
			fn(q.task, q.priority)
		}
	}
	if started != nil {
		for _, fn := range onStart {
			fn(started.task, started.priority)
		}
	}
}
