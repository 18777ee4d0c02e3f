package quest

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// State is the step executor's position, derived from its bookkeeping.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingStep    State = "awaiting_step"
	StateStepRunning     State = "step_running"
	StateAwaitingAdvance State = "awaiting_advance"
	StateCompleted       State = "completed"
)

// Status is a point-in-time view of the executor.
type Status struct {
	Quest    string
	State    State
	Step     string
	Progress int
	TaskID   string
	// StepDone is set once the step's own completion check has held.
	StepDone bool
}

// StepExecutor converts the current quest step into tasks at most once per
// progress value, retrying only after the step's task fails.
type StepExecutor struct {
	mu sync.Mutex

	quest     *Quest
	running   bool
	completed bool

	observed     bool
	progress     int
	current      *Step
	executedStep *Step
	activeTask   task.Task
	waiting      bool

	onChange []func(Status)
	last     Status
}

// NewStepExecutor creates an idle executor.
func NewStepExecutor() *StepExecutor {
	return &StepExecutor{}
}

// OnChange registers a hook fired after a tick that changed the status.
func (e *StepExecutor) OnChange(fn func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

// Start begins running q, replacing any quest in progress.
func (e *StepExecutor) Start(q *Quest) error {
	if err := q.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.teardownLocked()
	e.quest = q
	e.running = true
	e.completed = false
	status := e.statusLocked()
	e.mu.Unlock()

	log.Info().Str("quest", q.Name).Int("steps", len(q.Steps)).Msg("Quest started")
	e.notify(status)
	return nil
}

// Stop abandons the quest and cancels its in-flight task.
func (e *StepExecutor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	name := e.quest.Name
	e.teardownLocked()
	e.quest = nil
	e.running = false
	status := e.statusLocked()
	e.mu.Unlock()

	log.Info().Str("quest", name).Msg("Quest stopped")
	e.notify(status)
}

// Tick advances the step state machine once.
func (e *StepExecutor) Tick(tc Context) {
	e.mu.Lock()
	e.tickLocked(tc)
	status := e.statusLocked()
	e.mu.Unlock()

	e.notify(status)
}

func (e *StepExecutor) tickLocked(tc Context) {
	if !e.running {
		return
	}

	value, ok := tc.Progress(e.quest.ProgressKey)
	if !ok {
		return
	}
	changed := !e.observed || value != e.progress
	e.observed = true
	e.progress = value

	if e.quest.IsComplete(value) {
		log.Info().Str("quest", e.quest.Name).Int("progress", value).Msg("Quest completed")
		e.teardownLocked()
		e.running = false
		e.completed = true
		return
	}

	if changed {
		e.resetStepLocked()
	}

	step := e.quest.StepFor(value)
	e.current = step
	if step == nil {
		return
	}

	if e.activeTask != nil {
		switch e.activeTask.State() {
		case task.StateCompleted:
			e.activeTask = nil
			e.waiting = true
		case task.StateFailed, task.StateCancelled:
			log.Warn().
				Err(e.activeTask.Err()).
				Str("quest", e.quest.Name).
				Str("step", step.Name).
				Str("state", string(e.activeTask.State())).
				Msg("Quest step task did not complete, retrying")
			e.activeTask = nil
			e.executedStep = nil
		}
		return
	}

	if e.executedStep == step {
		if e.waiting && step.Done != nil && step.Done(tc) {
			e.waiting = false
		}
		return
	}

	if step.Requires != nil && !step.Requires(tc) {
		return
	}
	if step.RequireIdle && !tc.IsIdle() {
		return
	}

	var tasks []task.Task
	if step.Build != nil {
		tasks = step.Build(tc)
	}
	e.executedStep = step

	var t task.Task
	switch len(tasks) {
	case 0:
		e.waiting = true
		return
	case 1:
		t = tasks[0]
	default:
		t = task.NewSequence(fmt.Sprintf("%s: %s", e.quest.Name, step.Name), step.Priority, tasks...)
	}
	e.activeTask = t
	tc.Queue(t, t.Priority())
	log.Debug().Str("quest", e.quest.Name).Str("step", step.Name).Str("task", t.ID()).Msg("Quest step queued")
}

// resetStepLocked forgets step bookkeeping. A task still in flight belongs
// to a step that is no longer current and is cancelled.
func (e *StepExecutor) resetStepLocked() {
	if e.activeTask != nil && !e.activeTask.State().IsTerminal() {
		e.activeTask.Cancel()
	}
	e.activeTask = nil
	e.executedStep = nil
	e.waiting = false
}

func (e *StepExecutor) teardownLocked() {
	e.resetStepLocked()
	e.observed = false
	e.progress = 0
	e.current = nil
}

// State returns the derived state.
func (e *StepExecutor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *StepExecutor) stateLocked() State {
	switch {
	case e.completed:
		return StateCompleted
	case !e.running:
		return StateIdle
	case e.activeTask != nil:
		return StateStepRunning
	case e.executedStep != nil && e.executedStep == e.current:
		return StateAwaitingAdvance
	default:
		return StateAwaitingStep
	}
}

// Status returns a snapshot for status displays.
func (e *StepExecutor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *StepExecutor) statusLocked() Status {
	s := Status{State: e.stateLocked(), Progress: e.progress}
	if e.quest != nil {
		s.Quest = e.quest.Name
	}
	if e.current != nil {
		s.Step = e.current.Name
	}
	if e.activeTask != nil {
		s.TaskID = e.activeTask.ID()
	}
	s.StepDone = e.executedStep != nil && e.activeTask == nil && !e.waiting
	return s
}

func (e *StepExecutor) notify(s Status) {
	e.mu.Lock()
	if s == e.last {
		e.mu.Unlock()
		return
	}
	e.last = s
	hooks := append([]func(Status){}, e.onChange...)
	e.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
}
