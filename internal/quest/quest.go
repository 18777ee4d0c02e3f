// Package quest turns an externally reported progress value into queued
// tasks, one step at a time.
package quest

import (
	"errors"
	"sort"

	"github.com/xonecas/zoea-pilot/internal/task"
)

// ErrInvalidQuest is returned for quests that cannot be run.
var ErrInvalidQuest = errors.New("invalid quest")

// Context is the task context plus the progress signal.
type Context interface {
	task.Context
	// Progress returns the current value for key, and false when the
	// environment has not reported it.
	Progress(key string) (int, bool)
}

// Step is the unit of work for one progress value.
type Step struct {
	Name        string
	Progress    int
	Priority    task.Priority
	RequireIdle bool

	// Requires gates conversion; nil means always ready.
	Requires func(tc Context) bool
	// Done optionally confirms the step is over before progress moves.
	Done func(tc Context) bool
	// Build returns fresh tasks for the step. Zero tasks means there is
	// nothing to do but wait for progress to advance.
	Build func(tc Context) []task.Task
}

// Quest maps progress values to steps.
type Quest struct {
	Name            string
	ProgressKey     string
	CompletionValue int
	Steps           map[int]*Step
}

// StepFor returns the step for a progress value, or nil.
func (q *Quest) StepFor(progress int) *Step {
	return q.Steps[progress]
}

// IsComplete reports whether progress has reached the completion value.
func (q *Quest) IsComplete(progress int) bool {
	return progress >= q.CompletionValue
}

// Ordered returns the steps sorted by progress value.
func (q *Quest) Ordered() []*Step {
	out := make([]*Step, 0, len(q.Steps))
	for _, s := range q.Steps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Progress < out[j].Progress })
	return out
}

func (q *Quest) validate() error {
	switch {
	case q == nil:
		return ErrInvalidQuest
	case q.ProgressKey == "":
		return errors.Join(ErrInvalidQuest, errors.New("missing progress key"))
	case len(q.Steps) == 0:
		return errors.Join(ErrInvalidQuest, errors.New("no steps"))
	}
	return nil
}
