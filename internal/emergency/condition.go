package emergency

import (
	"time"

	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// Condition detects a situation that must interrupt normal automation.
// Implementations should be pointer types so they can be unregistered by
// identity.
type Condition interface {
	ID() string
	Description() string
	Cooldown() time.Duration
	IsTriggered(tc task.Context) (bool, error)
	// CreateResponseTask may return nil when nothing can be done.
	CreateResponseTask(tc task.Context) task.Task
}

// Func is a closure-backed condition.
type Func struct {
	id          string
	description string
	cooldown    time.Duration
	trigger     func(tc task.Context) (bool, error)
	respond     func(tc task.Context) task.Task
}

// NewFunc creates a condition from a trigger predicate and a response factory.
func NewFunc(id, description string, cooldown time.Duration,
	trigger func(tc task.Context) (bool, error),
	respond func(tc task.Context) task.Task,
) *Func {
	return &Func{
		id:          id,
		description: description,
		cooldown:    cooldown,
		trigger:     trigger,
		respond:     respond,
	}
}

func (f *Func) ID() string              { return f.id }
func (f *Func) Description() string     { return f.description }
func (f *Func) Cooldown() time.Duration { return f.cooldown }

func (f *Func) IsTriggered(tc task.Context) (bool, error) {
	return f.trigger(tc)
}

func (f *Func) CreateResponseTask(tc task.Context) task.Task {
	if f.respond == nil {
		return nil
	}
	return f.respond(tc)
}

// LowHealthID identifies the stock low-health condition.
const LowHealthID = "low_health"

// LowHealth triggers when hitpoints fall below a percentage of the maximum.
// It eats the configured food if carried, otherwise teleports to Retreat.
type LowHealth struct {
	Percent  int
	Food     string
	Retreat  string
	Interval time.Duration
}

func (l *LowHealth) ID() string { return LowHealthID }

func (l *LowHealth) Description() string {
	return "hitpoints below threshold"
}

func (l *LowHealth) Cooldown() time.Duration { return l.Interval }

func (l *LowHealth) IsTriggered(tc task.Context) (bool, error) {
	cur, max := tc.Hitpoints()
	if max <= 0 {
		return false, nil
	}
	return cur*100 < l.Percent*max, nil
}

func (l *LowHealth) CreateResponseTask(tc task.Context) task.Task {
	if l.Food != "" && tc.ItemCount(l.Food) > 0 {
		return task.NewCommand("eat "+l.Food, task.PriorityUrgent,
			task.Command{Action: task.ActionEat, Target: l.Food},
			task.WithActivity(activity.Critical))
	}
	if l.Retreat == "" {
		return nil
	}
	return task.NewCommand("retreat to "+l.Retreat, task.PriorityUrgent,
		task.Command{Action: task.ActionTeleport, Target: l.Retreat},
		task.WithActivity(activity.Critical))
}
