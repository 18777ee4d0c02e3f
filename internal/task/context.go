package task

import "github.com/xonecas/zoea-pilot/internal/activity"

// Action names understood by the environment.
const (
	ActionWalk     = "walk"
	ActionClick    = "click"
	ActionInteract = "interact"
	ActionTalk     = "talk"
	ActionUse      = "use"
	ActionSelect   = "select"
	ActionBank     = "bank"
	ActionDeposit  = "deposit"
	ActionWithdraw = "withdraw"
	ActionEat      = "eat"
	ActionTeleport = "teleport"
	ActionDismiss  = "dismiss"
	ActionCancel   = "cancel"
)

// Command is a single instruction sent to the environment.
type Command struct {
	Action string            `json:"action"`
	Target string            `json:"target,omitempty"`
	Args   map[string]string `json:"args,omitempty"`
}

// Context is what tasks, conditions and quest steps see of the world for
// the current tick, plus the handle to queue further work.
type Context interface {
	CurrentTick() int64
	IsIdle() bool
	ItemCount(item string) int
	Hitpoints() (current, max int)
	Activity() activity.Type
	Send(cmd Command) error
	Queue(t Task, p Priority)
}

// HasItems reports whether the context holds at least the given counts.
func HasItems(tc Context, items map[string]int) bool {
	for item, n := range items {
		if tc.ItemCount(item) < n {
			return false
		}
	}
	return true
}

func isClickAction(action string) bool {
	switch action {
	case ActionClick, ActionInteract, ActionTalk, ActionUse, ActionSelect:
		return true
	}
	return false
}

func isBankAction(action string) bool {
	switch action {
	case ActionBank, ActionDeposit, ActionWithdraw:
		return true
	}
	return false
}
