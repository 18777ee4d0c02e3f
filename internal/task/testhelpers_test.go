package task

import (
	"errors"

	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/humanize"
)

type fakeContext struct {
	tick    int64
	idle    bool
	items   map[string]int
	hp      int
	maxHP   int
	act     activity.Type
	sent    []Command
	sendErr error
	// rejects makes sends of this action fail with errBoom.
	rejects string
	queued  []Task
}

func newFakeContext() *fakeContext {
	return &fakeContext{idle: true, items: map[string]int{}, hp: 99, maxHP: 99, act: activity.Medium}
}

func (f *fakeContext) CurrentTick() int64        { return f.tick }
func (f *fakeContext) IsIdle() bool              { return f.idle }
func (f *fakeContext) ItemCount(item string) int { return f.items[item] }
func (f *fakeContext) Hitpoints() (int, int)     { return f.hp, f.maxHP }
func (f *fakeContext) Activity() activity.Type   { return f.act }
func (f *fakeContext) Queue(t Task, p Priority)  { f.queued = append(f.queued, t) }

func (f *fakeContext) Send(cmd Command) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.rejects != "" && cmd.Action == f.rejects {
		return errBoom
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeContext) advance() { f.tick++ }

// scriptedHumanizer returns one queued result per check, then None.
type scriptedHumanizer struct {
	preClick []humanize.Result
	postWalk []humanize.Result
	bank     []humanize.Result
}

func pop(rs *[]humanize.Result) humanize.Result {
	if len(*rs) == 0 {
		return humanize.None
	}
	r := (*rs)[0]
	*rs = (*rs)[1:]
	return r
}

func (s *scriptedHumanizer) CheckPreClick() humanize.Result { return pop(&s.preClick) }
func (s *scriptedHumanizer) CheckPostWalk() humanize.Result { return pop(&s.postWalk) }
func (s *scriptedHumanizer) CheckBank() humanize.Result     { return pop(&s.bank) }

var errBoom = errors.New("boom")

// stepTask completes after n ticks, or fails on the last tick when fail is set.
func stepTask(name string, n int, fail bool) *Func {
	ticks := 0
	return NewFunc(name, PriorityNormal, func(Context) (bool, error) {
		ticks++
		if ticks < n {
			return false, nil
		}
		if fail {
			return false, errBoom
		}
		return true, nil
	})
}
