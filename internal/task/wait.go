package task

import "fmt"

// WaitFor completes once cond holds. It fails after timeoutTicks ticks
// during which the agent sat idle without the condition being met; busy
// ticks reset the counter.
type WaitFor struct {
	*Base
	cond         func(tc Context) bool
	timeoutTicks int
	idleTicks    int
}

// NewWaitFor creates a wait task with a bounded inactivity timeout.
func NewWaitFor(description string, priority Priority, timeoutTicks int, cond func(tc Context) bool) *WaitFor {
	return &WaitFor{
		Base:         NewBase(description, priority),
		cond:         cond,
		timeoutTicks: timeoutTicks,
	}
}

func (w *WaitFor) Tick(tc Context) State {
	if s := w.State(); s.IsTerminal() {
		return s
	}
	if w.State() == StatePending {
		if err := w.Start(); err != nil {
			return w.State()
		}
	}

	if w.cond(tc) {
		_ = w.Complete()
		return w.State()
	}

	if tc.IsIdle() {
		w.idleTicks++
	} else {
		w.idleTicks = 0
	}
	if w.timeoutTicks > 0 && w.idleTicks >= w.timeoutTicks {
		_ = w.Fail(fmt.Errorf("%s: %w after %d idle ticks", w.Description(), ErrTimeout, w.idleTicks))
	}
	return w.State()
}
