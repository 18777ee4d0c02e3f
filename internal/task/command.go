package task

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/constants"
	"github.com/xonecas/zoea-pilot/internal/humanize"
)

// Humanizer is consulted around specific action classes.
type Humanizer interface {
	CheckPreClick() humanize.Result
	CheckPostWalk() humanize.Result
	CheckBank() humanize.Result
}

type commandPhase int

const (
	phasePrepare commandPhase = iota
	phaseHesitate
	phaseRedo
	phaseSend
	phaseAwaitIdle
)

// CommandTask sends one environment command and completes when the agent
// is idle again.
type CommandTask struct {
	*Base

	cmd          Command
	timeoutTicks int
	tickDuration time.Duration
	human        Humanizer
	precondition func(tc Context) bool

	phase       commandPhase
	outgoing    Command
	waitUntil   int64
	sentAt      int64
	repeats     int
	backtracked bool
}

// CommandOption configures a CommandTask.
type CommandOption func(*CommandTask)

// WithHumanizer lets the task perturb itself with injected inefficiencies.
func WithHumanizer(h Humanizer) CommandOption {
	return func(c *CommandTask) { c.human = h }
}

// WithTimeout sets how many ticks to wait for the agent to go idle.
func WithTimeout(ticks int) CommandOption {
	return func(c *CommandTask) {
		if ticks > 0 {
			c.timeoutTicks = ticks
		}
	}
}

// WithPrecondition sets the CanExecute predicate.
func WithPrecondition(pred func(tc Context) bool) CommandOption {
	return func(c *CommandTask) { c.precondition = pred }
}

// WithActivity classifies the task.
func WithActivity(a activity.Type) CommandOption {
	return func(c *CommandTask) { c.SetActivity(a) }
}

// NewCommand creates a command task.
func NewCommand(description string, priority Priority, cmd Command, opts ...CommandOption) *CommandTask {
	c := &CommandTask{
		Base:         NewBase(description, priority),
		cmd:          cmd,
		timeoutTicks: constants.DefaultCommandTimeoutTicks,
		tickDuration: constants.TickDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command returns the instruction this task sends.
func (c *CommandTask) Command() Command {
	return c.cmd
}

func (c *CommandTask) CanExecute(tc Context) bool {
	if c.precondition == nil {
		return true
	}
	return c.precondition(tc)
}

func (c *CommandTask) Tick(tc Context) State {
	if s := c.State(); s.IsTerminal() {
		return s
	}
	if c.State() == StatePending {
		if err := c.Start(); err != nil {
			return c.State()
		}
		c.phase = phasePrepare
	}

	now := tc.CurrentTick()
	switch c.phase {
	case phasePrepare:
		if c.prepare(tc, now) {
			return c.State()
		}
		c.send(tc, c.cmd, now)
	case phaseHesitate, phaseRedo:
		if now < c.waitUntil {
			return c.State()
		}
		c.send(tc, c.cmd, now)
	case phaseSend:
		c.send(tc, c.outgoing, now)
	case phaseAwaitIdle:
		c.awaitIdle(tc, now)
	}
	return c.State()
}

// prepare consults the humanizer. It returns true when the send is deferred.
func (c *CommandTask) prepare(tc Context, now int64) bool {
	c.phase = phaseSend
	if c.human == nil {
		return false
	}

	switch {
	case isClickAction(c.cmd.Action):
		r := c.human.CheckPreClick()
		switch r.Kind {
		case humanize.KindHesitation:
			c.phase = phaseHesitate
			c.waitUntil = now + c.ticksFor(r.Delay)
			return true
		case humanize.KindActionCancel:
			// Start the action, think better of it, redo it after a pause.
			if err := tc.Send(c.cmd); err == nil {
				if err := tc.Send(Command{Action: ActionCancel, Target: c.cmd.Target}); err != nil {
					log.Debug().Err(err).Str("task", c.ID()).Msg("Cancel command not sent")
				}
			}
			c.phase = phaseRedo
			c.waitUntil = now + c.ticksFor(r.Delay)
			return true
		}
	case isBankAction(c.cmd.Action):
		if r := c.human.CheckBank(); r.Kind == humanize.KindRedundantAction {
			c.repeats = r.Amount
		}
	}
	return false
}

func (c *CommandTask) send(tc Context, cmd Command, now int64) {
	c.outgoing = cmd
	if err := tc.Send(cmd); err != nil {
		if errors.Is(err, humanize.ErrThrottled) {
			c.phase = phaseSend
			return
		}
		_ = c.Fail(fmt.Errorf("send %s: %w", cmd.Action, err))
		return
	}
	c.sentAt = now
	c.phase = phaseAwaitIdle
}

func (c *CommandTask) awaitIdle(tc Context, now int64) {
	if now > c.sentAt && tc.IsIdle() {
		if c.repeats > 0 {
			c.repeats--
			c.send(tc, c.cmd, now)
			return
		}
		if c.cmd.Action == ActionWalk && c.human != nil && !c.backtracked {
			c.backtracked = true
			if r := c.human.CheckPostWalk(); r.Kind == humanize.KindBacktrack {
				log.Debug().Str("task", c.ID()).Int("tiles", r.Amount).Msg("Backtracking after walk")
				c.send(tc, Command{
					Action: ActionWalk,
					Target: c.cmd.Target,
					Args:   map[string]string{"backtrack": strconv.Itoa(r.Amount)},
				}, now)
				return
			}
		}
		_ = c.Complete()
		return
	}

	if now-c.sentAt >= int64(c.timeoutTicks) {
		_ = c.Fail(fmt.Errorf("%s: %w waiting for idle", c.cmd.Action, ErrTimeout))
	}
}

func (c *CommandTask) ticksFor(d time.Duration) int64 {
	if c.tickDuration <= 0 {
		return 1
	}
	n := int64((d + c.tickDuration - 1) / c.tickDuration)
	if n < 1 {
		n = 1
	}
	return n
}
