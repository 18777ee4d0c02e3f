// Package emergency detects situations that must preempt normal automation
// and produces the urgent task that responds to them.
package emergency

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// Handler evaluates registered conditions once per tick. At most one
// emergency is active at a time. Registration and the administrative
// controls are safe to call concurrently with CheckEmergencies.
type Handler struct {
	writeMu    sync.Mutex // serializes registry writers
	conditions atomic.Pointer[[]Condition]

	cooldowns  sync.Map // condition id -> unix nanos
	active     atomic.Pointer[string]
	suppressed atomic.Bool

	now func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces the wall clock used for cooldowns.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a handler with no conditions.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{now: time.Now}
	empty := []Condition{}
	h.conditions.Store(&empty)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterCondition appends c. The same condition may be registered twice.
func (h *Handler) RegisterCondition(c Condition) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	cur := *h.conditions.Load()
	next := make([]Condition, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, c)
	h.conditions.Store(&next)
}

// UnregisterCondition removes every registration of c.
func (h *Handler) UnregisterCondition(c Condition) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	cur := *h.conditions.Load()
	next := make([]Condition, 0, len(cur))
	for _, existing := range cur {
		if existing != c {
			next = append(next, existing)
		}
	}
	h.conditions.Store(&next)
}

// ClearConditions removes all conditions.
func (h *Handler) ClearConditions() {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	empty := []Condition{}
	h.conditions.Store(&empty)
}

// Conditions returns the registered conditions in order.
func (h *Handler) Conditions() []Condition {
	cur := *h.conditions.Load()
	out := make([]Condition, len(cur))
	copy(out, cur)
	return out
}

// CheckEmergencies returns the response task of the first condition that
// triggers, or nil. A triggered condition goes on cooldown and becomes the
// active emergency even when it has no response, in which case evaluation
// continues with the next condition.
func (h *Handler) CheckEmergencies(tc task.Context) task.Task {
	if h.suppressed.Load() {
		return nil
	}

	for _, c := range *h.conditions.Load() {
		id := c.ID()
		now := h.now()
		if h.coolingDown(id, now) {
			continue
		}
		if active := h.active.Load(); active != nil && *active == id {
			continue
		}

		triggered, err := evaluate(c, tc)
		if err != nil {
			log.Warn().Err(err).Str("condition", id).Msg("Emergency condition evaluation failed")
			continue
		}
		if !triggered {
			continue
		}

		h.cooldowns.Store(id, now.Add(c.Cooldown()).UnixNano())
		h.active.Store(&id)

		response := c.CreateResponseTask(tc)
		if response == nil {
			log.Warn().Str("condition", id).Msg("Emergency triggered without a response task")
			continue
		}
		log.Info().
			Str("condition", id).
			Str("task", response.ID()).
			Str("response", response.Description()).
			Msg("Emergency triggered")
		return response
	}
	return nil
}

// EmergencyResolved clears the active emergency and the cooldown of id, so
// the condition can fire again as soon as it recurs.
func (h *Handler) EmergencyResolved(id string) {
	h.releaseActive(id)
	h.cooldowns.Delete(id)
	log.Debug().Str("condition", id).Msg("Emergency resolved")
}

// Release clears the active emergency if it is id. The cooldown is kept.
func (h *Handler) Release(id string) {
	h.releaseActive(id)
}

func (h *Handler) releaseActive(id string) {
	cur := h.active.Load()
	if cur != nil && *cur == id {
		h.active.CompareAndSwap(cur, nil)
	}
}

// ActiveEmergency returns the id of the active emergency, or "".
func (h *Handler) ActiveEmergency() string {
	if cur := h.active.Load(); cur != nil {
		return *cur
	}
	return ""
}

// ClearCooldown lets id fire again immediately.
func (h *Handler) ClearCooldown(id string) {
	h.cooldowns.Delete(id)
}

// ClearAllCooldowns lets every condition fire again immediately.
func (h *Handler) ClearAllCooldowns() {
	h.cooldowns.Range(func(k, _ any) bool {
		h.cooldowns.Delete(k)
		return true
	})
}

// CooldownRemaining returns how long id stays on cooldown.
func (h *Handler) CooldownRemaining(id string) time.Duration {
	v, ok := h.cooldowns.Load(id)
	if !ok {
		return 0
	}
	if d := time.Duration(v.(int64) - h.now().UnixNano()); d > 0 {
		return d
	}
	return 0
}

// SetSuppressed gates CheckEmergencies without touching cooldowns or the
// active emergency.
func (h *Handler) SetSuppressed(suppressed bool) {
	if h.suppressed.Swap(suppressed) != suppressed {
		log.Info().Bool("suppressed", suppressed).Msg("Emergency handling toggled")
	}
}

// Suppressed reports whether emergency handling is gated off.
func (h *Handler) Suppressed() bool {
	return h.suppressed.Load()
}

// Reset clears cooldowns and the active emergency. Conditions are kept.
func (h *Handler) Reset() {
	h.ClearAllCooldowns()
	h.active.Store(nil)
}

func (h *Handler) coolingDown(id string, now time.Time) bool {
	v, ok := h.cooldowns.Load(id)
	return ok && now.UnixNano() < v.(int64)
}

func evaluate(c Condition, tc task.Context) (triggered bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			triggered, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return c.IsTriggered(tc)
}
