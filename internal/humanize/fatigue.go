package humanize

import (
	"math"
	"sync"

	"github.com/xonecas/zoea-pilot/internal/activity"
)

// Fatigue models operator tiredness. It rises with activity intensity and
// recovers during AFK-style ticks (low, AFK combat, idle).
type Fatigue struct {
	mu       sync.Mutex
	level    float64 // 0.0 rested .. 1.0 exhausted
	increase float64
	recovery float64
}

// NewFatigue creates a rested tracker with per-tick rates.
func NewFatigue(increasePerTick, recoveryPerTick float64) *Fatigue {
	return &Fatigue{increase: increasePerTick, recovery: recoveryPerTick}
}

// FatigueLevel implements FatigueSignal.
func (f *Fatigue) FatigueLevel() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Update advances the model by one tick of the given activity.
func (f *Fatigue) Update(a activity.Type) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a.IsAFKStyle() {
		f.level = math.Max(0, f.level-f.recovery)
		return
	}
	f.level = math.Min(1, f.level+f.increase*a.FatigueMultiplier())
}

// Set overrides the level, clamped to [0, 1].
func (f *Fatigue) Set(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = math.Max(0, math.Min(1, level))
}

// Reset returns to fully rested.
func (f *Fatigue) Reset() {
	f.Set(0)
}
