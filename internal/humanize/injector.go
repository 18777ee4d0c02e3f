// Package humanize injects bounded, anti-clustered inefficiencies into the
// agent's actions and tracks fatigue and action pacing.
package humanize

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxProbability caps every adjusted trigger probability, whatever the fatigue.
const MaxProbability = 0.3

// FatigueSignal reports the agent's fatigue in [0, 1].
type FatigueSignal interface {
	FatigueLevel() float64
}

// Settings holds per-kind base probabilities and anti-clustering intervals.
type Settings struct {
	BacktrackProbability  float64
	BacktrackInterval     time.Duration
	RedundantProbability  float64
	RedundantInterval     time.Duration
	HesitationProbability float64
	HesitationInterval    time.Duration
	CancelProbability     float64
	CancelInterval        time.Duration
}

// DefaultSettings returns the stock tuning.
func DefaultSettings() Settings {
	return Settings{
		BacktrackProbability:  0.02,
		BacktrackInterval:     30 * time.Second,
		RedundantProbability:  0.03,
		RedundantInterval:     20 * time.Second,
		HesitationProbability: 0.05,
		HesitationInterval:    5 * time.Second,
		CancelProbability:     0.01,
		CancelInterval:        60 * time.Second,
	}
}

// Magnitude ranges, closed.
const (
	minBacktrackTiles   = 1
	maxBacktrackTiles   = 3
	minRedundantRepeats = 1
	maxRedundantRepeats = 2
	minHesitationMs     = 500
	maxHesitationMs     = 1500
	minCancelDelayMs    = 200
	maxCancelDelayMs    = 800
)

type tracker struct {
	base     float64
	interval time.Duration

	lastTriggered atomic.Int64 // unix nanos, 0 when never
	count         atomic.Int64
}

// Counts is a snapshot of the per-kind occurrence counters.
type Counts struct {
	Backtrack       int64
	RedundantAction int64
	Hesitation      int64
	ActionCancel    int64
}

// Total returns the sum of all counters.
func (c Counts) Total() int64 {
	return c.Backtrack + c.RedundantAction + c.Hesitation + c.ActionCancel
}

// Injector decides when to perturb an action. Each kind is independently
// gated by its own interval and scaled by fatigue.
type Injector struct {
	rng     Random
	fatigue FatigueSignal
	now     func() time.Time
	enabled atomic.Bool

	backtrack  tracker
	redundant  tracker
	hesitation tracker
	cancel     tracker
}

// Option configures an Injector.
type Option func(*Injector)

// WithFatigue couples probabilities and hesitation delays to a fatigue signal.
func WithFatigue(f FatigueSignal) Option {
	return func(i *Injector) { i.fatigue = f }
}

// WithClock replaces the wall clock used for interval gating.
func WithClock(now func() time.Time) Option {
	return func(i *Injector) { i.now = now }
}

// NewInjector creates an enabled injector.
func NewInjector(s Settings, rng Random, opts ...Option) *Injector {
	i := &Injector{
		rng: rng,
		now: time.Now,
	}
	i.backtrack.base, i.backtrack.interval = s.BacktrackProbability, s.BacktrackInterval
	i.redundant.base, i.redundant.interval = s.RedundantProbability, s.RedundantInterval
	i.hesitation.base, i.hesitation.interval = s.HesitationProbability, s.HesitationInterval
	i.cancel.base, i.cancel.interval = s.CancelProbability, s.CancelInterval
	for _, opt := range opts {
		opt(i)
	}
	i.enabled.Store(true)
	return i
}

// SetEnabled toggles injection. Safe to call from any goroutine.
func (i *Injector) SetEnabled(enabled bool) {
	i.enabled.Store(enabled)
}

func (i *Injector) Enabled() bool {
	return i.enabled.Load()
}

func (i *Injector) ShouldBacktrack() bool {
	return i.roll(KindBacktrack, &i.backtrack)
}

func (i *Injector) ShouldRedundantAction() bool {
	return i.roll(KindRedundantAction, &i.redundant)
}

func (i *Injector) ShouldHesitate() bool {
	return i.roll(KindHesitation, &i.hesitation)
}

func (i *Injector) ShouldCancelAction() bool {
	return i.roll(KindActionCancel, &i.cancel)
}

// BacktrackDistance draws a tile distance. Callers gate with ShouldBacktrack.
func (i *Injector) BacktrackDistance() int {
	return i.rng.IntRange(minBacktrackTiles, maxBacktrackTiles)
}

// RedundantRepetitions draws an extra repetition count.
func (i *Injector) RedundantRepetitions() int {
	return i.rng.IntRange(minRedundantRepeats, maxRedundantRepeats)
}

// HesitationDelay draws a pause, stretched up to 1.5x by fatigue.
func (i *Injector) HesitationDelay() time.Duration {
	ms := float64(i.rng.Int64Range(minHesitationMs, maxHesitationMs))
	if i.fatigue != nil {
		ms *= 1 + i.fatigueLevel()*0.5
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// ActionCancelDelay draws the pause between cancelling and redoing an action.
func (i *Injector) ActionCancelDelay() time.Duration {
	return time.Duration(i.rng.Int64Range(minCancelDelayMs, maxCancelDelayMs)) * time.Millisecond
}

// CheckPreClick returns at most one of hesitation or action cancel.
func (i *Injector) CheckPreClick() Result {
	if !i.Enabled() {
		return None
	}
	if i.ShouldHesitate() {
		return Result{Kind: KindHesitation, Delay: i.HesitationDelay()}
	}
	if i.ShouldCancelAction() {
		return Result{Kind: KindActionCancel, Delay: i.ActionCancelDelay()}
	}
	return None
}

// CheckPostWalk returns a backtrack or None.
func (i *Injector) CheckPostWalk() Result {
	if !i.Enabled() {
		return None
	}
	if i.ShouldBacktrack() {
		return Result{Kind: KindBacktrack, Amount: i.BacktrackDistance()}
	}
	return None
}

// CheckBank returns a redundant action or None.
func (i *Injector) CheckBank() Result {
	if !i.Enabled() {
		return None
	}
	if i.ShouldRedundantAction() {
		return Result{Kind: KindRedundantAction, Amount: i.RedundantRepetitions()}
	}
	return None
}

// AdjustedProbability applies fatigue scaling and the hard ceiling.
func (i *Injector) AdjustedProbability(base float64) float64 {
	return math.Min(base*(1+i.fatigueLevel()), MaxProbability)
}

// Counts returns the current counters.
func (i *Injector) Counts() Counts {
	return Counts{
		Backtrack:       i.backtrack.count.Load(),
		RedundantAction: i.redundant.count.Load(),
		Hesitation:      i.hesitation.count.Load(),
		ActionCancel:    i.cancel.count.Load(),
	}
}

// ResetCounters zeroes every counter and last-triggered stamp. Used at
// session boundaries.
func (i *Injector) ResetCounters() {
	for _, t := range []*tracker{&i.backtrack, &i.redundant, &i.hesitation, &i.cancel} {
		t.count.Store(0)
		t.lastTriggered.Store(0)
	}
}

func (i *Injector) roll(kind Kind, t *tracker) bool {
	if !i.enabled.Load() {
		return false
	}

	now := i.now()
	last := t.lastTriggered.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < t.interval {
		return false
	}

	p := i.AdjustedProbability(t.base)
	if !i.rng.Chance(p) {
		return false
	}

	// Another caller fired inside the window since the load.
	if !t.lastTriggered.CompareAndSwap(last, now.UnixNano()) {
		return false
	}
	t.count.Add(1)
	log.Debug().Str("kind", string(kind)).Float64("p", p).Msg("Inefficiency triggered")
	return true
}

func (i *Injector) fatigueLevel() float64 {
	if i.fatigue == nil {
		return 0
	}
	return math.Max(0, math.Min(1, i.fatigue.FatigueLevel()))
}
