package humanize

import (
	"math"
	"sync"
	"testing"
	"time"
)

// scriptedRandom returns fixed answers and records every probability drawn against.
type scriptedRandom struct {
	chance bool
	seen   []float64
	intVal int
	i64Val int64
}

func (s *scriptedRandom) Chance(p float64) bool {
	s.seen = append(s.seen, p)
	return s.chance
}

func (s *scriptedRandom) IntRange(min, max int) int {
	if s.intVal < min {
		return min
	}
	if s.intVal > max {
		return max
	}
	return s.intVal
}

func (s *scriptedRandom) Int64Range(min, max int64) int64 {
	if s.i64Val < min {
		return min
	}
	if s.i64Val > max {
		return max
	}
	return s.i64Val
}

// alwaysRandom fires every draw and is safe for concurrent use.
type alwaysRandom struct{}

func (alwaysRandom) Chance(float64) bool           { return true }
func (alwaysRandom) IntRange(min, _ int) int       { return min }
func (alwaysRandom) Int64Range(min, _ int64) int64 { return min }

type fixedFatigue float64

func (f fixedFatigue) FatigueLevel() float64 { return float64(f) }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestInjector(rng Random, opts ...Option) (*Injector, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	opts = append(opts, WithClock(clock.Now))
	return NewInjector(DefaultSettings(), rng, opts...), clock
}

func TestInjector_AntiClustering(t *testing.T) {
	kinds := []struct {
		name     string
		should   func(*Injector) bool
		interval time.Duration
	}{
		{"backtrack", (*Injector).ShouldBacktrack, DefaultSettings().BacktrackInterval},
		{"redundant", (*Injector).ShouldRedundantAction, DefaultSettings().RedundantInterval},
		{"hesitation", (*Injector).ShouldHesitate, DefaultSettings().HesitationInterval},
		{"cancel", (*Injector).ShouldCancelAction, DefaultSettings().CancelInterval},
	}

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			rng := &scriptedRandom{chance: true}
			inj, clock := newTestInjector(rng)

			if !k.should(inj) {
				t.Fatal("expected first call to trigger")
			}
			clock.Advance(k.interval - time.Millisecond)
			if k.should(inj) {
				t.Error("expected call inside interval to be blocked")
			}
			clock.Advance(time.Millisecond)
			if !k.should(inj) {
				t.Error("expected call at interval boundary to trigger")
			}
		})
	}
}

func TestInjector_ProbabilityCap(t *testing.T) {
	for _, level := range []float64{0, 0.5, 1, 7} {
		rng := &scriptedRandom{chance: false}
		inj := NewInjector(Settings{
			BacktrackProbability:  0.25,
			RedundantProbability:  0.9,
			HesitationProbability: 0.2,
			CancelProbability:     0.01,
		}, rng, WithFatigue(fixedFatigue(level)))

		inj.ShouldBacktrack()
		inj.ShouldRedundantAction()
		inj.ShouldHesitate()
		inj.ShouldCancelAction()

		if len(rng.seen) != 4 {
			t.Fatalf("fatigue %v: expected 4 draws, got %d", level, len(rng.seen))
		}
		for _, p := range rng.seen {
			if p > MaxProbability {
				t.Errorf("fatigue %v: drew against p=%v above cap", level, p)
			}
		}
	}
}

func TestInjector_FatigueScaling(t *testing.T) {
	rng := &scriptedRandom{}
	inj := NewInjector(DefaultSettings(), rng, WithFatigue(fixedFatigue(0.5)))

	got := inj.AdjustedProbability(0.05)
	if math.Abs(got-0.075) > 1e-9 {
		t.Errorf("expected 0.075, got %v", got)
	}

	noFatigue := NewInjector(DefaultSettings(), rng)
	if got := noFatigue.AdjustedProbability(0.05); got != 0.05 {
		t.Errorf("expected unadjusted 0.05 without signal, got %v", got)
	}
}

func TestInjector_DisabledDoesNotMutate(t *testing.T) {
	rng := &scriptedRandom{chance: true}
	inj, _ := newTestInjector(rng)
	inj.SetEnabled(false)

	if inj.ShouldBacktrack() || inj.ShouldRedundantAction() || inj.ShouldHesitate() || inj.ShouldCancelAction() {
		t.Error("disabled injector triggered")
	}
	for _, r := range []Result{inj.CheckPreClick(), inj.CheckPostWalk(), inj.CheckBank()} {
		if !r.IsNone() {
			t.Errorf("expected None, got %s", r)
		}
	}
	if len(rng.seen) != 0 {
		t.Errorf("expected no random draws, got %d", len(rng.seen))
	}
	if total := inj.Counts().Total(); total != 0 {
		t.Errorf("expected zero counters, got %d", total)
	}

	// Re-enabling must not be blocked by any stamp written while disabled.
	inj.SetEnabled(true)
	if !inj.ShouldHesitate() {
		t.Error("expected trigger after re-enable")
	}
}

func TestInjector_ResetCounters(t *testing.T) {
	rng := &scriptedRandom{chance: true}
	inj, _ := newTestInjector(rng)

	inj.ShouldBacktrack()
	inj.ShouldRedundantAction()
	inj.ShouldHesitate()
	inj.ShouldCancelAction()

	c := inj.Counts()
	if c.Backtrack != 1 || c.RedundantAction != 1 || c.Hesitation != 1 || c.ActionCancel != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
	if c.Total() != 4 {
		t.Errorf("expected total 4, got %d", c.Total())
	}

	inj.ResetCounters()
	if total := inj.Counts().Total(); total != 0 {
		t.Errorf("expected zero after reset, got %d", total)
	}

	// No clock advance: stale cooldowns would block these.
	if !inj.ShouldBacktrack() || !inj.ShouldRedundantAction() || !inj.ShouldHesitate() || !inj.ShouldCancelAction() {
		t.Error("expected every kind to trigger right after reset")
	}
}

func TestInjector_ConcurrentCallersShareWindow(t *testing.T) {
	inj, _ := newTestInjector(alwaysRandom{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	fired := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if inj.ShouldHesitate() {
					mu.Lock()
					fired++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if fired != 1 {
		t.Errorf("expected one trigger inside the window, got %d", fired)
	}
	if c := inj.Counts().Hesitation; c != 1 {
		t.Errorf("expected hesitation count 1, got %d", c)
	}
}

func TestInjector_CheckPreClickExclusive(t *testing.T) {
	rng := &scriptedRandom{chance: true, i64Val: 900}
	inj, clock := newTestInjector(rng)

	r := inj.CheckPreClick()
	if r.Kind != KindHesitation {
		t.Fatalf("expected hesitation first, got %s", r)
	}
	if r.Delay != 900*time.Millisecond {
		t.Errorf("expected 900ms delay, got %s", r.Delay)
	}
	if c := inj.Counts(); c.ActionCancel != 0 {
		t.Error("action cancel must not be evaluated once hesitation fires")
	}

	// Hesitation now cooling down, so cancel gets its turn.
	clock.Advance(time.Second)
	r = inj.CheckPreClick()
	if r.Kind != KindActionCancel {
		t.Errorf("expected action cancel, got %s", r)
	}
	if r.Delay != 800*time.Millisecond {
		t.Errorf("expected delay clamped to 800ms, got %s", r.Delay)
	}
}

func TestInjector_CompositeChecks(t *testing.T) {
	rng := &scriptedRandom{chance: true, intVal: 2}
	inj, _ := newTestInjector(rng)

	if r := inj.CheckPostWalk(); r.Kind != KindBacktrack || r.Amount != 2 {
		t.Errorf("expected backtrack(2), got %s", r)
	}
	if r := inj.CheckBank(); r.Kind != KindRedundantAction || r.Amount != 2 {
		t.Errorf("expected redundant_action(2), got %s", r)
	}

	rng.chance = false
	inj.ResetCounters()
	if r := inj.CheckPostWalk(); !r.IsNone() {
		t.Errorf("expected None, got %s", r)
	}
}

func TestInjector_HesitationDelayFatigue(t *testing.T) {
	rng := &scriptedRandom{i64Val: 1000}

	rested := NewInjector(DefaultSettings(), rng)
	if d := rested.HesitationDelay(); d != time.Second {
		t.Errorf("expected 1s without fatigue, got %s", d)
	}

	tired := NewInjector(DefaultSettings(), rng, WithFatigue(fixedFatigue(1)))
	if d := tired.HesitationDelay(); d != 1500*time.Millisecond {
		t.Errorf("expected 1.5s at full fatigue, got %s", d)
	}
}

func TestInjector_MagnitudeRanges(t *testing.T) {
	inj := NewInjector(DefaultSettings(), NewRandom(7))
	for i := 0; i < 1000; i++ {
		if d := inj.BacktrackDistance(); d < 1 || d > 3 {
			t.Fatalf("backtrack distance %d out of range", d)
		}
		if n := inj.RedundantRepetitions(); n < 1 || n > 2 {
			t.Fatalf("repetitions %d out of range", n)
		}
		if d := inj.HesitationDelay(); d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("hesitation %s out of range", d)
		}
		if d := inj.ActionCancelDelay(); d < 200*time.Millisecond || d > 800*time.Millisecond {
			t.Fatalf("cancel delay %s out of range", d)
		}
	}
}

// TestInjector_HesitationRate checks the observed trigger rate against a
// binomial model with n=100000, p=0.05.
func TestInjector_HesitationRate(t *testing.T) {
	const n = 100_000
	const p = 0.05

	inj, clock := newTestInjector(NewRandom(42), WithFatigue(fixedFatigue(0)))
	spacing := DefaultSettings().HesitationInterval + time.Second

	hits := 0
	for i := 0; i < n; i++ {
		if inj.ShouldHesitate() {
			hits++
		}
		clock.Advance(spacing)
	}

	mean := n * p
	sd := math.Sqrt(n * p * (1 - p))
	if math.Abs(float64(hits)-mean) > 5*sd {
		t.Errorf("observed %d hits, expected %.0f ± %.0f", hits, mean, 5*sd)
	}
	if got := inj.Counts().Hesitation; got != int64(hits) {
		t.Errorf("counter %d does not match hits %d", got, hits)
	}
}
