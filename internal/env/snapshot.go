package env

import (
	"sync"

	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/randomevent"
)

// Snapshot holds the latest observation. It is the read side of the task
// context.
type Snapshot struct {
	mu  sync.RWMutex
	obs Observation
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Update replaces the observation and returns the interactions that were
// not present in the previous one.
func (s *Snapshot) Update(obs Observation) []randomevent.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make(map[int64]bool, len(s.obs.Interactions))
	for _, in := range s.obs.Interactions {
		prev[in.InstanceID] = true
	}
	var fresh []randomevent.Interaction
	for _, in := range obs.Interactions {
		if !prev[in.InstanceID] {
			fresh = append(fresh, in)
		}
	}
	s.obs = obs
	return fresh
}

// Observation returns the latest observation.
func (s *Snapshot) Observation() Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs
}

func (s *Snapshot) CurrentTick() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs.Tick
}

func (s *Snapshot) IsIdle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs.Idle
}

func (s *Snapshot) ItemCount(item string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs.Inventory[item]
}

func (s *Snapshot) Hitpoints() (current, max int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs.Hitpoints, s.obs.MaxHitpoints
}

// Activity classifies what the agent is doing. An idle agent with no
// reported activity is Idle; a reported activity wins, so an idle agent
// in AFK combat stays AFK combat.
func (s *Snapshot) Activity() activity.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.obs.Idle && s.obs.Activity == "" {
		return activity.Idle
	}
	return activity.Parse(s.obs.Activity)
}

func (s *Snapshot) Progress(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.obs.Progress[key]
	return v, ok
}
