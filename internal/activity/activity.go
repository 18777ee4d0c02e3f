// Package activity classifies what the controlled agent is doing by intensity.
package activity

import "strings"

// Type is the intensity class of an activity.
type Type string

const (
	Critical  Type = "critical"
	High      Type = "high"
	Medium    Type = "medium"
	Low       Type = "low"
	AFKCombat Type = "afk_combat"
	Idle      Type = "idle"
)

type profile struct {
	fatigueMultiplier float64
	interruptible     bool
	description       string
}

var profiles = map[Type]profile{
	Critical:  {fatigueMultiplier: 1.5, interruptible: false, description: "Boss fights, high-risk PvM"},
	High:      {fatigueMultiplier: 1.2, interruptible: false, description: "Active combat, demanding skilling"},
	Medium:    {fatigueMultiplier: 1.0, interruptible: true, description: "Standard skilling and questing"},
	Low:       {fatigueMultiplier: 0.6, interruptible: true, description: "Repetitive low-attention skilling"},
	AFKCombat: {fatigueMultiplier: 0.5, interruptible: true, description: "AFK combat in safe areas"},
	Idle:      {fatigueMultiplier: 0.3, interruptible: true, description: "Banking, walking, idling"},
}

// All returns every activity type in descending intensity order.
func All() []Type {
	return []Type{Critical, High, Medium, Low, AFKCombat, Idle}
}

// Parse maps a name to a Type. Unknown names classify as Medium.
func Parse(name string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := profiles[t]; ok {
		return t
	}
	return Medium
}

// FatigueMultiplier scales how quickly fatigue accumulates during the activity.
func (t Type) FatigueMultiplier() float64 {
	if p, ok := profiles[t]; ok {
		return p.fatigueMultiplier
	}
	return profiles[Medium].fatigueMultiplier
}

// Interruptible reports whether a non-urgent task may preempt this activity.
func (t Type) Interruptible() bool {
	if p, ok := profiles[t]; ok {
		return p.interruptible
	}
	return true
}

// Description returns a human-readable summary.
func (t Type) Description() string {
	return profiles[t].description
}

func (t Type) IsCombat() bool {
	return t == Critical || t == High || t == AFKCombat
}

func (t Type) IsHighStakes() bool {
	return t == Critical || t == High
}

func (t Type) IsAFKStyle() bool {
	return t == Low || t == AFKCombat || t == Idle
}

func (t Type) String() string {
	return string(t)
}
