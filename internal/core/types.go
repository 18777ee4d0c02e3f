// Package core drives the pilot: one environment observation in, one tick
// of emergencies, tasks and quest steps out.
package core

import (
	"time"

	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/humanize"
	"github.com/xonecas/zoea-pilot/internal/quest"
)

// EventType identifies the type of event.
type EventType string

const (
	EventTick          EventType = "tick"
	EventTaskStarted   EventType = "task_started"
	EventTaskFinished  EventType = "task_finished"
	EventEmergency     EventType = "emergency"
	EventEmergencyDone EventType = "emergency_done"
	EventQuestChanged  EventType = "quest_changed"
	EventRandomEvent   EventType = "random_event"
	EventSession       EventType = "session"
	EventAdmin         EventType = "admin"
)

// Event represents something that happened during a tick.
type Event struct {
	Type      EventType
	Tick      int64
	Data      interface{}
	Timestamp time.Time
}

// TaskData contains data for task events.
type TaskData struct {
	ID          string
	Description string
	Priority    string
	State       string
	Error       string
}

// EmergencyData contains data for emergency events.
type EmergencyData struct {
	Condition string
	TaskID    string
	Response  string
	Outcome   string
}

// RandomEventData contains data for random event responses.
type RandomEventData struct {
	Source     string
	InstanceID int64
	TaskID     string
	Response   string
}

// SessionData contains data for session start/end events.
type SessionData struct {
	ID    string
	Ended bool
	Ticks int64
}

// AdminData describes an administrative change.
type AdminData struct {
	Control string
	Value   string
}

// Status is a point-in-time summary of the pilot.
type Status struct {
	Tick         int64
	SessionID    string
	Hitpoints    int
	MaxHitpoints int
	Activity     activity.Type

	ActiveTask     string
	ActivePriority string
	Pending        int
	CommandsSent   int64
	Throttled      int64

	Quest quest.Status

	EmergencySuppressed bool
	ActiveEmergency     string
	Conditions          int

	InjectorEnabled bool
	Inefficiencies  humanize.Counts
	Fatigue         float64

	// DroppedEvents counts bus deliveries lost to slow subscribers.
	DroppedEvents int64
}
