package env

import (
	"github.com/xonecas/zoea-pilot/internal/randomevent"
	"github.com/xonecas/zoea-pilot/internal/task"
)

// Message types on the wire.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeObs     = "OBS"
	TypeCmd     = "CMD"
)

type baseMsg struct {
	Type string `json:"type"`
}

// HelloMsg opens a session.
type HelloMsg struct {
	Type      string `json:"type"`
	AgentName string `json:"agent_name"`
}

// WelcomeMsg acknowledges HELLO.
type WelcomeMsg struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
	TickMs  int    `json:"tick_ms"`
}

// Observation is the world as seen by the agent at one tick.
type Observation struct {
	Type         string                    `json:"type"`
	Tick         int64                     `json:"tick"`
	Hitpoints    int                       `json:"hitpoints"`
	MaxHitpoints int                       `json:"max_hitpoints"`
	Idle         bool                      `json:"idle"`
	Activity     string                    `json:"activity"`
	Inventory    map[string]int            `json:"inventory"`
	Progress     map[string]int            `json:"progress"`
	Interactions []randomevent.Interaction `json:"interactions"`
}

// CmdMsg carries one command for the agent.
type CmdMsg struct {
	Type    string       `json:"type"`
	Tick    int64        `json:"tick"`
	Command task.Command `json:"command"`
}
