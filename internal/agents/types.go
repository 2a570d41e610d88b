// Package agents provides the agent data model: needs, personality,
// inventory, memory and the solo action outcomes that mutate them.
package agents

import (
	"fmt"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/world"
)

// AgentID is a unique identifier for an agent. Agents refer to each other
// only by ID, never by pointer.
type AgentID uint64

// State is the orchestrator state an agent is in, driven by the action its
// behavior tree emitted this tick.
type State uint8

const (
	StateIdle State = iota
	StateWandering
	StateSeeking
	StateInteracting
	StateFleeing
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWandering:
		return "wandering"
	case StateSeeking:
		return "seeking"
	case StateInteracting:
		return "interacting"
	case StateFleeing:
		return "fleeing"
	default:
		return "unknown"
	}
}

// Agent is the core entity representing a person in the city.
type Agent struct {
	ID        AgentID `json:"id"`
	Name      string  `json:"name"`
	Archetype string  `json:"archetype"`

	// Pose
	Position world.Vec2 `json:"position"`
	Heading  float64    `json:"heading"` // Radians from +X

	// POI IDs of home and workplace.
	HomeID uint64 `json:"home_id"`
	WorkID uint64 `json:"work_id"`

	Needs       NeedsVector       `json:"needs"`
	Personality Personality       `json:"personality"`
	Inventory   economy.Inventory `json:"inventory"`

	// Memory is the agent's bounded event log.
	Memory *MemoryStore `json:"-"`

	// Orchestrator state, written only by the agent's own update step.
	State       State  `json:"state"`
	StateDetail string `json:"state_detail,omitempty"`

	BornTick uint64 `json:"born_tick"`
	Alive    bool   `json:"alive"`
}

// Cell returns the grid cell the agent stands on.
func (a *Agent) Cell() world.Cell {
	return world.CellOf(a.Position)
}

// StateLabel returns the renderer-facing label, e.g. "seeking(food 3)".
func (a *Agent) StateLabel() string {
	if a.StateDetail == "" {
		return a.State.String()
	}
	return fmt.Sprintf("%s(%s)", a.State, a.StateDetail)
}

// Pose is the per-tick renderer view of an agent.
type Pose struct {
	ID       AgentID    `json:"id"`
	Position world.Vec2 `json:"position"`
	Heading  float64    `json:"heading"`
	State    string     `json:"state"`
}

// Pose returns the renderer view of the agent.
func (a *Agent) Pose() Pose {
	return Pose{
		ID:       a.ID,
		Position: a.Position,
		Heading:  a.Heading,
		State:    a.StateLabel(),
	}
}
