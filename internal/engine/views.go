package engine

import (
	"fmt"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/bt"
	"github.com/talgya/mini-city/internal/social"
)

// AgentDetail is the inspector view of one agent.
type AgentDetail struct {
	Agent         agents.Agent         `json:"agent"`
	Label         string               `json:"label"`
	Urgency       map[string]float64   `json:"urgency"`
	Memories      []agents.MemoryEvent `json:"memories"`
	Relationships []social.Entry       `json:"relationships"`
	Leaf          string               `json:"leaf,omitempty"`
	Ranking       []bt.Option          `json:"ranking,omitempty"`
	Intent        agents.Action        `json:"intent"`
}

// Poses returns every agent's renderer view in ID order.
func (s *Simulation) Poses() []agents.Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agents.Pose, len(s.npcs))
	for i, n := range s.npcs {
		out[i] = n.Pose()
	}
	return out
}

// Agent returns the inspector view of id. Memory reads prune, so this
// takes the write lock.
func (s *Simulation) Agent(id agents.AgentID, memories int) (AgentDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.index[id]
	if !ok {
		return AgentDetail{}, false
	}
	d := AgentDetail{
		Agent:         *n.Agent,
		Label:         n.StateLabel(),
		Urgency:       make(map[string]float64, agents.NumNeeds),
		Memories:      n.Memory.Recent(memories),
		Relationships: s.Relations.Of(id),
		Leaf:          n.last.Leaf,
		Ranking:       append([]bt.Option(nil), n.last.Ranking...),
		Intent:        n.intent,
	}
	for _, k := range agents.AllNeeds {
		d.Urgency[k.String()] = s.Needs.Urgency(n.Needs, k)
	}
	return d, true
}

// Snapshot is a saveable copy of the simulation's mutable state.
type Snapshot struct {
	Tick      uint64
	Seed      int64
	NextID    agents.AgentID
	EventSeq  uint64
	Agents    []agents.Agent
	Memories  map[agents.AgentID][]agents.MemoryEvent
	Relations []social.Entry
}

// Snapshot copies the current state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Tick:      s.lastTick,
		Seed:      s.cfg.Seed,
		NextID:    s.Spawner.NextID(),
		EventSeq:  s.seq,
		Agents:    make([]agents.Agent, len(s.npcs)),
		Memories:  make(map[agents.AgentID][]agents.MemoryEvent, len(s.npcs)),
		Relations: s.Relations.Entries(),
	}
	for i, n := range s.npcs {
		snap.Agents[i] = *n.Agent
		snap.Agents[i].Memory = nil
		snap.Memories[n.ID] = n.Memory.Events()
	}
	return snap
}

// Restore replaces the roster and relationships with a snapshot. Routes,
// tree state and failure memos start fresh.
func (s *Simulation) Restore(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.npcs = s.npcs[:0]
	clear(s.index)
	clear(s.roster)
	s.Relations = social.NewStore()
	s.facts.Relations = s.Relations
	s.lastTick = snap.Tick
	s.seq = snap.EventSeq

	for i := range snap.Agents {
		a := snap.Agents[i]
		a.Memory = agents.NewMemoryStore(s.cfg.Memory.MemoryConfig)
		a.Memory.Restore(snap.Memories[a.ID], snap.Tick)
		if err := s.add(&a); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	for _, e := range snap.Relations {
		s.Relations.Set(e.From, e.To, e.Score)
	}
	if snap.NextID > s.Spawner.NextID() {
		s.Spawner.SetNextID(snap.NextID)
	}
	return nil
}
