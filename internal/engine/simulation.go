// Simulation is the agent orchestrator: it ties needs, perception, the
// blackboard, behavior trees and the pathfinder into one update per tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/behavior"
	"github.com/talgya/mini-city/internal/blackboard"
	"github.com/talgya/mini-city/internal/bt"
	"github.com/talgya/mini-city/internal/entropy"
	"github.com/talgya/mini-city/internal/nav"
	"github.com/talgya/mini-city/internal/perception"
	"github.com/talgya/mini-city/internal/social"
	"github.com/talgya/mini-city/internal/tuning"
	"github.com/talgya/mini-city/internal/world"
)

var (
	ErrDuplicateAgent = errors.New("duplicate agent id")
	ErrUnknownAgent   = errors.New("unknown agent")
)

// snapRadius bounds the search for a walkable cell near an unwalkable goal.
const snapRadius = 3

// NPC is an agent plus the runtime state the orchestrator keeps for it.
type NPC struct {
	*agents.Agent
	Tree *bt.Instance

	route      route
	failures   map[world.Cell]uint64 // Goal cell -> tick its path failed
	threatened bool                  // A hostile was within flee range last tick
	bb         blackboard.Blackboard
	last       bt.Result
	intent     agents.Action
}

// route is the path the agent is currently following.
type route struct {
	goal      world.Cell // Requested destination
	waypoints []world.Cell
	next      int
	valid     bool
}

// Stats tracks aggregate counters.
type Stats struct {
	Population   int                `json:"population"`
	PathRequests uint64             `json:"path_requests"`
	PathFailures uint64             `json:"path_failures"`
	Interactions uint64             `json:"interactions"`
	Events       uint64             `json:"events"`
	States       map[string]int     `json:"states"`
	AvgNeeds     map[string]float64 `json:"avg_needs"`
}

// staged is a two-party intent waiting for interaction resolution.
type staged struct {
	actor, target agents.AgentID
	kind          agents.ActionKind
}

// Simulation holds the complete city state.
type Simulation struct {
	mu sync.RWMutex

	Map       *world.TileMap
	POIs      []world.POI
	Needs     *agents.NeedsModel
	Relations *social.Store
	Library   *behavior.Library
	Paths     *nav.Pathfinder
	Spawner   *agents.Spawner
	Sink      Sink

	cfg     tuning.Config
	npcs    []*NPC // Sorted by ID
	index   map[agents.AgentID]*NPC
	roster  map[agents.AgentID]*agents.Agent
	spatial *perception.Index
	facts   blackboard.Facts
	staged  []staged

	lastTick uint64
	seq      uint64
	stats    Stats
}

// NewSimulation wires a simulation over an existing map and POI set.
// sink may be nil.
func NewSimulation(cfg tuning.Config, m *world.TileMap, pois []world.POI, sink Sink) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lib, err := behavior.NewLibrary(cfg.BehaviorConfig())
	if err != nil {
		return nil, fmt.Errorf("behavior library: %w", err)
	}
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	s := &Simulation{
		Map:       m,
		POIs:      pois,
		Needs:     agents.NewNeedsModel(cfg.NeedSpecs()),
		Relations: social.NewStore(),
		Library:   lib,
		Paths:     nav.New(cfg.NavOptions()),
		Spawner:   agents.NewSpawner(entropy.New(cfg.Seed), cfg.Memory.MemoryConfig),
		Sink:      sink,
		cfg:       cfg,
		index:     make(map[agents.AgentID]*NPC),
		roster:    make(map[agents.AgentID]*agents.Agent),
		spatial:   perception.NewIndex(cfg.Perception.BucketSize),
	}
	s.facts = blackboard.Facts{
		Needs:            s.Needs,
		Relations:        s.Relations,
		Index:            s.spatial,
		Roster:           s.roster,
		POIs:             s.POIs,
		PerceptionRadius: cfg.Perception.Radius,
		InteractRadius:   cfg.Perception.InteractRadius,
		ArriveRadius:     cfg.Perception.ArriveRadius,
		HostileBelow:     cfg.Perception.HostileBelow,
		Router:           s,
	}
	return s, nil
}

// GenerateCity builds the map and POIs for cfg. The same config always
// yields the same city, so saved worlds store only the seed.
func GenerateCity(cfg tuning.Config) (*world.TileMap, []world.POI) {
	m := world.Generate(cfg.GenConfig())
	return m, world.PlacePOIs(m, cfg.Seed, cfg.POICounts(), 1)
}

// NewCity generates the map and POIs from cfg, then spawns the population.
func NewCity(cfg tuning.Config, sink Sink) (*Simulation, error) {
	m, pois := GenerateCity(cfg)
	s, err := NewSimulation(cfg, m, pois, sink)
	if err != nil {
		return nil, err
	}
	if err := s.Populate(cfg.Population.Count); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the tuning the simulation was built with.
func (s *Simulation) Config() tuning.Config { return s.cfg }

// Populate spawns count agents at the city's homes.
func (s *Simulation) Populate(count int) error {
	var homes, works []world.POI
	for _, p := range s.POIs {
		switch p.Kind {
		case world.POIHome:
			homes = append(homes, p)
		case world.POIWork:
			works = append(works, p)
		}
	}
	spawned, err := s.Spawner.SpawnPopulation(count, homes, works, s.lastTick)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	for _, a := range spawned {
		if err := s.AddAgent(a); err != nil {
			return err
		}
	}
	slog.Info("population spawned", "agents", humanize.Comma(int64(len(spawned))), "homes", len(homes), "workplaces", len(works))
	return nil
}

// AddAgent puts a into the roster with a fresh tree instance for its
// archetype.
func (s *Simulation) AddAgent(a *agents.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.add(a); err != nil {
		return err
	}
	s.emit(Event{Tick: s.lastTick, Kind: KindSpawn, Actor: a.ID, Detail: a.Archetype})
	return nil
}

func (s *Simulation) add(a *agents.Agent) error {
	if _, ok := s.index[a.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateAgent, a.ID)
	}
	tree, err := s.Library.Instance(a.Archetype)
	if err != nil {
		return fmt.Errorf("agent %d: %w", a.ID, err)
	}
	if a.Memory == nil {
		a.Memory = agents.NewMemoryStore(s.cfg.Memory.MemoryConfig)
	}
	n := &NPC{Agent: a, Tree: tree, failures: make(map[world.Cell]uint64)}
	pos := sort.Search(len(s.npcs), func(i int) bool { return s.npcs[i].ID >= a.ID })
	s.npcs = append(s.npcs, nil)
	copy(s.npcs[pos+1:], s.npcs[pos:])
	s.npcs[pos] = n
	s.index[a.ID] = n
	s.roster[a.ID] = a
	if a.ID >= s.Spawner.NextID() {
		s.Spawner.SetNextID(a.ID + 1)
	}
	return nil
}

// Remove takes id off the roster and forgets its relationships.
func (s *Simulation) Remove(id agents.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	n.Alive = false
	delete(s.index, id)
	delete(s.roster, id)
	for i, o := range s.npcs {
		if o.ID == id {
			s.npcs = append(s.npcs[:i], s.npcs[i+1:]...)
			break
		}
	}
	s.Relations.Forget(id)
	s.emit(Event{Tick: s.lastTick, Kind: KindDespawn, Actor: id})
	return nil
}

// Step runs one tick: a read phase where every agent decides against the
// same snapshot, then a write phase in ID order, then interaction
// resolution.
func (s *Simulation) Step(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick = tick
	s.facts.Tick = tick

	// Perception snapshot of last tick's positions.
	roster := make([]*agents.Agent, len(s.npcs))
	for i, n := range s.npcs {
		roster[i] = n.Agent
	}
	s.spatial.Build(roster, s.POIs)

	for _, n := range s.npcs {
		s.Needs.Update(n.Agent, 1)
		n.Memory.Decay(tick)
		blackboard.Build(&n.bb, n.Agent, &s.facts)
		n.last = n.Tree.Tick(&n.bb)
		n.intent = n.last.Intent()
	}

	s.staged = s.staged[:0]
	for _, n := range s.npcs {
		s.act(n, tick)
	}
	s.resolve(tick)
}

// act applies the agent's own intent: state label, movement and solo
// outcomes. Paired intents are staged for resolution.
func (s *Simulation) act(n *NPC, tick uint64) {
	act := n.intent
	n.State = act.Kind.State()
	n.StateDetail = act.Detail
	if act.Kind == agents.ActionWander && act.HasDest {
		n.State = agents.StateWandering
	}

	s.move(n, act)

	if ev, ok := agents.ApplySolo(n.Agent, act, s.Needs, s.cfg.Outcomes, n.bb.At, tick); ok {
		s.remember(n, ev, 0)
	}
	if act.Kind.Paired() && act.Other != 0 {
		s.staged = append(s.staged, staged{actor: n.ID, target: act.Other, kind: act.Kind})
	}

	// First sighting of a close hostile costs safety once.
	threatened := n.bb.Threat.Present && n.bb.Threat.Dist <= s.cfg.Behavior.FleeRadius
	if threatened && !n.threatened {
		s.Needs.Satisfy(n.Agent, agents.NeedSafety, -s.cfg.Outcomes.ThreatSafety)
		s.remember(n, agents.MemoryEvent{
			Tick:         tick,
			Kind:         agents.EventThreat,
			Participants: []agents.AgentID{n.ID, n.bb.Threat.ID},
			Magnitude:    float64(n.bb.Threat.Rel) / social.MaxScore,
		}, n.bb.Threat.ID)
	}
	n.threatened = threatened
}

// move advances the agent along its route when the intent targets the
// route's goal. Any other intent drops the route.
func (s *Simulation) move(n *NPC, act agents.Action) {
	r := &n.route
	if !act.HasDest || !r.valid || r.goal != act.Dest {
		r.valid = false
		return
	}
	budget := s.cfg.Movement.Speed
	for budget > 0 && r.next < len(r.waypoints) {
		wp := r.waypoints[r.next].Center()
		d := wp.Sub(n.Position)
		dist := d.Len()
		if dist > 0 {
			n.Heading = d.Heading()
		}
		if dist <= budget {
			n.Position = wp
			budget -= dist
			r.next++
			continue
		}
		n.Position = n.Position.Add(d.Scale(budget / dist))
		budget = 0
	}
	if r.next >= len(r.waypoints) {
		r.valid = false
	}
}

// Route implements blackboard.Router. It keeps an existing route to the
// same goal and otherwise searches a new one, remembering failures for
// the retry cooldown.
func (s *Simulation) Route(id agents.AgentID, from, to world.Cell) bool {
	n, ok := s.index[id]
	if !ok || s.Blocked(id, to) {
		return false
	}
	if n.route.valid && n.route.goal == to {
		return true
	}
	s.stats.PathRequests++

	goal, ok := s.Map.NearestWalkable(to, snapRadius)
	if !ok {
		s.pathFailed(n, to, nav.StatusBlocked)
		return false
	}
	res := s.Paths.FindPath(from, goal, s.Map)
	if !res.OK() {
		s.pathFailed(n, to, res.Status)
		return false
	}
	n.route = route{goal: to, waypoints: res.Waypoints, valid: true}
	return true
}

// Blocked implements blackboard.Router.
func (s *Simulation) Blocked(id agents.AgentID, to world.Cell) bool {
	n, ok := s.index[id]
	if !ok {
		return false
	}
	at, failed := n.failures[to]
	return failed && s.lastTick-at < s.cfg.Path.RetryCooldown
}

func (s *Simulation) pathFailed(n *NPC, to world.Cell, status nav.Status) {
	s.stats.PathFailures++
	for c, at := range n.failures {
		if s.lastTick-at >= s.cfg.Path.RetryCooldown {
			delete(n.failures, c)
		}
	}
	if s.cfg.Path.RetryCooldown > 0 {
		n.failures[to] = s.lastTick
	}
	n.route.valid = false
	slog.Debug("path failed", "agent", n.ID, "from", n.Cell(), "to", to, "status", status)
}

// SetTile changes one cell and drops every cached route and failure memo.
func (s *Simulation) SetTile(c world.Cell, t world.Tile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Map.Set(c, t)
	for _, n := range s.npcs {
		n.route.valid = false
		clear(n.failures)
	}
}

// remember records ev in n's memory and forwards it to the sink when
// significant.
func (s *Simulation) remember(n *NPC, ev agents.MemoryEvent, other agents.AgentID) {
	n.Memory.Record(ev)
	if significant(ev.Kind, ev.Magnitude, s.cfg.Memory.Significance) {
		s.emit(Event{
			Tick:      ev.Tick,
			Kind:      ev.Kind.String(),
			Actor:     n.ID,
			Target:    other,
			Magnitude: ev.Magnitude,
		})
	}
}

func (s *Simulation) emit(ev Event) {
	s.seq++
	ev.Seq = s.seq
	s.stats.Events++
	s.Sink.Emit(ev)
}

// TickHour flushes buffering sinks.
func (s *Simulation) TickHour(tick uint64) {
	if f, ok := s.Sink.(Flusher); ok {
		if err := f.Flush(); err != nil {
			slog.Warn("event sink flush failed", "tick", tick, "error", err)
		}
	}
}

// TickDay logs the daily report.
func (s *Simulation) TickDay(tick uint64) {
	st := s.Stats()
	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"alive", humanize.Comma(int64(st.Population)),
		"relationships", humanize.Comma(int64(s.relationCount())),
		"interactions", humanize.Comma(int64(st.Interactions)),
		"path_requests", humanize.Comma(int64(st.PathRequests)),
		"path_failures", humanize.Comma(int64(st.PathFailures)),
		"events", humanize.Comma(int64(st.Events)),
		"avg_hunger", fmt.Sprintf("%.3f", st.AvgNeeds["hunger"]),
		"avg_social", fmt.Sprintf("%.3f", st.AvgNeeds["social"]),
	)
}

func (s *Simulation) relationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Relations.Len()
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// Stats returns the counters plus current population aggregates.
func (s *Simulation) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.Population = len(s.npcs)
	st.States = make(map[string]int)
	st.AvgNeeds = make(map[string]float64)
	for _, n := range s.npcs {
		st.States[n.State.String()]++
		for _, k := range agents.AllNeeds {
			st.AvgNeeds[k.String()] += n.Needs.Get(k)
		}
	}
	if len(s.npcs) > 0 {
		for k := range st.AvgNeeds {
			st.AvgNeeds[k] /= float64(len(s.npcs))
		}
	}
	return st
}
