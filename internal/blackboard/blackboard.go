// Package blackboard assembles the per-agent, per-tick snapshot that the
// behavior tree and utility scorer read. A blackboard is rebuilt every tick
// and never mutated by the tree.
package blackboard

import (
	"sort"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/perception"
	"github.com/talgya/mini-city/internal/social"
	"github.com/talgya/mini-city/internal/world"
)

// NumPOIKinds is the number of POI kinds tracked as destinations.
const NumPOIKinds = 4

// Router plans routes for movement actions. Route reports whether a path
// from -> to exists and makes it the agent's current route; Blocked reports
// whether a recent route to dest failed and is still cooling down.
type Router interface {
	Route(id agents.AgentID, from, to world.Cell) bool
	Blocked(id agents.AgentID, to world.Cell) bool
}

// Target is a known destination.
type Target struct {
	ID   uint64     `json:"id"`
	Cell world.Cell `json:"cell"`
	Dist float64    `json:"dist"`
	OK   bool       `json:"ok"`
}

// Other summarizes another agent as seen from Self.
type Other struct {
	ID        agents.AgentID `json:"id"`
	Pos       world.Vec2     `json:"pos"`
	Dist      float64        `json:"dist"`
	Rel       int            `json:"rel"`       // Self's disposition toward them
	Memory    float64        `json:"memory"`    // Signed decayed history with them
	HasFood   bool           `json:"has_food"`  // Visible from the outside
	HasWares  bool           `json:"has_wares"` // Visible from the outside
	Present   bool           `json:"present"`
	Archetype string         `json:"archetype,omitempty"`
}

// Blackboard is the read-only snapshot for one agent at one tick.
type Blackboard struct {
	Self      agents.AgentID
	Tick      uint64
	Archetype string
	Pos       world.Vec2
	Cell      world.Cell

	Needs       agents.NeedsVector
	Urgency     [agents.NumNeeds]float64
	Urgent      [agents.NumNeeds]bool
	Personality agents.Personality

	Money int64
	Food  int
	Wares int
	Gifts int

	// Nearby is everything perceived, ordered by distance.
	Nearby    []perception.Hit
	Neighbors int

	// Partner is the nearest agent within interaction range.
	Partner Other
	// Threat is the nearest hostile agent within perception range.
	Threat       Other
	MemoryThreat float64

	// Destinations indexed by world.POIKind. Home and Work use the agent's
	// anchors; Food and Park use the nearest known POI.
	Dest    [NumPOIKinds]Target
	At      agents.Place
	Blocked [NumPOIKinds]bool // A recent path to this destination failed

	// Router is the route service for movement leaves. May be nil.
	Router Router
}

// Facts are the world inputs a blackboard is built from.
type Facts struct {
	Tick      uint64
	Needs     *agents.NeedsModel
	Relations *social.Store
	Index     *perception.Index
	Roster    map[agents.AgentID]*agents.Agent
	POIs      []world.POI

	PerceptionRadius float64
	InteractRadius   float64
	ArriveRadius     float64
	HostileBelow     int // Relationship at or below this marks a threat

	Router Router
}

// Build assembles a's blackboard from f into bb, reusing its storage.
func Build(bb *Blackboard, a *agents.Agent, f *Facts) {
	nearby := bb.Nearby[:0]
	*bb = Blackboard{
		Self:        a.ID,
		Tick:        f.Tick,
		Archetype:   a.Archetype,
		Pos:         a.Position,
		Cell:        a.Cell(),
		Needs:       a.Needs,
		Personality: a.Personality,
		Money:       a.Inventory.Money,
		Food:        a.Inventory.Count(economy.GoodFood),
		Wares:       a.Inventory.Count(economy.GoodWares),
		Gifts:       a.Inventory.Count(economy.GoodGifts),
		Router:      f.Router,
	}
	for _, n := range agents.AllNeeds {
		bb.Urgency[n] = f.Needs.Urgency(a.Needs, n)
		bb.Urgent[n] = f.Needs.Urgent(a.Needs, n)
	}
	if a.Memory != nil {
		bb.MemoryThreat = a.Memory.Threat()
	}

	if f.Index != nil {
		bb.Nearby = append(nearby, f.Index.QueryAgent(a, f.PerceptionRadius)...)
	}
	for _, h := range bb.Nearby {
		if h.Kind != perception.KindAgent {
			continue
		}
		bb.Neighbors++
		id := agents.AgentID(h.ID)
		rel := f.Relations.Get(a.ID, id)
		if !bb.Partner.Present && h.Dist <= f.InteractRadius {
			bb.Partner = describe(a, h, rel, f)
		}
		if !bb.Threat.Present && rel <= f.HostileBelow {
			bb.Threat = describe(a, h, rel, f)
		}
	}

	for i := range f.POIs {
		p := &f.POIs[i]
		d := world.Dist(a.Position, p.Position())
		switch {
		case p.Kind == world.POIHome && p.ID == a.HomeID,
			p.Kind == world.POIWork && p.ID == a.WorkID:
			bb.Dest[p.Kind] = Target{ID: p.ID, Cell: p.Cell, Dist: d, OK: true}
		case p.Kind == world.POIFood || p.Kind == world.POIPark:
			cur := bb.Dest[p.Kind]
			if !cur.OK || d < cur.Dist || (d == cur.Dist && p.ID < cur.ID) {
				bb.Dest[p.Kind] = Target{ID: p.ID, Cell: p.Cell, Dist: d, OK: true}
			}
		}
	}
	for k := 0; k < NumPOIKinds; k++ {
		t := bb.Dest[k]
		if !t.OK {
			continue
		}
		if t.Dist <= f.ArriveRadius {
			switch world.POIKind(k) {
			case world.POIFood:
				bb.At.AtFood = true
			case world.POIWork:
				bb.At.AtWork = true
			case world.POIHome:
				bb.At.AtHome = true
			case world.POIPark:
				bb.At.AtPark = true
			}
		}
		if f.Router != nil {
			bb.Blocked[k] = f.Router.Blocked(a.ID, t.Cell)
		}
	}
}

func describe(a *agents.Agent, h perception.Hit, rel int, f *Facts) Other {
	id := agents.AgentID(h.ID)
	o := Other{ID: id, Pos: h.Pos, Dist: h.Dist, Rel: rel, Present: true}
	if a.Memory != nil {
		o.Memory = a.Memory.Influence(id)
	}
	if other, ok := f.Roster[id]; ok {
		o.HasFood = other.Inventory.Count(economy.GoodFood) > 0
		o.HasWares = other.Inventory.Count(economy.GoodWares) > 0
		o.Archetype = other.Archetype
	}
	return o
}

// RouteTo asks the router for a route from the agent's cell to dest.
// Without a router every destination is unreachable.
func (bb *Blackboard) RouteTo(dest world.Cell) bool {
	if bb.Router == nil {
		return false
	}
	return bb.Router.Route(bb.Self, bb.Cell, dest)
}

// Lookup returns the numeric value of a named key. Booleans read as 0 or 1.
func (bb *Blackboard) Lookup(key string) (float64, bool) {
	fn, ok := registry[key]
	if !ok {
		return 0, false
	}
	return fn(bb), true
}

// Known reports whether key can be looked up.
func Known(key string) bool {
	_, ok := registry[key]
	return ok
}

// Keys returns every known key, sorted.
func Keys() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var registry = map[string]func(*Blackboard) float64{
	"tick":          func(bb *Blackboard) float64 { return float64(bb.Tick) },
	"money":         func(bb *Blackboard) float64 { return float64(bb.Money) },
	"item.food":     func(bb *Blackboard) float64 { return float64(bb.Food) },
	"item.wares":    func(bb *Blackboard) float64 { return float64(bb.Wares) },
	"item.gifts":    func(bb *Blackboard) float64 { return float64(bb.Gifts) },
	"neighbors":     func(bb *Blackboard) float64 { return float64(bb.Neighbors) },
	"memory.threat": func(bb *Blackboard) float64 { return bb.MemoryThreat },

	"partner.present": func(bb *Blackboard) float64 { return b2f(bb.Partner.Present) },
	"partner.dist":    func(bb *Blackboard) float64 { return bb.Partner.Dist },
	"partner.rel":     func(bb *Blackboard) float64 { return float64(bb.Partner.Rel) },
	"partner.memory":  func(bb *Blackboard) float64 { return bb.Partner.Memory },
	"partner.food":    func(bb *Blackboard) float64 { return b2f(bb.Partner.HasFood) },
	"partner.wares":   func(bb *Blackboard) float64 { return b2f(bb.Partner.HasWares) },

	"threat.present": func(bb *Blackboard) float64 { return b2f(bb.Threat.Present) },
	"threat.dist":    func(bb *Blackboard) float64 { return bb.Threat.Dist },
	"threat.rel":     func(bb *Blackboard) float64 { return float64(bb.Threat.Rel) },

	"at.food": func(bb *Blackboard) float64 { return b2f(bb.At.AtFood) },
	"at.work": func(bb *Blackboard) float64 { return b2f(bb.At.AtWork) },
	"at.home": func(bb *Blackboard) float64 { return b2f(bb.At.AtHome) },
	"at.park": func(bb *Blackboard) float64 { return b2f(bb.At.AtPark) },
}

func init() {
	for _, n := range agents.AllNeeds {
		n := n
		registry["need."+n.String()] = func(bb *Blackboard) float64 { return bb.Urgency[n] }
		registry["urgent."+n.String()] = func(bb *Blackboard) float64 { return b2f(bb.Urgent[n]) }
		registry["value."+n.String()] = func(bb *Blackboard) float64 { return bb.Needs[n] }
	}
	for t := agents.Trait(0); t < agents.NumTraits; t++ {
		t := t
		registry["trait."+t.String()] = func(bb *Blackboard) float64 { return bb.Personality.Trait(t) }
	}
	for k := 0; k < NumPOIKinds; k++ {
		k := k
		name := world.POIKindName(world.POIKind(k))
		registry["known."+name] = func(bb *Blackboard) float64 { return b2f(bb.Dest[k].OK) }
		registry["dist."+name] = func(bb *Blackboard) float64 { return bb.Dest[k].Dist }
		registry["blocked."+name] = func(bb *Blackboard) float64 { return b2f(bb.Blocked[k]) }
	}
}
