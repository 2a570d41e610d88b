// Package perception answers "what is near me" queries against a uniform
// spatial hash built once per tick from the agent roster and POIs.
package perception

import (
	"math"
	"sort"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/world"
)

// Kind separates perceivable entity types.
type Kind uint8

const (
	KindAgent Kind = iota
	KindPOI
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	if k == KindAgent {
		return "agent"
	}
	return "poi"
}

// Entity is one perceivable thing in the snapshot.
type Entity struct {
	Kind    Kind          `json:"kind"`
	ID      uint64        `json:"id"`
	Pos     world.Vec2    `json:"pos"`
	POIKind world.POIKind `json:"poi_kind,omitempty"`
}

// Hit is an entity found by a query with its distance to the origin.
type Hit struct {
	Entity
	Dist float64 `json:"dist"`
}

type bucketKey struct{ x, y int32 }

// Index is a uniform spatial hash keyed by bucket coordinates. It is a
// snapshot: positions are those at the time of the last Build.
type Index struct {
	bucket  float64
	buckets map[bucketKey][]int
	ents    []Entity
}

// NewIndex creates an index with square buckets of the given side.
func NewIndex(bucketSize float64) *Index {
	if bucketSize <= 0 {
		bucketSize = 8
	}
	return &Index{
		bucket:  bucketSize,
		buckets: make(map[bucketKey][]int),
	}
}

func (ix *Index) key(p world.Vec2) bucketKey {
	return bucketKey{int32(math.Floor(p.X / ix.bucket)), int32(math.Floor(p.Y / ix.bucket))}
}

// Reset empties the index while keeping allocated buckets.
func (ix *Index) Reset() {
	for k, v := range ix.buckets {
		ix.buckets[k] = v[:0]
	}
	ix.ents = ix.ents[:0]
}

// Insert adds an entity.
func (ix *Index) Insert(e Entity) {
	k := ix.key(e.Pos)
	ix.buckets[k] = append(ix.buckets[k], len(ix.ents))
	ix.ents = append(ix.ents, e)
}

// Build resets the index and inserts every live agent and every POI.
func (ix *Index) Build(roster []*agents.Agent, pois []world.POI) {
	ix.Reset()
	for _, a := range roster {
		if !a.Alive {
			continue
		}
		ix.Insert(Entity{Kind: KindAgent, ID: uint64(a.ID), Pos: a.Position})
	}
	for _, p := range pois {
		ix.Insert(Entity{Kind: KindPOI, ID: p.ID, Pos: p.Position(), POIKind: p.Kind})
	}
}

// Len returns the number of indexed entities.
func (ix *Index) Len() int { return len(ix.ents) }

// Query returns every entity within radius of origin (inclusive), sorted
// by ascending distance, then kind, then id. Agent self is excluded when
// non-zero.
func (ix *Index) Query(origin world.Vec2, radius float64, self agents.AgentID) []Hit {
	if radius < 0 || math.IsNaN(radius) {
		return nil
	}
	lo := ix.key(world.Vec2{X: origin.X - radius, Y: origin.Y - radius})
	hi := ix.key(world.Vec2{X: origin.X + radius, Y: origin.Y + radius})

	var hits []Hit
	for by := lo.y; by <= hi.y; by++ {
		for bx := lo.x; bx <= hi.x; bx++ {
			for _, idx := range ix.buckets[bucketKey{bx, by}] {
				e := ix.ents[idx]
				if e.Kind == KindAgent && self != 0 && e.ID == uint64(self) {
					continue
				}
				d := world.Dist(origin, e.Pos)
				if d <= radius {
					hits = append(hits, Hit{Entity: e, Dist: d})
				}
			}
		}
	}
	sortHits(hits)
	return hits
}

// QueryAgent returns what a perceives within radius.
func (ix *Index) QueryAgent(a *agents.Agent, radius float64) []Hit {
	return ix.Query(a.Position, radius, a.ID)
}

// Scan is the brute-force equivalent of Query over a flat entity list.
func Scan(ents []Entity, origin world.Vec2, radius float64, self agents.AgentID) []Hit {
	var hits []Hit
	for _, e := range ents {
		if e.Kind == KindAgent && self != 0 && e.ID == uint64(self) {
			continue
		}
		if d := world.Dist(origin, e.Pos); d <= radius {
			hits = append(hits, Hit{Entity: e, Dist: d})
		}
	}
	sortHits(hits)
	return hits
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Dist != hits[j].Dist {
			return hits[i].Dist < hits[j].Dist
		}
		if hits[i].Kind != hits[j].Kind {
			return hits[i].Kind < hits[j].Kind
		}
		return hits[i].ID < hits[j].ID
	})
}

// Agents filters hits down to agent ids, preserving order.
func Agents(hits []Hit) []agents.AgentID {
	var out []agents.AgentID
	for _, h := range hits {
		if h.Kind == KindAgent {
			out = append(out, agents.AgentID(h.ID))
		}
	}
	return out
}

// NearestPOI returns the closest POI hit of the given kind.
func NearestPOI(hits []Hit, kind world.POIKind) (Hit, bool) {
	for _, h := range hits {
		if h.Kind == KindPOI && h.POIKind == kind {
			return h, true
		}
	}
	return Hit{}, false
}
