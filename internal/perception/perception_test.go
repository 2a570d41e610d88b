package perception

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/world"
)

func agentAt(id agents.AgentID, x, y float64) *agents.Agent {
	return agents.NewAgent(id, "", agents.ArchWorker, world.Vec2{X: x, Y: y}, agents.Personality{}, agents.MemoryConfig{Capacity: 1})
}

func TestQueryOrdersByDistanceThenKindThenID(t *testing.T) {
	ix := NewIndex(4)
	roster := []*agents.Agent{
		agentAt(1, 0, 0),
		agentAt(3, 2, 0),
		agentAt(2, 0, 2),
		agentAt(4, 10, 10),
	}
	pois := []world.POI{{ID: 1, Kind: world.POIFood, Cell: world.Cell{X: 1, Y: -1}}} // center (1.5,-0.5)
	ix.Build(roster, pois)

	hits := ix.QueryAgent(roster[0], 2)
	require.Len(t, hits, 3)
	assert.Equal(t, KindPOI, hits[0].Kind)
	assert.Equal(t, uint64(2), hits[1].ID)
	assert.Equal(t, uint64(3), hits[2].ID)
	assert.Equal(t, []agents.AgentID{2, 3}, Agents(hits))

	poi, ok := NearestPOI(hits, world.POIFood)
	require.True(t, ok)
	assert.Equal(t, uint64(1), poi.ID)
	_, ok = NearestPOI(hits, world.POIWork)
	assert.False(t, ok)
}

func TestQueryRadiusInclusive(t *testing.T) {
	ix := NewIndex(1)
	ix.Build([]*agents.Agent{agentAt(1, 0, 0), agentAt(2, 3, 4)}, nil)
	assert.Len(t, ix.Query(world.Vec2{}, 5, 1), 1)
	assert.Empty(t, ix.Query(world.Vec2{}, 4.99, 1))
	assert.Empty(t, ix.Query(world.Vec2{}, -1, 0))
}

func TestDeadAgentsAreInvisible(t *testing.T) {
	dead := agentAt(2, 1, 0)
	dead.Alive = false
	ix := NewIndex(4)
	ix.Build([]*agents.Agent{agentAt(1, 0, 0), dead}, nil)
	assert.Empty(t, ix.Query(world.Vec2{}, 5, 1))
}

func TestIndexMatchesScan(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var roster []*agents.Agent
	var ents []Entity
	for i := 1; i <= 300; i++ {
		a := agentAt(agents.AgentID(i), rng.Float64()*64-8, rng.Float64()*64-8)
		roster = append(roster, a)
		ents = append(ents, Entity{Kind: KindAgent, ID: uint64(i), Pos: a.Position})
	}
	ix := NewIndex(6)
	ix.Build(roster, nil)
	assert.Equal(t, 300, ix.Len())

	for trial := 0; trial < 50; trial++ {
		origin := world.Vec2{X: rng.Float64() * 48, Y: rng.Float64() * 48}
		r := rng.Float64() * 15
		assert.Equal(t, Scan(ents, origin, r, 0), ix.Query(origin, r, 0))
	}

	// Rebuild after reset keeps working.
	ix.Build(roster[:10], nil)
	assert.Equal(t, 10, ix.Len())
}
