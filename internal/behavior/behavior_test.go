package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/blackboard"
	"github.com/talgya/mini-city/internal/bt"
	"github.com/talgya/mini-city/internal/utility"
	"github.com/talgya/mini-city/internal/world"
)

type stubRouter struct {
	ok     bool
	routed []world.Cell
}

func (r *stubRouter) Route(_ agents.AgentID, _, to world.Cell) bool {
	r.routed = append(r.routed, to)
	return r.ok
}

func (r *stubRouter) Blocked(agents.AgentID, world.Cell) bool { return false }

func average() agents.Personality {
	return agents.Personality{Sociability: 0.5, Caution: 0.5, Greed: 0.5, Generosity: 0.5, Diligence: 0.5, Curiosity: 0.5}
}

func newBB(r blackboard.Router) *blackboard.Blackboard {
	return &blackboard.Blackboard{
		Self:        1,
		Tick:        100,
		Cell:        world.Cell{X: 0, Y: 0},
		Pos:         world.Vec2{X: 0.5, Y: 0.5},
		Personality: average(),
		Router:      r,
	}
}

func instance(t *testing.T, archetype string) *bt.Instance {
	t.Helper()
	lib, err := NewLibrary(DefaultConfig())
	require.NoError(t, err)
	in, err := lib.Instance(archetype)
	require.NoError(t, err)
	return in
}

func TestLibraryCompilesEveryArchetype(t *testing.T) {
	lib, err := NewLibrary(DefaultConfig())
	require.NoError(t, err)
	for _, name := range agents.Archetypes {
		tree, ok := lib.Tree(name)
		require.True(t, ok, name)
		assert.Equal(t, name, tree.Name())
	}
	_, err = lib.Instance("Pirate")
	assert.Error(t, err)
}

func TestLibraryRejectsBadOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Options = append(cfg.Options, utility.Option{Name: "juggle"})
	_, err := NewLibrary(cfg)
	assert.ErrorContains(t, err, "juggle")

	cfg = DefaultConfig()
	cfg.Options[0].Considerations[0].Key = "need.boredom"
	_, err = NewLibrary(cfg)
	assert.ErrorIs(t, err, utility.ErrUnknownKey)
}

// A hungry agent with a stall in view heads for it.
func TestHungryAgentSeeksFood(t *testing.T) {
	r := &stubRouter{ok: true}
	bb := newBB(r)
	bb.Urgency[agents.NeedHunger] = 0.9
	bb.Urgent[agents.NeedHunger] = true
	bb.Dest[world.POIFood] = blackboard.Target{ID: 3, Cell: world.Cell{X: 5, Y: 0}, Dist: 5, OK: true}

	res := instance(t, agents.ArchWorker).Tick(bb)
	assert.Equal(t, bt.Running, res.Status)
	act := res.Intent()
	assert.Equal(t, agents.ActionSeek, act.Kind)
	assert.True(t, act.HasDest)
	assert.Equal(t, world.Cell{X: 5, Y: 0}, act.Dest)
	assert.Equal(t, "food 3", act.Detail)
	assert.Equal(t, "seek-food", res.Leaf)
	assert.Equal(t, []world.Cell{{X: 5, Y: 0}}, r.routed)
}

func TestHungryAgentWithFoodEats(t *testing.T) {
	bb := newBB(&stubRouter{ok: true})
	bb.Urgency[agents.NeedHunger] = 0.9
	bb.Food = 1

	res := instance(t, agents.ArchWorker).Tick(bb)
	assert.Equal(t, bt.Success, res.Status)
	assert.Equal(t, agents.ActionEat, res.Intent().Kind)
}

// Arriving at the stall ends the running seek and eats on the same tick.
func TestArrivalEndsSeek(t *testing.T) {
	in := instance(t, agents.ArchWorker)
	bb := newBB(&stubRouter{ok: true})
	bb.Urgency[agents.NeedHunger] = 0.9
	bb.Money = 10
	bb.Dest[world.POIFood] = blackboard.Target{ID: 3, Cell: world.Cell{X: 5, Y: 0}, Dist: 5, OK: true}
	require.Equal(t, agents.ActionSeek, in.Tick(bb).Intent().Kind)

	bb.Cell, bb.Pos = world.Cell{X: 5, Y: 0}, world.Vec2{X: 5.5, Y: 0.5}
	bb.Dest[world.POIFood] = blackboard.Target{ID: 3, Cell: world.Cell{X: 5, Y: 0}, Dist: 0, OK: true}
	bb.At.AtFood = true
	res := in.Tick(bb)
	assert.Equal(t, agents.ActionEat, res.Intent().Kind)
	assert.Equal(t, "eat", res.Leaf)
}

// Friends who meet share rather than trade.
func TestFriendsShare(t *testing.T) {
	bb := newBB(&stubRouter{ok: true})
	bb.Money = 10
	bb.Wares = 2
	bb.Urgency[agents.NeedWealth] = 0.2
	bb.Partner = blackboard.Other{ID: 2, Present: true, Rel: 60, Dist: 1}

	res := instance(t, agents.ArchWorker).Tick(bb)
	require.NotEmpty(t, res.Ranking)
	names := make([]string, len(res.Ranking))
	for i, o := range res.Ranking {
		names[i] = o.Name
	}
	assert.Equal(t, utility.OptShare, names[0])
	assert.Less(t, indexOf(names, utility.OptShare), indexOf(names, utility.OptTrade))

	act := res.Intent()
	assert.Equal(t, agents.ActionShare, act.Kind)
	assert.Equal(t, agents.AgentID(2), act.Other)
}

// An unreachable stall makes the seek fail; the tree falls back to
// wandering without error.
func TestUnreachableFoodFallsBackToWander(t *testing.T) {
	r := &stubRouter{ok: false}
	bb := newBB(r)
	bb.Urgency[agents.NeedHunger] = 0.9
	bb.Dest[world.POIFood] = blackboard.Target{ID: 3, Cell: world.Cell{X: 5, Y: 5}, Dist: 7, OK: true}

	res := instance(t, agents.ArchWorker).Tick(bb)
	assert.Equal(t, bt.Success, res.Status)
	assert.Equal(t, agents.ActionWander, res.Intent().Kind)
	assert.False(t, res.Intent().HasDest)
	assert.Equal(t, utility.OptEat, res.Ranking[0].Name)
}

func TestBlockedFoodIsNotRetried(t *testing.T) {
	r := &stubRouter{ok: true}
	bb := newBB(r)
	bb.Urgency[agents.NeedHunger] = 0.9
	bb.Dest[world.POIFood] = blackboard.Target{ID: 3, Cell: world.Cell{X: 5, Y: 5}, Dist: 7, OK: true}
	bb.Blocked[world.POIFood] = true
	bb.Dest[world.POIHome] = blackboard.Target{ID: 4, Cell: world.Cell{X: 50, Y: 50}, Dist: 70, OK: true}

	res := instance(t, agents.ArchWorker).Tick(bb)
	assert.Equal(t, agents.ActionWander, res.Intent().Kind)
	assert.NotContains(t, r.routed, world.Cell{X: 5, Y: 5})
}

func TestFleePreemptsSeeking(t *testing.T) {
	in := instance(t, agents.ArchWorker)
	bb := newBB(&stubRouter{ok: true})
	bb.Personality.Caution = 0.9
	bb.Urgency[agents.NeedHunger] = 0.9
	bb.Dest[world.POIFood] = blackboard.Target{ID: 3, Cell: world.Cell{X: 5, Y: 0}, Dist: 5, OK: true}

	assert.Equal(t, agents.ActionSeek, in.Tick(bb).Intent().Kind)

	bb.Threat = blackboard.Other{ID: 9, Present: true, Pos: world.Vec2{X: 1.5, Y: 0.5}, Dist: 1, Rel: -80}
	res := in.Tick(bb)
	act := res.Intent()
	assert.Equal(t, agents.ActionFlee, act.Kind)
	assert.Equal(t, agents.AgentID(9), act.Other)
	assert.Less(t, act.Dest.X, 0, "runs away from the threat")

	bb.Threat = blackboard.Other{}
	assert.Equal(t, agents.ActionSeek, in.Tick(bb).Intent().Kind)
}

func TestBoldAgentsFightInsteadOfFleeing(t *testing.T) {
	bb := newBB(&stubRouter{ok: true})
	bb.Personality.Caution = 0.1
	bb.Threat = blackboard.Other{ID: 9, Present: true, Pos: world.Vec2{X: 1.5, Y: 0.5}, Dist: 1, Rel: -90}

	res := instance(t, agents.ArchDrifter).Tick(bb)
	assert.Equal(t, agents.ActionConflict, res.Intent().Kind)
	assert.Equal(t, agents.AgentID(9), res.Intent().Other)
}

func TestWanderIsStableWithinPeriod(t *testing.T) {
	cfg := DefaultConfig()
	fn := wander(cfg)
	bb := newBB(&stubRouter{ok: true})
	bb.Dest[world.POIHome] = blackboard.Target{ID: 4, Cell: world.Cell{X: 20, Y: 20}, OK: true}

	bb.Tick = 60
	_, a := fn(bb)
	bb.Tick = 89
	_, b := fn(bb)
	assert.Equal(t, a.Dest, b.Dest)
	require.True(t, a.HasDest)
	assert.LessOrEqual(t, abs(a.Dest.X-20), cfg.WanderRadius)
	assert.LessOrEqual(t, abs(a.Dest.Y-20), cfg.WanderRadius)
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
