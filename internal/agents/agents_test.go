package agents

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/entropy"
	"github.com/talgya/mini-city/internal/world"
)

func testModel() *NeedsModel {
	var specs [NumNeeds]NeedSpec
	specs[NeedHunger] = NeedSpec{Rate: 0.1, Threshold: 0.6}
	specs[NeedEnergy] = NeedSpec{Rate: -0.05, Threshold: 0.7, Reserve: true}
	specs[NeedSocial] = NeedSpec{Rate: 0.02, Threshold: 0.6}
	specs[NeedSafety] = NeedSpec{Rate: 0.01, Threshold: 0.5, Reserve: true}
	specs[NeedAchievement] = NeedSpec{Rate: 0.01, Threshold: 0.7}
	specs[NeedWealth] = NeedSpec{Rate: 0.01, Threshold: 0.7}
	return NewNeedsModel(specs)
}

func testAgent() *Agent {
	return NewAgent(1, "Ada Alder", ArchWorker, world.Vec2{X: 1.5, Y: 1.5}, Personality{}, MemoryConfig{Capacity: 8, HalfLife: 10, MinWeight: 0.01})
}

func TestNeedsUpdateClamps(t *testing.T) {
	m := testModel()
	a := testAgent()
	a.Needs[NeedEnergy] = 0.1

	m.Update(a, 20)
	assert.Equal(t, 1.0, a.Needs[NeedHunger])
	assert.Equal(t, 0.0, a.Needs[NeedEnergy])
	for _, v := range a.Needs {
		assert.True(t, v >= 0 && v <= 1)
	}

	before := a.Needs
	m.Update(a, math.NaN())
	m.Update(a, -5)
	assert.Equal(t, before, a.Needs)
}

func TestNeedsUpdateInfiniteStep(t *testing.T) {
	m := testModel()
	m.Specs[NeedSafety].Rate = 0
	a := testAgent()
	a.Needs[NeedSafety] = 0.4
	a.Needs[NeedEnergy] = 0.9

	m.Update(a, math.Inf(1))
	assert.Equal(t, 0.4, a.Needs[NeedSafety], "a zero-rate need is untouched")
	assert.Equal(t, 1.0, a.Needs[NeedHunger])
	assert.Equal(t, 0.0, a.Needs[NeedEnergy])

	before := a.Needs
	m.Update(a, math.Inf(-1))
	assert.Equal(t, before, a.Needs)
}

func TestOptionWeightZeroDisables(t *testing.T) {
	tmpl := Template{OptionWeights: map[string]float64{"work": 0}}
	assert.Zero(t, tmpl.OptionWeight("work"))
	assert.Equal(t, 1.0, tmpl.OptionWeight("rest"))
}

func TestSatisfyDrivesAndReserves(t *testing.T) {
	m := testModel()
	a := testAgent()
	a.Needs[NeedHunger] = 0.8
	a.Needs[NeedEnergy] = 0.2

	m.Satisfy(a, NeedHunger, 0.5)
	m.Satisfy(a, NeedEnergy, 0.5)
	assert.InDelta(t, 0.3, a.Needs[NeedHunger], 1e-9)
	assert.InDelta(t, 0.7, a.Needs[NeedEnergy], 1e-9)

	m.Satisfy(a, NeedHunger, 5)
	assert.Equal(t, 0.0, a.Needs[NeedHunger])

	m.Satisfy(a, NeedEnergy, -0.1)
	assert.InDelta(t, 0.6, a.Needs[NeedEnergy], 1e-9)
}

func TestUrgency(t *testing.T) {
	m := testModel()
	var v NeedsVector
	v[NeedHunger] = 0.65
	v[NeedEnergy] = 0.9
	v[NeedSafety] = 1

	assert.True(t, m.Urgent(v, NeedHunger))
	assert.InDelta(t, 0.1, m.Urgency(v, NeedEnergy), 1e-9)
	assert.False(t, m.Urgent(v, NeedEnergy))

	n, u := m.MostUrgent(v)
	assert.Equal(t, NeedHunger, n)
	assert.InDelta(t, 0.65, u, 1e-9)

	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(math.Inf(1)))
}

func TestPersonalityValidate(t *testing.T) {
	p := Personality{Sociability: 0.5, Greed: 1, Caution: 0}
	require.NoError(t, p.Validate())

	p.Greed = 1.2
	err := p.Validate()
	require.ErrorIs(t, err, ErrInvalidPersonality)
	assert.Contains(t, err.Error(), "greed")

	p.Greed = math.NaN()
	assert.ErrorIs(t, p.Validate(), ErrInvalidPersonality)

	shifted := Personality{Diligence: 0.9}.Shifted(Personality{Diligence: 0.5, Caution: -0.3})
	assert.Equal(t, 1.0, shifted.Diligence)
	assert.Equal(t, 0.0, shifted.Caution)
}

func TestMemoryRingEvictsOldest(t *testing.T) {
	m := NewMemoryStore(MemoryConfig{Capacity: 3, HalfLife: 100})
	for i := uint64(1); i <= 3; i++ {
		assert.False(t, m.Record(MemoryEvent{Tick: i, Kind: EventTalk, Magnitude: 1}))
	}
	assert.True(t, m.Record(MemoryEvent{Tick: 4, Kind: EventTrade, Magnitude: 1}))

	evs := m.Events()
	require.Len(t, evs, 3)
	assert.Equal(t, uint64(2), evs[0].Tick)
	assert.Equal(t, uint64(4), evs[2].Tick)

	recent := m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(4), recent[0].Tick)
	assert.Equal(t, uint64(3), recent[1].Tick)
}

func TestMemoryTicksStayMonotonic(t *testing.T) {
	m := NewMemoryStore(MemoryConfig{Capacity: 4, HalfLife: 100})
	m.Record(MemoryEvent{Tick: 10, Magnitude: 1})
	m.Record(MemoryEvent{Tick: 5, Magnitude: 1})

	evs := m.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, uint64(10), evs[1].Tick)
	assert.Equal(t, uint64(10), m.LastTick())
}

func TestMemoryDecayPrunesLazily(t *testing.T) {
	m := NewMemoryStore(MemoryConfig{Capacity: 4, HalfLife: 10, MinWeight: 0.3})
	m.Record(MemoryEvent{Tick: 0, Kind: EventConflict, Participants: []AgentID{7}, Magnitude: -1})
	m.Record(MemoryEvent{Tick: 0, Kind: EventShare, Participants: []AgentID{8}, Magnitude: 4})

	m.Decay(10)
	assert.Equal(t, 2, m.Len())
	assert.InDelta(t, -0.5, m.Influence(7), 1e-9)
	assert.InDelta(t, 2.0, m.Influence(8), 1e-9)
	assert.InDelta(t, 0.5, m.Threat(), 1e-9)

	m.Decay(20)
	assert.Equal(t, 1, m.Len())
	assert.Zero(t, m.Influence(7))

	// Going back in time is ignored.
	m.Decay(5)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryCopiesParticipants(t *testing.T) {
	m := NewMemoryStore(MemoryConfig{Capacity: 2, HalfLife: 10})
	ids := []AgentID{1, 2}
	m.Record(MemoryEvent{Tick: 1, Participants: ids, Magnitude: 1})
	ids[0] = 99
	assert.True(t, m.Events()[0].Involves(1))
}

func TestApplySoloEat(t *testing.T) {
	m := testModel()
	o := Outcomes{MealSatiety: 0.5}
	a := testAgent()
	a.Needs[NeedHunger] = 0.9

	_, ok := ApplySolo(a, Action{Kind: ActionEat}, m, o, Place{}, 1)
	assert.False(t, ok, "no food and not at a stall")

	a.Inventory.Earn(economy.BasePrice(economy.GoodFood))
	ev, ok := ApplySolo(a, Action{Kind: ActionEat}, m, o, Place{AtFood: true}, 2)
	require.True(t, ok)
	assert.Equal(t, EventMeal, ev.Kind)
	assert.Zero(t, a.Inventory.Money)
	assert.InDelta(t, 0.4, a.Needs[NeedHunger], 1e-9)

	a.Inventory.Add(economy.GoodFood, 1)
	_, ok = ApplySolo(a, Action{Kind: ActionEat}, m, o, Place{}, 3)
	assert.True(t, ok)
	assert.Zero(t, a.Inventory.Count(economy.GoodFood))
}

func TestApplySoloWork(t *testing.T) {
	m := testModel()
	o := Outcomes{WorkWage: 3, WorkAchievement: 0.2, WorkEnergy: 0.1, WaresEvery: 1}
	a := testAgent()
	a.Needs[NeedEnergy] = 1
	a.Needs[NeedAchievement] = 0.5

	_, ok := ApplySolo(a, Action{Kind: ActionWork}, m, o, Place{}, 1)
	assert.False(t, ok)

	_, ok = ApplySolo(a, Action{Kind: ActionWork}, m, o, Place{AtWork: true}, 1)
	require.True(t, ok)
	assert.Equal(t, int64(3), a.Inventory.Money)
	assert.Equal(t, 1, a.Inventory.Count(economy.GoodWares))
	assert.InDelta(t, 0.3, a.Needs[NeedAchievement], 1e-9)
	assert.InDelta(t, 0.9, a.Needs[NeedEnergy], 1e-9)
}

func TestActionStates(t *testing.T) {
	assert.Equal(t, StateSeeking, ActionSeek.State())
	assert.Equal(t, StateFleeing, ActionFlee.State())
	assert.Equal(t, StateInteracting, ActionTrade.State())
	assert.True(t, ActionShare.Paired())
	assert.False(t, ActionEat.Paired())

	a := testAgent()
	a.State, a.StateDetail = StateSeeking, "food 3"
	assert.Equal(t, "seeking(food 3)", a.StateLabel())
	assert.Equal(t, "seeking(food 3)", a.Pose().State)
}

func TestSpawnerDeterministic(t *testing.T) {
	homes := []world.POI{
		{ID: 1, Kind: world.POIHome, Cell: world.Cell{X: 2, Y: 2}},
		{ID: 2, Kind: world.POIHome, Cell: world.Cell{X: 5, Y: 2}},
	}
	works := []world.POI{{ID: 3, Kind: world.POIWork, Cell: world.Cell{X: 8, Y: 8}}}
	mem := MemoryConfig{Capacity: 16, HalfLife: 100}

	spawn := func() []*Agent {
		s := NewSpawner(entropy.New(42), mem)
		out, err := s.SpawnPopulation(20, homes, works, 0)
		require.NoError(t, err)
		return out
	}
	a, b := spawn(), spawn()
	require.Len(t, a, 20)
	for i := range a {
		assert.Equal(t, AgentID(i+1), a[i].ID)
		assert.Equal(t, a[i].Name, b[i].Name)
		assert.Equal(t, a[i].Personality, b[i].Personality)
		assert.Equal(t, a[i].Needs, b[i].Needs)
		assert.NoError(t, a[i].Personality.Validate())
		assert.Equal(t, homes[i%2].ID, a[i].HomeID)
		assert.Equal(t, homes[i%2].Position(), a[i].Position)
		tmpl, ok := TemplateFor(a[i].Archetype)
		require.True(t, ok)
		if tmpl.HasWork {
			assert.Equal(t, uint64(3), a[i].WorkID)
		} else {
			assert.Zero(t, a[i].WorkID)
		}
	}

	_, err := NewSpawner(entropy.New(1), mem).SpawnPopulation(1, nil, works, 0)
	assert.ErrorIs(t, err, ErrNoHomes)
}
