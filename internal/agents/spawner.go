// Agent spawning: creates the initial population with archetypes,
// personalities, needs, inventories and home/work anchors.
package agents

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/entropy"
	"github.com/talgya/mini-city/internal/world"
)

// ErrNoHomes is returned when a population is spawned without homes.
var ErrNoHomes = errors.New("no homes to spawn into")

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
	memory MemoryConfig
}

// NewSpawner creates an agent spawner drawing from the seed's spawn stream.
func NewSpawner(src *entropy.Source, memory MemoryConfig) *Spawner {
	return &Spawner{
		rng:    src.Stream(300),
		nextID: 1,
		memory: memory,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID returns the ID the next spawned agent will get.
func (s *Spawner) NextID() AgentID { return s.nextID }

// SpawnPopulation creates count agents. Each lives at one of homes and,
// unless its archetype has no job, works at one of works.
func (s *Spawner) SpawnPopulation(count int, homes, works []world.POI, tick uint64) ([]*Agent, error) {
	if count > 0 && len(homes) == 0 {
		return nil, ErrNoHomes
	}
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		home := homes[i%len(homes)]
		a, err := s.spawnOne(home, works, tick)
		if err != nil {
			return nil, fmt.Errorf("spawn agent %d: %w", i, err)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func (s *Spawner) spawnOne(home world.POI, works []world.POI, tick uint64) (*Agent, error) {
	arch := s.pickArchetype()
	tmpl, _ := TemplateFor(arch)

	p := s.rollPersonality().Shifted(tmpl.TraitBias)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	a := NewAgent(s.nextID, s.generateName(), arch, home.Position(), p, s.memory)
	s.nextID++
	a.HomeID = home.ID
	a.BornTick = tick
	if tmpl.HasWork && len(works) > 0 {
		a.WorkID = works[s.rng.Intn(len(works))].ID
	}

	a.Needs[NeedHunger] = s.rng.Float64() * 0.4
	a.Needs[NeedEnergy] = 0.7 + s.rng.Float64()*0.3
	a.Needs[NeedSocial] = s.rng.Float64() * 0.4
	a.Needs[NeedSafety] = 0.8 + s.rng.Float64()*0.2
	a.Needs[NeedAchievement] = s.rng.Float64() * 0.3
	a.Needs[NeedWealth] = s.rng.Float64() * 0.3

	a.Inventory.Earn(tmpl.StartMoney + int64(s.rng.Intn(10)))
	a.Inventory.Add(economy.GoodFood, tmpl.StartFood)
	a.Inventory.Add(economy.GoodWares, tmpl.StartWares)
	a.Inventory.Add(economy.GoodGifts, tmpl.StartGifts)
	a.Heading = s.rng.Float64() * 6.283185307179586
	return a, nil
}

// NewAgent creates a live agent at pos with empty needs and inventory.
func NewAgent(id AgentID, name, archetype string, pos world.Vec2, p Personality, memory MemoryConfig) *Agent {
	return &Agent{
		ID:          id,
		Name:        name,
		Archetype:   archetype,
		Position:    pos,
		Personality: p,
		Memory:      NewMemoryStore(memory),
		State:       StateIdle,
		Alive:       true,
	}
}

func (s *Spawner) pickArchetype() string {
	r := s.rng.Float64()
	acc := 0.0
	for _, name := range Archetypes {
		acc += templates[name].Frequency
		if r < acc {
			return name
		}
	}
	return ArchWorker
}

// rollPersonality draws each trait from a triangular distribution around 0.5.
func (s *Spawner) rollPersonality() Personality {
	var p Personality
	for t := Trait(0); t < NumTraits; t++ {
		v := 0.5 + (s.rng.Float64()-s.rng.Float64())*0.35
		p.set(t, Clamp01(v))
	}
	return p
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var firstNames = []string{
	"Ada", "Bram", "Cora", "Dev", "Elif", "Finn", "Greta", "Hugo",
	"Iris", "Jonah", "Kira", "Leo", "Mira", "Nils", "Olive", "Pia",
	"Quinn", "Rosa", "Sami", "Theo", "Una", "Vik", "Wren", "Yara",
	"Zane", "Ines", "Malik", "Noor", "Otto", "Priya", "Ravi", "Sol",
}

var lastNames = []string{
	"Alder", "Baker", "Castillo", "Dunmore", "Ellis", "Farrow", "Garner",
	"Holloway", "Ito", "Jensen", "Kowalski", "Lindqvist", "Mercer",
	"Novak", "Okafor", "Petrov", "Quarry", "Reyes", "Sato", "Thatcher",
	"Ueda", "Varga", "Ward", "Yilmaz", "Zhou", "Brightwater", "Cross",
}
