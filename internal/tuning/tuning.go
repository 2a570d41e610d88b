// Package tuning loads the simulation's coefficients from YAML. Every value
// has a default; a file only needs the keys it overrides.
package tuning

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/behavior"
	"github.com/talgya/mini-city/internal/nav"
	"github.com/talgya/mini-city/internal/phi"
	"github.com/talgya/mini-city/internal/social"
	"github.com/talgya/mini-city/internal/utility"
	"github.com/talgya/mini-city/internal/world"
)

// ErrInvalid is returned for out-of-range configuration values.
var ErrInvalid = errors.New("invalid tuning")

// Config is the full tuning document.
type Config struct {
	Seed           int64 `yaml:"seed"`
	TickIntervalMs int   `yaml:"tick_interval_ms"`

	World      World           `yaml:"world"`
	Population Population      `yaml:"population"`
	Perception Perception      `yaml:"perception"`
	Needs      Needs           `yaml:"needs"`
	Memory     Memory          `yaml:"memory"`
	Path       Path            `yaml:"path"`
	Movement   Movement        `yaml:"movement"`
	Outcomes   agents.Outcomes `yaml:"outcomes"`
	Relations  social.Deltas   `yaml:"relations"`
	Behavior   Behavior        `yaml:"behavior"`
	Events     Events          `yaml:"events"`
}

type World struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	BlockSize    int     `yaml:"block_size"`
	ParkLevel    float64 `yaml:"park_level"`
	WaterLevel   float64 `yaml:"water_level"`
	PlazaLevel   float64 `yaml:"plaza_level"`
	RoughLevel   float64 `yaml:"rough_level"`
	Connectivity int     `yaml:"connectivity"` // 4 or 8
	FoodStalls   int     `yaml:"food_stalls"`
	Workplaces   int     `yaml:"workplaces"`
	Homes        int     `yaml:"homes"`
	Parks        int     `yaml:"parks"`
}

type Population struct {
	Count int `yaml:"count"`
}

type Perception struct {
	Radius         float64 `yaml:"radius"`
	InteractRadius float64 `yaml:"interact_radius"`
	ArriveRadius   float64 `yaml:"arrive_radius"`
	BucketSize     float64 `yaml:"bucket_size"`
	HostileBelow   int     `yaml:"hostile_below"`
}

// Needs holds one spec per need.
type Needs struct {
	Hunger      agents.NeedSpec `yaml:"hunger"`
	Energy      agents.NeedSpec `yaml:"energy"`
	Social      agents.NeedSpec `yaml:"social"`
	Safety      agents.NeedSpec `yaml:"safety"`
	Achievement agents.NeedSpec `yaml:"achievement"`
	Wealth      agents.NeedSpec `yaml:"wealth"`
}

type Memory struct {
	agents.MemoryConfig `yaml:",inline"`
	// Events at or above this magnitude are emitted to the event sink
	// even when their kind is not always significant.
	Significance float64 `yaml:"significance"`
}

type Path struct {
	MaxExpanded   int    `yaml:"max_expanded"`
	SmoothPasses  int    `yaml:"smooth_passes"`
	RetryCooldown uint64 `yaml:"retry_cooldown"` // Ticks before a failed goal is retried
}

type Movement struct {
	Speed float64 `yaml:"speed"` // Cells per tick
}

type Behavior struct {
	FleeRadius   float64          `yaml:"flee_radius"`
	FleeCaution  float64          `yaml:"flee_caution"`
	FleeDistance float64          `yaml:"flee_distance"`
	WanderRadius int              `yaml:"wander_radius"`
	WanderPeriod uint64           `yaml:"wander_period"`
	Options      []utility.Option `yaml:"options"`
}

type Events struct {
	Buffer       int `yaml:"buffer"`        // Recent events kept in memory
	AutosaveDays int `yaml:"autosave_days"` // 0 disables autosave
}

// Defaults returns the baseline tuning. Rates are per tick (one sim-minute).
func Defaults() Config {
	return Config{
		Seed:           20240917,
		TickIntervalMs: 250,
		World: World{
			Width:        96,
			Height:       96,
			BlockSize:    8,
			ParkLevel:    0.68,
			WaterLevel:   0.8,
			PlazaLevel:   0.22,
			RoughLevel:   0.82,
			Connectivity: 8,
			FoodStalls:   10,
			Workplaces:   14,
			Homes:        60,
			Parks:        6,
		},
		Population: Population{Count: 150},
		Perception: Perception{
			Radius:         10,
			InteractRadius: 1.5,
			ArriveRadius:   0.75,
			BucketSize:     8,
			HostileBelow:   -40,
		},
		Needs: Needs{
			Hunger:      agents.NeedSpec{Rate: phi.Agnosis * 0.015, Threshold: phi.Matter},
			Energy:      agents.NeedSpec{Rate: -0.0012, Threshold: 0.6, Reserve: true},
			Social:      agents.NeedSpec{Rate: 0.0025, Threshold: phi.Matter},
			Safety:      agents.NeedSpec{Rate: 0.004, Threshold: 0.5, Reserve: true},
			Achievement: agents.NeedSpec{Rate: 0.0015, Threshold: 0.7},
			Wealth:      agents.NeedSpec{Rate: 0.001, Threshold: 0.7},
		},
		Memory: Memory{
			MemoryConfig: agents.MemoryConfig{Capacity: 32, HalfLife: 720, MinWeight: 0.05},
			Significance: 0.75,
		},
		Path:     Path{MaxExpanded: 20000, SmoothPasses: 2, RetryCooldown: 60},
		Movement: Movement{Speed: 1},
		Outcomes: agents.Outcomes{
			MealSatiety:     0.5,
			WorkWage:        2,
			WorkAchievement: 0.02,
			WorkWealth:      0.01,
			WorkEnergy:      0.004,
			WaresEvery:      30,
			RestEnergy:      0.01,
			RestHomeBonus:   0.01,
			ParkSocial:      0.01,
			TalkSocial:      0.08,
			ShareSocial:     0.1,
			ShareHunger:     0.3,
			TradeWealth:     0.1,
			ConflictSafety:  0.3,
			ThreatSafety:    0.15,
			FleeSafety:      0.02,
		},
		Relations: social.Deltas{
			TalkActor: 1, TalkTarget: 1,
			TradeActor: 3, TradeTarget: 3,
			HelpActor: 4, HelpTarget: 8,
			ConflictActor: -10, ConflictTarget: -15,
		},
		Behavior: Behavior{
			FleeRadius:   4,
			FleeCaution:  0.6,
			FleeDistance: 8,
			WanderRadius: 6,
			WanderPeriod: 30,
			Options:      utility.DefaultOptions(),
		},
		Events: Events{Buffer: 1000, AutosaveDays: 1},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read tuning: %w", err)
	}
	if err := Parse(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw YAML over cfg and validates it. A non-empty options
// list replaces the default table.
func Parse(raw []byte, cfg *Config) error {
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("decode tuning: %w", err)
	}
	return cfg.Validate()
}

// Validate checks every range once; the simulation trusts the config after.
func (c *Config) Validate() error {
	bad := func(field string, v any) error {
		return fmt.Errorf("%w: %s = %v", ErrInvalid, field, v)
	}
	switch {
	case c.TickIntervalMs < 0:
		return bad("tick_interval_ms", c.TickIntervalMs)
	case c.World.Width < 8 || c.World.Height < 8:
		return bad("world size", fmt.Sprintf("%dx%d", c.World.Width, c.World.Height))
	case c.World.BlockSize < 3:
		return bad("world.block_size", c.World.BlockSize)
	case c.World.Connectivity != 4 && c.World.Connectivity != 8:
		return bad("world.connectivity", c.World.Connectivity)
	case c.World.Homes < 1:
		return bad("world.homes", c.World.Homes)
	case c.World.FoodStalls < 0 || c.World.Workplaces < 0 || c.World.Parks < 0:
		return bad("world poi counts", fmt.Sprintf("%d/%d/%d", c.World.FoodStalls, c.World.Workplaces, c.World.Parks))
	case c.Population.Count < 0:
		return bad("population.count", c.Population.Count)
	case !(c.Perception.Radius > 0):
		return bad("perception.radius", c.Perception.Radius)
	case !(c.Perception.InteractRadius > 0) || c.Perception.InteractRadius > c.Perception.Radius:
		return bad("perception.interact_radius", c.Perception.InteractRadius)
	case !(c.Perception.ArriveRadius > 0):
		return bad("perception.arrive_radius", c.Perception.ArriveRadius)
	case !(c.Perception.BucketSize > 0):
		return bad("perception.bucket_size", c.Perception.BucketSize)
	case c.Perception.HostileBelow < social.MinScore || c.Perception.HostileBelow > 0:
		return bad("perception.hostile_below", c.Perception.HostileBelow)
	case c.Memory.Capacity < 1:
		return bad("memory.capacity", c.Memory.Capacity)
	case !(c.Memory.HalfLife > 0):
		return bad("memory.half_life", c.Memory.HalfLife)
	case c.Memory.MinWeight < 0 || math.IsNaN(c.Memory.MinWeight):
		return bad("memory.min_weight", c.Memory.MinWeight)
	case c.Path.MaxExpanded < 1:
		return bad("path.max_expanded", c.Path.MaxExpanded)
	case c.Path.SmoothPasses < 0:
		return bad("path.smooth_passes", c.Path.SmoothPasses)
	case !(c.Movement.Speed > 0):
		return bad("movement.speed", c.Movement.Speed)
	case c.Behavior.WanderRadius < 1:
		return bad("behavior.wander_radius", c.Behavior.WanderRadius)
	case c.Behavior.FleeCaution < 0 || c.Behavior.FleeCaution > 1:
		return bad("behavior.flee_caution", c.Behavior.FleeCaution)
	case len(c.Behavior.Options) == 0:
		return bad("behavior.options", "empty")
	case c.Events.Buffer < 1:
		return bad("events.buffer", c.Events.Buffer)
	}

	specs := c.NeedSpecs()
	for _, n := range agents.AllNeeds {
		s := specs[n]
		if math.IsNaN(s.Rate) || math.IsInf(s.Rate, 0) {
			return bad("needs."+n.String()+".rate", s.Rate)
		}
		if s.Threshold < 0 || s.Threshold > 1 || math.IsNaN(s.Threshold) {
			return bad("needs."+n.String()+".threshold", s.Threshold)
		}
	}

	seen := make(map[string]bool)
	for i := range c.Behavior.Options {
		o := &c.Behavior.Options[i]
		if err := o.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if seen[o.Name] {
			return bad("behavior.options", "duplicate "+o.Name)
		}
		seen[o.Name] = true
	}
	return nil
}

// NeedSpecs returns the per-need specs indexed by agents.Need.
func (c *Config) NeedSpecs() [agents.NumNeeds]agents.NeedSpec {
	var out [agents.NumNeeds]agents.NeedSpec
	out[agents.NeedHunger] = c.Needs.Hunger
	out[agents.NeedEnergy] = c.Needs.Energy
	out[agents.NeedSocial] = c.Needs.Social
	out[agents.NeedSafety] = c.Needs.Safety
	out[agents.NeedAchievement] = c.Needs.Achievement
	out[agents.NeedWealth] = c.Needs.Wealth
	return out
}

// GenConfig returns the city generator settings.
func (c *Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Width:     c.World.Width,
		Height:    c.World.Height,
		Seed:      c.Seed,
		BlockSize: c.World.BlockSize,
		ParkLvl:   c.World.ParkLevel,
		WaterLvl:  c.World.WaterLevel,
		PlazaLvl:  c.World.PlazaLevel,
		RoughLvl:  c.World.RoughLevel,
		Conn:      world.Connectivity(c.World.Connectivity),
	}
}

// POICounts returns how many of each POI kind to place.
func (c *Config) POICounts() world.POICounts {
	return world.POICounts{
		Food:  c.World.FoodStalls,
		Work:  c.World.Workplaces,
		Homes: c.World.Homes,
		Parks: c.World.Parks,
	}
}

// NavOptions returns the pathfinder bounds.
func (c *Config) NavOptions() nav.Options {
	return nav.Options{
		MaxExpanded:  c.Path.MaxExpanded,
		SmoothPasses: c.Path.SmoothPasses,
		MinCost:      1,
	}
}

// BehaviorConfig returns the behavior library settings.
func (c *Config) BehaviorConfig() behavior.Config {
	return behavior.Config{
		Options:        c.Behavior.Options,
		InteractRadius: c.Perception.InteractRadius,
		FleeRadius:     c.Behavior.FleeRadius,
		FleeCaution:    c.Behavior.FleeCaution,
		FleeDistance:   c.Behavior.FleeDistance,
		WanderRadius:   c.Behavior.WanderRadius,
		WanderPeriod:   c.Behavior.WanderPeriod,
	}
}
