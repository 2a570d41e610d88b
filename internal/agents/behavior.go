// Agent actions: the intents a behavior tree emits and the effects of the
// solo ones. Paired interactions are resolved by the engine.
package agents

import (
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/world"
)

// ActionKind enumerates what an agent can do in a tick.
type ActionKind uint8

const (
	ActionIdle     ActionKind = iota
	ActionWander              // Drift to a random nearby cell
	ActionSeek                // Walk toward Dest
	ActionEat                 // Eat carried food or buy a meal at a stall
	ActionWork                // Earn wages at the workplace
	ActionRest                // Recover energy
	ActionTalk                // Chat with Other
	ActionShare               // Give food or gifts to Other
	ActionTrade               // Trade wares with Other
	ActionConflict            // Quarrel with Other
	ActionFlee                // Move away from Other
)

// String returns the lowercase action name.
func (k ActionKind) String() string {
	switch k {
	case ActionIdle:
		return "idle"
	case ActionWander:
		return "wander"
	case ActionSeek:
		return "seek"
	case ActionEat:
		return "eat"
	case ActionWork:
		return "work"
	case ActionRest:
		return "rest"
	case ActionTalk:
		return "talk"
	case ActionShare:
		return "share"
	case ActionTrade:
		return "trade"
	case ActionConflict:
		return "conflict"
	case ActionFlee:
		return "flee"
	default:
		return "unknown"
	}
}

// Paired reports whether the action needs a partner and is resolved in
// the interaction stage.
func (k ActionKind) Paired() bool {
	switch k {
	case ActionTalk, ActionShare, ActionTrade, ActionConflict:
		return true
	}
	return false
}

// State returns the orchestrator state an action puts its agent in.
func (k ActionKind) State() State {
	switch k {
	case ActionWander:
		return StateWandering
	case ActionSeek:
		return StateSeeking
	case ActionFlee:
		return StateFleeing
	case ActionEat, ActionWork, ActionRest, ActionTalk, ActionShare, ActionTrade, ActionConflict:
		return StateInteracting
	default:
		return StateIdle
	}
}

// Action is one intent emitted by a behavior tree leaf.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Other   AgentID    `json:"other,omitempty"`
	Dest    world.Cell `json:"dest"`
	HasDest bool       `json:"has_dest,omitempty"`
	Detail  string     `json:"detail,omitempty"` // Renderer label detail, e.g. "food 3"
}

// Place describes where an agent stands relative to its anchors and POIs.
type Place struct {
	AtFood bool
	AtWork bool
	AtHome bool
	AtPark bool
}

// Outcomes are the need and money effects of solo actions.
type Outcomes struct {
	MealSatiety     float64 `yaml:"meal_satiety"`
	WorkWage        int64   `yaml:"work_wage"`
	WorkAchievement float64 `yaml:"work_achievement"`
	WorkWealth      float64 `yaml:"work_wealth"`
	WorkEnergy      float64 `yaml:"work_energy"`
	WaresEvery      uint64  `yaml:"wares_every"` // Ticks of work per unit of wares
	RestEnergy      float64 `yaml:"rest_energy"`
	RestHomeBonus   float64 `yaml:"rest_home_bonus"`
	ParkSocial      float64 `yaml:"park_social"`
	TalkSocial      float64 `yaml:"talk_social"`
	ShareSocial     float64 `yaml:"share_social"`
	ShareHunger     float64 `yaml:"share_hunger"`
	TradeWealth     float64 `yaml:"trade_wealth"`
	ConflictSafety  float64 `yaml:"conflict_safety"`
	ThreatSafety    float64 `yaml:"threat_safety"`
	FleeSafety      float64 `yaml:"flee_safety"`
}

// ApplySolo executes a solo action's effects and returns the memory event
// it produced, if any. Paired actions and movement are ignored here.
func ApplySolo(a *Agent, act Action, m *NeedsModel, o Outcomes, here Place, tick uint64) (MemoryEvent, bool) {
	if !a.Alive {
		return MemoryEvent{}, false
	}
	switch act.Kind {
	case ActionEat:
		return applyEat(a, m, o, here, tick)
	case ActionWork:
		return applyWork(a, m, o, here, tick)
	case ActionRest:
		applyRest(a, m, o, here)
	case ActionFlee:
		m.Satisfy(a, NeedSafety, o.FleeSafety)
	case ActionIdle, ActionWander:
		if here.AtPark {
			m.Satisfy(a, NeedSocial, o.ParkSocial)
		}
	}
	return MemoryEvent{}, false
}

func applyEat(a *Agent, m *NeedsModel, o Outcomes, here Place, tick uint64) (MemoryEvent, bool) {
	// Carried food first, then a stall meal at list price.
	if !a.Inventory.Take(economy.GoodFood, 1) {
		if !here.AtFood || !a.Inventory.Spend(economy.BasePrice(economy.GoodFood)) {
			return MemoryEvent{}, false
		}
	}
	m.Satisfy(a, NeedHunger, o.MealSatiety)
	return MemoryEvent{Tick: tick, Kind: EventMeal, Participants: []AgentID{a.ID}, Magnitude: o.MealSatiety}, true
}

func applyWork(a *Agent, m *NeedsModel, o Outcomes, here Place, tick uint64) (MemoryEvent, bool) {
	if !here.AtWork {
		return MemoryEvent{}, false
	}
	a.Inventory.Earn(o.WorkWage)
	m.Satisfy(a, NeedAchievement, o.WorkAchievement)
	m.Satisfy(a, NeedWealth, o.WorkWealth)
	m.Satisfy(a, NeedEnergy, -o.WorkEnergy)

	// Throttle production so agents don't all mint wares on the same tick.
	if o.WaresEvery > 0 && (tick+uint64(a.ID))%o.WaresEvery == 0 {
		a.Inventory.Add(economy.GoodWares, 1)
	}
	return MemoryEvent{Tick: tick, Kind: EventWork, Participants: []AgentID{a.ID}, Magnitude: o.WorkAchievement}, true
}

func applyRest(a *Agent, m *NeedsModel, o Outcomes, here Place) {
	amt := o.RestEnergy
	if here.AtHome {
		amt += o.RestHomeBonus
	}
	m.Satisfy(a, NeedEnergy, amt)
}
