// Package behavior is the city behavior library: condition and action
// leaves over the blackboard and the per-archetype trees built from them.
package behavior

import (
	"fmt"
	"math"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/blackboard"
	"github.com/talgya/mini-city/internal/bt"
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/entropy"
	"github.com/talgya/mini-city/internal/world"
)

func intent(kind agents.ActionKind) agents.Action {
	return agents.Action{Kind: kind}
}

// hasMeal: carried food, or standing at a stall with the price of a meal.
func hasMeal(bb *blackboard.Blackboard) bool {
	return bb.Food > 0 || (bb.At.AtFood && bb.Money >= economy.BasePrice(economy.GoodFood))
}

func eat(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
	if !hasMeal(bb) {
		return bt.Failure, agents.Action{}
	}
	return bt.Success, intent(agents.ActionEat)
}

func work(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
	if !bb.At.AtWork {
		return bt.Failure, agents.Action{}
	}
	return bt.Success, intent(agents.ActionWork)
}

func rest(*blackboard.Blackboard) (bt.Status, agents.Action) {
	return bt.Success, intent(agents.ActionRest)
}

func linger(*blackboard.Blackboard) (bt.Status, agents.Action) {
	return bt.Success, agents.Action{Kind: agents.ActionIdle, Detail: "park"}
}

// seek walks toward the agent's destination of the given kind. It fails
// when the destination is unknown, recently unreachable, already reached
// or cannot be routed to.
func seek(kind world.POIKind) bt.ActionFunc {
	name := world.POIKindName(kind)
	return func(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
		t := bb.Dest[kind]
		if !t.OK || bb.Blocked[kind] || t.Cell == bb.Cell {
			return bt.Failure, agents.Action{}
		}
		if !bb.RouteTo(t.Cell) {
			return bt.Failure, agents.Action{}
		}
		return bt.Running, agents.Action{
			Kind:    agents.ActionSeek,
			Dest:    t.Cell,
			HasDest: true,
			Detail:  fmt.Sprintf("%s %d", name, t.ID),
		}
	}
}

func talk(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
	if !bb.Partner.Present {
		return bt.Failure, agents.Action{}
	}
	return bt.Success, agents.Action{Kind: agents.ActionTalk, Other: bb.Partner.ID, Detail: fmt.Sprintf("agent %d", bb.Partner.ID)}
}

// share needs something to give: food, a gift or a coin.
func share(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
	if !bb.Partner.Present || (bb.Food == 0 && bb.Gifts == 0 && bb.Money == 0) {
		return bt.Failure, agents.Action{}
	}
	return bt.Success, agents.Action{Kind: agents.ActionShare, Other: bb.Partner.ID, Detail: fmt.Sprintf("agent %d", bb.Partner.ID)}
}

// trade needs wares to sell, or coin for the partner's wares.
func trade(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
	if !bb.Partner.Present {
		return bt.Failure, agents.Action{}
	}
	canSell := bb.Wares > 0
	canBuy := bb.Partner.HasWares && bb.Money >= economy.Price(economy.GoodWares, bb.Partner.Rel)
	if !canSell && !canBuy {
		return bt.Failure, agents.Action{}
	}
	return bt.Success, agents.Action{Kind: agents.ActionTrade, Other: bb.Partner.ID, Detail: fmt.Sprintf("agent %d", bb.Partner.ID)}
}

func conflict(interactRadius float64) bt.ActionFunc {
	return func(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
		if !bb.Threat.Present || bb.Threat.Dist > interactRadius {
			return bt.Failure, agents.Action{}
		}
		return bt.Success, agents.Action{Kind: agents.ActionConflict, Other: bb.Threat.ID, Detail: fmt.Sprintf("agent %d", bb.Threat.ID)}
	}
}

// endangered: a hostile agent is close and the agent is cautious enough
// to run from it.
func endangered(cfg Config) bt.CheckFunc {
	return func(bb *blackboard.Blackboard) bool {
		return bb.Threat.Present &&
			bb.Threat.Dist <= cfg.FleeRadius &&
			bb.Personality.Caution >= cfg.FleeCaution
	}
}

// flee heads for a cell FleeDistance away from the threat. It keeps
// running while the threat is near, even when no route exists.
func flee(cfg Config) bt.ActionFunc {
	return func(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
		if !bb.Threat.Present {
			return bt.Failure, agents.Action{}
		}
		away := bb.Pos.Sub(bb.Threat.Pos)
		l := away.Len()
		if l < 1e-9 {
			// Standing on the threat: pick a fixed per-agent direction.
			h := float64(entropy.Mix(int64(bb.Self), bb.Tick)%360) * math.Pi / 180
			away, l = world.Vec2{X: math.Cos(h), Y: math.Sin(h)}, 1
		}
		dest := world.CellOf(bb.Pos.Add(away.Scale(cfg.FleeDistance / l)))
		bb.RouteTo(dest)
		return bt.Running, agents.Action{
			Kind:    agents.ActionFlee,
			Other:   bb.Threat.ID,
			Dest:    dest,
			HasDest: true,
			Detail:  fmt.Sprintf("agent %d", bb.Threat.ID),
		}
	}
}

// wander picks a cell within WanderRadius of home (or of the agent when
// homeless), stable for WanderPeriod ticks. It never fails.
func wander(cfg Config) bt.ActionFunc {
	span := uint64(2*cfg.WanderRadius + 1)
	period := cfg.WanderPeriod
	if period == 0 {
		period = 1
	}
	return func(bb *blackboard.Blackboard) (bt.Status, agents.Action) {
		anchor := bb.Cell
		if home := bb.Dest[world.POIHome]; home.OK {
			anchor = home.Cell
		}
		h := entropy.Mix(int64(bb.Self), bb.Tick/period)
		dest := anchor.Add(world.Cell{
			X: int(h%span) - cfg.WanderRadius,
			Y: int((h>>32)%span) - cfg.WanderRadius,
		})
		act := agents.Action{Kind: agents.ActionWander}
		if dest != bb.Cell && bb.RouteTo(dest) {
			act.Dest, act.HasDest = dest, true
		}
		return bt.Success, act
	}
}
