// Interaction resolution: two-party intents staged during the act phase
// are applied once per tick in a fixed order, so relationship updates
// never depend on agent iteration order.
package engine

import (
	"fmt"
	"sort"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/social"
	"github.com/talgya/mini-city/internal/world"
)

// pairKey orders staged intents by (lower id, higher id, kind, actor).
func (st staged) pairKey() (agents.AgentID, agents.AgentID) {
	if st.actor < st.target {
		return st.actor, st.target
	}
	return st.target, st.actor
}

// resolve applies staged interactions. Each agent takes part in at most
// one interaction per tick; the partner must still be in range.
func (s *Simulation) resolve(tick uint64) {
	sort.Slice(s.staged, func(i, j int) bool {
		ai, bi := s.staged[i].pairKey()
		aj, bj := s.staged[j].pairKey()
		if ai != aj {
			return ai < aj
		}
		if bi != bj {
			return bi < bj
		}
		if s.staged[i].kind != s.staged[j].kind {
			return s.staged[i].kind < s.staged[j].kind
		}
		return s.staged[i].actor < s.staged[j].actor
	})

	busy := make(map[agents.AgentID]bool, 2*len(s.staged))
	for _, st := range s.staged {
		if busy[st.actor] || busy[st.target] {
			continue
		}
		actor, target := s.index[st.actor], s.index[st.target]
		if actor == nil || target == nil || !target.Alive {
			continue
		}
		if world.Dist(actor.Position, target.Position) > s.cfg.Perception.InteractRadius {
			continue
		}
		if !s.interact(actor, target, st.kind, tick) {
			continue
		}
		busy[st.actor], busy[st.target] = true, true
		s.stats.Interactions++
	}
}

// interact applies one interaction and reports whether it happened.
func (s *Simulation) interact(actor, target *NPC, kind agents.ActionKind, tick uint64) bool {
	o := s.cfg.Outcomes
	var (
		outcome social.Outcome
		memKind agents.EventKind
		detail  string
	)
	switch kind {
	case agents.ActionTalk:
		s.Needs.Satisfy(actor.Agent, agents.NeedSocial, o.TalkSocial)
		s.Needs.Satisfy(target.Agent, agents.NeedSocial, o.TalkSocial)
		outcome, memKind = social.OutcomeTalk, agents.EventTalk

	case agents.ActionShare:
		what, ok := give(actor.Agent, target.Agent)
		if !ok {
			return false
		}
		if what == "food" {
			s.Needs.Satisfy(target.Agent, agents.NeedHunger, o.ShareHunger)
		}
		s.Needs.Satisfy(actor.Agent, agents.NeedSocial, o.ShareSocial)
		s.Needs.Satisfy(target.Agent, agents.NeedSocial, o.ShareSocial)
		outcome, memKind, detail = social.OutcomeHelp, agents.EventShare, what

	case agents.ActionTrade:
		seller, buyer := actor, target
		if actor.Inventory.Count(economy.GoodWares) == 0 {
			seller, buyer = target, actor
		}
		price, ok := sellWares(seller.Agent, buyer.Agent, s.Relations.Get(buyer.ID, seller.ID))
		if !ok {
			return false
		}
		s.Needs.Satisfy(seller.Agent, agents.NeedWealth, o.TradeWealth)
		outcome, memKind = social.OutcomeTrade, agents.EventTrade
		detail = fmt.Sprintf("wares for %d", price)

	case agents.ActionConflict:
		s.Needs.Satisfy(actor.Agent, agents.NeedSafety, -o.ConflictSafety)
		s.Needs.Satisfy(target.Agent, agents.NeedSafety, -o.ConflictSafety)
		outcome, memKind = social.OutcomeConflict, agents.EventConflict

	default:
		return false
	}

	changes := s.Relations.ApplyOutcome(actor.ID, target.ID, outcome, s.cfg.Relations)
	da, dt := s.cfg.Relations.For(outcome)
	s.rememberPair(actor, target, memKind, float64(da)/10, detail, tick, true)
	s.rememberPair(target, actor, memKind, float64(dt)/10, detail, tick, false)

	for i, ch := range changes {
		if social.Band(ch.Before) == social.Band(ch.After) {
			continue
		}
		self, other := actor, target
		if i == 1 {
			self, other = target, actor
		}
		self.Memory.Record(agents.MemoryEvent{
			Tick:         tick,
			Kind:         agents.EventRelationship,
			Participants: []agents.AgentID{self.ID, other.ID},
			Magnitude:    float64(ch.After-ch.Before) / 10,
		})
		s.emit(Event{
			Tick:      tick,
			Kind:      agents.EventRelationship.String(),
			Actor:     self.ID,
			Target:    other.ID,
			Magnitude: float64(ch.After),
			Detail:    fmt.Sprintf("%s -> %s", social.Band(ch.Before), social.Band(ch.After)),
		})
	}
	return true
}

// rememberPair records the interaction in self's memory. Only the actor's
// side is emitted so each interaction appears once in the event stream.
func (s *Simulation) rememberPair(self, other *NPC, kind agents.EventKind, magnitude float64, detail string, tick uint64, emit bool) {
	self.Memory.Record(agents.MemoryEvent{
		Tick:         tick,
		Kind:         kind,
		Participants: []agents.AgentID{self.ID, other.ID},
		Magnitude:    magnitude,
	})
	if emit && significant(kind, magnitude, s.cfg.Memory.Significance) {
		s.emit(Event{
			Tick:      tick,
			Kind:      kind.String(),
			Actor:     self.ID,
			Target:    other.ID,
			Magnitude: magnitude,
			Detail:    detail,
		})
	}
}

// give hands the target a meal, else a gift, else a coin.
func give(from, to *agents.Agent) (string, bool) {
	switch {
	case from.Inventory.Take(economy.GoodFood, 1):
		return economy.GoodName(economy.GoodFood), true
	case from.Inventory.Take(economy.GoodGifts, 1):
		to.Inventory.Add(economy.GoodGifts, 1)
		return economy.GoodName(economy.GoodGifts), true
	case from.Inventory.Spend(1):
		to.Inventory.Earn(1)
		return "coin", true
	}
	return "", false
}

// sellWares moves one unit of wares from seller to buyer at the price the
// buyer's disposition earns.
func sellWares(seller, buyer *agents.Agent, rel int) (int64, bool) {
	price := economy.Price(economy.GoodWares, rel)
	if seller.Inventory.Count(economy.GoodWares) == 0 || buyer.Inventory.Money < price {
		return 0, false
	}
	seller.Inventory.Take(economy.GoodWares, 1)
	buyer.Inventory.Spend(price)
	buyer.Inventory.Add(economy.GoodWares, 1)
	seller.Inventory.Earn(price)
	return price, true
}
