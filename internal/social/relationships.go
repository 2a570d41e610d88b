// Package social holds the relationship store: signed dispositions between
// agents keyed by (from, to) id pairs, updated only by interaction outcomes.
package social

import (
	"sort"

	"github.com/talgya/mini-city/internal/agents"
)

// Relationship bounds.
const (
	MinScore = -100
	MaxScore = 100
)

// Pair is a directed (from, to) key. Relationships may be asymmetric.
type Pair struct {
	From agents.AgentID `json:"from"`
	To   agents.AgentID `json:"to"`
}

// Entry is one stored relationship.
type Entry struct {
	Pair
	Score int `json:"score"`
}

// Outcome is an interaction result that moves relationships.
type Outcome uint8

const (
	OutcomeTalk Outcome = iota
	OutcomeTrade
	OutcomeHelp
	OutcomeConflict
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeTalk:
		return "talk"
	case OutcomeTrade:
		return "trade"
	case OutcomeHelp:
		return "help"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Deltas are the relationship changes per outcome. Actor is the agent who
// initiated; Target is the agent acted upon.
type Deltas struct {
	TalkActor      int `yaml:"talk_actor"`
	TalkTarget     int `yaml:"talk_target"`
	TradeActor     int `yaml:"trade_actor"`
	TradeTarget    int `yaml:"trade_target"`
	HelpActor      int `yaml:"help_actor"`
	HelpTarget     int `yaml:"help_target"`
	ConflictActor  int `yaml:"conflict_actor"`
	ConflictTarget int `yaml:"conflict_target"`
}

// For returns (actor->target, target->actor) deltas for an outcome.
func (d Deltas) For(o Outcome) (int, int) {
	switch o {
	case OutcomeTalk:
		return d.TalkActor, d.TalkTarget
	case OutcomeTrade:
		return d.TradeActor, d.TradeTarget
	case OutcomeHelp:
		return d.HelpActor, d.HelpTarget
	case OutcomeConflict:
		return d.ConflictActor, d.ConflictTarget
	default:
		return 0, 0
	}
}

// Store maps (from, to) pairs to scores in [MinScore, MaxScore].
// Unknown pairs read as 0.
type Store struct {
	scores map[Pair]int
}

// NewStore creates an empty relationship store.
func NewStore() *Store {
	return &Store{scores: make(map[Pair]int)}
}

// Get returns from's disposition toward to; 0 when unknown.
func (s *Store) Get(from, to agents.AgentID) int {
	return s.scores[Pair{From: from, To: to}]
}

// Adjust adds delta to from's disposition toward to, clamps the result
// and returns it.
func (s *Store) Adjust(from, to agents.AgentID, delta int) int {
	if from == to {
		return 0
	}
	k := Pair{From: from, To: to}
	v := clampScore(s.scores[k] + delta)
	s.scores[k] = v
	return v
}

// Set stores a score directly, clamped. Used when restoring saved worlds
// and seeding scenarios.
func (s *Store) Set(from, to agents.AgentID, score int) {
	if from == to {
		return
	}
	s.scores[Pair{From: from, To: to}] = clampScore(score)
}

// Change records one side's score before and after an outcome.
type Change struct {
	Pair
	Before int
	After  int
}

// ApplyOutcome moves both directions of the (actor, target) relationship
// by the outcome's deltas. Actor's side is applied first.
func (s *Store) ApplyOutcome(actor, target agents.AgentID, o Outcome, d Deltas) [2]Change {
	da, dt := d.For(o)
	var out [2]Change
	out[0] = Change{Pair: Pair{From: actor, To: target}, Before: s.Get(actor, target)}
	out[0].After = s.Adjust(actor, target, da)
	out[1] = Change{Pair: Pair{From: target, To: actor}, Before: s.Get(target, actor)}
	out[1].After = s.Adjust(target, actor, dt)
	return out
}

// Len returns the number of stored pairs.
func (s *Store) Len() int { return len(s.scores) }

// Entries returns every stored relationship sorted by (from, to).
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.scores))
	for k, v := range s.scores {
		out = append(out, Entry{Pair: k, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Of returns from's relationships sorted by descending score, then by id.
func (s *Store) Of(from agents.AgentID) []Entry {
	var out []Entry
	for k, v := range s.scores {
		if k.From == from {
			out = append(out, Entry{Pair: k, Score: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].To < out[j].To
	})
	return out
}

// Forget removes every relationship to or from id.
func (s *Store) Forget(id agents.AgentID) {
	for k := range s.scores {
		if k.From == id || k.To == id {
			delete(s.scores, k)
		}
	}
}

func clampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// Band names the coarse standing a score falls in. Crossing a band is
// reported as a relationship change.
func Band(score int) string {
	switch {
	case score <= -50:
		return "hostile"
	case score < -10:
		return "wary"
	case score <= 10:
		return "neutral"
	case score < 50:
		return "friendly"
	default:
		return "close"
	}
}
