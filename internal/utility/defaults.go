package utility

import "github.com/talgya/mini-city/internal/phi"

// Option names used by the city behavior library and archetype weights.
const (
	OptEat       = "eat"
	OptRest      = "rest"
	OptWork      = "work"
	OptSocialize = "socialize"
	OptShare     = "share"
	OptTrade     = "trade"
	OptConflict  = "conflict"
	OptWander    = "wander"
)

// DefaultOptions returns the baseline option table. Need urgencies carry
// most of the weight; personality traits tilt it.
func DefaultOptions() []Option {
	return []Option{
		{
			Name: OptEat,
			Considerations: []Consideration{
				{Key: "need.hunger", Weight: 1.0, Curve: Curve{Kind: CurvePower, Exponent: 1.5}},
			},
		},
		{
			Name: OptRest,
			Considerations: []Consideration{
				{Key: "need.energy", Weight: 0.9, Curve: Curve{Kind: CurvePower, Exponent: 1.5}},
			},
		},
		{
			Name: OptWork,
			Considerations: []Consideration{
				{Key: "need.wealth", Weight: 0.5},
				{Key: "need.achievement", Weight: 0.4},
				{Key: "trait.diligence", Weight: 0.3},
			},
			Require: []Gate{{Key: "known.work", Min: 1}},
		},
		{
			Name: OptSocialize,
			Considerations: []Consideration{
				{Key: "need.social", Weight: 0.8},
				{Key: "trait.sociability", Weight: 0.3},
			},
		},
		{
			// Friends share; strangers don't.
			Name: OptShare,
			Considerations: []Consideration{
				{Key: "partner.rel", Weight: 1.0, Min: 0, Max: 100},
				{Key: "trait.generosity", Weight: 0.4},
			},
			Require: []Gate{{Key: "partner.present", Min: 1}, {Key: "partner.rel", Min: 1}},
		},
		{
			Name: OptTrade,
			Base: 0.2,
			Considerations: []Consideration{
				{Key: "need.wealth", Weight: 0.5},
				{Key: "trait.greed", Weight: 0.3},
			},
			Require: []Gate{{Key: "partner.present", Min: 1}},
		},
		{
			Name: OptConflict,
			Considerations: []Consideration{
				{Key: "threat.rel", Weight: 0.6, Min: -100, Max: 0, Curve: Curve{Kind: CurveInverse}},
				{Key: "trait.caution", Weight: 0.4, Curve: Curve{Kind: CurveInverse}},
			},
			Require: []Gate{{Key: "threat.present", Min: 1}},
		},
		{
			Name: OptWander,
			Base: phi.Agnosis * 0.5,
			Considerations: []Consideration{
				{Key: "trait.curiosity", Weight: 0.2},
			},
		},
	}
}
