package utility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/blackboard"
)

func options(t *testing.T) []*Option {
	t.Helper()
	var out []*Option
	for _, o := range DefaultOptions() {
		o := o
		require.NoError(t, o.Validate())
		out = append(out, &o)
	}
	return out
}

func average() agents.Personality {
	return agents.Personality{Sociability: 0.5, Caution: 0.5, Greed: 0.5, Generosity: 0.5, Diligence: 0.5, Curiosity: 0.5}
}

func TestCurves(t *testing.T) {
	assert.Equal(t, 0.3, Curve{}.Eval(0.3))
	assert.InDelta(t, 0.7, Curve{Kind: CurveInverse}.Eval(0.3), 1e-9)
	assert.InDelta(t, 0.25, Curve{Kind: CurvePower, Exponent: 2}.Eval(0.5), 1e-9)
	assert.InDelta(t, 0.5, Curve{Kind: CurveLogistic, Steepness: 10, Mid: 0.4}.Eval(0.4), 1e-9)
	assert.Equal(t, 1.0, Curve{Kind: CurveStep, Mid: 0.5}.Eval(0.5))
	assert.Equal(t, 0.0, Curve{Kind: CurveStep, Mid: 0.5}.Eval(0.49))
	assert.Equal(t, 1.0, Curve{Kind: CurveLinear, Slope: 3}.Eval(0.5))
	assert.Equal(t, 0.0, Curve{Kind: CurveLinear, Slope: 1, Intercept: math.NaN()}.Eval(0.5))

	assert.ErrorIs(t, Curve{Kind: "cubic"}.Validate(), ErrUnknownCurve)
}

func TestValidate(t *testing.T) {
	o := Option{Name: "x", Considerations: []Consideration{{Key: "need.boredom", Weight: 1}}}
	assert.ErrorIs(t, o.Validate(), ErrUnknownKey)

	o = Option{Name: "x", Considerations: []Consideration{{Key: "partner.rel", Min: 5, Max: 5}}}
	assert.ErrorIs(t, o.Validate(), ErrBadRange)

	o = Option{Name: "x", Require: []Gate{{Key: "nope"}}}
	assert.ErrorIs(t, o.Validate(), ErrUnknownKey)

	assert.ErrorIs(t, (&Option{}).Validate(), ErrNoName)
}

// Two friends (relationship 60) meet: sharing outranks trading.
func TestFriendsShareRatherThanTrade(t *testing.T) {
	bb := &blackboard.Blackboard{Personality: average()}
	bb.Partner = blackboard.Other{ID: 2, Present: true, Rel: 60, Dist: 1}
	bb.Urgency[agents.NeedWealth] = 0.2
	bb.Urgency[agents.NeedSocial] = 0.2

	ranked := Rank(bb, options(t))
	pos := map[string]int{}
	for i, r := range ranked {
		pos[r.Name] = i
	}
	assert.Less(t, pos[OptShare], pos[OptTrade])
	assert.Equal(t, OptShare, Best(bb, options(t)))

	share := ranked[pos[OptShare]].Score
	trade := ranked[pos[OptTrade]].Score
	assert.InDelta(t, 0.6+0.5*0.4, share, 1e-9)
	assert.InDelta(t, 0.2+0.2*0.5+0.5*0.3, trade, 1e-9)
}

func TestGatesZeroTheScore(t *testing.T) {
	bb := &blackboard.Blackboard{Personality: average()}
	for _, o := range options(t) {
		switch o.Name {
		case OptShare, OptTrade, OptConflict, OptWork:
			assert.Zero(t, o.Score(bb), o.Name)
		}
	}

	// Hostile partners are never shared with.
	bb.Partner = blackboard.Other{ID: 2, Present: true, Rel: -20}
	for _, o := range options(t) {
		if o.Name == OptShare {
			assert.Zero(t, o.Score(bb))
		}
	}
}

func TestHungerDominates(t *testing.T) {
	bb := &blackboard.Blackboard{Personality: average()}
	bb.Urgency[agents.NeedHunger] = 0.9
	bb.Urgency[agents.NeedEnergy] = 0.2
	assert.Equal(t, OptEat, Best(bb, options(t)))
}

func TestTiesKeepDeclarationOrder(t *testing.T) {
	bb := &blackboard.Blackboard{}
	opts := []*Option{{Name: "a", Base: 0.5}, {Name: "b", Base: 0.5}, {Name: "c", Base: 0.7}}
	r := Rank(bb, opts)
	assert.Equal(t, []Ranked{{"c", 0.7}, {"a", 0.5}, {"b", 0.5}}, r)
	assert.Equal(t, "", Best(bb, nil))
}

func TestMultiplier(t *testing.T) {
	bb := &blackboard.Blackboard{}
	o := Option{Name: "a", Base: 0.4}
	scaled := o.WithMultiplier(1.5)
	assert.InDelta(t, 0.6, scaled.Score(bb), 1e-9)
	assert.InDelta(t, 0.4, o.Score(bb), 1e-9)

	neg := Option{Name: "n", Base: -1}
	assert.Zero(t, neg.Score(bb))

	off := o.WithMultiplier(0)
	assert.Zero(t, off.Score(bb), "a zero multiplier disables the option")
	assert.NoError(t, off.Validate())

	bad := o.WithMultiplier(-2)
	assert.ErrorIs(t, bad.Validate(), ErrBadWeight)
}
