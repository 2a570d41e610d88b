package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/blackboard"
)

func emit(kind agents.ActionKind, s Status) *Node {
	return Action(kind.String(), func(*blackboard.Blackboard) (Status, agents.Action) {
		return s, agents.Action{Kind: kind}
	})
}

// script returns an action that replays statuses, then repeats the last.
func script(name string, seq ...Status) (*Node, *int) {
	calls := 0
	return Action(name, func(*blackboard.Blackboard) (Status, agents.Action) {
		s := seq[len(seq)-1]
		if calls < len(seq) {
			s = seq[calls]
		}
		calls++
		return s, agents.Action{Kind: agents.ActionSeek, Detail: name}
	}), &calls
}

func hungry(v float64) *blackboard.Blackboard {
	bb := &blackboard.Blackboard{}
	bb.Urgency[agents.NeedHunger] = v
	return bb
}

func TestCompileRejectsBadDefinitions(t *testing.T) {
	loop := Sequence("loop", emit(agents.ActionIdle, Success))
	loop.Children = append(loop.Children, loop)
	_, err := Compile("cycle", loop)
	assert.ErrorIs(t, err, ErrCycle)

	leaf := emit(agents.ActionIdle, Success)
	_, err = Compile("shared", Selector("s", leaf, Inverter("i", leaf)))
	assert.ErrorIs(t, err, ErrSharedNode)

	_, err = Compile("arity", &Node{Kind: KindInverter})
	assert.ErrorIs(t, err, ErrArity)
	_, err = Compile("empty", Sequence("s"))
	assert.ErrorIs(t, err, ErrArity)

	_, err = Compile("nil", Inverter("i", nil))
	assert.ErrorIs(t, err, ErrNilNode)

	_, err = Compile("key", Condition("c", "need.boredom", OpGT, 0.5))
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Contains(t, err.Error(), "need.boredom")

	_, err = Compile("checkkey", Check("c", []string{"nope"}, func(*blackboard.Blackboard) bool { return true }))
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = Compile("func", Action("a", nil))
	assert.ErrorIs(t, err, ErrMissingFunc)

	_, err = Compile("scorer", UtilitySelector("u", emit(agents.ActionIdle, Success)))
	assert.ErrorIs(t, err, ErrMissingScorer)

	_, err = Compile("repeat", Repeater("r", -1, emit(agents.ActionIdle, Success)))
	assert.ErrorIs(t, err, ErrInvalidNode)

	tree, err := Compile("ok", Selector("root",
		Sequence("eat", Condition("hungry", "need.hunger", OpGE, 0.6), emit(agents.ActionEat, Success)),
		emit(agents.ActionWander, Success),
	))
	require.NoError(t, err)
	assert.Equal(t, 5, tree.Len())
	assert.Equal(t, "ok", tree.Name())
}

func TestSelectorFallsBack(t *testing.T) {
	tree := MustCompile("t", Selector("root",
		Sequence("eat", Condition("hungry", "need.hunger", OpGE, 0.6), emit(agents.ActionEat, Success)),
		emit(agents.ActionWander, Success),
	))
	in := NewInstance(tree)

	r := in.Tick(hungry(0.9))
	assert.Equal(t, Success, r.Status)
	assert.Equal(t, agents.ActionEat, r.Intent().Kind)
	assert.Equal(t, "eat", r.Leaf)

	r = in.Tick(hungry(0.1))
	assert.Equal(t, agents.ActionWander, r.Intent().Kind)
}

func TestTickIsDeterministic(t *testing.T) {
	tree := MustCompile("t", Selector("root",
		Sequence("eat", Condition("hungry", "need.hunger", OpGE, 0.6), emit(agents.ActionEat, Success)),
		Inverter("not", Condition("calm", "need.hunger", OpLT, 0.2)),
		emit(agents.ActionWander, Success),
	))
	for _, v := range []float64{0, 0.3, 0.7} {
		in := NewInstance(tree)
		bb := hungry(v)
		assert.Equal(t, in.Tick(bb), in.Tick(bb))
	}
}

func TestSequenceResumesRunningChild(t *testing.T) {
	cond, condCalls := script("cond", Success)
	walk, walkCalls := script("walk", Running, Running, Success)
	in := NewInstance(MustCompile("t", Sequence("s", cond, walk)))

	bb := hungry(0)
	assert.Equal(t, Running, in.Tick(bb).Status)
	assert.True(t, in.Running())
	assert.Equal(t, Running, in.Tick(bb).Status)
	assert.Equal(t, Success, in.Tick(bb).Status)
	assert.False(t, in.Running())
	assert.Equal(t, 1, *condCalls, "condition is not re-checked while the sequence runs")
	assert.Equal(t, 3, *walkCalls)
}

func TestFailedActionEmitsNothing(t *testing.T) {
	in := NewInstance(MustCompile("t", emit(agents.ActionSeek, Failure)))
	r := in.Tick(hungry(0))
	assert.Equal(t, Failure, r.Status)
	assert.Empty(t, r.Intents)
	assert.Equal(t, agents.ActionIdle, r.Intent().Kind)
}

func TestDecorators(t *testing.T) {
	bb := hungry(0)

	inv := NewInstance(MustCompile("inv", Inverter("i", emit(agents.ActionIdle, Failure))))
	assert.Equal(t, Success, inv.Tick(bb).Status)

	walk, _ := script("walk", Running)
	suc := NewInstance(MustCompile("suc", Succeeder("s", walk)))
	assert.Equal(t, Success, suc.Tick(bb).Status)
	assert.True(t, suc.state[1].running, "running child keeps its state")

	stroll := Repeater("stroll", 3, emit(agents.ActionWander, Success))
	long := NewInstance(MustCompile("long", Succeeder("s", stroll)))
	for i := 1; i <= 2; i++ {
		assert.Equal(t, Success, long.Tick(bb).Status)
		assert.Equal(t, i, long.state[1].count, "repeater progress survives the succeeder")
	}
	assert.Equal(t, Success, long.Tick(bb).Status)
	assert.False(t, long.state[1].running)

	step, steps := script("step", Success, Failure, Success, Success)
	rep := NewInstance(MustCompile("rep", Repeater("r", 3, step)))
	assert.Equal(t, Running, rep.Tick(bb).Status)
	assert.Equal(t, Running, rep.Tick(bb).Status, "child failure is ignored")
	assert.Equal(t, Success, rep.Tick(bb).Status)
	assert.Equal(t, 3, *steps)
	assert.Equal(t, Running, rep.Tick(bb).Status, "count resets after completing")

	forever := NewInstance(MustCompile("forever", Repeater("r", 0, emit(agents.ActionIdle, Success))))
	for i := 0; i < 10; i++ {
		assert.Equal(t, Running, forever.Tick(bb).Status)
	}
}

func TestParallelPolicies(t *testing.T) {
	bb := hungry(0)

	a, _ := script("a", Running, Success)
	b, bCalls := script("b", Success)
	all := NewInstance(MustCompile("all", Parallel("p", RequireAll, a, b)))
	assert.Equal(t, Running, all.Tick(bb).Status)
	assert.Equal(t, Success, all.Tick(bb).Status)
	assert.Equal(t, 1, *bCalls, "finished children are not re-ticked")

	c, _ := script("c", Running)
	d := emit(agents.ActionIdle, Failure)
	fail := NewInstance(MustCompile("fail", Parallel("p", RequireAll, c, d)))
	assert.Equal(t, Failure, fail.Tick(bb).Status)
	assert.False(t, fail.state[1].running, "siblings are halted on completion")

	e, _ := script("e", Running, Running, Success)
	f := emit(agents.ActionIdle, Failure)
	one := NewInstance(MustCompile("one", Parallel("p", RequireOne, e, f)))
	assert.Equal(t, Running, one.Tick(bb).Status)
	assert.Equal(t, Running, one.Tick(bb).Status)
	assert.Equal(t, Success, one.Tick(bb).Status)

	none := NewInstance(MustCompile("none", Parallel("p", RequireOne, emit(agents.ActionIdle, Failure), emit(agents.ActionRest, Failure))))
	assert.Equal(t, Failure, none.Tick(bb).Status)
}

func TestReactiveSelectorPreemptsRunningChild(t *testing.T) {
	rep := Repeater("patrol", 5, emit(agents.ActionWander, Success))
	tree := MustCompile("t", ReactiveSelector("root",
		Sequence("eat", Condition("hungry", "need.hunger", OpGE, 0.6), emit(agents.ActionEat, Success)),
		rep,
	))
	in := NewInstance(tree)
	repIdx := 4 // root, eat, hungry, eat-action, patrol
	require.Same(t, rep, tree.nodes[repIdx])

	assert.Equal(t, Running, in.Tick(hungry(0)).Status)
	assert.Equal(t, Running, in.Tick(hungry(0)).Status)
	assert.Equal(t, 2, in.state[repIdx].count)

	r := in.Tick(hungry(0.9))
	assert.Equal(t, Success, r.Status)
	assert.Equal(t, agents.ActionEat, r.Intent().Kind)
	assert.Zero(t, in.state[repIdx].count, "preempted repeater is reset")

	// A plain selector would have resumed the repeater instead.
	plain := NewInstance(MustCompile("p", Selector("root",
		Sequence("eat", Condition("hungry", "need.hunger", OpGE, 0.6), emit(agents.ActionEat, Success)),
		Repeater("patrol", 5, emit(agents.ActionWander, Success)),
	)))
	plain.Tick(hungry(0))
	r = plain.Tick(hungry(0.9))
	assert.Equal(t, agents.ActionWander, r.Intent().Kind)
}

func TestUtilitySelectorRanksAndFallsBack(t *testing.T) {
	fixed := func(v float64) Scorer { return ScorerFunc(func(*blackboard.Blackboard) float64 { return v }) }
	tree := MustCompile("t", UtilitySelector("root",
		Scored(fixed(0.2), emit(agents.ActionWork, Success)),
		Scored(fixed(0.9), emit(agents.ActionTrade, Failure)),
		Scored(fixed(0.5), emit(agents.ActionShare, Success)),
		Scored(fixed(0.5), emit(agents.ActionTalk, Success)),
	))
	r := NewInstance(tree).Tick(hungry(0))

	assert.Equal(t, Success, r.Status)
	assert.Equal(t, agents.ActionShare, r.Intent().Kind, "trade fails, share wins the tie by declaration order")
	require.Len(t, r.Ranking, 4)
	assert.Equal(t, []string{"trade", "share", "talk", "work"},
		[]string{r.Ranking[0].Name, r.Ranking[1].Name, r.Ranking[2].Name, r.Ranking[3].Name})
}

func TestReactiveUtilityHaltsDemotedChild(t *testing.T) {
	byHunger := ScorerFunc(func(bb *blackboard.Blackboard) float64 { return bb.Urgency[agents.NeedHunger] })
	rep := Repeater("stroll", 10, emit(agents.ActionWander, Success))
	tree := MustCompile("t", ReactiveUtility("root",
		Scored(byHunger, emit(agents.ActionEat, Success)),
		Scored(ScorerFunc(func(*blackboard.Blackboard) float64 { return 0.5 }), rep),
	))
	in := NewInstance(tree)

	assert.Equal(t, agents.ActionWander, in.Tick(hungry(0.1)).Intent().Kind)
	assert.Equal(t, 1, in.state[2].count)

	r := in.Tick(hungry(0.9))
	assert.Equal(t, agents.ActionEat, r.Intent().Kind)
	assert.Zero(t, in.state[2].count)
	assert.False(t, in.Running())
}

func TestReactiveUtilityRerankDropsRunningChild(t *testing.T) {
	scores := []float64{0.3, 0.2, 0.1}
	at := func(k int) Scorer {
		return ScorerFunc(func(*blackboard.Blackboard) float64 { return scores[k] })
	}
	a, _ := script("a", Failure, Success)
	b, _ := script("b", Failure)
	c, _ := script("c", Running)
	in := NewInstance(MustCompile("t", ReactiveUtility("root",
		Scored(at(0), a), Scored(at(1), b), Scored(at(2), c),
	)))

	require.Equal(t, Running, in.Tick(hungry(0)).Status)
	require.True(t, in.state[3].running)

	scores = []float64{0.3, 0, 0}
	var r Result
	require.NotPanics(t, func() { r = in.Tick(hungry(0)) })
	assert.Equal(t, Success, r.Status)
	assert.False(t, in.state[3].running, "dropped child is halted")
	assert.False(t, in.Running())
}

func TestReactiveUtilityRerankKeepsRunningChild(t *testing.T) {
	scores := []float64{0.3, 0.2, 0.1}
	at := func(k int) Scorer {
		return ScorerFunc(func(*blackboard.Blackboard) float64 { return scores[k] })
	}
	a, aCalls := script("a", Failure)
	b, _ := script("b", Failure)
	c, cCalls := script("c", Running)
	in := NewInstance(MustCompile("t", ReactiveUtility("root",
		Scored(at(0), a), Scored(at(1), b), Scored(at(2), c),
	)))

	require.Equal(t, Running, in.Tick(hungry(0)).Status)

	scores = []float64{0.1, 0, 0.5}
	assert.Equal(t, Running, in.Tick(hungry(0)).Status)
	assert.True(t, in.state[3].running)
	assert.Equal(t, 2, *cCalls)
	assert.Equal(t, 1, *aCalls, "lower-ranked sibling is not ticked")
}

func TestUtilitySkipsZeroScores(t *testing.T) {
	fixed := func(v float64) Scorer { return ScorerFunc(func(*blackboard.Blackboard) float64 { return v }) }
	in := NewInstance(MustCompile("t", Selector("root",
		UtilitySelector("choose",
			Scored(fixed(0), emit(agents.ActionWork, Success)),
			Scored(fixed(0.3), emit(agents.ActionSeek, Failure)),
		),
		emit(agents.ActionWander, Success),
	)))
	r := in.Tick(hungry(0))
	assert.Equal(t, agents.ActionWander, r.Intent().Kind)
	require.Len(t, r.Ranking, 2)
	assert.Equal(t, "seek", r.Ranking[0].Name)
}
