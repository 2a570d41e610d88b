package bt

import (
	"math"
	"sort"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/blackboard"
)

// nodeState is the per-agent runtime state of one node.
type nodeState struct {
	cursor   int      // Sequence/Selector/Utility: position of the running child
	count    int      // Repeater: completed iterations
	running  bool     // Node returned Running last time it was ticked
	finished []bool   // Parallel: children already done this run
	results  []Status // Parallel: their results
	order    []int    // Utility: ranked child positions for the current run
}

// Option is one scored utility child, reported for inspection.
type Option struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Result is the outcome of one tree tick.
type Result struct {
	Status  Status
	Intents []agents.Action
	// Leaf is the name of the first action leaf that emitted an intent.
	Leaf string
	// Ranking is the most recent utility ranking evaluated this tick.
	Ranking []Option
}

// Intent returns the first emitted intent, or Idle.
func (r Result) Intent() agents.Action {
	if len(r.Intents) == 0 {
		return agents.Action{Kind: agents.ActionIdle}
	}
	return r.Intents[0]
}

// Instance is one agent's runtime state for a shared Tree.
type Instance struct {
	tree  *Tree
	state []nodeState
	res   *Result
}

// NewInstance creates fresh runtime state for t.
func NewInstance(t *Tree) *Instance {
	return &Instance{tree: t, state: make([]nodeState, len(t.nodes))}
}

// Tree returns the shared definition.
func (in *Instance) Tree() *Tree { return in.tree }

// Running reports whether the root is mid-run.
func (in *Instance) Running() bool { return in.state[0].running }

// Reset halts every running node.
func (in *Instance) Reset() { in.halt(0) }

// Tick evaluates the tree once against bb. The blackboard is only read.
func (in *Instance) Tick(bb *blackboard.Blackboard) Result {
	var r Result
	in.res = &r
	r.Status = in.tick(0, bb)
	in.res = nil
	return r
}

// halt resets the subtree rooted at i.
func (in *Instance) halt(i int) {
	for j := i; j < in.tree.end[i]; j++ {
		st := &in.state[j]
		st.cursor, st.count, st.running = 0, 0, false
		st.order = st.order[:0]
		for k := range st.finished {
			st.finished[k] = false
		}
	}
}

func (in *Instance) tick(i int, bb *blackboard.Blackboard) Status {
	n := in.tree.nodes[i]
	var s Status
	switch n.Kind {
	case KindSequence:
		s = in.tickSequence(i, bb)
	case KindSelector:
		s = in.tickSelector(i, in.tree.children[i], n.Reactive, bb)
	case KindUtility:
		s = in.tickUtility(i, bb)
	case KindParallel:
		s = in.tickParallel(i, bb)
	case KindInverter:
		s = in.tick(in.tree.children[i][0], bb)
		switch s {
		case Success:
			s = Failure
		case Failure:
			s = Success
		}
	case KindRepeater:
		s = in.tickRepeater(i, bb)
	case KindSucceeder:
		// A running child keeps its state and resumes on the next tick.
		in.tick(in.tree.children[i][0], bb)
		s = Success
	case KindCondition:
		s = evalCondition(n, bb)
	case KindAction:
		var act agents.Action
		s, act = n.Act(bb)
		if s != Failure {
			in.res.Intents = append(in.res.Intents, act)
			if in.res.Leaf == "" {
				in.res.Leaf = n.Name
			}
		}
	default:
		s = Failure
	}
	in.state[i].running = s == Running
	return s
}

func evalCondition(n *Node, bb *blackboard.Blackboard) Status {
	if n.Check != nil {
		if n.Check(bb) {
			return Success
		}
		return Failure
	}
	v, ok := bb.Lookup(n.Key)
	if ok && n.Op.eval(v, n.Value) {
		return Success
	}
	return Failure
}

func (in *Instance) tickSequence(i int, bb *blackboard.Blackboard) Status {
	st := &in.state[i]
	kids := in.tree.children[i]
	for st.cursor < len(kids) {
		switch in.tick(kids[st.cursor], bb) {
		case Running:
			return Running
		case Failure:
			st.cursor = 0
			return Failure
		}
		st.cursor++
	}
	st.cursor = 0
	return Success
}

// tickSelector runs a selector over kids (child node indices in priority
// order). Reactive selectors start from the top every tick.
func (in *Instance) tickSelector(i int, kids []int, reactive bool, bb *blackboard.Blackboard) Status {
	st := &in.state[i]
	start := st.cursor
	if reactive {
		start = 0
	}
	for pos := start; pos < len(kids); pos++ {
		s := in.tick(kids[pos], bb)
		if s == Failure {
			continue
		}
		// A higher-priority child took over from a running one.
		if reactive && st.running && pos < st.cursor {
			in.halt(kids[st.cursor])
		}
		if s == Running {
			st.cursor = pos
			return Running
		}
		st.cursor = 0
		return Success
	}
	if reactive && st.running && st.cursor > 0 {
		in.halt(kids[st.cursor])
	}
	st.cursor = 0
	return Failure
}

func (in *Instance) tickUtility(i int, bb *blackboard.Blackboard) Status {
	st := &in.state[i]
	n := in.tree.nodes[i]
	kids := in.tree.children[i]

	prev := -1
	if st.running && st.cursor < len(st.order) {
		prev = kids[st.order[st.cursor]]
	}
	if n.Reactive || !st.running {
		in.rank(i, bb)
	}
	ordered := make([]int, len(st.order))
	for pos, k := range st.order {
		ordered[pos] = kids[k]
	}
	// The cursor indexes the old ranking; point it at prev in the new one.
	if prev >= 0 && n.Reactive {
		st.cursor = 0
		found := false
		for pos, c := range ordered {
			if c == prev {
				st.cursor, found = pos, true
				break
			}
		}
		if !found {
			in.halt(prev)
			st.running = false
		}
	}

	s := in.tickSelector(i, ordered, n.Reactive, bb)
	// A re-rank can move the running child; halt it if it lost its turn.
	if prev >= 0 && in.state[prev].running && (s != Running || ordered[st.cursor] != prev) {
		in.halt(prev)
	}
	return s
}

// rank scores i's children and stores the order of those scoring above
// zero, highest first. Children scoring zero or less are not eligible.
func (in *Instance) rank(i int, bb *blackboard.Blackboard) {
	st := &in.state[i]
	kids := in.tree.children[i]
	scores := make([]float64, len(kids))
	all := make([]int, len(kids))
	for k, c := range kids {
		if v := in.tree.nodes[c].Scorer.Score(bb); !math.IsNaN(v) {
			scores[k] = v
		}
		all[k] = k
	}
	sort.SliceStable(all, func(a, b int) bool {
		return scores[all[a]] > scores[all[b]]
	})

	st.order = st.order[:0]
	ranking := make([]Option, len(kids))
	for pos, k := range all {
		ranking[pos] = Option{Name: in.tree.nodes[kids[k]].Name, Score: scores[k]}
		if scores[k] > 0 {
			st.order = append(st.order, k)
		}
	}
	in.res.Ranking = ranking
}

func (in *Instance) tickParallel(i int, bb *blackboard.Blackboard) Status {
	st := &in.state[i]
	n := in.tree.nodes[i]
	kids := in.tree.children[i]
	if len(st.finished) != len(kids) {
		st.finished = make([]bool, len(kids))
		st.results = make([]Status, len(kids))
	}

	successes, failures := 0, 0
	for k, c := range kids {
		if !st.finished[k] {
			if s := in.tick(c, bb); s != Running {
				st.finished[k] = true
				st.results[k] = s
			}
		}
		if st.finished[k] {
			if st.results[k] == Success {
				successes++
			} else {
				failures++
			}
		}
	}

	done := Running
	switch n.Policy {
	case RequireAll:
		if failures > 0 {
			done = Failure
		} else if successes == len(kids) {
			done = Success
		}
	case RequireOne:
		if successes > 0 {
			done = Success
		} else if failures == len(kids) {
			done = Failure
		}
	}
	if done != Running {
		in.halt(i)
	}
	return done
}

func (in *Instance) tickRepeater(i int, bb *blackboard.Blackboard) Status {
	st := &in.state[i]
	n := in.tree.nodes[i]
	if in.tick(in.tree.children[i][0], bb) == Running {
		return Running
	}
	st.count++
	if n.Count > 0 && st.count >= n.Count {
		st.count = 0
		return Success
	}
	return Running
}
