// Package bt is the behavior tree engine. Tree definitions are immutable
// and shared by every agent of an archetype; per-agent cursor state lives
// in an Instance.
package bt

import (
	"fmt"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/blackboard"
)

// Status is the result of ticking a node.
type Status uint8

const (
	Success Status = iota
	Failure
	Running
)

// String returns the upper-case status name.
func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case Running:
		return "RUNNING"
	default:
		return "INVALID"
	}
}

// Kind tags the node variant.
type Kind uint8

const (
	KindSequence Kind = iota
	KindSelector
	KindParallel
	KindInverter
	KindRepeater
	KindSucceeder
	KindCondition
	KindAction
	KindUtility
)

// String returns the node kind name.
func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindSelector:
		return "selector"
	case KindParallel:
		return "parallel"
	case KindInverter:
		return "inverter"
	case KindRepeater:
		return "repeater"
	case KindSucceeder:
		return "succeeder"
	case KindCondition:
		return "condition"
	case KindAction:
		return "action"
	case KindUtility:
		return "utility"
	default:
		return "unknown"
	}
}

func (k Kind) composite() bool {
	return k == KindSequence || k == KindSelector || k == KindParallel || k == KindUtility
}

func (k Kind) decorator() bool {
	return k == KindInverter || k == KindRepeater || k == KindSucceeder
}

// Policy decides when a Parallel node completes.
type Policy uint8

const (
	// RequireAll succeeds when every child succeeds and fails on the first failure.
	RequireAll Policy = iota
	// RequireOne succeeds on the first success and fails when every child fails.
	RequireOne
)

// Op compares a blackboard value against a constant.
type Op uint8

const (
	OpGT Op = iota
	OpGE
	OpLT
	OpLE
	OpEQ
	OpNE
)

// String returns the operator symbol.
func (o Op) String() string {
	if o > OpNE {
		return "?"
	}
	return [...]string{">", ">=", "<", "<=", "==", "!="}[o]
}

func (o Op) eval(a, b float64) bool {
	switch o {
	case OpGT:
		return a > b
	case OpGE:
		return a >= b
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	default:
		return false
	}
}

// ActionFunc is an action leaf. It reads the blackboard and returns a
// status and the intent to emit. Intents are emitted on Success and
// Running, never on Failure.
type ActionFunc func(bb *blackboard.Blackboard) (Status, agents.Action)

// CheckFunc is a custom condition over declared blackboard keys.
type CheckFunc func(bb *blackboard.Blackboard) bool

// Scorer rates a utility selector child. Higher is better.
type Scorer interface {
	Score(bb *blackboard.Blackboard) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(bb *blackboard.Blackboard) float64

// Score calls f.
func (f ScorerFunc) Score(bb *blackboard.Blackboard) float64 { return f(bb) }

// Node is an immutable tree definition node. Build nodes with the
// constructors below and validate the root with Compile.
type Node struct {
	Kind     Kind
	Name     string
	Children []*Node

	Reactive bool   // Selector and Utility: re-evaluate from the top every tick
	Policy   Policy // Parallel
	Count    int    // Repeater: iterations, 0 repeats forever

	// Condition
	Key   string
	Op    Op
	Value float64
	Check CheckFunc
	Keys  []string // Keys a Check reads

	Act ActionFunc // Action

	// Scorer rates this node when it is a child of a utility selector.
	Scorer Scorer
}

func (n *Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s(%s)", n.Kind, n.Name)
	}
	return n.Kind.String()
}

// Sequence ticks children in order until one fails.
func Sequence(name string, children ...*Node) *Node {
	return &Node{Kind: KindSequence, Name: name, Children: children}
}

// Selector ticks children in order until one does not fail.
func Selector(name string, children ...*Node) *Node {
	return &Node{Kind: KindSelector, Name: name, Children: children}
}

// ReactiveSelector restarts from its first child every tick, halting a
// running lower-priority child when a higher-priority one takes over.
func ReactiveSelector(name string, children ...*Node) *Node {
	return &Node{Kind: KindSelector, Name: name, Children: children, Reactive: true}
}

// Parallel ticks every unfinished child each tick.
func Parallel(name string, policy Policy, children ...*Node) *Node {
	return &Node{Kind: KindParallel, Name: name, Policy: policy, Children: children}
}

// Inverter swaps Success and Failure.
func Inverter(name string, child *Node) *Node {
	return &Node{Kind: KindInverter, Name: name, Children: []*Node{child}}
}

// Repeater runs its child count times, one completed iteration per tick at
// most, then succeeds. The child's result is ignored. Count 0 repeats forever.
func Repeater(name string, count int, child *Node) *Node {
	return &Node{Kind: KindRepeater, Name: name, Count: count, Children: []*Node{child}}
}

// Succeeder ticks its child and always returns Success. A running child is
// not halted, so a multi-tick action under it continues where it left off.
func Succeeder(name string, child *Node) *Node {
	return &Node{Kind: KindSucceeder, Name: name, Children: []*Node{child}}
}

// Condition compares a blackboard key against value.
func Condition(name, key string, op Op, value float64) *Node {
	return &Node{Kind: KindCondition, Name: name, Key: key, Op: op, Value: value}
}

// Check is a condition evaluated by fn, which may read only keys.
func Check(name string, keys []string, fn CheckFunc) *Node {
	return &Node{Kind: KindCondition, Name: name, Keys: keys, Check: fn}
}

// Action is a leaf that emits an intent.
func Action(name string, fn ActionFunc) *Node {
	return &Node{Kind: KindAction, Name: name, Act: fn}
}

// UtilitySelector ranks its children by score, highest first, and then
// behaves like a selector over that order. Equal scores keep declaration
// order; children scoring zero or less are skipped.
func UtilitySelector(name string, children ...*Node) *Node {
	return &Node{Kind: KindUtility, Name: name, Children: children}
}

// ReactiveUtility re-ranks its children every tick.
func ReactiveUtility(name string, children ...*Node) *Node {
	return &Node{Kind: KindUtility, Name: name, Children: children, Reactive: true}
}

// Scored attaches a utility scorer to n and returns n.
func Scored(s Scorer, n *Node) *Node {
	n.Scorer = s
	return n
}
