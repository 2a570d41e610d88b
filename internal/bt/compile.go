package bt

import (
	"errors"
	"fmt"

	"github.com/talgya/mini-city/internal/blackboard"
)

// Definition errors. Compile wraps them with the offending node's path.
var (
	ErrNilNode       = errors.New("nil node")
	ErrCycle         = errors.New("cycle in tree")
	ErrSharedNode    = errors.New("node reachable twice")
	ErrArity         = errors.New("wrong number of children")
	ErrUnknownKey    = errors.New("unknown blackboard key")
	ErrMissingFunc   = errors.New("leaf has no function")
	ErrMissingScorer = errors.New("utility child has no scorer")
	ErrInvalidNode   = errors.New("invalid node")
)

// Tree is a validated, immutable tree. Nodes are flattened in preorder so
// a subtree occupies a contiguous index range.
type Tree struct {
	name     string
	nodes    []*Node
	children [][]int
	end      []int // end[i] is one past the last index of i's subtree
}

// Compile validates root and flattens it. The definition must not be
// modified afterwards.
func Compile(name string, root *Node) (*Tree, error) {
	t := &Tree{name: name}
	seen := make(map[*Node]bool)
	onPath := make(map[*Node]bool)
	if _, err := t.add(root, seen, onPath, name); err != nil {
		return nil, fmt.Errorf("compile tree %q: %w", name, err)
	}
	return t, nil
}

// MustCompile is Compile for static definitions; it panics on error.
func MustCompile(name string, root *Node) *Tree {
	t, err := Compile(name, root)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) add(n *Node, seen, onPath map[*Node]bool, path string) (int, error) {
	if n == nil {
		return 0, fmt.Errorf("%s: %w", path, ErrNilNode)
	}
	path = path + "/" + n.String()
	if onPath[n] {
		return 0, fmt.Errorf("%s: %w", path, ErrCycle)
	}
	if seen[n] {
		return 0, fmt.Errorf("%s: %w", path, ErrSharedNode)
	}
	if err := validate(n); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	seen[n] = true
	onPath[n] = true

	idx := len(t.nodes)
	t.nodes = append(t.nodes, n)
	t.children = append(t.children, nil)
	t.end = append(t.end, 0)

	kids := make([]int, 0, len(n.Children))
	for _, c := range n.Children {
		ci, err := t.add(c, seen, onPath, path)
		if err != nil {
			return 0, err
		}
		if n.Kind == KindUtility && c.Scorer == nil {
			return 0, fmt.Errorf("%s/%s: %w", path, c, ErrMissingScorer)
		}
		kids = append(kids, ci)
	}
	t.children[idx] = kids
	t.end[idx] = len(t.nodes)
	onPath[n] = false
	return idx, nil
}

func validate(n *Node) error {
	switch {
	case n.Kind.composite():
		if len(n.Children) == 0 {
			return fmt.Errorf("%w: %s needs at least one child", ErrArity, n.Kind)
		}
		if n.Kind == KindParallel && n.Policy != RequireAll && n.Policy != RequireOne {
			return fmt.Errorf("%w: parallel policy %d", ErrInvalidNode, n.Policy)
		}
	case n.Kind.decorator():
		if len(n.Children) != 1 {
			return fmt.Errorf("%w: %s takes exactly one child, got %d", ErrArity, n.Kind, len(n.Children))
		}
		if n.Kind == KindRepeater && n.Count < 0 {
			return fmt.Errorf("%w: repeater count %d", ErrInvalidNode, n.Count)
		}
	case n.Kind == KindCondition:
		if len(n.Children) != 0 {
			return fmt.Errorf("%w: condition is a leaf", ErrArity)
		}
		if n.Check == nil {
			if n.Key == "" {
				return fmt.Errorf("%w: condition without key or check", ErrMissingFunc)
			}
			if !blackboard.Known(n.Key) {
				return fmt.Errorf("%w: %q", ErrUnknownKey, n.Key)
			}
			if n.Op > OpNE {
				return fmt.Errorf("%w: operator %d", ErrInvalidNode, n.Op)
			}
		}
		for _, k := range n.Keys {
			if !blackboard.Known(k) {
				return fmt.Errorf("%w: %q", ErrUnknownKey, k)
			}
		}
	case n.Kind == KindAction:
		if len(n.Children) != 0 {
			return fmt.Errorf("%w: action is a leaf", ErrArity)
		}
		if n.Act == nil {
			return ErrMissingFunc
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidNode, n.Kind)
	}
	return nil
}

// Name returns the tree's name.
func (t *Tree) Name() string { return t.name }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Root returns the root definition.
func (t *Tree) Root() *Node { return t.nodes[0] }
