// Package nav finds least-cost routes across a world.Grid.
// Search is A* with an octile heuristic; successful routes are smoothed by
// line-of-sight pruning. Failures are reported as values, never errors.
package nav

import (
	"container/heap"

	"github.com/talgya/mini-city/internal/world"
)

// Status classifies a path search outcome.
type Status uint8

const (
	StatusFound       Status = iota // Route found
	StatusUnreachable               // Goal not connected to start
	StatusOutOfBounds               // Start or goal outside the grid
	StatusBlocked                   // Start or goal not walkable
	StatusExhausted                 // Search bound hit before reaching the goal
)

// String returns a lowercase label for the status.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusUnreachable:
		return "unreachable"
	case StatusOutOfBounds:
		return "out_of_bounds"
	case StatusBlocked:
		return "blocked"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Options bounds and tunes the search.
type Options struct {
	// MaxExpanded caps the number of nodes popped from the open set.
	MaxExpanded int
	// SmoothPasses caps line-of-sight pruning passes. Zero disables smoothing.
	SmoothPasses int
	// MinCost must not exceed the smallest walkable cell cost of any grid
	// searched; it scales the heuristic and keeps it admissible.
	MinCost float64
}

// DefaultOptions returns bounds suited to a city of a few hundred thousand cells.
func DefaultOptions() Options {
	return Options{
		MaxExpanded:  20000,
		SmoothPasses: 2,
		MinCost:      1,
	}
}

// Request asks for a route between two cells of a grid.
type Request struct {
	Start world.Cell
	Goal  world.Cell
	Grid  world.Grid
}

// Result is a completed search. Waypoints never include the start cell
// unless start and goal coincide, and always end at the goal on success.
type Result struct {
	Status    Status
	Waypoints []world.Cell // Smoothed route
	Raw       []world.Cell // Unsmoothed cell route, start first
	Cost      float64      // Cost of Raw
	Expanded  int
}

// OK reports whether a route was found.
func (r Result) OK() bool {
	return r.Status == StatusFound
}

// Pathfinder runs searches with fixed options. It holds no per-search state
// and is safe for concurrent use.
type Pathfinder struct {
	opts Options
}

// New creates a Pathfinder, filling unset options from DefaultOptions.
func New(opts Options) *Pathfinder {
	def := DefaultOptions()
	if opts.MaxExpanded <= 0 {
		opts.MaxExpanded = def.MaxExpanded
	}
	if opts.SmoothPasses < 0 {
		opts.SmoothPasses = 0
	}
	if opts.MinCost <= 0 {
		opts.MinCost = def.MinCost
	}
	return &Pathfinder{opts: opts}
}

// Options returns the effective options.
func (p *Pathfinder) Options() Options {
	return p.opts
}

// Request runs the search described by req.
func (p *Pathfinder) Request(req Request) Result {
	return p.FindPath(req.Start, req.Goal, req.Grid)
}

// FindPath returns the least-cost route from start to goal.
func (p *Pathfinder) FindPath(start, goal world.Cell, grid world.Grid) Result {
	if grid == nil || !grid.InBounds(start) || !grid.InBounds(goal) {
		return Result{Status: StatusOutOfBounds}
	}
	if !grid.IsWalkable(start) || !grid.IsWalkable(goal) {
		return Result{Status: StatusBlocked}
	}
	if start == goal {
		return Result{
			Status:    StatusFound,
			Waypoints: []world.Cell{goal},
			Raw:       []world.Cell{start},
		}
	}

	raw, cost, expanded, status := p.astar(start, goal, grid)
	if status != StatusFound {
		return Result{Status: status, Expanded: expanded}
	}
	return Result{
		Status:    StatusFound,
		Waypoints: smooth(raw, grid, p.opts.SmoothPasses),
		Raw:       raw,
		Cost:      cost,
		Expanded:  expanded,
	}
}

// PathCost sums the traversal cost of a cell route on grid.
func PathCost(path []world.Cell, grid world.Grid) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += world.StepLength(path[i-1], path[i]) * grid.Cost(path[i])
	}
	return total
}

type pathNode struct {
	cell   world.Cell
	g      float64
	h      float64
	f      float64
	seq    uint64
	index  int
	parent *pathNode
}

// pathQueue orders by f, then lower h, then insertion order.
type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func (p *Pathfinder) heuristic(a, b world.Cell) float64 {
	return world.Octile(a, b) * p.opts.MinCost
}

func (p *Pathfinder) astar(start, goal world.Cell, grid world.Grid) ([]world.Cell, float64, int, Status) {
	var seq uint64
	open := &pathQueue{}
	heap.Init(open)
	h0 := p.heuristic(start, goal)
	heap.Push(open, &pathNode{cell: start, h: h0, f: h0, seq: seq})
	gScore := map[world.Cell]float64{start: 0}
	closed := make(map[world.Cell]struct{})
	expanded := 0

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.cell]; seen {
			continue
		}
		closed[current.cell] = struct{}{}
		if current.cell == goal {
			return reconstructPath(current), current.g, expanded, StatusFound
		}
		expanded++
		if expanded > p.opts.MaxExpanded {
			return nil, 0, expanded, StatusExhausted
		}

		for _, n := range grid.Neighbors(current.cell) {
			if _, seen := closed[n]; seen {
				continue
			}
			if !grid.IsWalkable(n) {
				continue
			}
			tentativeG := current.g + world.StepLength(current.cell, n)*grid.Cost(n)
			if prev, ok := gScore[n]; ok && tentativeG >= prev {
				continue
			}
			gScore[n] = tentativeG
			seq++
			h := p.heuristic(n, goal)
			heap.Push(open, &pathNode{
				cell:   n,
				g:      tentativeG,
				h:      h,
				f:      tentativeG + h,
				seq:    seq,
				parent: current,
			})
		}
	}
	return nil, 0, expanded, StatusUnreachable
}

func reconstructPath(end *pathNode) []world.Cell {
	path := make([]world.Cell, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.cell)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}
