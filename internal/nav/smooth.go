package nav

import (
	"math"

	"github.com/talgya/mini-city/internal/world"
)

// costSlack absorbs float rounding when a straight leg costs the same as the
// cells it replaces.
const costSlack = 1e-9

// smooth prunes raw by keeping, from each kept cell, the farthest later cell
// still in line of sight whose straight leg costs no more than the route it
// replaces. The start cell is dropped from the output.
func smooth(raw []world.Cell, grid world.Grid, passes int) []world.Cell {
	if len(raw) < 2 {
		return append([]world.Cell(nil), raw...)
	}
	pts := raw
	legs := make([]float64, len(raw))
	for k := 1; k < len(raw); k++ {
		legs[k] = world.StepLength(raw[k-1], raw[k]) * grid.Cost(raw[k])
	}
	for pass := 0; pass < passes; pass++ {
		// prefix[k] is the cost of the current route from pts[0] to pts[k].
		prefix := make([]float64, len(pts))
		for k := 1; k < len(pts); k++ {
			prefix[k] = prefix[k-1] + legs[k]
		}
		out := []world.Cell{pts[0]}
		outLegs := []float64{0}
		for i := 0; i < len(pts)-1; {
			j, cost := i+1, legs[i+1]
			for k := len(pts) - 1; k > i+1; k-- {
				if c, ok := segmentCost(grid, pts[i], pts[k]); ok && c <= prefix[k]-prefix[i]+costSlack {
					j, cost = k, c
					break
				}
			}
			out = append(out, pts[j])
			outLegs = append(outLegs, cost)
			i = j
		}
		done := len(out) == len(pts)
		pts, legs = out, outLegs
		if done {
			break
		}
	}
	return append([]world.Cell(nil), pts[1:]...)
}

// RouteCost is the cost of walking straight legs from start through
// waypoints: each leg's length times the dearest cell it enters. It is +Inf
// when a leg is blocked. For single-cell steps it matches PathCost.
func RouteCost(start world.Cell, waypoints []world.Cell, grid world.Grid) float64 {
	total := 0.0
	from := start
	for _, to := range waypoints {
		c, ok := segmentCost(grid, from, to)
		if !ok {
			return math.Inf(1)
		}
		total += c
		from = to
	}
	return total
}

func segmentCost(grid world.Grid, a, b world.Cell) (float64, bool) {
	dearest := 0.0
	ok := traceLine(grid, a, b, func(c world.Cell) {
		dearest = math.Max(dearest, grid.Cost(c))
	})
	if !ok {
		return 0, false
	}
	return world.Dist(a.Center(), b.Center()) * dearest, true
}

// LineOfSight reports whether every cell touched by the segment between the
// centers of a and b is walkable. Where the segment passes exactly through a
// cell corner, both side cells must be walkable.
func LineOfSight(grid world.Grid, a, b world.Cell) bool {
	return traceLine(grid, a, b, func(world.Cell) {})
}

// traceLine walks the segment from a to b, calling enter for each cell the
// segment moves into after a. Corner cells it only grazes are checked for
// walkability but not entered. It stops at the first blocked cell.
func traceLine(grid world.Grid, a, b world.Cell, enter func(world.Cell)) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	nx, ny := abs(dx), abs(dy)
	sx, sy := sign(dx), sign(dy)

	x, y := a.X, a.Y
	if !grid.IsWalkable(world.Cell{X: x, Y: y}) {
		return false
	}
	for ix, iy := 0, 0; ix < nx || iy < ny; {
		decision := (1+2*ix)*ny - (1+2*iy)*nx
		switch {
		case decision == 0:
			if !grid.IsWalkable(world.Cell{X: x + sx, Y: y}) || !grid.IsWalkable(world.Cell{X: x, Y: y + sy}) {
				return false
			}
			x += sx
			y += sy
			ix++
			iy++
		case decision < 0:
			x += sx
			ix++
		default:
			y += sy
			iy++
		}
		c := world.Cell{X: x, Y: y}
		if !grid.IsWalkable(c) {
			return false
		}
		enter(c)
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
