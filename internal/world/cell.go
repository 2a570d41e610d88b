// Package world provides the city grid, its walkability/cost queries and the
// spatial primitives shared by navigation and perception.
// Cells are unit squares; cell (x, y) covers [x, x+1) × [y, y+1).
package world

import "math"

// Cell addresses one tile of the grid.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns c offset by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{X: c.X + d.X, Y: c.Y + d.Y}
}

// Center returns the continuous position at the middle of the cell.
func (c Cell) Center() Vec2 {
	return Vec2{X: float64(c.X) + 0.5, Y: float64(c.Y) + 0.5}
}

// Diagonal reports whether d is a diagonal unit step.
func (d Cell) Diagonal() bool {
	return d.X != 0 && d.Y != 0
}

// Orthogonal steps in a fixed order: north, east, south, west.
var Orthogonal = [4]Cell{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// Diagonals in a fixed order: north-east, south-east, south-west, north-west.
var Diagonals = [4]Cell{
	{X: 1, Y: -1},
	{X: 1, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: -1},
}

// StepLength is the geometric length of a move between adjacent cells:
// 1 for orthogonal steps, √2 for diagonal ones.
func StepLength(from, to Cell) float64 {
	if from.X != to.X && from.Y != to.Y {
		return math.Sqrt2
	}
	return 1
}

// Octile is the octile distance between two cells, the exact shortest
// unit-cost distance on an 8-connected grid without obstacles.
func Octile(a, b Cell) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	if dx > dy {
		return dx + (math.Sqrt2-1)*dy
	}
	return dy + (math.Sqrt2-1)*dx
}

// Vec2 is a continuous position or direction in cell units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Scale returns v multiplied by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the Euclidean distance between two positions.
func Dist(a, b Vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Heading returns the angle of v in radians, measured from the +X axis.
func (v Vec2) Heading() float64 {
	return math.Atan2(v.Y, v.X)
}

// CellOf returns the cell containing the position.
func CellOf(p Vec2) Cell {
	return Cell{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))}
}
