package world

import "fmt"

// Grid is the walkability/cost view of the city consumed by navigation.
// It is treated as read-only for the duration of a tick.
type Grid interface {
	InBounds(c Cell) bool
	IsWalkable(c Cell) bool
	// Cost is the traversal cost multiplier of entering c (>= 1 for walkable cells).
	Cost(c Cell) float64
	// Neighbors returns the walkable cells reachable in one step from c,
	// in a fixed order.
	Neighbors(c Cell) []Cell
}

// Tile types for city cells.
type Tile uint8

const (
	TileStreet   Tile = iota // Paved, cheapest to walk
	TilePlaza                // Open square
	TilePark                 // Grass, slightly slower
	TileRough                // Construction sites and alleys
	TileBuilding             // Solid, not walkable
	TileWater                // Canals and ponds, not walkable
)

// Connectivity selects how many neighbors a cell has.
type Connectivity uint8

const (
	Conn4 Connectivity = 4
	Conn8 Connectivity = 8
)

// TileMap is a dense rectangular Grid.
type TileMap struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Conn   Connectivity `json:"connectivity"`
	tiles  []Tile
}

// NewMap creates a map of the given size filled with streets.
func NewMap(width, height int, conn Connectivity) *TileMap {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if conn != Conn4 {
		conn = Conn8
	}
	return &TileMap{
		Width:  width,
		Height: height,
		Conn:   conn,
		tiles:  make([]Tile, width*height),
	}
}

func (m *TileMap) index(c Cell) int {
	return c.Y*m.Width + c.X
}

// InBounds reports whether c lies inside the map.
func (m *TileMap) InBounds(c Cell) bool {
	return m != nil && c.X >= 0 && c.Y >= 0 && c.X < m.Width && c.Y < m.Height
}

// Get returns the tile at c. Out-of-bounds cells read as buildings.
func (m *TileMap) Get(c Cell) Tile {
	if !m.InBounds(c) {
		return TileBuilding
	}
	return m.tiles[m.index(c)]
}

// Set places a tile at c. Out-of-bounds writes are ignored.
func (m *TileMap) Set(c Cell, t Tile) {
	if !m.InBounds(c) {
		return
	}
	m.tiles[m.index(c)] = t
}

// Fill sets every cell of the inclusive rectangle [from, to] to t.
func (m *TileMap) Fill(from, to Cell, t Tile) {
	if from.X > to.X {
		from.X, to.X = to.X, from.X
	}
	if from.Y > to.Y {
		from.Y, to.Y = to.Y, from.Y
	}
	for y := from.Y; y <= to.Y; y++ {
		for x := from.X; x <= to.X; x++ {
			m.Set(Cell{X: x, Y: y}, t)
		}
	}
}

// IsWalkable reports whether agents may stand on c.
func (m *TileMap) IsWalkable(c Cell) bool {
	switch m.Get(c) {
	case TileBuilding, TileWater:
		return false
	default:
		return true
	}
}

// Cost returns the traversal cost multiplier for entering c.
func (m *TileMap) Cost(c Cell) float64 {
	switch m.Get(c) {
	case TileStreet, TilePlaza:
		return 1
	case TilePark:
		return 1.5
	case TileRough:
		return 2.5
	default:
		return 0
	}
}

// Neighbors returns walkable adjacent cells. Diagonal moves are only offered
// on 8-connected maps and never cut the corner of a blocked cell.
func (m *TileMap) Neighbors(c Cell) []Cell {
	out := make([]Cell, 0, int(m.Conn))
	for _, d := range Orthogonal {
		n := c.Add(d)
		if m.IsWalkable(n) {
			out = append(out, n)
		}
	}
	if m.Conn != Conn8 {
		return out
	}
	for _, d := range Diagonals {
		n := c.Add(d)
		if !m.IsWalkable(n) {
			continue
		}
		if !m.IsWalkable(Cell{X: c.X + d.X, Y: c.Y}) || !m.IsWalkable(Cell{X: c.X, Y: c.Y + d.Y}) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// WalkableCount returns the number of walkable cells.
func (m *TileMap) WalkableCount() int {
	n := 0
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.IsWalkable(Cell{X: x, Y: y}) {
				n++
			}
		}
	}
	return n
}

// NearestWalkable returns the walkable cell closest to c by ring search,
// scanning rings in a fixed order. ok is false when none exists within maxRadius.
func (m *TileMap) NearestWalkable(c Cell, maxRadius int) (Cell, bool) {
	if m.InBounds(c) && m.IsWalkable(c) {
		return c, true
	}
	for r := 1; r <= maxRadius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if abs(dx) != r && abs(dy) != r {
					continue
				}
				n := Cell{X: c.X + dx, Y: c.Y + dy}
				if m.InBounds(n) && m.IsWalkable(n) {
					return n, true
				}
			}
		}
	}
	return Cell{}, false
}

// ParseMap builds a map from rows of characters, mostly for tests and fixtures:
// '.' street, '+' plaza, ',' park, '~' rough, '#' building, 'w' water.
func ParseMap(rows []string, conn Connectivity) (*TileMap, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse map: no rows")
	}
	m := NewMap(len(rows[0]), len(rows), conn)
	for y, row := range rows {
		if len(row) != m.Width {
			return nil, fmt.Errorf("parse map: row %d has width %d, want %d", y, len(row), m.Width)
		}
		for x, ch := range row {
			var t Tile
			switch ch {
			case '.':
				t = TileStreet
			case '+':
				t = TilePlaza
			case ',':
				t = TilePark
			case '~':
				t = TileRough
			case '#':
				t = TileBuilding
			case 'w':
				t = TileWater
			default:
				return nil, fmt.Errorf("parse map: unknown tile %q at (%d,%d)", ch, x, y)
			}
			m.Set(Cell{X: x, Y: y}, t)
		}
	}
	return m, nil
}

// String returns a summary of the map.
func (m *TileMap) String() string {
	return fmt.Sprintf("TileMap(%dx%d, conn=%d, walkable=%d)", m.Width, m.Height, m.Conn, m.WalkableCount())
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
