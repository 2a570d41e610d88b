// Point-of-interest placement: finds doorsteps next to buildings and seeds
// the food stalls, workplaces, homes and parks agents travel between.
package world

import (
	"fmt"
	"math/rand"
	"sort"
)

// POIKind categorizes a point of interest.
type POIKind uint8

const (
	POIFood POIKind = iota // Market stall or canteen, buy and eat
	POIWork                // Workshop or office, earn wages
	POIHome                // Residence, rest
	POIPark                // Green space, socialize
)

// POI is a fixed world object agents can perceive and travel to.
type POI struct {
	ID   uint64  `json:"id"`
	Kind POIKind `json:"kind"`
	Name string  `json:"name"`
	Cell Cell    `json:"cell"`
}

// Position returns the center of the POI's cell.
func (p POI) Position() Vec2 {
	return p.Cell.Center()
}

// POICounts sets how many of each kind PlacePOIs creates.
type POICounts struct {
	Food  int
	Work  int
	Homes int
	Parks int
}

// PlacePOIs chooses POI cells deterministically from the seed.
// Food, work and homes sit on walkable doorsteps adjacent to a building;
// parks sit on park tiles. IDs start at firstID and are dense.
func PlacePOIs(m *TileMap, seed int64, counts POICounts, firstID uint64) []POI {
	rng := rand.New(rand.NewSource(seed + 200))

	var doorsteps, greens []Cell
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := Cell{X: x, Y: y}
			if !m.IsWalkable(c) {
				continue
			}
			if m.Get(c) == TilePark {
				greens = append(greens, c)
				continue
			}
			if touchesBuilding(m, c) {
				doorsteps = append(doorsteps, c)
			}
		}
	}

	rng.Shuffle(len(doorsteps), func(i, j int) {
		doorsteps[i], doorsteps[j] = doorsteps[j], doorsteps[i]
	})
	rng.Shuffle(len(greens), func(i, j int) {
		greens[i], greens[j] = greens[j], greens[i]
	})

	var pois []POI
	nextID := firstID
	take := func(kind POIKind, n int, pool *[]Cell, label string) {
		for i := 0; i < n && len(*pool) > 0; i++ {
			c := (*pool)[0]
			*pool = (*pool)[1:]
			pois = append(pois, POI{
				ID:   nextID,
				Kind: kind,
				Name: fmt.Sprintf("%s %d", label, i+1),
				Cell: c,
			})
			nextID++
		}
	}

	take(POIFood, counts.Food, &doorsteps, "Stall")
	take(POIWork, counts.Work, &doorsteps, "Workshop")
	take(POIHome, counts.Homes, &doorsteps, "House")
	take(POIPark, counts.Parks, &greens, "Park")

	sort.Slice(pois, func(i, j int) bool { return pois[i].ID < pois[j].ID })
	return pois
}

func touchesBuilding(m *TileMap, c Cell) bool {
	for _, d := range Orthogonal {
		if m.Get(c.Add(d)) == TileBuilding && m.InBounds(c.Add(d)) {
			return true
		}
	}
	return false
}

// POIKindName returns a human-readable name for a POI kind.
func POIKindName(k POIKind) string {
	switch k {
	case POIFood:
		return "food"
	case POIWork:
		return "work"
	case POIHome:
		return "home"
	case POIPark:
		return "park"
	default:
		return "unknown"
	}
}
