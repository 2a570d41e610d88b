// City generation using layered simplex noise.
// Lays out a street lattice, then fills each block with buildings, parks,
// plazas or water depending on sampled noise.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds city generation parameters.
type GenConfig struct {
	Width     int          // Cells
	Height    int          // Cells
	Seed      int64        // Random seed (0 = random)
	BlockSize int          // Street spacing in cells
	ParkLvl   float64      // Green noise above this turns a block into park (0.0-1.0)
	WaterLvl  float64      // Water noise above this carves a canal pond (0.0-1.0)
	PlazaLvl  float64      // Block noise below this turns a block into plaza (0.0-1.0)
	RoughLvl  float64      // Street noise above this makes a street cell rough (0.0-1.0)
	Conn      Connectivity // Neighbor expansion for navigation
}

// DefaultGenConfig returns a mid-sized city.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:     96,
		Height:    96,
		Seed:      0,
		BlockSize: 8,
		ParkLvl:   0.68,
		WaterLvl:  0.8,
		PlazaLvl:  0.22,
		RoughLvl:  0.82,
		Conn:      Conn8,
	}
}

// SmallTestConfig returns a tiny city for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:     32,
		Height:    32,
		Seed:      42,
		BlockSize: 6,
		ParkLvl:   0.7,
		WaterLvl:  0.85,
		PlazaLvl:  0.2,
		RoughLvl:  0.85,
		Conn:      Conn8,
	}
}

// Generate creates a complete city map.
func Generate(cfg GenConfig) *TileMap {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.BlockSize < 3 {
		cfg.BlockSize = 3
	}

	// Independent noise layers.
	greenNoise := opensimplex.NewNormalized(seed)
	waterNoise := opensimplex.NewNormalized(seed + 1)
	blockNoise := opensimplex.NewNormalized(seed + 2)
	streetNoise := opensimplex.NewNormalized(seed + 3)

	m := NewMap(cfg.Width, cfg.Height, cfg.Conn)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := Cell{X: x, Y: y}
			fx, fy := float64(x), float64(y)

			if isStreet(x, y, cfg.BlockSize) {
				if octaveNoise(streetNoise, fx, fy, 2, 0.3, 0.5) > cfg.RoughLvl {
					m.Set(c, TileRough)
				} else {
					m.Set(c, TileStreet)
				}
				continue
			}

			// Blocks are classified by noise sampled at their origin so the
			// whole block shares one use.
			bx := float64(x/cfg.BlockSize) * float64(cfg.BlockSize)
			by := float64(y/cfg.BlockSize) * float64(cfg.BlockSize)
			block := octaveNoise(blockNoise, bx, by, 2, 0.05, 0.5)
			green := octaveNoise(greenNoise, bx, by, 3, 0.04, 0.5)

			switch {
			case block < cfg.PlazaLvl:
				m.Set(c, TilePlaza)
			case green > cfg.ParkLvl:
				if octaveNoise(waterNoise, fx, fy, 3, 0.12, 0.5) > cfg.WaterLvl {
					m.Set(c, TileWater)
				} else {
					m.Set(c, TilePark)
				}
			default:
				m.Set(c, TileBuilding)
			}
		}
	}

	return m
}

// isStreet reports whether (x, y) lies on the street lattice. Every block
// touches at least one street, so the lattice connects the whole city.
func isStreet(x, y, block int) bool {
	return x%block == 0 || y%block == 0
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TileCounts returns a summary of tile type distribution.
func TileCounts(m *TileMap) map[Tile]int {
	counts := make(map[Tile]int)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			counts[m.Get(Cell{X: x, Y: y})]++
		}
	}
	return counts
}

// TileName returns a human-readable name for a tile type.
func TileName(t Tile) string {
	switch t {
	case TileStreet:
		return "Street"
	case TilePlaza:
		return "Plaza"
	case TilePark:
		return "Park"
	case TileRough:
		return "Rough"
	case TileBuilding:
		return "Building"
	case TileWater:
		return "Water"
	default:
		return "Unknown"
	}
}
