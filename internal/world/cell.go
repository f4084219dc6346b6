// Package world provides the tile grid, biome classification and terrain
// generation. Coordinates are (x, y) with y growing north.
package world

import (
	"fmt"
	"strings"
)

// Coord is a position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns c offset by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{X: c.X + d.X, Y: c.Y + d.Y}
}

// IsDiagonalStep reports whether a and b differ by exactly one in both axes.
func IsDiagonalStep(a, b Coord) bool {
	return abs(a.X-b.X) == 1 && abs(a.Y-b.Y) == 1
}

// BiomeKind classifies a cell by elevation band.
type BiomeKind uint8

const (
	BiomeInvalid   BiomeKind = iota // Above every band; unwalkable
	BiomeDeepWater                  // Open sea
	BiomeWater                      // Shallows
	BiomeBeach                      // Coastline, where journeys start
	BiomeGrassland                  // Easy going
	BiomeForest                     // Slow, forage-rich
	BiomeMountain                   // Slowest
)

// Biomes lists every valid biome in ascending elevation order.
var Biomes = []BiomeKind{
	BiomeDeepWater, BiomeWater, BiomeBeach, BiomeGrassland, BiomeForest, BiomeMountain,
}

var biomeNames = [...]string{
	BiomeInvalid:   "Invalid",
	BiomeDeepWater: "DeepWater",
	BiomeWater:     "Water",
	BiomeBeach:     "Beach",
	BiomeGrassland: "Grassland",
	BiomeForest:    "Forest",
	BiomeMountain:  "Mountain",
}

func (b BiomeKind) String() string {
	if int(b) < len(biomeNames) {
		return biomeNames[b]
	}
	return fmt.Sprintf("BiomeKind(%d)", uint8(b))
}

// IsWater reports whether b is DeepWater or Water.
func (b BiomeKind) IsWater() bool {
	return b == BiomeDeepWater || b == BiomeWater
}

// ParseBiome resolves a biome name case-insensitively.
func ParseBiome(name string) (BiomeKind, error) {
	for i, n := range biomeNames {
		if strings.EqualFold(n, name) {
			return BiomeKind(i), nil
		}
	}
	return BiomeInvalid, fmt.Errorf("unknown biome %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (b BiomeKind) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BiomeKind) UnmarshalText(text []byte) error {
	v, err := ParseBiome(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Cell is one tile of the grid. Generation-time fields are read-only once the
// grid is built; seen and occupied change only through VisibilityWriter and
// OccupancyTracker.
type Cell struct {
	Elevation     float64
	Biome         BiomeKind
	TraversalRate float64 // Days to cross the tile
	Resource      float64 // Forage/danger scalar
	POI           string  // Point of interest name, empty if none

	seen     bool
	occupied bool
}

// Seen reports whether the cell has entered visibility.
func (c Cell) Seen() bool { return c.seen }

// Occupied reports whether the agent stands on the cell.
func (c Cell) Occupied() bool { return c.occupied }

// Walkable reports whether pathing may enter the cell.
func (c Cell) Walkable() bool { return c.Biome != BiomeInvalid }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
