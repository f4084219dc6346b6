// Package autotile selects tile variants and rotations from a cell's biome
// and its eight neighbors using an ordered, wildcard-capable rule table.
package autotile

import (
	"strings"

	"github.com/talgya/tileworld/internal/world"
)

// Wildcard matches any neighbor biome.
const Wildcard = "*"

// Direction indexes the eight neighbors, west first, clockwise.
type Direction int

const (
	West Direction = iota
	NorthWest
	North
	NorthEast
	East
	SouthEast
	South
	SouthWest
)

var directionNames = [8]string{"west", "northwest", "north", "northeast", "east", "southeast", "south", "southwest"}

func (d Direction) String() string { return directionNames[d] }

// Offsets are the neighbor displacements per Direction. North is +y.
var Offsets = [8]world.Coord{
	West:      {X: -1, Y: 0},
	NorthWest: {X: -1, Y: 1},
	North:     {X: 0, Y: 1},
	NorthEast: {X: 1, Y: 1},
	East:      {X: 1, Y: 0},
	SouthEast: {X: 1, Y: -1},
	South:     {X: 0, Y: -1},
	SouthWest: {X: -1, Y: -1},
}

// Pattern constrains one neighbor: either any biome, or one of a set.
type Pattern struct {
	Any    bool
	Biomes []world.BiomeKind
}

// Any returns the wildcard pattern.
func Any() Pattern { return Pattern{Any: true} }

// Only returns a pattern matching exactly the listed biomes.
func Only(biomes ...world.BiomeKind) Pattern { return Pattern{Biomes: biomes} }

// Matches reports whether b satisfies the pattern.
func (p Pattern) Matches(b world.BiomeKind) bool {
	if p.Any {
		return true
	}
	for _, allowed := range p.Biomes {
		if allowed == b {
			return true
		}
	}
	return false
}

func (p Pattern) String() string {
	if p.Any {
		return Wildcard
	}
	names := make([]string, len(p.Biomes))
	for i, b := range p.Biomes {
		names[i] = b.String()
	}
	return strings.Join(names, "|")
}

// Rule maps a self biome and neighborhood to a variant.
// Rotations counts clockwise quarter turns, 0–3.
type Rule struct {
	Name      string
	Self      world.BiomeKind
	Neighbors [8]Pattern
	Rotations int
	Result    string
}

// Matches reports whether the rule applies to self with the given neighbors.
func (r *Rule) Matches(self world.BiomeKind, neighbors [8]world.BiomeKind) bool {
	if r.Self != self {
		return false
	}
	for d, p := range r.Neighbors {
		if !p.Matches(neighbors[d]) {
			return false
		}
	}
	return true
}
