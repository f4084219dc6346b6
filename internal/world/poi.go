// Points of interest and starting-location placement.
package world

import (
	"fmt"
	"math/rand"
)

// POISetting is a point of interest that may spawn on a biome.
// Likelihood is a percentage in [0, 100].
type POISetting struct {
	Biome      BiomeKind `yaml:"biome" json:"biome"`
	Name       string    `yaml:"name" json:"name"`
	Likelihood float64   `yaml:"likelihood" json:"likelihood"`
}

// DefaultPOIs returns the standard points of interest.
func DefaultPOIs() []POISetting {
	return []POISetting{
		{Biome: BiomeBeach, Name: "shipwreck", Likelihood: 2},
		{Biome: BiomeGrassland, Name: "village", Likelihood: 3},
		{Biome: BiomeGrassland, Name: "ruins", Likelihood: 1},
		{Biome: BiomeForest, Name: "shrine", Likelihood: 1.5},
		{Biome: BiomeForest, Name: "camp", Likelihood: 3},
		{Biome: BiomeMountain, Name: "cave", Likelihood: 4},
	}
}

func validatePOIs(pois []POISetting) error {
	for i, p := range pois {
		if p.Name == "" {
			return fmt.Errorf("%w: poi %d has no name", ErrInvalidConfig, i)
		}
		if p.Biome == BiomeInvalid {
			return fmt.Errorf("%w: poi %q on Invalid biome", ErrInvalidConfig, p.Name)
		}
		if p.Likelihood < 0 || p.Likelihood > 100 {
			return fmt.Errorf("%w: poi %q likelihood %.2f outside [0, 100]", ErrInvalidConfig, p.Name, p.Likelihood)
		}
	}
	return nil
}

// placePOIs rolls once per cell of a biome with candidates. Among the
// candidates whose likelihood beats the roll the rarest wins; equal
// likelihoods are settled by a coin flip.
func placePOIs(g *Grid, pois []POISetting, seed int64) {
	if len(pois) == 0 {
		return
	}
	rng := rand.New(rand.NewSource(seed + 100))

	byBiome := make(map[BiomeKind][]POISetting)
	for _, p := range pois {
		byBiome[p.Biome] = append(byBiome[p.Biome], p)
	}

	for i := range g.cells {
		cell := &g.cells[i]
		candidates := byBiome[cell.Biome]
		if len(candidates) == 0 {
			continue
		}

		roll := rng.Float64() * 100
		minLikelihood := 0.0
		selected := ""
		for _, p := range candidates {
			if roll >= p.Likelihood {
				continue
			}
			if selected == "" || p.Likelihood < minLikelihood {
				minLikelihood = p.Likelihood
				selected = p.Name
			} else if p.Likelihood == minLikelihood && rng.Float64() < 0.5 {
				selected = p.Name
			}
		}
		cell.POI = selected
	}
}

// POICounts returns how many cells carry each point of interest.
func POICounts(g *Grid) map[string]int {
	counts := make(map[string]int)
	for _, c := range g.cells {
		if c.POI != "" {
			counts[c.POI]++
		}
	}
	return counts
}

const startAttempts = 64

// FindStartingLocation picks a random row or column and a random side, then
// scans inward for the first beach. After a bounded number of misses it falls
// back to the walkable, non-water cell nearest the center, and finally to the
// center itself.
func FindStartingLocation(g *Grid, rng *rand.Rand) Coord {
	for attempt := 0; attempt < startAttempts; attempt++ {
		byRow := rng.Intn(2) == 0
		nearSide := rng.Intn(2) == 0

		if byRow {
			y := rng.Intn(g.height)
			for i := 0; i < g.width; i++ {
				x := i
				if !nearSide {
					x = g.width - 1 - i
				}
				if g.cells[y*g.width+x].Biome == BiomeBeach {
					return Coord{X: x, Y: y}
				}
			}
		} else {
			x := rng.Intn(g.width)
			for i := 0; i < g.height; i++ {
				y := i
				if !nearSide {
					y = g.height - 1 - i
				}
				if g.cells[y*g.width+x].Biome == BiomeBeach {
					return Coord{X: x, Y: y}
				}
			}
		}
	}

	center := g.Center()
	best, bestDist := center, -1
	for i, c := range g.cells {
		if !c.Walkable() || c.Biome.IsWater() {
			continue
		}
		p := Coord{X: i % g.width, Y: i / g.width}
		d := (p.X-center.X)*(p.X-center.X) + (p.Y-center.Y)*(p.Y-center.Y)
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}
