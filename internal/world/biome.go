package world

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig wraps every generation configuration error.
	ErrInvalidConfig = errors.New("invalid generation config")
	// ErrGenerationDefect is returned when a cell falls above every elevation band.
	ErrGenerationDefect = errors.New("generation defect")
)

// DefaultTraversalRate is used for biomes missing from the settings table.
const DefaultTraversalRate = 1.0

// Levels holds the exclusive upper elevation bound of each biome band.
// Values must be strictly increasing from DeepWater to Mountain.
type Levels struct {
	DeepWater float64 `yaml:"deep_water" json:"deep_water"`
	Water     float64 `yaml:"water" json:"water"`
	Beach     float64 `yaml:"beach" json:"beach"`
	Grassland float64 `yaml:"grassland" json:"grassland"`
	Forest    float64 `yaml:"forest" json:"forest"`
	Mountain  float64 `yaml:"mountain" json:"mountain"`
}

func (l Levels) ladder() [6]float64 {
	return [6]float64{l.DeepWater, l.Water, l.Beach, l.Grassland, l.Forest, l.Mountain}
}

// Validate checks the ladder is strictly increasing.
func (l Levels) Validate() error {
	ladder := l.ladder()
	for i := 1; i < len(ladder); i++ {
		if ladder[i] <= ladder[i-1] {
			return fmt.Errorf("%w: %s level %.3f not above %s level %.3f",
				ErrInvalidConfig, Biomes[i], ladder[i], Biomes[i-1], ladder[i-1])
		}
	}
	return nil
}

// Classify maps an elevation to its biome band. Elevations at or above the
// Mountain level are Invalid.
func Classify(elevation float64, l Levels) BiomeKind {
	for i, upper := range l.ladder() {
		if elevation < upper {
			return Biomes[i]
		}
	}
	return BiomeInvalid
}

// BiomeSetting holds the movement and resource attributes of one biome.
type BiomeSetting struct {
	Biome         BiomeKind `yaml:"biome" json:"biome"`
	TraversalRate float64   `yaml:"traversal_rate" json:"traversal_rate"`
	Resource      float64   `yaml:"resource" json:"resource"`
}

// BiomeTable is the biome settings table consumed at generation.
type BiomeTable []BiomeSetting

// Lookup returns the first setting for b.
func (t BiomeTable) Lookup(b BiomeKind) (BiomeSetting, bool) {
	for _, s := range t {
		if s.Biome == b {
			return s, true
		}
	}
	return BiomeSetting{}, false
}

// Validate rejects non-positive traversal rates.
func (t BiomeTable) Validate() error {
	for _, s := range t {
		if s.Biome == BiomeInvalid {
			return fmt.Errorf("%w: biome settings entry for Invalid", ErrInvalidConfig)
		}
		if s.TraversalRate <= 0 {
			return fmt.Errorf("%w: %s traversal rate %.3f must be positive", ErrInvalidConfig, s.Biome, s.TraversalRate)
		}
	}
	return nil
}

// DefaultBiomes returns days-per-tile and danger values for every biome.
func DefaultBiomes() BiomeTable {
	return BiomeTable{
		{Biome: BiomeDeepWater, TraversalRate: 4.0, Resource: 3.0},
		{Biome: BiomeWater, TraversalRate: 2.5, Resource: 1.5},
		{Biome: BiomeBeach, TraversalRate: 1.0, Resource: 0.2},
		{Biome: BiomeGrassland, TraversalRate: 0.8, Resource: 0.5},
		{Biome: BiomeForest, TraversalRate: 1.5, Resource: 1.0},
		{Biome: BiomeMountain, TraversalRate: 3.0, Resource: 2.0},
	}
}
