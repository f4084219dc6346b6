// World generation using layered gradient noise.
// Builds the elevation field, shapes it with a radial falloff, classifies each
// cell into a biome and attaches movement and resource attributes.
package world

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/tileworld/internal/noise"
)

// WaveLayer is one fractal noise layer.
type WaveLayer struct {
	Octaves     int        `yaml:"octaves" json:"octaves"`
	Persistence float64    `yaml:"persistence" json:"persistence"`
	Lacunarity  float64    `yaml:"lacunarity" json:"lacunarity"`
	Scale       float64    `yaml:"scale" json:"scale"`         // Coordinate multiplier
	Amplitude   float64    `yaml:"amplitude" json:"amplitude"` // Layer weight
	Noise       noise.Kind `yaml:"noise" json:"noise,omitempty"`
}

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width  int   `yaml:"width" json:"width"`
	Height int   `yaml:"height" json:"height"`
	Seed   int64 `yaml:"seed" json:"seed"` // 0 = random

	GlobalAmplitude float64 `yaml:"global_amplitude" json:"global_amplitude"`
	FalloffExponent float64 `yaml:"falloff_exponent" json:"falloff_exponent"` // Lower = faster falloff from the center
	Fractal         bool    `yaml:"fractal" json:"fractal"`                   // First wave is the base shape
	BaseScale       float64 `yaml:"base_scale" json:"base_scale"`             // Gradient sampling scale when not fractal

	Waves  []WaveLayer `yaml:"waves" json:"waves"`
	Levels Levels      `yaml:"levels" json:"levels"`

	Biomes BiomeTable   `yaml:"biomes" json:"biomes"`
	POIs   []POISetting `yaml:"pois" json:"pois,omitempty"`
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:           64,
		Height:          64,
		Seed:            0,
		GlobalAmplitude: 1.0,
		FalloffExponent: 2.0,
		Fractal:         true,
		BaseScale:       0.1,
		Waves: []WaveLayer{
			{Octaves: 4, Persistence: 0.5, Lacunarity: 2.0, Scale: 0.06, Amplitude: 0.6},
			{Octaves: 2, Persistence: 0.5, Lacunarity: 2.0, Scale: 0.25, Amplitude: 0.15, Noise: noise.KindSimplex},
		},
		Levels: Levels{
			DeepWater: 0.12,
			Water:     0.30,
			Beach:     0.36,
			Grassland: 0.52,
			Forest:    0.66,
			Mountain:  1.10,
		},
		Biomes: DefaultBiomes(),
		POIs:   DefaultPOIs(),
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Width = 24
	cfg.Height = 24
	cfg.Seed = 42
	return cfg
}

// Validate fails fast on configuration errors.
func (cfg GenConfig) Validate() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: grid size %dx%d", ErrInvalidConfig, cfg.Width, cfg.Height)
	}
	if err := cfg.Levels.Validate(); err != nil {
		return err
	}
	if cfg.Fractal && len(cfg.Waves) == 0 {
		return fmt.Errorf("%w: fractal mode needs at least one wave layer", ErrInvalidConfig)
	}
	if !cfg.Fractal && cfg.BaseScale <= 0 {
		return fmt.Errorf("%w: base scale %.3f must be positive", ErrInvalidConfig, cfg.BaseScale)
	}
	if cfg.GlobalAmplitude < 0 {
		return fmt.Errorf("%w: negative global amplitude", ErrInvalidConfig)
	}
	if cfg.FalloffExponent < 0 {
		return fmt.Errorf("%w: negative falloff exponent", ErrInvalidConfig)
	}
	for i, w := range cfg.Waves {
		if w.Amplitude < 0 {
			return fmt.Errorf("%w: wave %d has negative amplitude", ErrInvalidConfig, i)
		}
		if w.Octaves < 1 {
			return fmt.Errorf("%w: wave %d needs at least one octave", ErrInvalidConfig, i)
		}
		switch w.Noise {
		case "", noise.KindGradient, noise.KindSimplex, noise.KindPerlin:
		default:
			return fmt.Errorf("%w: wave %d has unknown noise %q", ErrInvalidConfig, i, w.Noise)
		}
	}
	if err := cfg.Biomes.Validate(); err != nil {
		return err
	}
	return validatePOIs(cfg.POIs)
}

// Generate creates a complete grid. No partial grid is returned on error.
func Generate(cfg GenConfig) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	s, err := newSynth(cfg, seed)
	if err != nil {
		return nil, err
	}

	center := centerOf(cfg.Width, cfg.Height)
	maxDistance := math.Hypot(float64(center.X), float64(center.Y))

	var warnings []string
	warned := make(map[BiomeKind]bool)
	defects := 0
	var firstDefect Coord

	g, err := NewGrid(cfg.Width, cfg.Height, func(c Coord) Cell {
		noiseSum := s.sample(float64(c.X), float64(c.Y))

		// Strong noise in the center, and the water-level bias keeps the
		// middle above water whatever the noise does.
		f := Falloff(c, center, maxDistance, cfg.FalloffExponent)
		elev := noiseSum*cfg.GlobalAmplitude*f + f*cfg.Levels.Water

		biome := Classify(elev, cfg.Levels)
		if biome == BiomeInvalid {
			if defects == 0 {
				firstDefect = c
			}
			defects++
		}

		cell := Cell{Elevation: elev, Biome: biome, TraversalRate: DefaultTraversalRate}
		if biome == BiomeInvalid {
			return cell
		}
		setting, ok := cfg.Biomes.Lookup(biome)
		if !ok {
			if !warned[biome] {
				warned[biome] = true
				msg := fmt.Sprintf("no biome settings for %s, using traversal rate %.1f", biome, DefaultTraversalRate)
				warnings = append(warnings, msg)
				slog.Warn("biome settings missing", "biome", biome.String(), "default_rate", DefaultTraversalRate)
			}
			return cell
		}
		cell.TraversalRate = setting.TraversalRate
		cell.Resource = setting.Resource
		return cell
	})
	if err != nil {
		return nil, err
	}
	if defects > 0 {
		return nil, fmt.Errorf("%w: %d cells above the mountain level (first at %s)", ErrGenerationDefect, defects, firstDefect)
	}

	g.seed = seed
	g.warnings = warnings

	placePOIs(g, cfg.POIs, seed)

	return g, nil
}

// Falloff returns 1 at the center decaying to 0 at maxDistance:
// 1 - (distance/maxDistance)^exponent, clamped at 0. The exact center is
// always 1, including for a zero exponent.
func Falloff(c, center Coord, maxDistance, exponent float64) float64 {
	if maxDistance == 0 {
		return 1
	}
	ratio := math.Hypot(float64(c.X-center.X), float64(c.Y-center.Y)) / maxDistance
	if ratio == 0 {
		return 1
	}
	f := 1 - math.Pow(ratio, exponent)
	if f < 0 {
		return 0
	}
	return f
}

// synth evaluates the layered noise sum for one configuration.
type synth struct {
	cfg     GenConfig
	base    *noise.Field
	sources []noise.Source
}

func newSynth(cfg GenConfig, seed int64) (*synth, error) {
	s := &synth{cfg: cfg, base: noise.New(seed), sources: make([]noise.Source, len(cfg.Waves))}
	for i, w := range cfg.Waves {
		if w.Noise == "" || w.Noise == noise.KindGradient {
			s.sources[i] = s.base
			continue
		}
		src, err := noise.NewSource(w.Noise, seed+int64(i)+1)
		if err != nil {
			return nil, fmt.Errorf("%w: wave %d: %v", ErrInvalidConfig, i, err)
		}
		s.sources[i] = src
	}
	return s, nil
}

// sample returns the layered noise sum before falloff.
func (s *synth) sample(x, y float64) float64 {
	cfg := s.cfg
	var total float64

	// Base wave: the first layer's fractal shape, or plain gradient noise.
	start := 0
	if cfg.Fractal {
		w := cfg.Waves[0]
		total = math.Abs(noise.Fractal(s.sources[0], x*w.Scale, y*w.Scale, w.Octaves, w.Persistence, w.Lacunarity)) *
			w.Amplitude * cfg.GlobalAmplitude
		start = 1
	} else {
		total = math.Abs(s.base.Gradient(x*cfg.BaseScale, y*cfg.BaseScale)) * cfg.GlobalAmplitude
	}

	// Detail layers.
	for i := start; i < len(cfg.Waves); i++ {
		w := cfg.Waves[i]
		total += math.Abs(noise.Fractal(s.sources[i], x*w.Scale, y*w.Scale, w.Octaves, w.Persistence, w.Lacunarity)) *
			w.Amplitude
	}

	return total
}
