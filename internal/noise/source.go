package noise

import (
	"fmt"

	perlin "github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Source is any 2D noise function returning values in [-1, 1].
type Source interface {
	Eval2(x, y float64) float64
}

// Kind names a noise backend selectable per wave layer.
type Kind string

const (
	KindGradient Kind = "gradient" // lattice gradient noise (Field)
	KindSimplex  Kind = "simplex"  // OpenSimplex
	KindPerlin   Kind = "perlin"   // classic Perlin with internal octaves
)

// NewSource builds a seeded Source of the given kind. An empty kind is gradient.
func NewSource(kind Kind, seed int64) (Source, error) {
	switch kind {
	case "", KindGradient:
		return New(seed), nil
	case KindSimplex:
		return opensimplex.New(seed), nil
	case KindPerlin:
		// alpha=2, beta=2, n=3 gives terrain-like noise.
		return &Perlin{p: perlin.NewPerlin(2, 2, 3, seed)}, nil
	default:
		return nil, fmt.Errorf("noise: unknown kind %q", kind)
	}
}

// Perlin adapts go-perlin to Source, clamping into [-1, 1].
type Perlin struct {
	p *perlin.Perlin
}

// Eval2 implements Source.
func (p *Perlin) Eval2(x, y float64) float64 {
	v := p.p.Noise2D(x, y)
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Fractal sums octaves of src at geometrically increasing frequency
// (×lacunarity) and decaying amplitude (×persistence), normalised by the sum
// of amplitudes so the range does not depend on the octave count.
func Fractal(src Source, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	total := 0.0
	frequency := 1.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += src.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}
