// Package noise provides seeded 2D gradient noise and fractal (multi-octave)
// composition used by world generation.
package noise

import (
	"errors"
	"math"
	"math/rand/v2"
)

// ErrNotPermuted is the panic value raised when a Field is sampled before Permute.
var ErrNotPermuted = errors.New("noise: permutation table not initialized")

// gradients are the eight lattice directions indexed by hash & 7.
var gradients = [8][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
}

// Field is a lattice gradient noise generator. The zero value is unusable
// until Permute has run; sampling it panics with ErrNotPermuted.
type Field struct {
	perm  [512]int
	ready bool
	seed  int64
}

// New returns a Field permuted with seed.
func New(seed int64) *Field {
	f := &Field{}
	f.Permute(seed)
	return f
}

// Permute builds the permutation table: identity 0..255 shuffled by a
// seeded Fisher–Yates pass, then duplicated into 256..511.
func (f *Field) Permute(seed int64) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))

	var base [256]int
	for i := range base {
		base[i] = i
	}
	for i := 255; i > 0; i-- {
		j := rng.IntN(i + 1)
		base[i], base[j] = base[j], base[i]
	}

	for i := 0; i < 256; i++ {
		f.perm[i] = base[i]
		f.perm[i+256] = base[i]
	}
	f.seed = seed
	f.ready = true
}

// Seed returns the seed of the last Permute call.
func (f *Field) Seed() int64 { return f.seed }

// Permuted reports whether the table has been built.
func (f *Field) Permuted() bool { return f.ready }

// Gradient samples gradient noise at (x, y). The result lies in [-1, 1].
func (f *Field) Gradient(x, y float64) float64 {
	f.mustBeReady()

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1

	sx := fade(x - float64(x0))
	sy := fade(y - float64(y0))

	n00 := f.dotGridGradient(x0, y0, x, y)
	n01 := f.dotGridGradient(x0, y1, x, y)
	n10 := f.dotGridGradient(x1, y0, x, y)
	n11 := f.dotGridGradient(x1, y1, x, y)

	nx0 := lerp(n00, n10, sx)
	nx1 := lerp(n01, n11, sx)
	return lerp(nx0, nx1, sy)
}

// Eval2 implements Source.
func (f *Field) Eval2(x, y float64) float64 {
	return f.Gradient(x, y)
}

// Fractal sums octaves of Gradient, see the package-level Fractal.
func (f *Field) Fractal(x, y float64, octaves int, persistence, lacunarity float64) float64 {
	f.mustBeReady()
	return Fractal(f, x, y, octaves, persistence, lacunarity)
}

func (f *Field) mustBeReady() {
	if f == nil || !f.ready {
		panic(ErrNotPermuted)
	}
}

func (f *Field) dotGridGradient(ix, iy int, x, y float64) float64 {
	hash := f.perm[(ix+f.perm[iy&255])&255]
	g := gradients[hash&7]
	dx := x - float64(ix)
	dy := y - float64(iy)
	return dx*g[0] + dy*g[1]
}

// fade is the quintic smoothing curve 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}
