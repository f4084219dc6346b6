package world

import "fmt"

// Grid is a fixed-size W×H array of cells stored row-major.
type Grid struct {
	width    int
	height   int
	cells    []Cell
	occupant int // index of the occupied cell, -1 if none

	seed     int64
	warnings []string
}

// NewGrid builds a grid, asking fill for every cell. Seen and occupied flags
// on returned cells are ignored; use VisibilityWriter and OccupancyTracker.
func NewGrid(width, height int, fill func(c Coord) Cell) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: grid size %dx%d", ErrInvalidConfig, width, height)
	}
	g := &Grid{
		width:    width,
		height:   height,
		cells:    make([]Cell, width*height),
		occupant: -1,
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			cell := fill(Coord{X: x, Y: y})
			cell.seen = false
			cell.occupied = false
			g.cells[y*width+x] = cell
		}
	}
	return g, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Seed returns the generation seed, 0 for hand-built grids.
func (g *Grid) Seed() int64 { return g.seed }

// SetSeed records the seed the grid was generated from, for grids rebuilt
// from an archive.
func (g *Grid) SetSeed(seed int64) { g.seed = seed }

// Warnings returns configuration warnings raised during generation.
func (g *Grid) Warnings() []string { return g.warnings }

// InBounds reports whether c lies on the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.width && c.Y >= 0 && c.Y < g.height
}

// At returns a copy of the cell at c. Out-of-bounds coordinates yield the
// zero Cell, whose biome is Invalid.
func (g *Grid) At(c Coord) Cell {
	if !g.InBounds(c) {
		return Cell{}
	}
	return g.cells[g.index(c)]
}

// Clamp moves c to the nearest in-bounds coordinate.
func (g *Grid) Clamp(c Coord) Coord {
	return Coord{X: clamp(c.X, 0, g.width-1), Y: clamp(c.Y, 0, g.height-1)}
}

// Center returns the integer map center (W/2, H/2).
func (g *Grid) Center() Coord {
	return centerOf(g.width, g.height)
}

// Each calls fn for every cell in row-major order.
func (g *Grid) Each(fn func(c Coord, cell Cell)) {
	for i, cell := range g.cells {
		fn(Coord{X: i % g.width, Y: i / g.width}, cell)
	}
}

// CellCount returns W×H.
func (g *Grid) CellCount() int {
	return len(g.cells)
}

// SeenCount returns how many cells have been revealed.
func (g *Grid) SeenCount() int {
	n := 0
	for _, c := range g.cells {
		if c.seen {
			n++
		}
	}
	return n
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, seed=%d)", g.width, g.height, g.seed)
}

func (g *Grid) index(c Coord) int {
	return c.Y*g.width + c.X
}

func centerOf(width, height int) Coord {
	return Coord{X: int(float64(width) * 0.5), Y: int(float64(height) * 0.5)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TerrainCounts returns a summary of biome distribution.
func TerrainCounts(g *Grid) map[BiomeKind]int {
	counts := make(map[BiomeKind]int)
	for _, c := range g.cells {
		counts[c.Biome]++
	}
	return counts
}
