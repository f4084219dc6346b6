package autotile

import (
	"log/slog"

	"github.com/talgya/tileworld/internal/world"
)

// Empty is the variant returned when no rule matches; renderers draw the
// plain biome tile for it.
const Empty = "Empty"

// Result is the selected variant and its clockwise quarter-turn count.
type Result struct {
	Variant  string `json:"variant"`
	Rotation int    `json:"rotation"`
}

// IsEmpty reports whether r is the no-match sentinel.
func (r Result) IsEmpty() bool { return r.Variant == Empty }

var emptyResult = Result{Variant: Empty, Rotation: 0}

// Engine evaluates a read-only rule table against a grid.
type Engine struct {
	rules []Rule

	// Disabled makes every lookup return the Empty sentinel.
	Disabled bool
}

// NewEngine returns an engine over rules in precedence order.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int { return len(e.rules) }

// Neighborhood returns the biomes around (x, y), clamping out-of-bounds
// coordinates so edge cells see themselves repeated.
func Neighborhood(g *world.Grid, x, y int) [8]world.BiomeKind {
	var out [8]world.BiomeKind
	at := world.Coord{X: x, Y: y}
	for d, off := range Offsets {
		out[d] = g.At(g.Clamp(at.Add(off))).Biome
	}
	return out
}

// Match returns the first rule, in load order, matching the cell at (x, y).
// It never mutates the grid.
func (e *Engine) Match(g *world.Grid, x, y int) Result {
	at := world.Coord{X: x, Y: y}
	if e.Disabled || !g.InBounds(at) {
		return emptyResult
	}

	self := g.At(at).Biome
	neighbors := Neighborhood(g, x, y)
	for i := range e.rules {
		if e.rules[i].Matches(self, neighbors) {
			return Result{Variant: e.rules[i].Result, Rotation: e.rules[i].Rotations}
		}
	}
	return emptyResult
}

// Layer holds one Result per grid cell.
type Layer struct {
	width   int
	height  int
	results []Result
}

// At returns the result for c, or Empty out of bounds.
func (l *Layer) At(c world.Coord) Result {
	if c.X < 0 || c.X >= l.width || c.Y < 0 || c.Y >= l.height {
		return emptyResult
	}
	return l.results[c.Y*l.width+c.X]
}

// Matched returns how many cells received a non-empty variant.
func (l *Layer) Matched() int {
	n := 0
	for _, r := range l.results {
		if !r.IsEmpty() {
			n++
		}
	}
	return n
}

// Annotate matches every cell once. Run at generation time, not per frame.
func (e *Engine) Annotate(g *world.Grid) *Layer {
	l := &Layer{width: g.Width(), height: g.Height(), results: make([]Result, g.CellCount())}
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			l.results[y*g.Width()+x] = e.Match(g, x, y)
		}
	}
	slog.Debug("autotile layer built", "rules", len(e.rules), "matched", l.Matched(), "cells", g.CellCount())
	return l
}
