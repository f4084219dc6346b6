package world

import "fmt"

// VisibilityWriter is the only way to set a cell's seen flag. Seen is
// monotonic: there is no way to hide a revealed cell.
type VisibilityWriter struct {
	g *Grid
}

// NewVisibilityWriter returns a writer bound to g.
func NewVisibilityWriter(g *Grid) *VisibilityWriter {
	return &VisibilityWriter{g: g}
}

// Reveal marks c seen. Returns true if the cell was previously unseen.
// Out-of-bounds coordinates are ignored.
func (v *VisibilityWriter) Reveal(c Coord) bool {
	if !v.g.InBounds(c) {
		return false
	}
	cell := &v.g.cells[v.g.index(c)]
	if cell.seen {
		return false
	}
	cell.seen = true
	return true
}

// RevealSquare reveals every cell within Chebyshev distance radius of center,
// clamping coordinates to the grid edge. Returns the number newly revealed.
func (v *VisibilityWriter) RevealSquare(center Coord, radius int) int {
	n := 0
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if v.Reveal(v.g.Clamp(center.Add(Coord{X: dx, Y: dy}))) {
				n++
			}
		}
	}
	return n
}

// OccupancyTracker moves the grid's single occupied flag.
// Trackers bound to the same grid share the slot.
type OccupancyTracker struct {
	g *Grid
}

// NewOccupancyTracker returns a tracker bound to g.
func NewOccupancyTracker(g *Grid) *OccupancyTracker {
	return &OccupancyTracker{g: g}
}

// MoveTo clears the previous occupied cell and marks c.
func (o *OccupancyTracker) MoveTo(c Coord) error {
	if !o.g.InBounds(c) {
		return fmt.Errorf("occupy %s: out of bounds", c)
	}
	o.Clear()
	idx := o.g.index(c)
	o.g.cells[idx].occupied = true
	o.g.occupant = idx
	return nil
}

// Current returns the occupied cell, if any.
func (o *OccupancyTracker) Current() (Coord, bool) {
	if o.g.occupant < 0 {
		return Coord{}, false
	}
	return Coord{X: o.g.occupant % o.g.width, Y: o.g.occupant / o.g.width}, true
}

// Clear removes the occupied flag from the grid.
func (o *OccupancyTracker) Clear() {
	if o.g.occupant >= 0 {
		o.g.cells[o.g.occupant].occupied = false
		o.g.occupant = -1
	}
}
