package pathfind

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/tileworld/internal/world"
)

// Request asks for a route between two cells.
type Request struct {
	From world.Coord `json:"from"`
	To   world.Coord `json:"to"`
}

// Result is produced fresh per request. Costs are aligned to Route[1:].
// DisplayCosts substitute the start cell's rate for unseen cells when fog is
// on; TrueCosts always use the real destination rate.
type Result struct {
	Route        []world.Coord `json:"route"`
	TrueCosts    []float64     `json:"true_costs"`
	DisplayCosts []float64     `json:"display_costs"`
	Danger       float64       `json:"danger"`
}

// Found reports whether a route exists.
func (r Result) Found() bool { return len(r.Route) > 0 }

// Steps returns the number of moves, excluding the start cell.
func (r Result) Steps() int { return len(r.TrueCosts) }

// TotalTrue sums the true step costs.
func (r Result) TotalTrue() float64 { return sum(r.TrueCosts) }

// TotalDisplay sums the fog-adjusted step costs.
func (r Result) TotalDisplay() float64 { return sum(r.DisplayCosts) }

// Diverged reports whether any step costs more than was displayed.
func (r Result) Diverged() bool {
	for i := range r.TrueCosts {
		if r.TrueCosts[i] > r.DisplayCosts[i] {
			return true
		}
	}
	return false
}

func sum(xs []float64) float64 {
	t := 0.0
	for _, x := range xs {
		t += x
	}
	return t
}

type node struct {
	g, h    float32
	parent  int
	inOpen  bool
	seq     int
	version int
}

func (n *node) f() float32 { return n.g + n.h }

// Pathfinder searches one grid. It reads biome, traversal rate and the seen
// bit; it never writes to the grid.
type Pathfinder struct {
	grid *world.Grid
	opts Options
}

// New returns a Pathfinder bound to g.
func New(g *world.Grid, opts Options) (*Pathfinder, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrInvalidOptions)
	}
	if opts.DiagonalCost == 0 {
		opts.DiagonalCost = DefaultDiagonalCost
	}
	if opts.OpenSet == "" {
		opts.OpenSet = OpenSetLinear
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Pathfinder{grid: g, opts: opts}, nil
}

// Options returns the active options.
func (p *Pathfinder) Options() Options { return p.opts }

// SetFog toggles how unseen cells are costed. Seen bits are untouched.
func (p *Pathfinder) SetFog(on bool) { p.opts.Fog = on }

// Fog reports whether fog cost substitution is active.
func (p *Pathfinder) Fog() bool { return p.opts.Fog }

// Find is shorthand for Path(Request{from, to}).
func (p *Pathfinder) Find(from, to world.Coord) Result {
	return p.Path(Request{From: from, To: to})
}

// Path runs A* from req.From to req.To. An unreachable goal, or a start or
// goal that is out of bounds or unwalkable, yields an empty route.
func (p *Pathfinder) Path(req Request) Result {
	g := p.grid
	if !g.InBounds(req.From) || !g.InBounds(req.To) ||
		!g.At(req.From).Walkable() || !g.At(req.To).Walkable() {
		return Result{}
	}
	if req.From == req.To {
		return Result{Route: []world.Coord{req.From}, TrueCosts: []float64{}, DisplayCosts: []float64{}}
	}

	route := p.search(req.From, req.To)
	if route == nil {
		slog.Debug("no route", "from", req.From, "to", req.To)
		return Result{}
	}
	return p.Cost(route)
}

// Cost prices an existing route against the current seen bits and fog
// setting. route[0] is the start cell.
func (p *Pathfinder) Cost(route []world.Coord) Result {
	if len(route) == 0 {
		return Result{}
	}
	res := Result{
		Route:        route,
		TrueCosts:    make([]float64, 0, len(route)-1),
		DisplayCosts: make([]float64, 0, len(route)-1),
	}
	startRate := p.grid.At(route[0]).TraversalRate
	for i := 1; i < len(route); i++ {
		dest := p.grid.At(route[i])
		mult := p.stepMultiplier(route[i-1], route[i])
		res.TrueCosts = append(res.TrueCosts, roundTenth(dest.TraversalRate*mult))
		if p.fogged(dest) {
			res.DisplayCosts = append(res.DisplayCosts, roundTenth(startRate*mult))
		} else {
			res.DisplayCosts = append(res.DisplayCosts, roundTenth(dest.TraversalRate*mult))
			res.Danger += dest.Resource * mult
		}
	}
	return res
}

// roundTenth rounds a step cost to the tenth of a day movement is paced in.
func roundTenth(v float64) float64 { return math.Round(v*10) / 10 }

func (p *Pathfinder) fogged(c world.Cell) bool {
	return p.opts.Fog && !c.Seen()
}

func (p *Pathfinder) stepMultiplier(a, b world.Coord) float64 {
	if world.IsDiagonalStep(a, b) {
		return p.opts.DiagonalCost
	}
	return 1
}

// Search weights are integers: a cardinal step is 10 and a diagonal step is
// DiagonalCost scaled by ten, so equal-cost routes tie exactly.
const cardinalWeight = 10

func (p *Pathfinder) diagonalWeight() int {
	return int(math.Round(cardinalWeight * p.opts.DiagonalCost))
}

// distance is octile distance in search weights, or Manhattan distance
// without diagonals. It prices single steps and serves as the heuristic.
func (p *Pathfinder) distance(a, b world.Coord) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if !p.opts.Diagonals {
		return cardinalWeight * (dx + dy)
	}
	lo, hi := min(dx, dy), max(dx, dy)
	return p.diagonalWeight()*lo + cardinalWeight*(hi-lo)
}

func (p *Pathfinder) search(from, to world.Coord) []world.Coord {
	g := p.grid
	w := g.Width()
	idx := func(c world.Coord) int { return c.Y*w + c.X }
	at := func(i int) world.Coord { return world.Coord{X: i % w, Y: i / w} }

	nodes := make([]node, g.CellCount())
	var open openSet
	if p.opts.OpenSet == OpenSetHeap {
		open = newHeapOpen(nodes)
	} else {
		open = &linearOpen{nodes: nodes}
	}
	closed := mapset.New[int]()

	// Unseen cells are estimated at the rate of the cell the agent stands on.
	startRate := float32(g.At(from).TraversalRate)
	start, goal := idx(from), idx(to)
	nodes[start].parent = -1
	open.push(start)

	for {
		cur, ok := open.pop()
		if !ok {
			return nil
		}
		closed.Put(cur)
		if cur == goal {
			return retrace(nodes, start, goal, at)
		}

		cc := at(cur)
		for _, nc := range p.neighbors(cc) {
			ni := idx(nc)
			cell := g.At(nc)
			if !cell.Walkable() || closed.Has(ni) {
				continue
			}
			rate := float32(cell.TraversalRate)
			if p.fogged(cell) {
				rate = startRate
			}
			// The conversion keeps the product rounded to float32 before the sum.
			cost := nodes[cur].g + float32(float32(p.distance(cc, nc))*rate)

			// The membership branch is kept: it decides which of several
			// equal-cost routes is returned.
			inOpen := open.contains(ni)
			if cost < nodes[ni].g || !inOpen {
				nodes[ni].g = cost
				nodes[ni].h = float32(p.distance(nc, to))
				nodes[ni].parent = cur
				if inOpen {
					open.update(ni)
				} else {
					open.push(ni)
				}
			}
		}
	}
}

// neighbors returns in-bounds neighbors, x-major from (-1,-1) to (1,1).
func (p *Pathfinder) neighbors(c world.Coord) []world.Coord {
	out := make([]world.Coord, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if !p.opts.Diagonals && dx != 0 && dy != 0 {
				continue
			}
			n := world.Coord{X: c.X + dx, Y: c.Y + dy}
			if p.grid.InBounds(n) {
				out = append(out, n)
			}
		}
	}
	return out
}

func retrace(nodes []node, start, goal int, at func(int) world.Coord) []world.Coord {
	var rev []world.Coord
	for i := goal; i != start; i = nodes[i].parent {
		rev = append(rev, at(i))
	}
	rev = append(rev, at(start))
	route := make([]world.Coord, len(rev))
	for i, c := range rev {
		route[len(rev)-1-i] = c
	}
	return route
}
