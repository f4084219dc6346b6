package pathfind

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/talgya/tileworld/internal/world"
)

// refNode and referenceRoute are a direct rendition of the list-based search
// the game shipped with: [x][y] node table, float32 costs in 10/14 units,
// Contains scans over the open list. Find must return the same routes.
type refNode struct {
	walkable bool
	g, h     float32
	parent   *refNode
	x, y     int
}

func (n *refNode) f() float32 { return n.g + n.h }

func referenceRoute(g *world.Grid, diagonals, fog bool, from, to world.Coord) []world.Coord {
	w, h := g.Width(), g.Height()
	nodes := make([][]*refNode, w)
	for x := range nodes {
		nodes[x] = make([]*refNode, h)
		for y := range nodes[x] {
			nodes[x][y] = &refNode{walkable: g.At(world.Coord{X: x, Y: y}).Walkable(), x: x, y: y}
		}
	}
	dist := func(a, b *refNode) int {
		dx, dy := a.x-b.x, a.y-b.y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		if !diagonals {
			return 10*dx + 10*dy
		}
		if dx > dy {
			return 14*dy + 10*(dx-dy)
		}
		return 14*dx + 10*(dy-dx)
	}
	contains := func(list []*refNode, n *refNode) bool {
		for _, o := range list {
			if o == n {
				return true
			}
		}
		return false
	}

	start, target := nodes[from.X][from.Y], nodes[to.X][to.Y]
	here := float32(g.At(from).TraversalRate)
	open := []*refNode{start}
	closed := map[*refNode]bool{}

	for len(open) > 0 {
		cur, at := open[0], 0
		for i := 1; i < len(open); i++ {
			if open[i].f() < cur.f() || open[i].f() == cur.f() && open[i].h < cur.h {
				cur, at = open[i], i
			}
		}
		open = append(open[:at], open[at+1:]...)
		closed[cur] = true

		if cur == target {
			var rev []world.Coord
			for n := target; n != start; n = n.parent {
				rev = append(rev, world.Coord{X: n.x, Y: n.y})
			}
			route := []world.Coord{from}
			for i := len(rev) - 1; i >= 0; i-- {
				route = append(route, rev[i])
			}
			return route
		}

		for i := -1; i <= 1; i++ {
			for j := -1; j <= 1; j++ {
				if i == 0 && j == 0 || !diagonals && i != 0 && j != 0 {
					continue
				}
				x, y := cur.x+i, cur.y+j
				if x < 0 || x >= w || y < 0 || y >= h {
					continue
				}
				nb := nodes[x][y]
				if !nb.walkable || closed[nb] {
					continue
				}
				cell := g.At(world.Coord{X: x, Y: y})
				mod := here
				if !fog || cell.Seen() {
					mod = float32(cell.TraversalRate)
				}
				cost := cur.g + float32(float32(dist(cur, nb))*mod)
				if cost < nb.g || !contains(open, nb) {
					nb.g = cost
					nb.h = float32(dist(nb, target))
					nb.parent = cur
					if !contains(open, nb) {
						open = append(open, nb)
					}
				}
			}
		}
	}
	return nil
}

var randomRates = []float64{0.3, 0.8, 1, 1.2, 1.5, 2.5, 3, 4}

func randomGrid(t *testing.T, rng *rand.Rand) *world.Grid {
	t.Helper()
	w, h := 6+rng.Intn(10), 6+rng.Intn(10)
	g, err := world.NewGrid(w, h, func(world.Coord) world.Cell {
		if rng.Intn(12) == 0 {
			return world.Cell{Biome: world.BiomeInvalid}
		}
		return world.Cell{Biome: world.BiomeGrassland, TraversalRate: randomRates[rng.Intn(len(randomRates))]}
	})
	if err != nil {
		t.Fatal(err)
	}
	v := world.NewVisibilityWriter(g)
	g.Each(func(c world.Coord, _ world.Cell) {
		if rng.Intn(2) == 0 {
			v.Reveal(c)
		}
	})
	return g
}

func randomWalkable(g *world.Grid, rng *rand.Rand) (world.Coord, bool) {
	for tries := 0; tries < 50; tries++ {
		c := world.Coord{X: rng.Intn(g.Width()), Y: rng.Intn(g.Height())}
		if g.At(c).Walkable() {
			return c, true
		}
	}
	return world.Coord{}, false
}

func TestRoutesMatchReferenceSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(20))
	for n := 0; n < 300; n++ {
		g := randomGrid(t, rng)
		from, ok1 := randomWalkable(g, rng)
		to, ok2 := randomWalkable(g, rng)
		if !ok1 || !ok2 || from == to {
			continue
		}
		for _, diag := range []bool{true, false} {
			fog := rng.Intn(4) != 0
			want := referenceRoute(g, diag, fog, from, to)
			for _, kind := range []OpenSetKind{OpenSetLinear, OpenSetHeap} {
				p := mustNew(t, g, Options{Diagonals: diag, Fog: fog, OpenSet: kind})
				got := p.Find(from, to).Route
				if len(want) == 0 && len(got) == 0 {
					continue
				}
				if !reflect.DeepEqual(got, want) {
					t.Fatalf("grid %d %s diagonals=%v fog=%v %v->%v:\n got %v\nwant %v",
						n, kind, diag, fog, from, to, got, want)
				}
			}
		}
	}
}

func TestEqualCostRoutesPinned(t *testing.T) {
	g := gridFrom(t, "GGG", "GGG", "GGG")
	revealAll(g)
	want := []world.Coord{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}}
	bothOpenSets(t, func(t *testing.T, kind OpenSetKind) {
		p := mustNew(t, g, Options{Diagonals: false, OpenSet: kind})
		if got := p.Find(world.Coord{}, world.Coord{X: 2, Y: 2}).Route; !reflect.DeepEqual(got, want) {
			t.Errorf("route = %v, want %v", got, want)
		}
	})
}

func TestStepCostsRoundedToTenths(t *testing.T) {
	g, err := world.NewGrid(2, 2, func(world.Coord) world.Cell {
		return world.Cell{Biome: world.BiomeGrassland, TraversalRate: 0.8, Resource: 0.5}
	})
	if err != nil {
		t.Fatal(err)
	}
	revealAll(g)
	res := mustNew(t, g, DefaultOptions()).Find(world.Coord{}, world.Coord{X: 1, Y: 1})
	if res.Steps() != 1 {
		t.Fatalf("route = %v, want one diagonal step", res.Route)
	}
	if res.TrueCosts[0] != 1.1 || res.DisplayCosts[0] != 1.1 {
		t.Errorf("step costs = %v / %v, want 1.1", res.TrueCosts, res.DisplayCosts)
	}
}
