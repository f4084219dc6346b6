package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talgya/tileworld/internal/autotile"
	"github.com/talgya/tileworld/internal/pathfind"
	"github.com/talgya/tileworld/internal/world"
)

// rowGrid builds a single-row grid: G is rate 1 grassland, F rate 3 forest,
// X invalid.
func rowGrid(t *testing.T, row string) *world.Grid {
	t.Helper()
	g, err := world.NewGrid(len(row), 1, func(c world.Coord) world.Cell {
		switch row[c.X] {
		case 'F':
			return world.Cell{Biome: world.BiomeForest, TraversalRate: 3, Resource: 1}
		case 'X':
			return world.Cell{Biome: world.BiomeInvalid}
		default:
			return world.Cell{Biome: world.BiomeGrassland, TraversalRate: 1, Resource: 0.5}
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func newSession(t *testing.T, g *world.Grid, cfg Config) *Session {
	t.Helper()
	pf, err := pathfind.New(g, pathfind.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(g, pf, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func kinds(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func hasKind(events []Event, kind string) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestPlaceRevealsClampedSquare(t *testing.T) {
	g, err := world.NewGrid(5, 5, func(world.Coord) world.Cell {
		return world.Cell{Biome: world.BiomeGrassland, TraversalRate: 1}
	})
	if err != nil {
		t.Fatal(err)
	}
	s := newSession(t, g, DefaultConfig())
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	if g.SeenCount() != 4 {
		t.Errorf("SeenCount = %d, want 4 at the corner", g.SeenCount())
	}
	st := s.Status()
	if st.Agent == nil || *st.Agent != (world.Coord{}) {
		t.Errorf("Status.Agent = %v, want (0,0)", st.Agent)
	}
	if !g.At(world.Coord{}).Occupied() {
		t.Error("start cell not occupied")
	}
}

func TestJourneyArrives(t *testing.T) {
	g := rowGrid(t, "GGG")
	s := newSession(t, g, DefaultConfig())
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	plan, err := s.Begin(world.Coord{X: 2})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if plan.Steps() != 2 {
		t.Fatalf("plan steps = %d, want 2", plan.Steps())
	}

	// One day per grass tile at ten ticks a day.
	if n := s.Tick(time.Second); n != 10 {
		t.Errorf("Tick consumed %d ticks, want 10", n)
	}
	if at := s.Status().Agent; at == nil || *at != (world.Coord{X: 1}) {
		t.Errorf("after one day agent at %v, want (1,0)", at)
	}
	if !s.Status().Travelling {
		t.Error("Travelling = false mid-journey")
	}

	s.Tick(time.Second)
	st := s.Status()
	if st.Travelling {
		t.Error("still travelling after arrival")
	}
	if *st.Agent != (world.Coord{X: 2}) {
		t.Errorf("agent at %v, want (2,0)", *st.Agent)
	}
	if st.Day != 2 {
		t.Errorf("Day = %v, want 2", st.Day)
	}
	if g.At(world.Coord{X: 1}).Occupied() {
		t.Error("previous cell still occupied")
	}
	evs := s.Events(0)
	if !hasKind(evs, EventArrived) || hasKind(evs, EventDivergence) {
		t.Errorf("events = %v", kinds(evs))
	}
}

func TestDivergenceRecorded(t *testing.T) {
	g := rowGrid(t, "GFF")
	cfg := DefaultConfig()
	cfg.RevealRadius = 0
	s := newSession(t, g, cfg)
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	plan, err := s.Begin(world.Coord{X: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Diverged() {
		t.Fatalf("plan costs true %v display %v, want divergence", plan.TrueCosts, plan.DisplayCosts)
	}

	s.Tick(cfg.TickInterval)
	evs := s.Events(0)
	last := evs[len(evs)-1]
	if last.Kind != EventDivergence || last.TrueCost != 3 || last.DisplayCost != 1 {
		t.Errorf("last event = %+v, want cost_divergence 3 vs 1", last)
	}

	// Forest takes thirty ticks per tile.
	s.Tick(59 * cfg.TickInterval)
	if s.Status().Travelling {
		t.Error("journey did not finish after 60 ticks")
	}
	if got := s.Day(); got != 6 {
		t.Errorf("Day = %v, want 6", got)
	}
}

func TestHaltOnDivergence(t *testing.T) {
	g := rowGrid(t, "GFF")
	cfg := DefaultConfig()
	cfg.RevealRadius = 0
	cfg.HaltOnDivergence = true
	s := newSession(t, g, cfg)
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Begin(world.Coord{X: 2}); err != nil {
		t.Fatal(err)
	}
	s.Tick(time.Second)

	st := s.Status()
	if st.Travelling || *st.Agent != (world.Coord{}) {
		t.Errorf("status = %+v, want halted at start", st)
	}
	if !hasKind(s.Events(0), EventHalted) {
		t.Errorf("events = %v, want halted", kinds(s.Events(0)))
	}
	if st.Day != 0 {
		t.Errorf("Day = %v, halting must not consume time", st.Day)
	}
}

func TestBeginErrors(t *testing.T) {
	g := rowGrid(t, "GXG")
	s := newSession(t, g, DefaultConfig())
	if _, err := s.Begin(world.Coord{X: 2}); !errors.Is(err, ErrNotPlaced) {
		t.Errorf("unplaced Begin err = %v, want ErrNotPlaced", err)
	}
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Begin(world.Coord{X: 2}); !errors.Is(err, ErrNoRoute) {
		t.Errorf("walled Begin err = %v, want ErrNoRoute", err)
	}
	if err := s.Place(world.Coord{X: 1}); err == nil {
		t.Error("Place on invalid cell succeeded")
	}

	g = rowGrid(t, "GGG")
	s = newSession(t, g, DefaultConfig())
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Begin(world.Coord{X: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Begin(world.Coord{X: 1}); !errors.Is(err, ErrTravelling) {
		t.Errorf("second Begin err = %v, want ErrTravelling", err)
	}
	if !s.Cancel() {
		t.Error("Cancel returned false during a journey")
	}
	if s.Cancel() {
		t.Error("Cancel returned true with no journey")
	}
}

func TestBeginInPlace(t *testing.T) {
	s := newSession(t, rowGrid(t, "GG"), DefaultConfig())
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	plan, err := s.Begin(world.Coord{})
	if err != nil || plan.Steps() != 0 || s.Status().Travelling {
		t.Errorf("Begin in place = %+v, %v", plan, err)
	}
}

func TestEstimatedDaysLeft(t *testing.T) {
	s := newSession(t, rowGrid(t, "GGGG"), DefaultConfig())
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Begin(world.Coord{X: 3}); err != nil {
		t.Fatal(err)
	}
	if got := s.Status().EstimatedDaysLeft; got != 3 {
		t.Errorf("before start EstimatedDaysLeft = %v, want 3", got)
	}
	s.Tick(4 * DefaultConfig().TickInterval)
	if got := s.Status().EstimatedDaysLeft; got != 2.6 {
		t.Errorf("after 4 ticks EstimatedDaysLeft = %v, want 2.6", got)
	}
}

func TestEventRingBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 3
	s := newSession(t, rowGrid(t, "GGGGG"), cfg)
	for x := 0; x < 5; x++ {
		if err := s.Place(world.Coord{X: x}); err != nil {
			t.Fatal(err)
		}
	}
	evs := s.Events(0)
	if len(evs) != 3 || evs[0].Seq != 3 || evs[2].Seq != 5 {
		t.Errorf("events = %+v, want seq 3..5", evs)
	}
	if got := s.EventsSince(4); len(got) != 1 || got[0].Seq != 5 {
		t.Errorf("EventsSince(4) = %+v", got)
	}
	if got := s.Events(2); len(got) != 2 || got[1].Seq != 5 {
		t.Errorf("Events(2) = %+v", got)
	}
}

func TestFogToggleKeepsSeenBits(t *testing.T) {
	g := rowGrid(t, "GFF")
	cfg := DefaultConfig()
	cfg.RevealRadius = 0
	s := newSession(t, g, cfg)
	if err := s.Place(world.Coord{}); err != nil {
		t.Fatal(err)
	}
	s.SetFog(false)
	plan, err := s.Plan(world.Coord{X: 2})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Diverged() {
		t.Error("fog off plan diverged")
	}
	if g.SeenCount() != 1 {
		t.Errorf("SeenCount = %d, want 1", g.SeenCount())
	}
	s.View(func(g *world.Grid, _ *autotile.Layer, fog bool) {
		if fog {
			t.Error("View reports fog on after SetFog(false)")
		}
		if !Visible(g.At(world.Coord{X: 2}), fog) {
			t.Error("unseen cell hidden with fog off")
		}
	})
}

func TestTicksFor(t *testing.T) {
	cases := []struct {
		days  float64
		steps int
		want  int
	}{
		{1, 10, 10},
		{1.4, 10, 14},
		{0.8 * 1.4, 10, 12},
		{0.01, 10, 1},
		{0, 10, 1},
	}
	for _, tc := range cases {
		if got := ticksFor(tc.days, tc.steps); got != tc.want {
			t.Errorf("ticksFor(%v, %d) = %d, want %d", tc.days, tc.steps, got, tc.want)
		}
	}
}

func TestEngineRunStop(t *testing.T) {
	e := NewEngine(2 * time.Millisecond)
	var ticks, flushes atomic.Int64
	e.FlushEvery = 2
	e.OnTick = func(time.Duration) { ticks.Add(1) }
	e.OnFlush = func(uint64) { flushes.Add(1) }

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	e.Stop()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil after Stop", err)
	}
	if ticks.Load() < 4 || flushes.Load() < 1 {
		t.Errorf("ticks = %d, flushes = %d", ticks.Load(), flushes.Load())
	}
	if e.Running() {
		t.Error("Running = true after Stop")
	}
}

func TestEngineContextCancel(t *testing.T) {
	e := NewEngine(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDayClock(t *testing.T) {
	cases := map[float64]string{0: "Day 1.0", 2.34: "Day 3.3", 0.96: "Day 2.0"}
	for days, want := range cases {
		if got := DayClock(days); got != want {
			t.Errorf("DayClock(%v) = %q, want %q", days, got, want)
		}
	}
}
