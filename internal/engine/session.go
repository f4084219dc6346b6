package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/talgya/tileworld/internal/autotile"
	"github.com/talgya/tileworld/internal/pathfind"
	"github.com/talgya/tileworld/internal/world"
)

var (
	ErrNotPlaced  = errors.New("agent not placed")
	ErrTravelling = errors.New("journey already in progress")
	ErrNoRoute    = errors.New("no route")
)

// Event kinds recorded in the journey log.
const (
	EventPlaced     = "placed"
	EventDeparted   = "departed"
	EventDivergence = "cost_divergence"
	EventHalted     = "halted"
	EventArrived    = "arrived"
	EventCancelled  = "cancelled"
)

// Config controls travel pacing and exploration.
type Config struct {
	StepsInADay      int           `yaml:"steps_in_a_day"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	RevealRadius     int           `yaml:"reveal_radius"`
	MaxEvents        int           `yaml:"max_events"`
	HaltOnDivergence bool          `yaml:"halt_on_divergence"`
}

// DefaultConfig matches ten movement ticks per day at 100ms each.
func DefaultConfig() Config {
	return Config{
		StepsInADay:  10,
		TickInterval: 100 * time.Millisecond,
		RevealRadius: 1,
		MaxEvents:    256,
	}
}

// Validate rejects non-positive pacing values.
func (c Config) Validate() error {
	if c.StepsInADay <= 0 {
		return fmt.Errorf("steps_in_a_day must be positive, got %d", c.StepsInADay)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.RevealRadius < 0 {
		return fmt.Errorf("reveal_radius must not be negative, got %d", c.RevealRadius)
	}
	return nil
}

// Event is a notable journey occurrence.
type Event struct {
	Seq         uint64      `json:"seq"`
	Day         float64     `json:"day"`
	Kind        string      `json:"kind"`
	At          world.Coord `json:"at"`
	TrueCost    float64     `json:"true_cost,omitempty"`
	DisplayCost float64     `json:"display_cost,omitempty"`
	Description string      `json:"description"`
}

type journey struct {
	plan     pathfind.Result
	next     int // index into plan.Route of the cell being entered
	started  bool
	need     int // ticks the current step takes
	progress int
}

// Session owns one grid and the collaborators allowed to mutate it.
// All methods are safe for concurrent use.
type Session struct {
	mu sync.RWMutex

	grid    *world.Grid
	vis     *world.VisibilityWriter
	occ     *world.OccupancyTracker
	paths   *pathfind.Pathfinder
	tiles   *autotile.Layer
	cfg     Config
	journey *journey
	pending time.Duration
	ticks   int64 // movement ticks elapsed; days = ticks / StepsInADay

	events  []Event
	lastSeq uint64
}

// NewSession wires a session around an existing grid. tiles may be nil.
func NewSession(g *world.Grid, paths *pathfind.Pathfinder, tiles *autotile.Layer, cfg Config) (*Session, error) {
	if g == nil || paths == nil {
		return nil, errors.New("session needs a grid and a pathfinder")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultConfig().MaxEvents
	}
	return &Session{
		grid:  g,
		vis:   world.NewVisibilityWriter(g),
		occ:   world.NewOccupancyTracker(g),
		paths: paths,
		tiles: tiles,
		cfg:   cfg,
	}, nil
}

// PlaceAtStart puts the agent on a beach found by scanning from a random edge.
func (s *Session) PlaceAtStart(rng *rand.Rand) (world.Coord, error) {
	s.mu.RLock()
	c := world.FindStartingLocation(s.grid, rng)
	s.mu.RUnlock()
	return c, s.Place(c)
}

// Place moves the agent to c and reveals the square around it.
func (s *Session) Place(c world.Coord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journey != nil {
		return ErrTravelling
	}
	if err := s.enter(c); err != nil {
		return err
	}
	s.record(EventPlaced, c, 0, 0, fmt.Sprintf("placed on %s at %s", s.grid.At(c).Biome, c))
	return nil
}

// enter moves the occupancy slot and reveals around c. Caller holds mu.
func (s *Session) enter(c world.Coord) error {
	if !s.grid.At(c).Walkable() {
		return fmt.Errorf("enter %s: cell not walkable", c)
	}
	if err := s.occ.MoveTo(c); err != nil {
		return err
	}
	s.vis.RevealSquare(c, s.cfg.RevealRadius)
	return nil
}

// Plan previews a route from the agent's cell.
func (s *Session) Plan(to world.Coord) (pathfind.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, ok := s.occ.Current()
	if !ok {
		return pathfind.Result{}, ErrNotPlaced
	}
	return s.paths.Find(from, to), nil
}

// Begin commits to the route towards to. The display costs accepted here
// are the estimates later compared against true costs.
func (s *Session) Begin(to world.Coord) (pathfind.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journey != nil {
		return pathfind.Result{}, ErrTravelling
	}
	from, ok := s.occ.Current()
	if !ok {
		return pathfind.Result{}, ErrNotPlaced
	}
	plan := s.paths.Find(from, to)
	if !plan.Found() {
		return plan, fmt.Errorf("%w from %s to %s", ErrNoRoute, from, to)
	}
	if plan.Steps() == 0 {
		return plan, nil
	}
	s.journey = &journey{plan: plan, next: 1}
	s.record(EventDeparted, from, plan.TotalTrue(), plan.TotalDisplay(),
		fmt.Sprintf("set out for %s, %d steps, expecting %.1f days", to, plan.Steps(), plan.TotalDisplay()))
	return plan, nil
}

// Cancel ends the current journey where the agent stands.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journey == nil {
		return false
	}
	at, _ := s.occ.Current()
	s.journey = nil
	s.record(EventCancelled, at, 0, 0, fmt.Sprintf("journey cancelled at %s", at))
	return true
}

// Tick advances travel by delta of wall-clock time. Each TickInterval is one
// movement tick worth 1/StepsInADay days. Returns the ticks consumed.
func (s *Session) Tick(delta time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journey == nil {
		s.pending = 0
		return 0
	}
	s.pending += delta
	n := 0
	for s.pending >= s.cfg.TickInterval && s.journey != nil {
		s.pending -= s.cfg.TickInterval
		s.advance()
		n++
	}
	return n
}

// advance runs one movement tick. Caller holds mu.
func (s *Session) advance() {
	j := s.journey
	if !j.started {
		i := j.next - 1
		trueCost, shown := j.plan.TrueCosts[i], j.plan.DisplayCosts[i]
		target := j.plan.Route[j.next]
		if trueCost > shown {
			s.record(EventDivergence, target, trueCost, shown,
				fmt.Sprintf("%s at %s takes %.1f days, expected %.1f", s.grid.At(target).Biome, target, trueCost, shown))
			if s.cfg.HaltOnDivergence {
				at, _ := s.occ.Current()
				s.journey = nil
				s.record(EventHalted, at, 0, 0, fmt.Sprintf("halted at %s before %s", at, target))
				return
			}
		}
		j.need = ticksFor(trueCost, s.cfg.StepsInADay)
		j.progress = 0
		j.started = true
	}

	j.progress++
	s.ticks++
	if j.progress < j.need {
		return
	}

	target := j.plan.Route[j.next]
	if err := s.enter(target); err != nil {
		slog.Error("journey step failed", "target", target, "error", err)
		s.journey = nil
		return
	}
	j.next++
	j.started = false
	if j.next >= len(j.plan.Route) {
		s.journey = nil
		s.record(EventArrived, target, j.plan.TotalTrue(), j.plan.TotalDisplay(),
			fmt.Sprintf("arrived at %s on day %.1f", target, s.dayLocked()))
	}
}

// ticksFor converts a cost in days to whole movement ticks, at least one.
func ticksFor(days float64, stepsInADay int) int {
	n := int(math.Ceil(days*float64(stepsInADay) - 1e-9))
	if n < 1 {
		return 1
	}
	return n
}

// SetFog toggles fog cost substitution for future plans.
func (s *Session) SetFog(on bool) {
	s.mu.Lock()
	s.paths.SetFog(on)
	s.mu.Unlock()
}

// Status is a point-in-time summary of the session.
type Status struct {
	Day               float64      `json:"day"`
	Agent             *world.Coord `json:"agent,omitempty"`
	Travelling        bool         `json:"travelling"`
	Destination       *world.Coord `json:"destination,omitempty"`
	StepsRemaining    int          `json:"steps_remaining"`
	EstimatedDaysLeft float64      `json:"estimated_days_left"`
	Fog               bool         `json:"fog"`
	Seen              int          `json:"seen"`
	Cells             int          `json:"cells"`
}

// Status returns the current session summary.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Day:   s.dayLocked(),
		Fog:   s.paths.Fog(),
		Seen:  s.grid.SeenCount(),
		Cells: s.grid.CellCount(),
	}
	if at, ok := s.occ.Current(); ok {
		st.Agent = &at
	}
	if j := s.journey; j != nil {
		dest := j.plan.Route[len(j.plan.Route)-1]
		st.Travelling = true
		st.Destination = &dest
		st.StepsRemaining = len(j.plan.Route) - j.next
		st.EstimatedDaysLeft = s.estimateLocked()
	}
	return st
}

// estimateLocked is the current step's remaining true cost plus the
// displayed cost of every step after it.
func (s *Session) estimateLocked() float64 {
	j := s.journey
	i := j.next - 1
	left := 0.0
	if j.started {
		left = float64(j.need-j.progress) / float64(s.cfg.StepsInADay)
	} else {
		left = j.plan.DisplayCosts[i]
	}
	for _, c := range j.plan.DisplayCosts[i+1:] {
		left += c
	}
	return math.Round(left*10) / 10
}

func (s *Session) dayLocked() float64 {
	return float64(s.ticks) / float64(s.cfg.StepsInADay)
}

// Day returns elapsed travel days.
func (s *Session) Day() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dayLocked()
}

// View runs fn with read access to the grid, the variant layer and the fog
// setting. fn must not call back into the session.
func (s *Session) View(fn func(g *world.Grid, tiles *autotile.Layer, fog bool)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.grid, s.tiles, s.paths.Fog())
}

// Visible reports whether c is shown with its true values under fog.
func Visible(c world.Cell, fog bool) bool {
	return !fog || c.Seen()
}

// Events returns up to n of the most recent events, oldest first.
func (s *Session) Events(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	return append([]Event(nil), s.events[len(s.events)-n:]...)
}

// EventsSince returns retained events with Seq greater than seq.
func (s *Session) EventsSince(seq uint64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) record(kind string, at world.Coord, trueCost, shown float64, desc string) {
	s.lastSeq++
	e := Event{
		Seq:         s.lastSeq,
		Day:         s.dayLocked(),
		Kind:        kind,
		At:          at,
		TrueCost:    trueCost,
		DisplayCost: shown,
		Description: desc,
	}
	s.events = append(s.events, e)
	if over := len(s.events) - s.cfg.MaxEvents; over > 0 {
		s.events = append(s.events[:0], s.events[over:]...)
	}
	slog.Info("journey event", "kind", kind, "at", at, "day", e.Day, "desc", desc)
}
