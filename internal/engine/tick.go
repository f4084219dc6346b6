// Package engine runs a travel session over a generated world: agent
// placement, route planning and tick-paced movement.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a session forward on wall-clock time.
type Engine struct {
	Interval time.Duration // Base tick interval
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused

	FlushEvery uint64 // Ticks between OnFlush calls, 0 disables

	// Callbacks, populated during setup.
	OnTick  func(delta time.Duration) // Every tick, with the speed-scaled delta
	OnFlush func(tick uint64)         // Every FlushEvery ticks

	mu      sync.Mutex
	tick    uint64
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine ticking every interval at normal speed.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Engine{Interval: interval, Speed: 1.0}
}

// Ticks returns the number of ticks run so far.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	slog.Info("travel engine started", "interval", e.Interval, "speed", e.Speed)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		slog.Info("travel engine stopped", "tick", e.Ticks())
	}()

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if e.Speed <= 0 {
				// Paused.
				continue
			}
			e.step(time.Duration(float64(elapsed) * e.Speed))
		}
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// step advances the engine by one tick.
func (e *Engine) step(delta time.Duration) {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(delta)
	}
	if e.FlushEvery > 0 && tick%e.FlushEvery == 0 && e.OnFlush != nil {
		e.OnFlush(tick)
	}
}

// DayClock formats elapsed travel days for display.
func DayClock(days float64) string {
	whole := int(days)
	tenths := int((days-float64(whole))*10 + 0.5)
	if tenths == 10 {
		whole++
		tenths = 0
	}
	return fmt.Sprintf("Day %d.%d", whole+1, tenths)
}
