// Package engine provides the simulation context and the tick-based loop
// that drives it.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/contagion-sim/internal/world"
)

// Engine drives the simulation forward one tick at a time.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Base tick interval for paced runs

	ticksPerDay  uint64
	ticksPerWeek uint64

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running atomic.Bool

	// Callbacks for each tick layer, populated during setup.
	OnTick func(ctx context.Context, tick uint64) error // Every tick
	OnDay  func(tick uint64)                            // Every Hours ticks
	OnWeek func(tick uint64)                            // Every Days × Hours ticks
}

// NewEngine creates an engine whose day and week follow the calendar.
func NewEngine(cal world.Calendar) *Engine {
	return &Engine{
		Interval:     time.Second,
		speed:        1.0,
		ticksPerDay:  uint64(cal.Hours),
		ticksPerWeek: uint64(cal.Slots()),
	}
}

// Speed returns the pacing multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the pacing multiplier. 0 pauses a paced run.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Running reports whether a run loop is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run steps the simulation at Interval/Speed until Stop is called, the
// context ends, or a tick fails.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())

	for e.running.Load() {
		if err := ctx.Err(); err != nil {
			break
		}
		speed := e.Speed()
		if speed <= 0 {
			// Paused. Sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		if err := e.step(ctx); err != nil {
			return err
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
	return nil
}

// RunFor steps n ticks as fast as possible, ignoring pacing.
func (e *Engine) RunFor(ctx context.Context, n uint64) error {
	e.running.Store(true)
	defer e.running.Store(false)

	for i := uint64(0); i < n && e.running.Load(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the run loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// step advances the simulation by one tick.
func (e *Engine) step(ctx context.Context) error {
	if e.OnTick != nil {
		if err := e.OnTick(ctx, e.Tick); err != nil {
			return err
		}
	}
	e.Tick++

	// End of a sim-day: periodic summaries.
	if e.ticksPerDay > 0 && e.Tick%e.ticksPerDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}

	// End of a sim-week: the calendar has cycled once.
	if e.ticksPerWeek > 0 && e.Tick%e.ticksPerWeek == 0 && e.OnWeek != nil {
		e.OnWeek(e.Tick)
	}
	return nil
}
