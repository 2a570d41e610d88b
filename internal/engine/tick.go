// Package engine provides the tick-based simulation loop and the agent
// orchestrator that runs the city on it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// TickSchedule defines when each layer runs relative to the tick counter.
const (
	TicksPerSimHour = 60   // 60 ticks = 1 sim-hour
	TicksPerSimDay  = 1440 // 24 hours × 60
)

// MaxSpeed caps the real-time multiplier.
const MaxSpeed = 100.0

// ErrBadSpeed is returned for negative, NaN or oversized speeds.
var ErrBadSpeed = errors.New("speed out of range")

// Engine drives the simulation forward.
type Engine struct {
	Interval time.Duration // Base tick interval at speed 1

	// Callbacks for each tick layer, populated during setup.
	OnTick func(tick uint64) // Every tick (sim-minute)
	OnHour func(tick uint64) // Every 60 ticks
	OnDay  func(tick uint64) // Every 1440 ticks

	mu      sync.Mutex
	tick    uint64  // Monotonic, never resets
	speed   float64 // 1.0 = real-time, 0 = paused
	running bool
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: time.Second,
		speed:    1.0,
	}
}

// Tick returns the last completed tick.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// SetTick resumes the counter from a restored world.
func (e *Engine) SetTick(t uint64) {
	e.mu.Lock()
	e.tick = t
	e.mu.Unlock()
}

// Speed returns the real-time multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier; 0 pauses.
func (e *Engine) SetSpeed(s float64) error {
	if math.IsNaN(s) || s < 0 || s > MaxSpeed {
		return fmt.Errorf("%w: %v", ErrBadSpeed, s)
	}
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
	slog.Info("speed changed", "speed", s)
	return nil
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run steps the simulation in real time until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		slog.Info("simulation engine stopped", "tick", e.Tick())
	}()

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: check again shortly.
			if !sleepCtx(ctx, 100*time.Millisecond) {
				return
			}
			continue
		}

		start := time.Now()
		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if !sleepCtx(ctx, target-elapsed) {
				return
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

// Advance runs n ticks back to back, ignoring speed and interval.
func (e *Engine) Advance(n int) {
	for i := 0; i < n; i++ {
		e.step()
	}
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if tick%TicksPerSimHour == 0 && e.OnHour != nil {
		e.OnHour(tick)
	}
	if tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(tick)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SimDay returns the zero-based sim-day of a tick.
func SimDay(tick uint64) uint64 {
	return tick / TicksPerSimDay
}

// SimTime returns a human-readable clock string from a tick number.
func SimTime(tick uint64) string {
	minutes := tick % 60
	hours := (tick / 60) % 24
	return fmt.Sprintf("Day %d, %02d:%02d", SimDay(tick)+1, hours, minutes)
}
