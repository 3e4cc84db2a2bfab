// Package engine provides the swarm simulation and the loop that paces it.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultReportEvery is how many ticks pass between OnReport calls.
const DefaultReportEvery = 10

// Engine drives the simulation forward.
type Engine struct {
	Tick        uint64        // Ticks completed (monotonic, never resets)
	Speed       float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval    time.Duration // Base tick interval
	MaxTicks    uint64        // Run stops after this many ticks; 0 = unbounded
	ReportEvery uint64

	// Callbacks, populated during setup.
	OnTick   func(tick uint64) error // Every tick; an error stops the loop
	OnReport func(tick uint64)       // Every ReportEvery ticks

	running atomic.Bool
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:       1.0,
		Interval:    time.Second,
		ReportEvery: DefaultReportEvery,
	}
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run paces ticks at Interval/Speed. It blocks until Stop is called, ctx is
// done, MaxTicks is reached, or a tick fails.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed, "interval", e.Interval)

	for e.running.Load() {
		if e.MaxTicks > 0 && e.Tick >= e.MaxTicks {
			break
		}
		if e.Speed <= 0 {
			// Paused; check again shortly.
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		if err := e.step(); err != nil {
			slog.Error("tick failed", "tick", e.Tick, "error", err)
			return err
		}

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target && !sleep(ctx, target-elapsed) {
			break
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
	return ctx.Err()
}

// RunTicks advances n ticks back to back, without pacing.
func (e *Engine) RunTicks(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := e.step(); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) step() error {
	next := e.Tick + 1
	if e.OnTick != nil {
		if err := e.OnTick(next); err != nil {
			return err
		}
	}
	e.Tick = next

	if e.ReportEvery > 0 && e.Tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
	return nil
}

// sleep waits for d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
