// Package engine runs the economy: a locked simulation root plus a scheduler
// that advances turns on a fixed cadence.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTurnInterval is the auto-advance cadence at speed 1.
const DefaultTurnInterval = 1500 * time.Millisecond

// pollInterval is how often a paused scheduler checks for a speed change.
const pollInterval = 100 * time.Millisecond

// Engine advances turns at Interval / Speed. Speed 0 pauses.
type Engine struct {
	Interval        time.Duration
	CheckpointEvery int // turns between checkpoints, 0 = never

	OnTurn       func()
	OnCheckpoint func()

	speed   atomic.Uint64 // math.Float64bits
	running atomic.Bool
	turns   int
	stop    chan struct{}
	once    sync.Once
}

// NewEngine creates a scheduler with default settings.
func NewEngine() *Engine {
	e := &Engine{
		Interval: DefaultTurnInterval,
		stop:     make(chan struct{}),
	}
	e.SetSpeed(1)
	return e
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the speed multiplier. Values <= 0 pause the scheduler.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.speed.Store(math.Float64bits(v))
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run advances turns until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("turn scheduler started", "interval", e.Interval, "speed", e.Speed())

	for {
		wait := pollInterval
		if speed := e.Speed(); speed > 0 {
			wait = time.Duration(float64(e.Interval) / speed)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("turn scheduler stopped", "turns", e.turns)
			return
		case <-e.stop:
			timer.Stop()
			slog.Info("turn scheduler stopped", "turns", e.turns)
			return
		case <-timer.C:
		}

		if e.Speed() <= 0 {
			continue
		}
		e.step()
	}
}

// Stop halts the scheduler loop.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stop) })
}

// step runs one turn and any checkpoint that falls due.
func (e *Engine) step() {
	e.turns++
	if e.OnTurn != nil {
		e.OnTurn()
	}
	if e.CheckpointEvery > 0 && e.turns%e.CheckpointEvery == 0 && e.OnCheckpoint != nil {
		e.OnCheckpoint()
	}
}
