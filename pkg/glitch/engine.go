// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"sync/atomic"
	"time"
)

// Stage is the engine's position within one glitch cycle.
type Stage int

// Engine stages
const (
	StageIdle Stage = iota
	StageArmedCoarse
	StageArmedFine
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "IDLE"
	case StageArmedCoarse:
		return "ARMED_COARSE"
	case StageArmedFine:
		return "ARMED_FINE"
	case StageDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Engine runs the two-stage timer cascade.
//
// The coarse timer counts the bulk of the delay at the CPU clock. Its
// overflow handler starts the fine timer, whose output-compare hardware
// produces the pulse, and stops itself. The fine compare handler stops the
// fine timer before it can wrap again and raises the completion flag.
//
// The handlers touch only the timers and the flag. Everything else runs in
// the foreground.
type Engine struct {
	board     Board
	coarse    CoarseTimer
	fine      FineTimer
	target    Target
	resetHold time.Duration

	stage Stage
	plan  TimingPlan
	done  atomic.Bool
}

// NewEngine creates an engine and installs its interrupt handlers on board.
func NewEngine(board Board, cfg Config) *Engine {
	e := &Engine{
		board:     board,
		coarse:    board.CoarseTimer(),
		fine:      board.FineTimer(),
		target:    board.Target(),
		resetHold: cfg.ResetHold,
	}
	board.SetHandlers(e.onCoarseOverflow, e.onFineCompare)
	return e
}

// Stage returns the current stage
func (e *Engine) Stage() Stage {
	return e.stage
}

// Plan returns the plan of the current or last cycle
func (e *Engine) Plan() TimingPlan {
	return e.plan
}

// Done reports whether the fine stage has completed
func (e *Engine) Done() bool {
	return e.done.Load()
}

// Arm programs both timers for plan. The timers are stopped first, so the
// handlers cannot run while the registers are written.
func (e *Engine) Arm(plan TimingPlan) error {
	if e.stage == StageArmedCoarse || e.stage == StageArmedFine {
		return ErrBusy
	}

	e.coarse.Stop()
	e.fine.Stop()
	e.done.Store(false)

	e.coarse.Load(CoarseLoadValue(plan.CoarseTicks))
	e.coarse.EnableOverflowInterrupt()

	e.fine.Configure(FineLoadValue(plan.FineTicks), plan.PulseTicks)
	e.fine.EnableCompareInterrupt()

	e.plan = plan
	e.stage = StageArmedCoarse
	return nil
}

// Trigger resets the target, then releases it and starts the coarse timer.
// It returns after the first wake-up, which only the coarse overflow can
// cause.
func (e *Engine) Trigger() error {
	if e.stage != StageArmedCoarse {
		return ErrNotArmed
	}

	e.target.HoldReset()
	e.board.Delay(e.resetHold)
	e.board.Launch()

	e.board.Sleep()
	e.stage = StageArmedFine
	return nil
}

// WaitForCompletion sleeps until the fine stage has finished.
func (e *Engine) WaitForCompletion() error {
	if e.stage != StageArmedFine {
		return ErrNotArmed
	}
	for !e.done.Load() {
		e.board.Sleep()
	}
	e.stage = StageDone
	return nil
}

// Fire runs one complete cycle
func (e *Engine) Fire(plan TimingPlan) error {
	if err := e.Arm(plan); err != nil {
		return err
	}
	if err := e.Trigger(); err != nil {
		return err
	}
	return e.WaitForCompletion()
}

func (e *Engine) onCoarseOverflow() {
	e.fine.Start()
	e.coarse.Stop()
}

func (e *Engine) onFineCompare() {
	e.fine.Stop()
	e.done.Store(true)
}
