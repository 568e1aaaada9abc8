// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim is a host-side model of the glitcher board. Time advances in
// fine clock ticks only while the controller sleeps or busy-waits, and
// interrupt handlers run synchronously from inside Sleep and Delay.
package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
	"github.com/Thermoquad/glitchctl/pkg/trace"
)

// ErrPLLLock is returned by ConfigureClocks when PLLFail is set.
var ErrPLLLock = errors.New("pll failed to lock")

// Sleep gives up after this many fine ticks without an interrupt.
const idleLimit = 1 << 24

// Config describes the simulated hardware. Latencies are in coarse (CPU)
// cycles.
type Config struct {
	CoarseHz       uint32
	FrequencyRatio uint32

	// CoarseISRLatency is the time from coarse overflow until the fine
	// timer start takes effect, including wake-up from sleep.
	CoarseISRLatency uint32

	// FineISRLatency is the time from compare match until the fine timer
	// stop takes effect.
	FineISRLatency uint32

	// BootLatency is the time from Launch until the target executes its
	// first cycle out of reset.
	BootLatency uint32

	PLLFail bool
}

// DefaultConfig returns a model of the ATmega32U4 rig
func DefaultConfig() Config {
	return Config{
		CoarseHz:         16000000,
		FrequencyRatio:   glitch.DefaultFrequencyRatio,
		CoarseISRLatency: glitch.DefaultCoarseISRCycles,
		FineISRLatency:   12,
		BootLatency:      glitch.DefaultResetLatencyCycles,
	}
}

// Edge is a transition of the glitch rail at an absolute fine tick
type Edge struct {
	At   uint64
	High bool
}

type irq int

const (
	irqNone irq = iota
	irqCoarse
	irqFine
)

// Board implements glitch.Board
type Board struct {
	cfg     Config
	now     uint64
	clocked bool

	coarse coarseTimer
	fine   fineTimer
	target target

	pending   irq
	pendingAt uint64

	onCoarse func()
	onFine   func()

	launches uint32
	bootAt   uint64
	edges    []Edge
}

// NewBoard creates a simulated board
func NewBoard(cfg Config) *Board {
	b := &Board{cfg: cfg}
	b.coarse.b = b
	b.fine.b = b
	b.target.b = b
	return b
}

// Now returns the current time in fine ticks
func (b *Board) Now() uint64 {
	return b.now
}

// Launches returns how many times the target has been released from reset
func (b *Board) Launches() uint32 {
	return b.launches
}

// InReset reports whether the target is held in reset
func (b *Board) InReset() bool {
	return b.target.reset
}

// Edges returns the rail transitions since the last Launch
func (b *Board) Edges() []Edge {
	return append([]Edge(nil), b.edges...)
}

// Pulses returns the rail pulses since the last Launch, relative to the
// target's first cycle out of reset.
func (b *Board) Pulses() []trace.Pulse {
	var pulses []trace.Pulse
	var rise uint64
	high := false
	for _, e := range b.edges {
		if e.High && !high {
			rise = e.At
			high = true
		} else if !e.High && high {
			pulses = append(pulses, trace.Pulse{
				Start: int64(rise) - int64(b.bootAt),
				Width: uint32(e.At - rise),
			})
			high = false
		}
	}
	return pulses
}

// ConfigureClocks implements glitch.Board
func (b *Board) ConfigureClocks() (glitch.ClockRates, error) {
	if b.cfg.PLLFail {
		return glitch.ClockRates{}, ErrPLLLock
	}
	b.clocked = true
	fine := b.cfg.CoarseHz * b.cfg.FrequencyRatio
	return glitch.ClockRates{
		CoarseHz:     b.cfg.CoarseHz,
		FineHz:       fine,
		PeripheralHz: fine / 2,
	}, nil
}

// CoarseTimer implements glitch.Board
func (b *Board) CoarseTimer() glitch.CoarseTimer { return &b.coarse }

// FineTimer implements glitch.Board
func (b *Board) FineTimer() glitch.FineTimer { return &b.fine }

// Target implements glitch.Board
func (b *Board) Target() glitch.Target { return &b.target }

// SetHandlers implements glitch.Board
func (b *Board) SetHandlers(coarseOverflow, fineCompare func()) {
	b.onCoarse = coarseOverflow
	b.onFine = fineCompare
}

// Launch releases reset and starts the coarse timer on the same tick
func (b *Board) Launch() {
	b.target.reset = false
	b.launches++
	b.bootAt = b.now + b.cycles(b.cfg.BootLatency)
	b.edges = b.edges[:0]
	b.coarse.Start()
	glog.V(2).Infof("sim: launch at tick %d, target boots at %d", b.now, b.bootAt)
}

// Sleep advances time until one interrupt has been handled. It panics if no
// interrupt can occur, since the real CPU would never wake.
func (b *Board) Sleep() {
	for idle := 0; ; idle++ {
		if b.pending == irqNone && !b.canInterrupt() {
			panic(fmt.Sprintf("sim: sleep at tick %d with no wake source", b.now))
		}
		if idle > idleLimit {
			panic(fmt.Sprintf("sim: no interrupt within %d ticks", idleLimit))
		}
		if b.tick() {
			return
		}
	}
}

// Delay advances time by d, handling interrupts as they occur
func (b *Board) Delay(d time.Duration) {
	fineHz := uint64(b.cfg.CoarseHz) * uint64(b.cfg.FrequencyRatio)
	ticks := uint64(d) * fineHz / uint64(time.Second)
	for i := uint64(0); i < ticks; i++ {
		b.tick()
	}
}

func (b *Board) cycles(n uint32) uint64 {
	return uint64(n) * uint64(b.cfg.FrequencyRatio)
}

func (b *Board) canInterrupt() bool {
	return (b.coarse.running && b.coarse.irq) || (b.fine.running && b.fine.irq)
}

// tick advances one fine tick and reports whether a handler ran
func (b *Board) tick() bool {
	b.now++

	if b.coarse.running && (b.now-b.coarse.startedAt)%uint64(b.cfg.FrequencyRatio) == 0 {
		b.coarse.count++
		if b.coarse.count == 0 && b.coarse.irq {
			b.raise(irqCoarse, b.cycles(b.cfg.CoarseISRLatency))
		}
	}

	if b.fine.running {
		b.fine.count++
		if b.fine.count == 0 {
			b.setRail(true)
		}
		if b.fine.count == b.fine.compare {
			b.setRail(false)
			if b.fine.irq {
				b.raise(irqFine, b.cycles(b.cfg.FineISRLatency))
			}
		}
	}

	if b.pending != irqNone && b.now >= b.pendingAt {
		which := b.pending
		b.pending = irqNone
		switch which {
		case irqCoarse:
			glog.V(3).Infof("sim: coarse handler at tick %d", b.now)
			b.onCoarse()
		case irqFine:
			glog.V(3).Infof("sim: fine handler at tick %d", b.now)
			b.onFine()
		}
		return true
	}
	return false
}

func (b *Board) raise(which irq, latency uint64) {
	if b.pending != irqNone {
		return
	}
	b.pending = which
	b.pendingAt = b.now + latency
}

func (b *Board) setRail(high bool) {
	if b.fine.output == high {
		return
	}
	b.fine.output = high
	b.edges = append(b.edges, Edge{At: b.now, High: high})
}

type coarseTimer struct {
	b         *Board
	count     uint16
	irq       bool
	running   bool
	startedAt uint64
}

func (t *coarseTimer) Load(count uint16)        { t.count = count }
func (t *coarseTimer) EnableOverflowInterrupt() { t.irq = true }

func (t *coarseTimer) Start() {
	t.running = true
	t.startedAt = t.b.now
}

func (t *coarseTimer) Stop() { t.running = false }

type fineTimer struct {
	b       *Board
	count   uint8
	compare uint8
	irq     bool
	running bool
	output  bool
}

// Configure clears the output along with loading the registers
func (t *fineTimer) Configure(count, compare uint8) {
	t.count = count
	t.compare = compare
	t.b.setRail(false)
}

func (t *fineTimer) EnableCompareInterrupt() { t.irq = true }

func (t *fineTimer) Start() {
	if !t.b.clocked {
		panic("sim: fine timer started before the PLL was configured")
	}
	t.running = true
}

func (t *fineTimer) Stop() { t.running = false }

type target struct {
	b     *Board
	reset bool
}

func (t *target) HoldReset() { t.reset = true }
func (t *target) Run()       { t.reset = false }
