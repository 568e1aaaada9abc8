// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build tinygo && avr

// Package avr drives the glitcher on an ATmega32U4 (Arduino Leonardo).
//
// Timer 1 is the coarse timer, clocked from the 16 MHz CPU clock. Timer 4
// is the fine timer, clocked from the PLL at 96 MHz; its OC4B output drives
// the glitch supply switch. The target's reset and regular supply sit on
// port B.
package avr

import (
	"errors"
	"runtime/interrupt"
	"runtime/volatile"
	"time"

	"device/avr"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

// Port B pins
const (
	pinNotReset   = 4
	pinVSSRegular = 5
	pinVSSGlitch  = 6 // OC4B

	portReset = 1 << pinVSSRegular
	portRun   = 1<<pinNotReset | 1<<pinVSSRegular
)

// Register bits (ATmega32U4 datasheet)
const (
	pllfrqPINMUX = 1 << 7
	pllfrqPLLUSB = 1 << 6
	pllfrqPLLTM1 = 1 << 5
	pllfrqPDIV3  = 1 << 3
	pllfrqPDIV1  = 1 << 1

	pllcsrPLLE  = 1 << 1
	pllcsrPLOCK = 1 << 0

	tccr1bCS10  = 1 << 0
	timsk1TOIE1 = 1 << 0

	tccr4aCOM4B0 = 1 << 4
	tccr4aPWM4B  = 1 << 0
	tccr4bCS40   = 1 << 0
	timsk4OCIE4B = 1 << 5

	smcrSE = 1 << 0 // sleep mode bits 000: idle, timers keep running
)

// PLL lock is polled this many times before giving up
const pllLockPolls = 60000

// ErrPLLLock is returned when the PLL does not report lock.
var ErrPLLLock = errors.New("pll failed to lock")

// Interrupt handlers must be known at compile time, so the engine's
// handlers are reached through package state.
var (
	onCoarse func()
	onFine   func()
	wakes    volatile.Register8
)

// Board implements glitch.Board on the ATmega32U4
type Board struct {
	coarse coarseTimer
	fine   fineTimer
	target target

	timsk0 uint8
}

// NewBoard configures the port B pins and returns the board. Interrupts
// other than the two timer vectors are left as the runtime set them up.
func NewBoard() *Board {
	// USB interrupts can lock up the chip when nothing services them.
	state := interrupt.Disable()
	avr.USBCON.Set(0)
	avr.UDIEN.Set(0)
	avr.UEIENX.Set(0)
	avr.UEINT.Set(0)
	interrupt.Restore(state)

	avr.DDRB.Set(1<<pinNotReset | 1<<pinVSSRegular | 1<<pinVSSGlitch)
	avr.PORTB.Set(portRun)

	interrupt.New(avr.IRQ_TIMER1_OVF, func(interrupt.Interrupt) {
		onCoarse()
		wakes.Set(wakes.Get() + 1)
	})
	interrupt.New(avr.IRQ_TIMER4_COMPB, func(interrupt.Interrupt) {
		onFine()
		wakes.Set(wakes.Get() + 1)
	})

	b := &Board{}
	b.target.board = b
	return b
}

// ConfigureClocks runs the PLL at 96 MHz from the internal oscillator,
// feeding timer 4 undivided and USB through the /2 postscaler.
func (b *Board) ConfigureClocks() (glitch.ClockRates, error) {
	avr.PLLFRQ.Set(pllfrqPINMUX | pllfrqPLLUSB | pllfrqPLLTM1 | pllfrqPDIV3 | pllfrqPDIV1)
	avr.PLLCSR.SetBits(pllcsrPLLE)
	for i := 0; avr.PLLCSR.Get()&pllcsrPLOCK == 0; i++ {
		if i >= pllLockPolls {
			return glitch.ClockRates{}, ErrPLLLock
		}
	}

	avr.SMCR.Set(smcrSE)
	return glitch.ClockRates{
		CoarseHz:     16000000,
		FineHz:       96000000,
		PeripheralHz: 48000000,
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
	onCoarse = coarseOverflow
	onFine = fineCompare
}

// Launch releases reset and starts timer 1 with back-to-back stores. The
// cycles between them are covered by ResetLatencyCycles. The runtime's
// timer 0 interrupt is masked until the target is next put in run mode, so
// it cannot delay the timer vectors.
func (b *Board) Launch() {
	b.timsk0 = avr.TIMSK0.Get()
	avr.TIMSK0.Set(0)

	avr.PORTB.Set(portRun)
	avr.TCCR1B.Set(tccr1bCS10)
}

// Sleep idles the CPU until one of the timer vectors has run
func (b *Board) Sleep() {
	seen := wakes.Get()
	for wakes.Get() == seen {
		avr.Asm("sleep")
	}
}

// Delay implements glitch.Board
func (b *Board) Delay(d time.Duration) {
	time.Sleep(d)
}

type coarseTimer struct{}

func (coarseTimer) Load(count uint16) {
	// 16-bit write: high byte first
	avr.TCNT1H.Set(uint8(count >> 8))
	avr.TCNT1L.Set(uint8(count))
}

func (coarseTimer) EnableOverflowInterrupt() { avr.TIMSK1.SetBits(timsk1TOIE1) }
func (coarseTimer) Start()                   { avr.TCCR1B.Set(tccr1bCS10) }
func (coarseTimer) Stop()                    { avr.TCCR1B.Set(0) }

type fineTimer struct{}

// Configure sets fast PWM on OC4B with an 8-bit TOP: set when the counter
// wraps, cleared on compare match.
func (fineTimer) Configure(count, compare uint8) {
	avr.TCCR4A.Set(tccr4aCOM4B0 | tccr4aPWM4B)
	avr.TCCR4D.Set(0)

	avr.TC4H.Set(0)
	avr.OCR4C.Set(glitch.FineCounterTop)

	avr.TC4H.Set(0)
	avr.TCNT4.Set(count)
	avr.OCR4B.Set(compare)
}

func (fineTimer) EnableCompareInterrupt() { avr.TIMSK4.SetBits(timsk4OCIE4B) }
func (fineTimer) Start()                  { avr.TCCR4B.Set(tccr4bCS40) }
func (fineTimer) Stop()                   { avr.TCCR4B.Set(0) }

type target struct {
	board *Board
}

func (t *target) HoldReset() {
	avr.PORTB.Set(portReset)
}

func (t *target) Run() {
	avr.PORTB.Set(portRun)
	if t.board.timsk0 != 0 {
		avr.TIMSK0.Set(t.board.timsk0)
		t.board.timsk0 = 0
	}
}
