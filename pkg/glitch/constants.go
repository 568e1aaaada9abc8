// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package glitch implements the controller core of a voltage fault injection
// rig: the serial command decoder, the tick translator, the two-stage timer
// engine and the control loop that ties them together.
//
// The package has no host-only dependencies so it builds unchanged for the
// TinyGo firmware (driver/avr) and for the host simulator (driver/sim).
// Hardware is reached only through the Board interface.
package glitch

import "time"

// Command framing
const (
	TriggerByte = 'G'
)

// Default timing parameters. These describe the ATmega32U4 rig (16 MHz CPU
// clock, 96 MHz PLL clock for timer 4) and must be confirmed against the
// hardware in use; see Config.
const (
	// DefaultFrequencyRatio is fine clock / coarse clock (96 MHz / 16 MHz).
	DefaultFrequencyRatio = 6

	// DefaultMinFineMargin is the minimum number of fine ticks the fine timer
	// counts before the pulse starts. The fine handler must be able to stop
	// the timer before it wraps a second time.
	DefaultMinFineMargin = 64

	// DefaultMaxPulseTicks bounds the pulse width in fine ticks.
	DefaultMaxPulseTicks = 150

	// DefaultResetLatencyCycles is added to the coarse count to cover the
	// cycles between releasing reset and the coarse timer's first tick.
	DefaultResetLatencyCycles = 3

	// DefaultCoarseISRCycles is the end-to-end cost of the coarse overflow
	// interrupt before the fine timer runs: 5 cycles extra wake-up from
	// sleep, 5 cycles interrupt response, 5 cycles return, 2 cycles for the
	// store to the timer control register.
	DefaultCoarseISRCycles = 5 + 5 + 5 + 2

	// DefaultKeepaliveInterval is the idle period between liveness beacons.
	DefaultKeepaliveInterval = time.Second

	// DefaultResetHold is how long the target is held in reset before a
	// glitch attempt. The LPC11U35 needs a low pulse of at least 50 ns.
	DefaultResetHold = 100 * time.Microsecond

	// DefaultBaudRate matches the firmware UART setting (exact at 16 MHz with U2X).
	DefaultBaudRate = 500000
)

// Counter geometry
const (
	// CoarseCounterRange is the number of distinct coarse counter values.
	CoarseCounterRange = 1 << 16

	// FineCounterTop is the TOP value of the fine timer in 8-bit fast PWM mode.
	FineCounterTop = 0xFF

	// MaxRequestTicks is the largest delay or pulse value a request may carry.
	MaxRequestTicks = 0xFFFF
)
