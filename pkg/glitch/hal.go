// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import "time"

// Transport is the serial line used for commands and responses.
type Transport interface {
	// Send blocks until p has been handed to the line.
	Send(p []byte) error

	// ReceiveByte blocks for at most timeout waiting for one byte.
	// It returns ErrTimeout if nothing arrived.
	ReceiveByte(timeout time.Duration) (byte, error)
}

// ClockRates reports the frequencies the board runs its clock domains at.
type ClockRates struct {
	CoarseHz     uint32 // coarse timer reference (CPU clock)
	FineHz       uint32 // fine timer reference (PLL)
	PeripheralHz uint32 // secondary domain (USB)
}

// CoarseTimer is the 16-bit timer that consumes the bulk of the delay.
type CoarseTimer interface {
	// Load writes the counter register. The timer overflows when the
	// counter wraps from 0xFFFF to 0.
	Load(count uint16)
	EnableOverflowInterrupt()
	Start()
	Stop()
}

// FineTimer is the 8-bit high-speed timer whose output-compare channel
// drives the glitch rail. While running, the hardware switches the glitch
// rail on when the counter wraps to 0 and off when it matches the compare
// register, raising the compare interrupt.
type FineTimer interface {
	Configure(count, compare uint8)
	EnableCompareInterrupt()
	Start()
	// Stop writes the whole control register in one store, disabling the
	// clock select along with everything else.
	Stop()
}

// Target drives the target's reset line and supply selection outside of a
// glitch.
type Target interface {
	// HoldReset asserts reset with the regular supply selected.
	HoldReset()
	// Run releases reset with the regular supply selected.
	Run()
}

// Board is everything the engine needs from the hardware.
type Board interface {
	// ConfigureClocks brings up the PLL. It is called once, before any timer
	// is armed.
	ConfigureClocks() (ClockRates, error)

	CoarseTimer() CoarseTimer
	FineTimer() FineTimer
	Target() Target

	// Launch releases the target's reset and starts the coarse timer in one
	// fixed-length instruction sequence.
	Launch()

	// Sleep suspends the CPU until an interrupt has been serviced. Timers
	// keep running while asleep.
	Sleep()

	// Delay busy-waits for d.
	Delay(d time.Duration)

	// SetHandlers installs the coarse overflow and fine compare interrupt
	// handlers.
	SetHandlers(coarseOverflow, fineCompare func())
}
