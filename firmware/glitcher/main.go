// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build tinygo && avr

// Glitcher firmware for the ATmega32U4.
//
//	tinygo flash -target=arduino-leonardo ./firmware/glitcher
package main

import (
	"context"

	"github.com/Thermoquad/glitchctl/driver/avr"
	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

func main() {
	board := avr.NewBoard()
	uart := avr.NewUART(glitch.DefaultBaudRate)

	c, err := glitch.NewController(board, uart, glitch.DefaultConfig())
	if err != nil {
		halt(uart, err)
	}

	// Run only returns if the clock tree could not be configured or the
	// UART failed.
	halt(uart, c.Run(context.Background()))
}

func halt(uart *avr.UART, err error) {
	uart.Send([]byte(err.Error() + glitch.LineEnding))
	for {
	}
}
