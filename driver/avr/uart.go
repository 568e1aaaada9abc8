// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build tinygo && avr

package avr

import (
	"time"

	"device/avr"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

const cpuHz = 16000000

// USART1 bits
const (
	ucsr1aRXC1  = 1 << 7
	ucsr1aUDRE1 = 1 << 5
	ucsr1aU2X1  = 1 << 1

	ucsr1bRXEN1 = 1 << 4
	ucsr1bTXEN1 = 1 << 3

	ucsr1cUCSZ11 = 1 << 2
	ucsr1cUCSZ10 = 1 << 1
)

// UART is a polled USART1 transport (8N1, double speed)
type UART struct{}

// NewUART configures USART1 for baud
func NewUART(baud uint32) *UART {
	ubrr := (cpuHz+4*baud)/(8*baud) - 1
	avr.UBRR1H.Set(uint8(ubrr >> 8))
	avr.UBRR1L.Set(uint8(ubrr))

	avr.UCSR1A.Set(ucsr1aU2X1)
	avr.UCSR1B.Set(ucsr1bRXEN1 | ucsr1bTXEN1)
	avr.UCSR1C.Set(ucsr1cUCSZ11 | ucsr1cUCSZ10)
	avr.UCSR1D.Set(0)
	return &UART{}
}

// Send implements glitch.Transport
func (u *UART) Send(p []byte) error {
	for _, b := range p {
		for avr.UCSR1A.Get()&ucsr1aUDRE1 == 0 {
		}
		avr.UDR1.Set(b)
	}
	return nil
}

// ReceiveByte implements glitch.Transport
func (u *UART) ReceiveByte(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	for avr.UCSR1A.Get()&ucsr1aRXC1 == 0 {
		if time.Now().After(deadline) {
			return 0, glitch.ErrTimeout
		}
	}
	return avr.UDR1.Get(), nil
}
