// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"context"
	"errors"
	"time"
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateDelay
	statePulse
)

// Values saturate here so that long digit runs cannot wrap back into range.
const digitCeiling = MaxRequestTicks + 1

// Decoder implements the command decoder state machine
type Decoder struct {
	state int
	delay uint32
	pulse uint32
}

// NewDecoder creates a new command decoder
func NewDecoder() *Decoder {
	return &Decoder{state: stateIdle}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.delay = 0
	d.pulse = 0
}

// Idle reports whether the decoder is between commands.
func (d *Decoder) Idle() bool {
	return d.state == stateIdle
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed request, or nil if the command is incomplete.
// Returns a ProtocolError if an idle decoder sees anything but TriggerByte.
func (d *Decoder) DecodeByte(b byte) (*GlitchRequest, error) {
	switch d.state {
	case stateIdle:
		if b != TriggerByte {
			return nil, &ProtocolError{Byte: b}
		}
		d.delay = 0
		d.pulse = 0
		d.state = stateDelay
		return nil, nil

	case stateDelay:
		if isDigit(b) {
			d.delay = accumulate(d.delay, b)
			return nil, nil
		}
		// Terminator is consumed
		d.state = statePulse
		return nil, nil

	case statePulse:
		if isDigit(b) {
			d.pulse = accumulate(d.pulse, b)
			return nil, nil
		}
		req := &GlitchRequest{DelayTicks: d.delay, PulseTicks: d.pulse}
		d.Reset()
		return req, nil

	default:
		d.Reset()
		return nil, nil
	}
}

// Receive reads one command from t. While the decoder is idle and no byte
// arrives within the keepalive interval, beacon is sent and the wait
// continues. Once a command has started, bytes are awaited without beacons.
func (d *Decoder) Receive(ctx context.Context, t Transport, keepalive Keepalive) (GlitchRequest, error) {
	for {
		if err := ctx.Err(); err != nil {
			d.Reset()
			return GlitchRequest{}, err
		}

		b, err := t.ReceiveByte(keepalive.Interval)
		if errors.Is(err, ErrTimeout) {
			if d.Idle() && keepalive.Beacon != nil {
				if err := t.Send(keepalive.Beacon); err != nil {
					return GlitchRequest{}, err
				}
			}
			continue
		}
		if err != nil {
			d.Reset()
			return GlitchRequest{}, err
		}

		req, err := d.DecodeByte(b)
		if err != nil {
			return GlitchRequest{}, err
		}
		if req != nil {
			return *req, nil
		}
	}
}

// Keepalive configures the idle beacon of Decoder.Receive
type Keepalive struct {
	Interval time.Duration
	Beacon   []byte
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func accumulate(v uint32, digit byte) uint32 {
	if v >= digitCeiling {
		return digitCeiling
	}
	v = v*10 + uint32(digit-'0')
	if v > digitCeiling {
		return digitCeiling
	}
	return v
}
