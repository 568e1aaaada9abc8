// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package trace carries pulse measurements taken by the simulator board.
// Frames are CBOR maps with integer keys.
package trace

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

// Pulse is one high period of the glitch rail, in fine ticks. Start is
// relative to the target's first cycle out of reset.
type Pulse struct {
	Start int64  `cbor:"0,keyasint"`
	Width uint32 `cbor:"1,keyasint"`
}

// Measurement is one command as observed on the simulated rail
type Measurement struct {
	Sequence    uint32    `cbor:"0,keyasint"`
	Timestamp   time.Time `cbor:"1,keyasint"`
	DelayTicks  uint32    `cbor:"2,keyasint"`
	PulseTicks  uint32    `cbor:"3,keyasint"`
	CoarseTicks uint16    `cbor:"4,keyasint"`
	FineTicks   uint8     `cbor:"5,keyasint"`
	Response    string    `cbor:"6,keyasint"`
	Error       string    `cbor:"7,keyasint,omitempty"`
	Pulses      []Pulse   `cbor:"8,keyasint,omitempty"`
}

// Verdict errors returned by Check
var (
	ErrMissingPulse    = errors.New("no pulse on the rail")
	ErrExtraPulse      = errors.New("more than one pulse on the rail")
	ErrUnexpectedPulse = errors.New("pulse after a rejected request")
	ErrOffset          = errors.New("pulse offset mismatch")
	ErrWidth           = errors.New("pulse width mismatch")
)

// NewMeasurement builds a frame from a finished cycle
func NewMeasurement(seq uint32, cycle glitch.Cycle, pulses []Pulse) Measurement {
	m := Measurement{
		Sequence:    seq,
		Timestamp:   time.Now().UTC(),
		DelayTicks:  cycle.Request.DelayTicks,
		PulseTicks:  cycle.Request.PulseTicks,
		CoarseTicks: cycle.Plan.CoarseTicks,
		FineTicks:   cycle.Plan.FineTicks,
		Response:    cycle.Response.Text(),
		Pulses:      pulses,
	}
	if cycle.Err != nil {
		m.Error = cycle.Err.Error()
	}
	return m
}

// Encode encodes a measurement frame
func Encode(m Measurement) ([]byte, error) {
	data, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode measurement: %w", err)
	}
	return data, nil
}

// Decode decodes a measurement frame
func Decode(data []byte) (Measurement, error) {
	if len(data) == 0 {
		return Measurement{}, fmt.Errorf("empty CBOR payload")
	}
	var m Measurement
	if err := cbor.Unmarshal(data, &m); err != nil {
		return Measurement{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return m, nil
}

// Check verifies that a delivered glitch produced exactly one pulse at the
// requested offset and width, and that a rejected request produced none.
func Check(m Measurement) error {
	if m.Response != glitch.ResponseDone.Text() {
		if len(m.Pulses) != 0 {
			return fmt.Errorf("%w: %d pulses", ErrUnexpectedPulse, len(m.Pulses))
		}
		return nil
	}

	switch {
	case len(m.Pulses) == 0:
		return ErrMissingPulse
	case len(m.Pulses) > 1:
		return fmt.Errorf("%w: %d pulses", ErrExtraPulse, len(m.Pulses))
	}

	p := m.Pulses[0]
	if p.Start != int64(m.DelayTicks) {
		return fmt.Errorf("%w: expected %d, got %d", ErrOffset, m.DelayTicks, p.Start)
	}
	if p.Width != m.PulseTicks {
		return fmt.Errorf("%w: expected %d, got %d", ErrWidth, m.PulseTicks, p.Width)
	}
	return nil
}

// Format formats a measurement into a human-readable string
func Format(m Measurement) string {
	timestamp := m.Timestamp.Local().Format("15:04:05.000")

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] #%d G%d,%d -> %s\n", timestamp, m.Sequence, m.DelayTicks, m.PulseTicks, m.Response)
	if m.Error != "" {
		fmt.Fprintf(&b, "  Error: %s\n", m.Error)
	}
	if m.Response == glitch.ResponseDone.Text() {
		fmt.Fprintf(&b, "  Plan: coarse=%d fine=%d\n", m.CoarseTicks, m.FineTicks)
	}
	for i, p := range m.Pulses {
		fmt.Fprintf(&b, "  Pulse %d: start=%d width=%d\n", i, p.Start, p.Width)
	}
	if err := Check(m); err != nil {
		fmt.Fprintf(&b, "  Verdict: FAIL (%v)\n", err)
	} else {
		b.WriteString("  Verdict: OK\n")
	}
	return b.String()
}
