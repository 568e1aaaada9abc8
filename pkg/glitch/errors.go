// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAGlitchCommand is matched by a ProtocolError.
	ErrNotAGlitchCommand = errors.New("not a glitch command")

	// ErrPulseTooLong is matched by a ValidationError with ReasonPulseTooLong.
	ErrPulseTooLong = errors.New("glitch too long")

	// ErrDelayTooShort is matched by a ValidationError with either
	// ReasonDelayTooShort or ReasonPostResetTooShort.
	ErrDelayTooShort = errors.New("delay too short")

	// ErrPostResetTooShort is matched only by ReasonPostResetTooShort.
	ErrPostResetTooShort = errors.New("post reset too short")

	// ErrOutOfRange is matched by a ValidationError with ReasonOutOfRange.
	ErrOutOfRange = errors.New("value out of range")

	// ErrTimeout is returned by a Transport when no byte arrived in time.
	ErrTimeout = errors.New("operation timed out")

	// ErrBusy is returned by Engine.Arm while a glitch cycle is running.
	ErrBusy = errors.New("engine busy")

	// ErrNotArmed is returned when triggering or waiting on an engine that
	// has not been armed.
	ErrNotArmed = errors.New("engine not armed")

	// ErrClockConfig is returned when the clock tree could not be configured.
	// The control loop never starts after it.
	ErrClockConfig = errors.New("clock configuration failed")
)

// ProtocolError reports a command byte that is not the trigger marker.
type ProtocolError struct {
	Byte byte
}

// Error implements error
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected command byte 0x%02X", e.Byte)
}

// Is reports whether target is ErrNotAGlitchCommand.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrNotAGlitchCommand
}

// Reason classifies a ValidationError
type Reason int

// Validation reasons
const (
	ReasonPulseTooLong Reason = iota
	ReasonOutOfRange
	ReasonDelayTooShort
	ReasonPostResetTooShort
)

func (r Reason) String() string {
	switch r {
	case ReasonPulseTooLong:
		return "PULSE_TOO_LONG"
	case ReasonOutOfRange:
		return "OUT_OF_RANGE"
	case ReasonDelayTooShort:
		return "DELAY_TOO_SHORT"
	case ReasonPostResetTooShort:
		return "POST_RESET_TOO_SHORT"
	default:
		return "UNKNOWN"
	}
}

// ValidationError reports a request Translate refused.
// Value is the offending quantity and Limit the bound it violated.
type ValidationError struct {
	Reason Reason
	Value  uint32
	Limit  uint32
}

// Error implements error
func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonPulseTooLong:
		return fmt.Sprintf("pulse of %d ticks exceeds maximum %d", e.Value, e.Limit)
	case ReasonOutOfRange:
		return fmt.Sprintf("delay of %d ticks exceeds maximum %d", e.Value, e.Limit)
	case ReasonDelayTooShort:
		return fmt.Sprintf("delay of %d ticks does not exceed fine margin %d", e.Value, e.Limit)
	case ReasonPostResetTooShort:
		return fmt.Sprintf("coarse count %d does not exceed interrupt cost %d", e.Value, e.Limit)
	default:
		return fmt.Sprintf("invalid request (reason %d)", int(e.Reason))
	}
}

// Is maps reasons onto the package sentinels.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrPulseTooLong:
		return e.Reason == ReasonPulseTooLong
	case ErrOutOfRange:
		return e.Reason == ReasonOutOfRange
	case ErrDelayTooShort:
		return e.Reason == ReasonDelayTooShort || e.Reason == ReasonPostResetTooShort
	case ErrPostResetTooShort:
		return e.Reason == ReasonPostResetTooShort
	}
	return false
}
