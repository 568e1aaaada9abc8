// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

// SessionState is the control loop's position within one command.
type SessionState int

// Session states
const (
	StateIdle SessionState = iota
	StateAwaitingCommand
	StateValidating
	StateArmed
	StateWaitingForCompletion
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingCommand:
		return "AWAITING_COMMAND"
	case StateValidating:
		return "VALIDATING"
	case StateArmed:
		return "ARMED"
	case StateWaitingForCompletion:
		return "WAITING_FOR_COMPLETION"
	default:
		return "UNKNOWN"
	}
}

// Cycle records the outcome of one command.
type Cycle struct {
	Request  GlitchRequest
	Plan     TimingPlan
	Response Response
	Err      error
}

// Fired reports whether the cycle reached the hardware.
func (c Cycle) Fired() bool {
	return c.Response == ResponseDone
}
