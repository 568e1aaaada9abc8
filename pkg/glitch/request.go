// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import "fmt"

// GlitchRequest is a decoded operator command. Both fields are in fine clock
// ticks. The decoder does not bound the values; Translate rejects anything
// above MaxRequestTicks.
type GlitchRequest struct {
	DelayTicks uint32
	PulseTicks uint32
}

func (r GlitchRequest) String() string {
	return fmt.Sprintf("delay=%d pulse=%d", r.DelayTicks, r.PulseTicks)
}

// TimingPlan is the hardware programming derived from a GlitchRequest.
//
// CoarseTicks is the number of coarse timer ticks until overflow, already
// compensated for reset latency and the coarse interrupt cost. FineTicks is
// the number of fine ticks from starting the fine timer to the pulse's rising
// edge, PulseTicks the pulse width.
type TimingPlan struct {
	CoarseTicks uint16
	FineTicks   uint8
	PulseTicks  uint8
}

func (p TimingPlan) String() string {
	return fmt.Sprintf("coarse=%d fine=%d pulse=%d", p.CoarseTicks, p.FineTicks, p.PulseTicks)
}

// CoarseLoadValue returns the coarse counter value that overflows after
// exactly ticks ticks. Zero yields a full-range count of CoarseCounterRange.
func CoarseLoadValue(ticks uint16) uint16 {
	return 0 - ticks
}

// FineLoadValue returns the fine counter value that wraps after exactly ticks
// ticks.
func FineLoadValue(ticks uint8) uint8 {
	return 0 - ticks
}
