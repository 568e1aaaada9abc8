// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

// Translate converts a request into a TimingPlan.
//
// The delay is split across the two timers. MinFineMargin ticks are reserved
// for the fine timer, the rest is divided by the frequency ratio: the quotient
// is counted by the coarse timer and the remainder is added to the fine
// timer's count, so the fine ticks elapsed before the pulse equal the
// requested delay exactly.
//
// Translate is pure; the same request and configuration always produce the
// same plan.
func Translate(cfg Config, req GlitchRequest) (TimingPlan, error) {
	if req.PulseTicks > cfg.MaxPulseTicks {
		return TimingPlan{}, &ValidationError{
			Reason: ReasonPulseTooLong,
			Value:  req.PulseTicks,
			Limit:  cfg.MaxPulseTicks,
		}
	}
	if req.DelayTicks > MaxRequestTicks {
		return TimingPlan{}, &ValidationError{
			Reason: ReasonOutOfRange,
			Value:  req.DelayTicks,
			Limit:  MaxRequestTicks,
		}
	}
	if req.DelayTicks <= cfg.MinFineMargin {
		return TimingPlan{}, &ValidationError{
			Reason: ReasonDelayTooShort,
			Value:  req.DelayTicks,
			Limit:  cfg.MinFineMargin,
		}
	}

	remaining := req.DelayTicks - cfg.MinFineMargin
	coarse := remaining / cfg.FrequencyRatio
	fine := remaining%cfg.FrequencyRatio + cfg.MinFineMargin

	coarse += cfg.ResetLatencyCycles

	// At least one coarse tick must remain once the interrupt cost is paid.
	if coarse <= cfg.CoarseISRCycles {
		return TimingPlan{}, &ValidationError{
			Reason: ReasonPostResetTooShort,
			Value:  coarse,
			Limit:  cfg.CoarseISRCycles,
		}
	}
	coarse -= cfg.CoarseISRCycles

	return TimingPlan{
		CoarseTicks: uint16(coarse),
		FineTicks:   uint8(fine),
		PulseTicks:  uint8(req.PulseTicks),
	}, nil
}

// PlannedDelay returns the fine-tick delay a plan realises, undoing the
// latency compensation. For every plan Translate produces,
// PlannedDelay(cfg, plan) equals the request's DelayTicks.
func PlannedDelay(cfg Config, plan TimingPlan) uint32 {
	coarse := uint32(plan.CoarseTicks) + cfg.CoarseISRCycles - cfg.ResetLatencyCycles
	return coarse*cfg.FrequencyRatio + uint32(plan.FineTicks)
}
