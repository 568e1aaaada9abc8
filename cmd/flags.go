// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

// addConfigFlags binds the rig timing constants to fs
func addConfigFlags(fs *pflag.FlagSet, cfg *glitch.Config) {
	fs.Uint32Var(&cfg.FrequencyRatio, "ratio", cfg.FrequencyRatio, "Fine clock / coarse clock ratio")
	fs.Uint32Var(&cfg.MinFineMargin, "margin", cfg.MinFineMargin, "Minimum fine ticks before the pulse")
	fs.Uint32Var(&cfg.MaxPulseTicks, "max-pulse", cfg.MaxPulseTicks, "Longest pulse in fine ticks")
	fs.Uint32Var(&cfg.ResetLatencyCycles, "reset-latency", cfg.ResetLatencyCycles, "Cycles from reset release to the first coarse tick")
	fs.Uint32Var(&cfg.CoarseISRCycles, "isr-cycles", cfg.CoarseISRCycles, "Cost of the coarse overflow interrupt in cycles")
	fs.DurationVar(&cfg.KeepaliveInterval, "keepalive", cfg.KeepaliveInterval, "Idle period between beacons")
	fs.DurationVar(&cfg.ResetHold, "reset-hold", cfg.ResetHold, "Time the target is held in reset")
}

// addRequestFlags binds --delay and --pulse to fs
func addRequestFlags(fs *pflag.FlagSet, req *glitch.GlitchRequest) {
	fs.Uint32VarP(&req.DelayTicks, "delay", "d", 0, "Delay from reset release to the pulse in fine ticks")
	fs.Uint32VarP(&req.PulseTicks, "pulse", "w", 0, "Pulse width in fine ticks")
}

// parseTicks parses a decimal tick count the way the controller does: the
// value must fit a request field.
func parseTicks(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	if v > glitch.MaxRequestTicks {
		return 0, fmt.Errorf("%s %d exceeds %d", name, v, glitch.MaxRequestTicks)
	}
	return uint32(v), nil
}
