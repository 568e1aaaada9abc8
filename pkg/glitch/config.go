// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"fmt"
	"time"
)

// Config holds the timing constants of a particular rig. The defaults match
// the ATmega32U4 board; other boards or firmware revisions differ in ratio,
// margin and interrupt cost.
type Config struct {
	FrequencyRatio     uint32
	MinFineMargin      uint32
	MaxPulseTicks      uint32
	ResetLatencyCycles uint32
	CoarseISRCycles    uint32

	KeepaliveInterval time.Duration
	ResetHold         time.Duration
}

// DefaultConfig returns the configuration of the reference rig
func DefaultConfig() Config {
	return Config{
		FrequencyRatio:     DefaultFrequencyRatio,
		MinFineMargin:      DefaultMinFineMargin,
		MaxPulseTicks:      DefaultMaxPulseTicks,
		ResetLatencyCycles: DefaultResetLatencyCycles,
		CoarseISRCycles:    DefaultCoarseISRCycles,
		KeepaliveInterval:  DefaultKeepaliveInterval,
		ResetHold:          DefaultResetHold,
	}
}

// MaxFineTicks is the largest fine count Translate can produce.
func (c Config) MaxFineTicks() uint32 {
	return c.MinFineMargin + c.FrequencyRatio - 1
}

// Validate checks that every plan this configuration can produce fits the
// timer hardware.
func (c Config) Validate() error {
	if c.FrequencyRatio == 0 {
		return fmt.Errorf("frequency ratio must be at least 1")
	}
	if c.MinFineMargin == 0 {
		return fmt.Errorf("fine margin must be at least 1")
	}
	if c.MaxFineTicks() > FineCounterTop {
		return fmt.Errorf("fine margin %d with ratio %d overflows the fine counter (max %d)",
			c.MinFineMargin, c.FrequencyRatio, FineCounterTop)
	}
	// The fine counter starts at 256-fine and the compare register holds the
	// pulse width. A compare value the counter reaches before wrapping would
	// end the cycle before the pulse starts.
	if c.MaxPulseTicks+c.MaxFineTicks() > FineCounterTop {
		return fmt.Errorf("max pulse %d plus fine count %d exceeds fine counter top %d",
			c.MaxPulseTicks, c.MaxFineTicks(), FineCounterTop)
	}
	if c.ResetLatencyCycles+MaxRequestTicks/c.FrequencyRatio >= CoarseCounterRange {
		return fmt.Errorf("reset latency %d overflows the coarse counter", c.ResetLatencyCycles)
	}
	if c.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive interval must be positive")
	}
	if c.ResetHold < 0 {
		return fmt.Errorf("reset hold must not be negative")
	}
	return nil
}
