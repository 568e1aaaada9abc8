// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"errors"
	"testing"
	"time"
)

// ============================================================
// Translate Tests
// ============================================================

func TestTranslate_Accepted(t *testing.T) {
	tests := []struct {
		name     string
		req      GlitchRequest
		expected TimingPlan
	}{
		{
			name:     "reference request",
			req:      GlitchRequest{DelayTicks: 1000, PulseTicks: 10},
			expected: TimingPlan{CoarseTicks: 142, FineTicks: 64, PulseTicks: 10},
		},
		{
			name:     "remainder goes to fine timer",
			req:      GlitchRequest{DelayTicks: 1001, PulseTicks: 10},
			expected: TimingPlan{CoarseTicks: 142, FineTicks: 65, PulseTicks: 10},
		},
		{
			name:     "largest remainder",
			req:      GlitchRequest{DelayTicks: 1005, PulseTicks: 1},
			expected: TimingPlan{CoarseTicks: 142, FineTicks: 69, PulseTicks: 1},
		},
		{
			name:     "shortest accepted delay",
			req:      GlitchRequest{DelayTicks: 154, PulseTicks: 10},
			expected: TimingPlan{CoarseTicks: 1, FineTicks: 64, PulseTicks: 10},
		},
		{
			name:     "longest delay",
			req:      GlitchRequest{DelayTicks: 0xFFFF, PulseTicks: 10},
			expected: TimingPlan{CoarseTicks: 10897, FineTicks: 69, PulseTicks: 10},
		},
		{
			name:     "longest pulse",
			req:      GlitchRequest{DelayTicks: 1000, PulseTicks: 150},
			expected: TimingPlan{CoarseTicks: 142, FineTicks: 64, PulseTicks: 150},
		},
		{
			name:     "zero width pulse",
			req:      GlitchRequest{DelayTicks: 1000, PulseTicks: 0},
			expected: TimingPlan{CoarseTicks: 142, FineTicks: 64, PulseTicks: 0},
		},
	}

	cfg := DefaultConfig()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Translate(cfg, tt.req)
			if err != nil {
				t.Fatalf("Translate(%v) failed: %v", tt.req, err)
			}
			if plan != tt.expected {
				t.Errorf("Translate(%v): expected %v, got %v", tt.req, tt.expected, plan)
			}
		})
	}
}

func TestTranslate_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		req      GlitchRequest
		reason   Reason
		sentinel error
		response Response
	}{
		{"delay equal to margin", GlitchRequest{DelayTicks: 64, PulseTicks: 10}, ReasonDelayTooShort, ErrDelayTooShort, ResponseFail},
		{"delay zero", GlitchRequest{DelayTicks: 0, PulseTicks: 10}, ReasonDelayTooShort, ErrDelayTooShort, ResponseFail},
		{"delay below margin", GlitchRequest{DelayTicks: 50, PulseTicks: 10}, ReasonDelayTooShort, ErrDelayTooShort, ResponseFail},
		{"delay just above margin", GlitchRequest{DelayTicks: 65, PulseTicks: 10}, ReasonPostResetTooShort, ErrPostResetTooShort, ResponsePostResetTooShort},
		{"coarse count consumed by interrupt", GlitchRequest{DelayTicks: 153, PulseTicks: 10}, ReasonPostResetTooShort, ErrPostResetTooShort, ResponsePostResetTooShort},
		{"pulse one over", GlitchRequest{DelayTicks: 1000, PulseTicks: 151}, ReasonPulseTooLong, ErrPulseTooLong, ResponseGlitchTooLong},
		{"pulse far over", GlitchRequest{DelayTicks: 1000, PulseTicks: 999}, ReasonPulseTooLong, ErrPulseTooLong, ResponseGlitchTooLong},
		{"delay over 16 bits", GlitchRequest{DelayTicks: 0x10000, PulseTicks: 10}, ReasonOutOfRange, ErrOutOfRange, ResponseFail},
		{"pulse checked first", GlitchRequest{DelayTicks: 10, PulseTicks: 200}, ReasonPulseTooLong, ErrPulseTooLong, ResponseGlitchTooLong},
	}

	cfg := DefaultConfig()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(cfg, tt.req)
			if err == nil {
				t.Fatalf("Translate(%v) should fail", tt.req)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, verr.Reason)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) should hold", err, tt.sentinel)
			}
			if got := ResponseFor(err); got != tt.response {
				t.Errorf("expected response %q, got %q", tt.response, got)
			}
		})
	}
}

func TestTranslate_PostResetIsDelayTooShort(t *testing.T) {
	_, err := Translate(DefaultConfig(), GlitchRequest{DelayTicks: 65, PulseTicks: 10})
	if !errors.Is(err, ErrDelayTooShort) {
		t.Errorf("post reset rejection should match ErrDelayTooShort")
	}

	_, err = Translate(DefaultConfig(), GlitchRequest{DelayTicks: 64, PulseTicks: 10})
	if errors.Is(err, ErrPostResetTooShort) {
		t.Errorf("margin rejection should not match ErrPostResetTooShort")
	}
}

func TestTranslate_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	for delay := uint32(154); delay <= MaxRequestTicks; delay++ {
		plan, err := Translate(cfg, GlitchRequest{DelayTicks: delay, PulseTicks: 10})
		if err != nil {
			t.Fatalf("delay %d: %v", delay, err)
		}
		if got := PlannedDelay(cfg, plan); got != delay {
			t.Fatalf("delay %d: plan %v realises %d", delay, plan, got)
		}
		if uint32(plan.FineTicks) < cfg.MinFineMargin {
			t.Fatalf("delay %d: fine ticks %d below margin", delay, plan.FineTicks)
		}
		if plan.CoarseTicks < 1 {
			t.Fatalf("delay %d: coarse ticks must be at least 1", delay)
		}
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	req := GlitchRequest{DelayTicks: 12345, PulseTicks: 42}
	p1, err1 := Translate(cfg, req)
	p2, err2 := Translate(cfg, req)
	if p1 != p2 || err1 != nil || err2 != nil {
		t.Errorf("Translate should be deterministic: %v/%v vs %v/%v", p1, err1, p2, err2)
	}
}

func TestTranslate_CustomConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrequencyRatio = 4
	cfg.MinFineMargin = 32
	cfg.ResetLatencyCycles = 0
	cfg.CoarseISRCycles = 10

	// remaining 968, coarse 242 r0, 242 - 10 = 232
	plan, err := Translate(cfg, GlitchRequest{DelayTicks: 1000, PulseTicks: 5})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	expected := TimingPlan{CoarseTicks: 232, FineTicks: 32, PulseTicks: 5}
	if plan != expected {
		t.Errorf("expected %v, got %v", expected, plan)
	}
	if PlannedDelay(cfg, plan) != 1000 {
		t.Errorf("PlannedDelay = %d, want 1000", PlannedDelay(cfg, plan))
	}
}

// ============================================================
// Load Value Tests
// ============================================================

func TestCoarseLoadValue(t *testing.T) {
	tests := []struct {
		ticks    uint16
		expected uint16
	}{
		{1, 0xFFFF},
		{142, 65394},
		{0xFFFF, 1},
		{0, 0}, // full-range count
	}
	for _, tt := range tests {
		if got := CoarseLoadValue(tt.ticks); got != tt.expected {
			t.Errorf("CoarseLoadValue(%d) = %d, want %d", tt.ticks, got, tt.expected)
		}
	}
}

func TestFineLoadValue(t *testing.T) {
	if got := FineLoadValue(64); got != 192 {
		t.Errorf("FineLoadValue(64) = %d, want 192", got)
	}
	if got := FineLoadValue(69); got != 187 {
		t.Errorf("FineLoadValue(69) = %d, want 187", got)
	}
}

// ============================================================
// Config Tests
// ============================================================

func TestConfig_DefaultIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero ratio", func(c *Config) { c.FrequencyRatio = 0 }},
		{"zero margin", func(c *Config) { c.MinFineMargin = 0 }},
		{"margin overflows fine counter", func(c *Config) { c.MinFineMargin = 251 }},
		{"pulse plus fine count too large", func(c *Config) { c.MaxPulseTicks = 190 }},
		{"zero keepalive", func(c *Config) { c.KeepaliveInterval = 0 }},
		{"negative reset hold", func(c *Config) { c.ResetHold = -time.Microsecond }},
		{"reset latency overflows coarse counter", func(c *Config) {
			c.FrequencyRatio = 1
			c.MinFineMargin = 1
			c.MaxPulseTicks = 100
			c.ResetLatencyCycles = 1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate should reject %+v", cfg)
			}
		})
	}
}

func TestConfig_MaxFineTicks(t *testing.T) {
	if got := DefaultConfig().MaxFineTicks(); got != 69 {
		t.Errorf("MaxFineTicks = %d, want 69", got)
	}
}
