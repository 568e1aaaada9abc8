// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package glitch

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomConfig returns a valid configuration with randomized timing constants
func randomConfig(rng *rand.Rand) Config {
	for {
		cfg := DefaultConfig()
		cfg.FrequencyRatio = uint32(1 + rng.Intn(16))
		cfg.MinFineMargin = uint32(1 + rng.Intn(128))
		cfg.MaxPulseTicks = uint32(rng.Intn(200))
		cfg.ResetLatencyCycles = uint32(rng.Intn(8))
		cfg.CoarseISRCycles = uint32(rng.Intn(40))
		if cfg.Validate() == nil {
			return cfg
		}
	}
}

// ============================================================
// Translator Fuzz Tests
// ============================================================

func TestFuzz_TranslateInvariants(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		cfg := randomConfig(rng)
		req := GlitchRequest{
			DelayTicks: uint32(rng.Intn(MaxRequestTicks + 100)),
			PulseTicks: uint32(rng.Intn(300)),
		}

		plan, err := Translate(cfg, req)
		if err != nil {
			continue
		}
		if got := PlannedDelay(cfg, plan); got != req.DelayTicks {
			t.Fatalf("round %d: cfg %+v req %v plan %v realises %d", i, cfg, req, plan, got)
		}
		if uint32(plan.FineTicks) < cfg.MinFineMargin || uint32(plan.FineTicks) > cfg.MaxFineTicks() {
			t.Fatalf("round %d: fine ticks %d outside [%d, %d]", i, plan.FineTicks, cfg.MinFineMargin, cfg.MaxFineTicks())
		}
		if plan.CoarseTicks < 1 {
			t.Fatalf("round %d: coarse ticks must be at least 1", i)
		}
		if uint32(plan.PulseTicks)+uint32(plan.FineTicks) > FineCounterTop {
			t.Fatalf("round %d: compare match %d would precede the wrap", i, plan.PulseTicks)
		}
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

func TestFuzz_DecoderRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(64))
		rng.Read(data)
		for _, b := range data {
			req, err := d.DecodeByte(b)
			if err != nil && req != nil {
				t.Fatalf("round %d: request and error together", i)
			}
			if req != nil && (req.DelayTicks > MaxRequestTicks+1 || req.PulseTicks > MaxRequestTicks+1) {
				t.Fatalf("round %d: value escaped saturation: %v", i, req)
			}
		}
	}
}

func TestFuzz_EncodeDecode(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	for i := 0; i < rounds; i++ {
		req := GlitchRequest{
			DelayTicks: uint32(rng.Intn(MaxRequestTicks + 1)),
			PulseTicks: uint32(rng.Intn(MaxRequestTicks + 1)),
		}
		got := decodeAll(t, d, string(EncodeCommand(req)))
		if len(got) != 1 || got[0] != req {
			t.Fatalf("round %d: expected %v, got %v", i, req, got)
		}
	}
}
