// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
	"github.com/Thermoquad/glitchctl/pkg/trace"
)

// newEngine returns a clocked board with an engine attached
func newEngine(t *testing.T, cfg Config) (*Board, *glitch.Engine) {
	t.Helper()
	board := NewBoard(cfg)
	_, err := glitch.ConfigureClocks(board, glitch.DefaultConfig())
	require.NoError(t, err)
	return board, glitch.NewEngine(board, glitch.DefaultConfig())
}

func fire(t *testing.T, board *Board, e *glitch.Engine, req glitch.GlitchRequest) []trace.Pulse {
	t.Helper()
	plan, err := glitch.Translate(glitch.DefaultConfig(), req)
	require.NoError(t, err)
	require.NoError(t, e.Fire(plan))
	return board.Pulses()
}

// ============================================================
// Timing Tests
// ============================================================

func TestBoard_ReferenceGlitch(t *testing.T) {
	board, e := newEngine(t, DefaultConfig())
	pulses := fire(t, board, e, glitch.GlitchRequest{DelayTicks: 1000, PulseTicks: 10})

	require.Len(t, pulses, 1)
	require.Equal(t, int64(1000), pulses[0].Start)
	require.Equal(t, uint32(10), pulses[0].Width)
	require.Equal(t, glitch.StageDone, e.Stage())
	require.False(t, board.InReset())
}

func TestBoard_ExactOffsets(t *testing.T) {
	board, e := newEngine(t, DefaultConfig())

	delays := []uint32{154, 155, 156, 157, 158, 159, 160, 1000, 1001, 4321, 30000, 0xFFFF}
	widths := []uint32{0, 1, 10, 63, 100, 150}
	for _, delay := range delays {
		for _, width := range widths {
			pulses := fire(t, board, e, glitch.GlitchRequest{DelayTicks: delay, PulseTicks: width})
			require.Len(t, pulses, 1, "delay %d width %d", delay, width)
			require.Equal(t, int64(delay), pulses[0].Start, "delay %d width %d", delay, width)
			require.Equal(t, width, pulses[0].Width, "delay %d width %d", delay, width)
		}
	}
}

func TestBoard_SingleShot(t *testing.T) {
	board, e := newEngine(t, DefaultConfig())
	fire(t, board, e, glitch.GlitchRequest{DelayTicks: 500, PulseTicks: 150})

	// Keep the clock running well past another fine counter period
	board.Delay(100 * time.Microsecond)
	require.Len(t, board.Pulses(), 1)
	require.Len(t, board.Edges(), 2)
}

func TestBoard_SlowFineHandlerDoublePulses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FineISRLatency = 60 // 360 fine ticks, longer than a counter period
	board, e := newEngine(t, cfg)

	pulses := fire(t, board, e, glitch.GlitchRequest{DelayTicks: 1000, PulseTicks: 10})
	require.Greater(t, len(pulses), 1)
}

func TestBoard_FullRangeCoarse(t *testing.T) {
	board, e := newEngine(t, DefaultConfig())
	require.NoError(t, e.Fire(glitch.TimingPlan{CoarseTicks: 0, FineTicks: 64, PulseTicks: 10}))

	pulses := board.Pulses()
	require.Len(t, pulses, 1)
	// 65536 coarse ticks plus the interrupt cost, less boot latency, then 64 fine ticks
	expected := int64(glitch.CoarseCounterRange+glitch.DefaultCoarseISRCycles-glitch.DefaultResetLatencyCycles)*
		glitch.DefaultFrequencyRatio + 64
	require.Equal(t, expected, pulses[0].Start)
}

func TestBoard_ResetHold(t *testing.T) {
	board, e := newEngine(t, DefaultConfig())
	plan, err := glitch.Translate(glitch.DefaultConfig(), glitch.GlitchRequest{DelayTicks: 1000, PulseTicks: 10})
	require.NoError(t, err)
	require.NoError(t, e.Arm(plan))

	start := board.Now()
	require.NoError(t, e.Trigger())
	require.Equal(t, uint32(1), board.Launches())
	// 100µs at 96 MHz before launch
	require.GreaterOrEqual(t, board.Now()-start, uint64(9600))
}

// ============================================================
// Board Contract Tests
// ============================================================

func TestBoard_SleepWithoutWakeSourcePanics(t *testing.T) {
	board := NewBoard(DefaultConfig())
	require.Panics(t, board.Sleep)
}

func TestBoard_FineTimerNeedsClocks(t *testing.T) {
	board := NewBoard(DefaultConfig())
	require.Panics(t, board.FineTimer().Start)
}

func TestBoard_PLLFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PLLFail = true
	_, err := glitch.ConfigureClocks(NewBoard(cfg), glitch.DefaultConfig())
	require.ErrorIs(t, err, glitch.ErrClockConfig)
	require.ErrorIs(t, err, ErrPLLLock)
}

func TestBoard_ClockRates(t *testing.T) {
	rates, err := NewBoard(DefaultConfig()).ConfigureClocks()
	require.NoError(t, err)
	require.Equal(t, glitch.ClockRates{CoarseHz: 16000000, FineHz: 96000000, PeripheralHz: 48000000}, rates)
}

// ============================================================
// Control Loop Tests
// ============================================================

// lineTransport serves a fixed command string, then io.EOF
type lineTransport struct {
	in   []byte
	sent []string
}

func (l *lineTransport) Send(p []byte) error {
	l.sent = append(l.sent, string(p))
	return nil
}

func (l *lineTransport) ReceiveByte(time.Duration) (byte, error) {
	if len(l.in) == 0 {
		return 0, io.EOF
	}
	b := l.in[0]
	l.in = l.in[1:]
	return b, nil
}

func TestRecorder_ControlLoop(t *testing.T) {
	board := NewBoard(DefaultConfig())
	tr := &lineTransport{in: []byte("G1000,10\nG50,10\nG1000,999\nG2345,77\n")}

	c, err := glitch.NewController(board, tr, glitch.DefaultConfig())
	require.NoError(t, err)

	var frames []trace.Measurement
	c.SetObserver(NewRecorder(board, func(m trace.Measurement) {
		frames = append(frames, m)
	}))

	err = c.Run(context.Background())
	require.True(t, errors.Is(err, io.EOF))

	require.Len(t, frames, 4)
	for i, m := range frames {
		require.Equal(t, uint32(i+1), m.Sequence)
		require.NoError(t, trace.Check(m), "frame %d", i)
	}
	require.Equal(t, "DONE", frames[0].Response)
	require.Equal(t, "FAIL", frames[1].Response)
	require.Empty(t, frames[1].Pulses)
	require.Equal(t, "FAIL: GLITCH TOO LONG", frames[2].Response)
	require.Equal(t, int64(2345), frames[3].Pulses[0].Start)
	require.Equal(t, uint32(2), board.Launches())

	require.Equal(t, []string{
		"READY\r\n", "DONE\r\n",
		"READY\r\n", "FAIL\r\n",
		"READY\r\n", "FAIL: GLITCH TOO LONG\r\n",
		"READY\r\n", "DONE\r\n",
		"READY\r\n",
	}, tr.sent)
}
