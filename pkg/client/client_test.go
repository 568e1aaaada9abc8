// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/glitchctl/driver/sim"
	"github.com/Thermoquad/glitchctl/pkg/glitch"
	"github.com/Thermoquad/glitchctl/transport"
)

// startController runs a simulated controller on one end of a pipe and
// returns a client on the other.
func startController(t *testing.T, cfg glitch.Config) *Client {
	t.Helper()
	local, remote := net.Pipe()

	board := sim.NewBoard(sim.DefaultConfig())
	ctrl, err := glitch.NewController(board, transport.NewStream(remote), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ctrl.Run(ctx)
	}()

	c := New(local)
	t.Cleanup(func() {
		cancel()
		c.Close()
		remote.Close()
		<-stopped
	})
	return c
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ============================================================
// Session Tests
// ============================================================

func TestClient_Glitch(t *testing.T) {
	c := startController(t, glitch.DefaultConfig())
	ctx := testContext(t)

	require.NoError(t, c.WaitReady(ctx))

	r, err := c.Glitch(ctx, glitch.GlitchRequest{DelayTicks: 1000, PulseTicks: 10})
	require.NoError(t, err)
	require.Equal(t, glitch.ResponseDone, r)

	stats := c.Statistics()
	require.Equal(t, uint64(1), stats.Attempts)
	require.Equal(t, uint64(1), stats.Completed)
}

func TestClient_Failures(t *testing.T) {
	c := startController(t, glitch.DefaultConfig())
	ctx := testContext(t)

	tests := []struct {
		req      glitch.GlitchRequest
		response glitch.Response
		err      error
	}{
		{glitch.GlitchRequest{DelayTicks: 50, PulseTicks: 10}, glitch.ResponseFail, glitch.ErrRejected},
		{glitch.GlitchRequest{DelayTicks: 1000, PulseTicks: 999}, glitch.ResponseGlitchTooLong, glitch.ErrPulseTooLong},
		{glitch.GlitchRequest{DelayTicks: 65, PulseTicks: 10}, glitch.ResponsePostResetTooShort, glitch.ErrPostResetTooShort},
	}

	for _, tt := range tests {
		require.NoError(t, c.WaitReady(ctx))
		r, err := c.Glitch(ctx, tt.req)
		require.Equal(t, tt.response, r, "request %s", tt.req)
		require.ErrorIs(t, err, tt.err, "request %s", tt.req)
	}

	stats := c.Statistics()
	require.Equal(t, uint64(3), stats.Attempts)
	require.Equal(t, uint64(3), stats.Failed)
	require.Equal(t, uint64(1), stats.Rejected)
	require.Equal(t, uint64(1), stats.GlitchTooLong)
	require.Equal(t, uint64(1), stats.PostResetTooShort)
	require.Contains(t, stats.String(), "Glitch Too Long")
}

func TestClient_Beacons(t *testing.T) {
	cfg := glitch.DefaultConfig()
	cfg.KeepaliveInterval = 10 * time.Millisecond
	c := startController(t, cfg)
	ctx := testContext(t)

	r, err := c.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, glitch.ResponseReady, r)

	for i := 0; i < 3; i++ {
		r, err := c.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, glitch.ResponseBeacon, r)
	}

	// Beacons also mark the controller as ready
	require.NoError(t, c.WaitReady(ctx))
	require.GreaterOrEqual(t, c.Statistics().Beacons, uint64(4))
}

func TestClient_ConnectionLost(t *testing.T) {
	local, remote := net.Pipe()
	c := New(local)
	remote.Close()

	_, err := c.Next(testContext(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection lost")
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Close(), ErrClosed)
}

func TestClient_ContextCancelled(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := New(local)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_String(t *testing.T) {
	s := NewStatistics()
	s.Attempts = 2
	s.Observe(glitch.ResponseDone)
	s.Observe(glitch.ResponseFail)
	s.Observe(glitch.ResponseBeacon)

	out := s.String()
	for _, want := range []string{"Attempts:", "Completed:", "(50.0%)", "Rejected:", "Beacons:"} {
		require.True(t, strings.Contains(out, want), "missing %q in:\n%s", want, out)
	}

	s.Reset()
	require.Zero(t, s.Attempts)
	require.Zero(t, s.Beacons)
}
