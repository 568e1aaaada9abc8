// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/glitchctl/pkg/client"
	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

var (
	glitchRequest      glitch.GlitchRequest
	glitchTimeout      time.Duration
	glitchReadyTimeout time.Duration
	glitchRepeat       int
)

var glitchCmd = &cobra.Command{
	Use:   "glitch",
	Short: "Send a glitch command and wait for the outcome",
	Long: `Send one glitch command to the controller and wait for DONE or FAIL.

The command waits for the controller to report READY (or an idle beacon),
sends G<delay>,<pulse> and prints the response. Delay and pulse are in fine
clock ticks (96 MHz on the reference rig).

Exit codes:
  0 - Glitch fired (DONE)
  1 - Controller rejected the command (FAIL) or timed out
  2 - Connection error`,
	Example: `  glitchctl glitch --port /dev/ttyACM0 --delay 1000 --pulse 10
  glitchctl glitch --url ws://localhost:8080/glitch -d 5000 -w 20 --repeat 10`,
	SilenceUsage: true,
	RunE:         runGlitch,
}

func init() {
	rootCmd.AddCommand(glitchCmd)
	addRequestFlags(glitchCmd.Flags(), &glitchRequest)
	glitchCmd.Flags().DurationVar(&glitchTimeout, "timeout", 5*time.Second, "Time to wait for the outcome of each command")
	glitchCmd.Flags().DurationVar(&glitchReadyTimeout, "ready-timeout", 3*time.Second, "Time to wait for READY")
	glitchCmd.Flags().IntVar(&glitchRepeat, "repeat", 1, "Number of times to send the command")
	_ = glitchCmd.MarkFlagRequired("delay")
}

func runGlitch(cmd *cobra.Command, args []string) error {
	if glitchRepeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return exitWith(2, err)
	}
	c := client.New(conn)
	defer c.Close()

	fmt.Printf("Glitchctl - Glitch\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Request: %s\n\n", glitchRequest)

	var last error
	for i := 0; i < glitchRepeat; i++ {
		last = glitchOnce(cmd.Context(), c)
		if isConnectionError(last) {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", last)
			return exitWith(2, last)
		}
	}

	if glitchRepeat > 1 {
		fmt.Println()
		stats := c.Statistics()
		fmt.Print(stats.String())
	}

	if last != nil {
		return exitWith(1, last)
	}
	return nil
}

func glitchOnce(parent context.Context, c *client.Client) error {
	if parent == nil {
		parent = context.Background()
	}

	readyCtx, cancel := context.WithTimeout(parent, glitchReadyTimeout)
	err := c.WaitReady(readyCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: controller not ready within %v\n", glitchReadyTimeout)
		}
		return err
	}

	ctx, cancel := context.WithTimeout(parent, glitchTimeout)
	defer cancel()

	start := time.Now()
	r, err := c.Glitch(ctx, glitchRequest)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: no outcome within %v\n", glitchTimeout)
	case !r.Terminal():
		// Connection failure, reported by the caller
	case r.Failed():
		fmt.Printf("[%s] %s: %v\n", time.Now().Format("15:04:05.000"), r.Text(), err)
	default:
		fmt.Printf("[%s] %s (%v)\n", time.Now().Format("15:04:05.000"), r.Text(), time.Since(start).Round(time.Microsecond))
	}
	return err
}

// isConnectionError reports whether err came from the link rather than the controller
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var rejected bool
	for _, target := range []error{glitch.ErrRejected, glitch.ErrPulseTooLong, glitch.ErrPostResetTooShort, context.DeadlineExceeded} {
		if errors.Is(err, target) {
			rejected = true
		}
	}
	return !rejected
}
