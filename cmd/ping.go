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

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the connection by waiting for READY or a beacon",
	Long: `Wait for the controller to announce itself until timeout.

An idle controller sends a "." beacon every keepalive interval and READY
after every command, so any live controller answers within a second or so.
Stray bytes on the line are ignored.

Exit codes:
  0 - Controller answered before timeout
  1 - Timeout reached without an answer
  2 - Connection error`,
	SilenceUsage: true,
	RunE:         runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "Time to wait for the controller")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return exitWith(2, err)
	}
	c := client.New(conn)
	defer c.Close()

	fmt.Printf("Glitchctl - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v\n", pingTimeout)
	fmt.Printf("Waiting for controller...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	start := time.Now()
	for {
		r, err := c.Next(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: no answer within %v\n", pingTimeout)
			return exitWith(1, err)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			return exitWith(2, err)
		}

		switch r {
		case glitch.ResponseReady, glitch.ResponseBeacon:
			fmt.Printf("SUCCESS: received %q after %v\n", r.Text(), time.Since(start).Round(time.Millisecond))
			if stats := c.Statistics(); stats.DecodeErrors > 0 {
				fmt.Printf("(skipped %d undecodable lines before sync)\n", stats.DecodeErrors)
			}
			return nil
		default:
			fmt.Printf("(ignoring %q)\n", r.Text())
		}
	}
}
