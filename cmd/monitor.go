// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/glitchctl/pkg/client"
	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

var (
	monitorBeacons       bool
	monitorStatsInterval time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display controller responses as they arrive",
	Long: `Continuously decode and display controller responses.

Every line is printed with a timestamp. Beacons are counted but only shown
with --beacons, so a glitch loop driven from another tool stays readable.
Statistics are printed periodically and on exit.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorBeacons, "beacons", false, "Show idle beacons")
	monitorCmd.Flags().DurationVar(&monitorStatsInterval, "stats-interval", 30*time.Second, "Statistics display interval (0 to disable)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	c := client.New(conn)
	defer c.Close()

	fmt.Printf("Glitchctl - Response Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var statsTick <-chan time.Time
	if monitorStatsInterval > 0 {
		ticker := time.NewTicker(monitorStatsInterval)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	responses := make(chan glitch.Response)
	errs := make(chan error, 1)
	go func() {
		for {
			r, err := c.Next(ctx)
			if err != nil {
				errs <- err
				return
			}
			responses <- r
		}
	}()

	for {
		select {
		case r := <-responses:
			if r == glitch.ResponseBeacon && !monitorBeacons {
				continue
			}
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), r.Text())

		case <-statsTick:
			stats := c.Statistics()
			fmt.Printf("\n%s\n", stats.String())

		case err := <-errs:
			stats := c.Statistics()
			fmt.Printf("\n%s", stats.String())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Printf("Connection closed: %v\n", err)
			return nil
		}
	}
}
