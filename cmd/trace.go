// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/glitchctl/pkg/trace"
)

var (
	traceFailuresOnly bool
	traceCount        int
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Display pulse measurements from an emulator",
	Long: `Subscribe to the /trace endpoint of "glitchctl emulate" and print every
measurement: the request, the timer plan, the response and the pulses seen on
the glitch rail, with a verdict on whether the pulse landed where requested.

Exit codes:
  0 - All measurements passed
  1 - At least one measurement failed its check
  2 - Connection error`,
	Example: `  glitchctl trace --url ws://localhost:8080/trace
  glitchctl trace -u ws://bench:8080/trace --failures --count 100`,
	SilenceUsage: true,
	RunE:         runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().BoolVar(&traceFailuresOnly, "failures", false, "Only print measurements that fail their check")
	traceCmd.Flags().IntVar(&traceCount, "count", 0, "Exit after this many measurements (0 for no limit)")
}

func runTrace(cmd *cobra.Command, args []string) error {
	if wsURL == "" {
		return fmt.Errorf("--url must point at an emulator /trace endpoint")
	}

	password, err := passwordFor(wsUsername)
	if err != nil {
		return err
	}
	ws, err := dialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return exitWith(2, err)
	}
	defer ws.Close()

	fmt.Printf("Glitchctl - Trace\n")
	fmt.Printf("Connection: WebSocket: %s\n", wsURL)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		<-interrupt
		ws.Close()
	}()

	var total, failed int
	summary := func() {
		fmt.Printf("\nMeasurements: %d, failed: %d\n", total, failed)
	}

	for traceCount == 0 || total < traceCount {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			summary()
			if failed > 0 {
				return exitWith(1, fmt.Errorf("%d measurements failed", failed))
			}
			return nil
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		m, err := trace.Decode(data)
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}

		total++
		checkErr := trace.Check(m)
		if checkErr != nil {
			failed++
		}
		if checkErr != nil || !traceFailuresOnly {
			fmt.Println(trace.Format(m))
		}
	}

	summary()
	if failed > 0 {
		return exitWith(1, fmt.Errorf("%d measurements failed", failed))
	}
	return nil
}
