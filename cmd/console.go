// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/glitchctl/pkg/client"
)

var consoleOpts = defaultConsoleOptions()

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive glitch console",
	Long: `Interactive TUI for firing glitches by hand.

Enter a delay and pulse width in fine ticks and press Enter to send the
command. The console shows the timer plan the controller will use, every
response it sends and running statistics.

Keys:
  Tab / Shift+Tab  switch field
  Enter            send the command
  r                repeat the last command (outside the input fields)
  Esc              leave the input fields
  Ctrl+C / q       quit (q only outside the input fields)`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	addConfigFlags(consoleCmd.Flags(), &consoleOpts.timing)
	consoleCmd.Flags().BoolVar(&consoleOpts.showBeacons, "beacons", false, "Log idle beacons")
}

// responseMsg carries one controller response into the TUI
type responseMsg struct {
	text     string
	terminal bool
	failed   bool
}

// connectionLostMsg reports that the reader stopped
type connectionLostMsg struct {
	err error
}

func runConsole(cmd *cobra.Command, args []string) error {
	if err := consoleOpts.timing.Validate(); err != nil {
		return fmt.Errorf("invalid timing configuration: %w", err)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	c := client.New(conn)
	defer c.Close()

	m := initialConsoleModel(c, connInfo, consoleOpts)
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reader goroutine
	go func() {
		for {
			r, err := c.Next(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.Send(connectionLostMsg{err: err})
				}
				return
			}
			p.Send(responseMsg{text: r.Text(), terminal: r.Terminal(), failed: r.Failed()})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	stats := c.Statistics()
	glog.Infof("console session ended\n%s", stats.String())
	fmt.Print(stats.String())
	return nil
}
