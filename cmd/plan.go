// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/glitchctl/pkg/glitch"
)

var planConfig = glitch.DefaultConfig()

var (
	planRequest  glitch.GlitchRequest
	planCoarseHz uint32
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the timer programming for a request without a controller",
	Long: `Translate a request into coarse and fine timer counts offline.

Runs the same translation the firmware runs and prints the resulting plan,
the register load values and the realised delay, or the response the
controller would send when it rejects the request. Use the timing flags to
model a rig with different clocks or interrupt costs.`,
	Example: `  glitchctl plan --delay 1000 --pulse 10
  glitchctl plan -d 400 -w 5 --isr-cycles 21`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addRequestFlags(planCmd.Flags(), &planRequest)
	addConfigFlags(planCmd.Flags(), &planConfig)
	planCmd.Flags().Uint32Var(&planCoarseHz, "coarse-hz", 16000000, "Coarse (CPU) clock frequency")
	_ = planCmd.MarkFlagRequired("delay")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if err := planConfig.Validate(); err != nil {
		return fmt.Errorf("invalid timing configuration: %w", err)
	}

	fmt.Printf("Request: %s\n", planRequest)

	plan, err := glitch.Translate(planConfig, planRequest)
	if err != nil {
		var verr *glitch.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("Rejected: %s\n", verr.Reason)
		}
		fmt.Printf("Response: %s\n", glitch.ResponseFor(err).Text())
		return exitWith(1, err)
	}

	fineHz := float64(planCoarseHz) * float64(planConfig.FrequencyRatio)
	tickTime := func(ticks uint32) time.Duration {
		return time.Duration(float64(ticks) * float64(time.Second) / fineHz)
	}

	fmt.Printf("Plan: %s\n\n", plan)
	fmt.Printf("  Coarse ticks:   %8d (TCNT1 load 0x%04X)\n", plan.CoarseTicks, glitch.CoarseLoadValue(plan.CoarseTicks))
	fmt.Printf("  Fine ticks:     %8d (TCNT4 load 0x%02X)\n", plan.FineTicks, glitch.FineLoadValue(plan.FineTicks))
	fmt.Printf("  Pulse ticks:    %8d (OCR4B 0x%02X)\n", plan.PulseTicks, plan.PulseTicks)
	fmt.Printf("  Realised delay: %8d ticks (%v)\n", glitch.PlannedDelay(planConfig, plan), tickTime(glitch.PlannedDelay(planConfig, plan)))
	fmt.Printf("  Pulse width:    %8v\n", tickTime(uint32(plan.PulseTicks)))
	fmt.Printf("Response: %s\n", glitch.ResponseDone.Text())

	return nil
}
