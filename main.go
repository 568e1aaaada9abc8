// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Glitchctl - Voltage Glitch Controller Host Tool
//
// A CLI tool for driving a two-stage timer voltage glitch controller over
// serial or WebSocket, and for emulating one without hardware.

package main

import (
	"os"

	"github.com/golang/glog"

	"github.com/Thermoquad/glitchctl/cmd"
)

func main() {
	err := cmd.Execute()
	glog.Flush()
	os.Exit(cmd.ExitCode(err))
}
