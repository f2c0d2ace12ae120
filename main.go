// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Rotostat - LVFV Motor Controller
//
// Runs the motor controller core (state machine, parameter store and
// emergency latch) behind a serial or WebSocket link, and provides host
// tools for driving and monitoring it.

package main

import (
	"os"

	"github.com/Thermoquad/rotostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
