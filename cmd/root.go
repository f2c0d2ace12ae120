// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rotostat/internal/config"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Shared settings
	configPath    string
	transportMode string
	replyTimeout  int
)

var rootCmd = &cobra.Command{
	Use:   "rotostat",
	Short: "LVFV motor controller and host tools",
	Long: `Rotostat - motor controller core and host tools for the LVFV frame protocol.

"serve" runs the controller itself: the state machine, parameter store and
emergency latch behind a serial port or WebSocket listener. The remaining
commands talk to a running controller.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Transport modes (--mode, must match the controller):
  duplex  every command is answered immediately
  poll    commands are answered on the next RESPONSE request

For WebSocket authentication, the password is read from the ROTOSTAT_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&transportMode, "mode", "m", "", "Transport mode: duplex or poll (overrides config)")
	rootCmd.PersistentFlags().IntVar(&replyTimeout, "timeout", 2000, "Reply timeout in milliseconds")
}

// loadConfig loads the configuration file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if transportMode != "" {
		cfg.Transport.Mode = transportMode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
