// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rotostat/internal/link"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

var (
	startFrec    uint16
	startAcel    uint16
	startDesacel uint16

	syncAttempts int
	syncInterval int
)

var sendCmd = &cobra.Command{
	Use:   "send <REQUEST> [value]",
	Short: "Send a single request and print the reply",
	Long: `Send one request to the controller and print its reply.

Requests:
  START, STOP, EMERGENCY
  SET_FREC <hz>, SET_ACEL <hz/s>, SET_DESACEL <hz/s>, SET_DIR <0|1>
  GET_FREC, GET_ACEL, GET_DESACEL, GET_DIR, IS_STOP

Examples:
  rotostat send --port /dev/ttyUSB0 SET_FREC 60
  rotostat send --url ws://controller/ws --mode poll GET_FREC`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Load ramp parameters and start the motor",
	Long: `Send SET_FREC, SET_ACEL, SET_DESACEL and START in order.

The sequence stops at the first reply that is not OK and that reply is
reported. Exit code 1 means the controller rejected a step.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Wait until the controller is idle and ready",
	Long: `Send STOP until the controller answers ERR_NOT_MOVING.

Use this after power-up or a reconnect. A latched emergency stop is
cleared by the first STOP when recovery is enabled on the controller.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(syncCmd)

	startCmd.Flags().Uint16Var(&startFrec, "frec", 50, "Target frequency in Hz")
	startCmd.Flags().Uint16Var(&startAcel, "acel", 10, "Acceleration in Hz/s")
	startCmd.Flags().Uint16Var(&startDesacel, "desacel", 10, "Deceleration in Hz/s")

	syncCmd.Flags().IntVar(&syncAttempts, "attempts", 10, "Number of STOP attempts")
	syncCmd.Flags().IntVar(&syncInterval, "interval", 500, "Milliseconds between attempts")
}

// openClient connects to the controller using the global flags and config
func openClient() (*link.Client, Connection, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, _, err := OpenConnection()
	if err != nil {
		return nil, nil, err
	}
	timeout := time.Duration(replyTimeout) * time.Millisecond
	return link.NewClient(conn, cfg.Transport.Mode, cfg.Transport.PollDelay, timeout), conn, nil
}

// parseCommand builds a command from a request name and optional value
func parseCommand(args []string) (lvfv.Command, error) {
	req, ok := lvfv.ParseRequest(strings.ToUpper(args[0]))
	if !ok || req == lvfv.ReqResponse {
		return lvfv.Command{}, fmt.Errorf("unknown request %q", args[0])
	}

	cmd := lvfv.Command{Request: req}
	if req.IsSetter() {
		if len(args) < 2 {
			return lvfv.Command{}, fmt.Errorf("%s requires a value", req)
		}
		v, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil || v > lvfv.MaxValue {
			return lvfv.Command{}, fmt.Errorf("invalid value %q (0-%d)", args[1], lvfv.MaxValue)
		}
		cmd.Value = uint16(v)
		cmd.HasValue = true
	} else if len(args) > 1 {
		return lvfv.Command{}, fmt.Errorf("%s takes no value", req)
	}
	return cmd, nil
}

// formatReply renders a reply, using units for query values
func formatReply(cmd lvfv.Command, reply lvfv.Reply) string {
	if reply.HasValue && cmd.Request.IsQuery() {
		return fmt.Sprintf("%s %s", reply.Response, lvfv.FormatQueryValue(cmd.Request, reply.Value))
	}
	return reply.String()
}

func runSend(cmd *cobra.Command, args []string) error {
	command, err := parseCommand(args)
	if err != nil {
		return err
	}

	client, conn, err := openClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, err := client.Do(context.Background(), command)
	if err != nil {
		return err
	}

	fmt.Printf("%s -> %s\n", command, formatReply(command, reply))
	if reply.Response != lvfv.RespOK {
		os.Exit(1)
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	client, conn, err := openClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Starting: %d Hz, acel %d Hz/s, desacel %d Hz/s\n", startFrec, startAcel, startDesacel)
	if err := client.StartSequence(context.Background(), startFrec, startAcel, startDesacel); err != nil {
		return err
	}
	fmt.Println("Motor started")
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	client, conn, err := openClient()
	if err != nil {
		return err
	}
	defer conn.Close()

	interval := time.Duration(syncInterval) * time.Millisecond
	if err := client.WaitReady(context.Background(), syncAttempts, interval); err != nil {
		return err
	}
	fmt.Println("Controller ready")
	return nil
}
