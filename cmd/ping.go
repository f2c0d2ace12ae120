// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the link by sending IS_STOP queries",
	Long: `Send IS_STOP queries to the controller and report round-trip times.

IS_STOP is answered in every state and has no side effects, so this is safe
to run against a moving motor. In poll mode the round trip includes the poll
delay.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	client, conn, err := openClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Rotostat - Link Ping\n")
	fmt.Printf("Timeout: %d ms per ping\n", replyTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	query := lvfv.QueryCommand(lvfv.ReqIsStop)
	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		reply, err := client.Do(context.Background(), query)
		switch {
		case err != nil:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		case reply.Response != lvfv.RespOK || !reply.HasValue:
			fmt.Printf("UNEXPECTED REPLY %s\n", reply)
			failCount++
		default:
			fmt.Printf("motor %s, rtt=%v\n", lvfv.FormatQueryValue(lvfv.ReqIsStop, reply.Value),
				time.Since(startTime).Round(time.Millisecond))
			successCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d replies received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
