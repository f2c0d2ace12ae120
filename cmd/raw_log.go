// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

var (
	rawLogStats bool
	rawLogHex   bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw packet log in human-readable format",
	Long: `Continuously decode and display LVFV packets as they arrive.

Each packet is shown with its timestamp, direction (REQ or RESP), decoded
frame and CRC. Link errors are printed in place. Use --hex to also print the
wire bytes of each packet or rejected packet, and --stats to print link
statistics when exiting.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogStats, "stats", false, "Print link statistics on exit")
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Print the wire bytes of every packet")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Printf("Rotostat - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := lvfv.NewDecoder()
	stats := lvfv.NewStatistics()
	buf := make([]byte, 128)

	defer func() {
		if rawLogStats {
			stats.CalculateRates()
			fmt.Printf("\n%s", stats)
		}
	}()

	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			packet, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				stats.Update(decodeErr, nil)
				fmt.Printf("[ERROR] %v\n", decodeErr)
				printRawBytes(decoder)
				continue
			}
			if packet != nil {
				stats.Update(nil, nil)
				fmt.Print(lvfv.FormatPacket(packet))
				printRawBytes(decoder)
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrConnectionClosed) {
				log.Printf("Connection closed")
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}

// printRawBytes dumps the bytes of the packet just decoded or rejected
func printRawBytes(d *lvfv.Decoder) {
	if rawLogHex {
		fmt.Printf("  raw: % X\n", d.GetRawBytes())
	}
}
