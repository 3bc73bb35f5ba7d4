// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorium-works/manifold/pkg/corewire"
)

var (
	sniffHex           bool
	sniffStatsInterval int
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Passively decode and log link traffic",
	Long: `Continuously decode frames as they arrive and print them with
timestamps, flagging framing errors and checksum failures.

With --hex the raw bytes of each frame are printed alongside the decoded
summary. A statistics summary is printed every --stats-interval seconds.

Attach to a tap or a spare bridge session to diagnose a live link without
disturbing it.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().BoolVar(&sniffHex, "hex", false, "Also print raw frame bytes")
	sniffCmd.Flags().IntVar(&sniffStatsInterval, "stats-interval", 10, "Statistics summary interval in seconds (0 disables)")
}

func runSniff(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Manifold - Link Sniffer\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := corewire.NewDecoder()
	stats := corewire.NewStatistics()
	buf := make([]byte, 128)

	var nextStats time.Time
	if sniffStatsInterval > 0 {
		nextStats = time.Now().Add(time.Duration(sniffStatsInterval) * time.Second)
	}

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				fmt.Print(stats.Snapshot())
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		now := time.Now()
		for i := 0; i < n; i++ {
			// Snapshot before the byte is consumed; a completed frame clears
			// the decoder's raw buffer.
			raw := append(append([]byte(nil), decoder.RawBytes()...), buf[i])
			frame, decodeErr := decoder.DecodeByteAt(buf[i], now)
			if decodeErr != nil {
				stats.RecordFrame(nil, decodeErr)
				fmt.Printf("[%s] ERROR %v\n", now.Format("15:04:05.000"), decodeErr)
				if sniffHex {
					fmt.Printf("           raw: %s\n", corewire.FormatHex(raw))
				}
				continue
			}
			if frame == nil {
				continue
			}
			stats.RecordFrame(frame, nil)
			fmt.Printf("[%s] %s\n", frame.Timestamp().Format("15:04:05.000"), corewire.FormatFrame(frame))
			if sniffHex {
				fmt.Printf("           raw: %s\n", corewire.FormatHex(raw))
			}
		}

		if decoder.CheckTimeout(now) {
			stats.RecordTimeout()
			fmt.Printf("[%s] ERROR frame timed out mid-reception\n", now.Format("15:04:05.000"))
		}

		if sniffStatsInterval > 0 && now.After(nextStats) {
			fmt.Print(stats.Snapshot())
			nextStats = now.Add(time.Duration(sniffStatsInterval) * time.Second)
		}
	}
}
