// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorium-works/manifold/pkg/corewire"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the link with a liveness exchange",
	Long: `Send Ping frames and wait for the node's Pong.

This command connects to a serial port or WebSocket bridge, sends a Ping and
waits for the matching Ack. Invalid bytes on the line are skipped while
waiting.

Exit codes:
  0 - Every ping was answered before its timeout
  1 - At least one ping timed out or was rejected
  2 - Connection error

Useful for verifying cabling and bridge connectivity before starting a
session.`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 3, "Timeout in seconds per ping")
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 1, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Manifold - Ping\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	frameChan := make(chan *corewire.Frame, 4)
	errChan := make(chan error, 1)

	go func() {
		decoder := corewire.NewDecoder()
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					continue
				}
				if frame != nil {
					frameChan <- frame
				}
			}
		}
	}()

	request := corewire.MustEncode(corewire.CmdPing, nil)
	failures := 0

	for i := 0; i < pingCount; i++ {
		start := time.Now()
		if _, err := conn.Write(request); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}

		select {
		case frame := <-frameChan:
			elapsed := time.Since(start)
			if frame.IsAck() {
				fmt.Printf("Pong from node: seq=%d time=%.1fms\n", i+1, float64(elapsed.Microseconds())/1000.0)
			} else {
				fmt.Printf("Rejected: seq=%d response=%s\n", i+1, corewire.FormatCommand(frame.Command()))
				failures++
			}

		case err := <-errChan:
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("Timeout: seq=%d no response within %d seconds\n", i+1, pingTimeout)
			failures++
		}
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "\n%d of %d pings failed\n", failures, pingCount)
		os.Exit(1)
	}
	return nil
}
