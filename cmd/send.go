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

var sendTimeout int

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one setpoint update and print the returned telemetry",
	Long: `Send a single Update frame built from the setpoint flags.

Sections left unspecified default to the safe state (actuators to zero,
pumps off, relays open). The node answers every accepted update with a
telemetry snapshot, which is printed on success.

Note that a node left alone falls back to its safe state once its comm
timeout expires; use 'run' to hold setpoints.

Examples:
  manifold send -p /dev/ttyUSB0 --targets 50,50,50 --pumps on,on,on
  manifold send -p /dev/ttyUSB0                    # park the node`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&targetsFlag, "targets", "", "Actuator targets, comma-separated percents")
	sendCmd.Flags().StringVar(&pumpsFlag, "pumps", "", "Pump commands, comma-separated (off, starting, on, stopping)")
	sendCmd.Flags().StringVar(&relaysFlag, "relays", "", "Relay commands, comma-separated (0/1 or on/off)")
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 3, "Timeout in seconds for the response")
}

func runSend(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	sp, err := parseSetpoints(profile.Layout)
	if err != nil {
		return err
	}
	payload, err := profile.Layout.MarshalSetpoints(sp)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Manifold - Send\n")
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

	if _, err := conn.Write(corewire.MustEncode(corewire.CmdUpdate, payload)); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		os.Exit(2)
	}

	select {
	case frame := <-frameChan:
		if frame.IsNack() {
			fmt.Fprintf(os.Stderr, "Node rejected the update\n")
			os.Exit(1)
		}
		telemetry, err := profile.Layout.UnmarshalTelemetry(frame.Payload())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad telemetry payload: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Accepted\n%s\n", corewire.FormatTelemetry(telemetry))

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(sendTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "Timeout: no response within %d seconds\n", sendTimeout)
		os.Exit(1)
	}

	return nil
}
