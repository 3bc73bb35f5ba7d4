// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorium-works/manifold/pkg/corewire"
	"github.com/thorium-works/manifold/pkg/session"
)

var (
	runPeriodMs   int
	runPrintEvery int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Hold setpoints on a node and stream its telemetry",
	Long: `Run a headless control session.

The session sends the given setpoints every period and prints the returned
telemetry. If the node stops answering, the session falls back to safe-state
setpoints until contact is re-established. Ctrl+C parks the node and exits.

Examples:
  manifold run -p /dev/ttyUSB0 --targets 50,50,50 --pumps on,on,on
  manifold run -u ws://bridge.local/link --username ops --targets 30,30,30`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&targetsFlag, "targets", "", "Actuator targets, comma-separated percents")
	runCmd.Flags().StringVar(&pumpsFlag, "pumps", "", "Pump commands, comma-separated (off, starting, on, stopping)")
	runCmd.Flags().StringVar(&relaysFlag, "relays", "", "Relay commands, comma-separated (0/1 or on/off)")
	runCmd.Flags().IntVar(&runPeriodMs, "period", 100, "Exchange period in milliseconds")
	runCmd.Flags().IntVar(&runPrintEvery, "print-every", 10, "Print telemetry every N exchanges")
}

func runRun(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	sp, err := parseSetpoints(profile.Layout)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	m := session.New(conn, session.Config{
		Layout: profile.Layout,
		Period: time.Duration(runPeriodMs) * time.Millisecond,
	})
	if err := m.SetSetpoints(sp); err != nil {
		conn.Close()
		return err
	}
	m.Start()

	fmt.Printf("Manifold - Session\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Profile: %s\n", profile.Name)
	fmt.Printf("Press Ctrl+C to park the node and exit\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	interval := time.Duration(runPeriodMs*runPrintEvery) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	commLost := false
	for {
		select {
		case <-sigChan:
			fmt.Printf("\nParking node...\n")
			if err := m.Close(); err != nil {
				return err
			}
			fmt.Print(m.Stats())
			return nil

		case <-ticker.C:
			if lost := m.CommLost(); lost != commLost {
				commLost = lost
				if lost {
					fmt.Printf("[%s] COMM LOST: holding safe-state setpoints\n", time.Now().Format("15:04:05"))
				} else {
					fmt.Printf("[%s] Link recovered\n", time.Now().Format("15:04:05"))
				}
			}
			if snap, ok := m.Telemetry(); ok {
				fmt.Printf("[%s] %s\n", snap.At.Format("15:04:05.000"), corewire.FormatTelemetry(snap.Telemetry))
			} else {
				fmt.Printf("[%s] (no telemetry yet)\n", time.Now().Format("15:04:05"))
			}
		}
	}
}
