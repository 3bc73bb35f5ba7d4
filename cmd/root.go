// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thorium-works/manifold/pkg/reactor"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Node profile
	profilePath string
)

var rootCmd = &cobra.Command{
	Use:   "manifold",
	Short: "Corewire control link host",
	Long: `Manifold - host-side tooling for the Corewire serial control link.

Provides commands for driving a control node (setpoints, telemetry,
monitoring), passive link diagnostics, and a simulated node for bench work
without hardware.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the MANIFOLD_PASSWORD
environment variable, or prompted interactively if not set. There is no
--password flag so credentials stay out of shell history.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "Node profile YAML (defaults to the built-in trainer profile)")
}

// loadProfile returns the node profile selected by --profile, or the built-in
// default.
func loadProfile() (reactor.Profile, error) {
	if profilePath == "" {
		return reactor.DefaultProfile(), nil
	}
	return reactor.LoadProfile(profilePath)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
