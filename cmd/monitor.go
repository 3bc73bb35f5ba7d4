// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/thorium-works/manifold/pkg/session"
)

var monitorPeriodMs int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for driving and watching a node",
	Long: `Drive a control node from an interactive terminal UI.

The left pane shows live actuator positions, pump speeds and relay states;
the right pane shows the process state, thermal output and link statistics.
Setpoint changes take effect on the next exchange.

Keys:
  tab        select the next actuator
  up/down    nudge the selected actuator target by 5%%
  p          toggle all pumps on/off
  r          toggle all relays
  0          park everything (safe state)
  q          park the node and quit

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorPeriodMs, "period", 100, "Exchange period in milliseconds")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	mgr := session.New(conn, session.Config{
		Layout: profile.Layout,
		Period: time.Duration(monitorPeriodMs) * time.Millisecond,
	})
	mgr.Start()

	m := initialMonitorModel(mgr, profile, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		mgr.Close()
		return fmt.Errorf("TUI error: %v", err)
	}

	// Close parks the node with a final safe-state update.
	return mgr.Close()
}
