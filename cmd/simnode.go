// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorium-works/manifold/pkg/corewire"
	"github.com/thorium-works/manifold/pkg/reactor"
)

var (
	simnodeVerbose bool
	simnodeStdio   bool
)

// stdioConnection serves the node on stdin/stdout so it can sit behind an
// inetd-style wrapper or a test harness pipe.
type stdioConnection struct{}

func (stdioConnection) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConnection) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioConnection) Close() error                { return nil }

var simnodeCmd = &cobra.Command{
	Use:   "simnode",
	Short: "Serve a simulated control node on the link",
	Long: `Run the node-side control loop over a serial port or WebSocket.

The simulated node behaves like the real firmware: it answers Ping and
Update, ramps actuators at the profile rates, runs the process state machine
and falls back to its safe state when the host goes quiet. Point a second
manifold instance (or the real host software) at the other end of the link.

Useful for bench-testing host tooling without hardware, e.g. against a pair
of pseudo-terminals created with socat.`,
	RunE: runSimnode,
}

func init() {
	rootCmd.AddCommand(simnodeCmd)
	simnodeCmd.Flags().BoolVarP(&simnodeVerbose, "verbose", "v", false, "Log every exchange")
	simnodeCmd.Flags().BoolVar(&simnodeStdio, "stdio", false, "Serve on stdin/stdout instead of a port")
}

func runSimnode(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	node, err := reactor.NewNode(profile)
	if err != nil {
		return err
	}

	var (
		conn     Connection
		connInfo string
	)
	if simnodeStdio {
		conn, connInfo = stdioConnection{}, "stdio"
	} else {
		conn, connInfo, err = OpenConnection()
		if err != nil {
			return err
		}
	}
	defer conn.Close()

	// In stdio mode stdout carries the wire; all reporting goes to stderr.
	status := os.Stdout
	if simnodeStdio {
		status = os.Stderr
	}

	fmt.Fprintf(status, "Manifold - Simulated Node\n")
	fmt.Fprintf(status, "Connection: %s\n", connInfo)
	fmt.Fprintf(status, "Profile: %s (tick %s, comm timeout %s)\n", profile.Name, profile.TickPeriod(), profile.CommTimeout())
	fmt.Fprintf(status, "Press Ctrl+C to exit\n\n")

	// The node itself is single-threaded; the reader and ticker share it
	// under one mutex.
	var mu sync.Mutex

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				select {
				case <-done:
				default:
					if err == ErrConnectionClosed {
						log.Printf("Connection closed")
					} else {
						log.Printf("Read error: %v", err)
					}
				}
				return
			}
			for i := 0; i < n; i++ {
				mu.Lock()
				resp := node.Feed(buf[i], time.Now())
				mu.Unlock()
				if resp == nil {
					continue
				}
				if simnodeVerbose {
					fmt.Fprintf(status, "[%s] -> %s\n", time.Now().Format("15:04:05.000"), corewire.FormatHex(resp))
				}
				if _, err := conn.Write(resp); err != nil {
					log.Printf("Write error: %v", err)
					return
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(profile.TickPeriod())
	defer ticker.Stop()

	statusEvery := time.NewTicker(5 * time.Second)
	defer statusEvery.Stop()

	wasSafe := false
	for {
		select {
		case <-sigChan:
			close(done)
			mu.Lock()
			fmt.Fprintf(status, "\nFinal: %s\n", corewire.FormatTelemetry(node.Telemetry()))
			fmt.Fprint(status, node.Stats().Snapshot())
			mu.Unlock()
			return nil

		case now := <-ticker.C:
			mu.Lock()
			node.Tick(now)
			if safe := node.InSafeState(); safe != wasSafe {
				wasSafe = safe
				if safe {
					fmt.Fprintf(status, "[%s] Host quiet: safe state engaged\n", now.Format("15:04:05"))
				} else {
					fmt.Fprintf(status, "[%s] Host contact restored\n", now.Format("15:04:05"))
				}
			}
			mu.Unlock()

		case <-statusEvery.C:
			mu.Lock()
			fmt.Fprintf(status, "[%s] %s\n", time.Now().Format("15:04:05"), corewire.FormatTelemetry(node.Telemetry()))
			mu.Unlock()
		}
	}
}
