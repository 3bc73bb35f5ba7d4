// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/thorium-works/manifold/pkg/corewire"
	"github.com/thorium-works/manifold/pkg/session"
)

var (
	recordOutput     string
	recordPeriodMs   int
	recordIntervalMs int
)

// telemetryRecord is one CBOR-encoded sample in a recording file. Files are a
// plain concatenation of records, decodable with a cbor.Decoder loop.
type telemetryRecord struct {
	At              time.Time `cbor:"at"`
	ActuatorActuals []uint8   `cbor:"actuators"`
	ThermalKW       float32   `cbor:"thermal_kw"`
	Level           float64   `cbor:"level"`
	State           uint8     `cbor:"state"`
	TurbineSpeed    float64   `cbor:"turbine"`
	PumpSpeeds      []float64 `cbor:"pumps"`
	RelayStatus     []bool    `cbor:"relays"`
	CommLost        bool      `cbor:"comm_lost"`
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record telemetry to a CBOR file",
	Long: `Run a session holding the given setpoints and append each telemetry
sample to a CBOR stream file.

The file holds one CBOR map per sample with a timestamp and the decoded
telemetry fields, suitable for offline analysis. Ctrl+C parks the node,
flushes the file and exits.

Examples:
  manifold record -p /dev/ttyUSB0 -o session.cbor --targets 50,50,50 --pumps on,on,on`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "telemetry.cbor", "Output file")
	recordCmd.Flags().StringVar(&targetsFlag, "targets", "", "Actuator targets, comma-separated percents")
	recordCmd.Flags().StringVar(&pumpsFlag, "pumps", "", "Pump commands, comma-separated (off, starting, on, stopping)")
	recordCmd.Flags().StringVar(&relaysFlag, "relays", "", "Relay commands, comma-separated (0/1 or on/off)")
	recordCmd.Flags().IntVar(&recordPeriodMs, "period", 100, "Exchange period in milliseconds")
	recordCmd.Flags().IntVar(&recordIntervalMs, "interval", 500, "Sample interval in milliseconds")
}

func runRecord(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	sp, err := parseSetpoints(profile.Layout)
	if err != nil {
		return err
	}

	out, err := os.Create(recordOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", recordOutput, err)
	}
	defer out.Close()
	encoder := cbor.NewEncoder(out)

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	m := session.New(conn, session.Config{
		Layout: profile.Layout,
		Period: time.Duration(recordPeriodMs) * time.Millisecond,
	})
	if err := m.SetSetpoints(sp); err != nil {
		conn.Close()
		return err
	}
	m.Start()

	fmt.Printf("Manifold - Telemetry Recorder\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Recording to %s every %dms, Ctrl+C to stop\n\n", recordOutput, recordIntervalMs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(recordIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	samples := 0
	var lastAt time.Time
	for {
		select {
		case <-sigChan:
			fmt.Printf("\n%d samples written to %s\n", samples, recordOutput)
			return m.Close()

		case <-ticker.C:
			snap, ok := m.Telemetry()
			if !ok || snap.At.Equal(lastAt) {
				continue
			}
			lastAt = snap.At
			record := telemetryRecord{
				At:              snap.At,
				ActuatorActuals: snap.ActuatorActuals,
				ThermalKW:       snap.ThermalKW,
				Level:           snap.Level,
				State:           snap.State,
				TurbineSpeed:    snap.TurbineSpeed,
				PumpSpeeds:      snap.PumpSpeeds,
				RelayStatus:     snap.RelayStatus,
				CommLost:        m.CommLost(),
			}
			if err := encoder.Encode(record); err != nil {
				m.Close()
				return fmt.Errorf("encode failed: %v", err)
			}
			samples++
			if samples%20 == 0 {
				fmt.Printf("[%s] %d samples, latest: %s\n",
					snap.At.Format("15:04:05"), samples, corewire.FormatTelemetry(snap.Telemetry))
			}
		}
	}
}
