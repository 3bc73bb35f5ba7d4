// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Thorium Works

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thorium-works/manifold/pkg/corewire"
)

// Setpoint flags shared by the commands that drive a node.
var (
	targetsFlag string
	pumpsFlag   string
	relaysFlag  string
)

// parseSetpoints builds setpoints for a layout from the flag strings.
// Empty flags yield the safe state for their section.
func parseSetpoints(layout corewire.Layout) (corewire.Setpoints, error) {
	sp := layout.NewSetpoints()

	if targetsFlag != "" {
		parts := strings.Split(targetsFlag, ",")
		if len(parts) != layout.Actuators {
			return sp, fmt.Errorf("--targets needs %d values, got %d", layout.Actuators, len(parts))
		}
		for i, part := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || v < 0 || v > 100 {
				return sp, fmt.Errorf("--targets value %q must be 0-100", part)
			}
			sp.ActuatorTargets[i] = uint8(v)
		}
	}

	if pumpsFlag != "" {
		parts := strings.Split(pumpsFlag, ",")
		if len(parts) != layout.Pumps {
			return sp, fmt.Errorf("--pumps needs %d values, got %d", layout.Pumps, len(parts))
		}
		for i, part := range parts {
			cmd, err := parsePumpCommand(strings.TrimSpace(part))
			if err != nil {
				return sp, err
			}
			sp.PumpCommands[i] = cmd
		}
	}

	if relaysFlag != "" {
		parts := strings.Split(relaysFlag, ",")
		if len(parts) != layout.Relays {
			return sp, fmt.Errorf("--relays needs %d values, got %d", layout.Relays, len(parts))
		}
		for i, part := range parts {
			switch strings.TrimSpace(part) {
			case "1", "on":
				sp.RelayCommands[i] = true
			case "0", "off":
				sp.RelayCommands[i] = false
			default:
				return sp, fmt.Errorf("--relays value %q must be 0/1 or on/off", part)
			}
		}
	}

	return sp, nil
}

func parsePumpCommand(s string) (corewire.PumpCommand, error) {
	switch strings.ToLower(s) {
	case "off", "0":
		return corewire.PumpOff, nil
	case "starting", "1":
		return corewire.PumpStarting, nil
	case "on", "2":
		return corewire.PumpOn, nil
	case "stopping", "shutting_down", "3":
		return corewire.PumpShuttingDown, nil
	default:
		return 0, fmt.Errorf("unknown pump command %q (off, starting, on, stopping)", s)
	}
}
