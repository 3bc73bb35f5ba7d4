// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import (
	"fmt"
	"strings"
)

// FormatCommand returns a human-readable name for a command/response code.
func FormatCommand(command uint8) string {
	switch command {
	case CmdPing:
		return "PING"
	case CmdUpdate:
		return "UPDATE"
	case RespAck:
		return "ACK"
	case RespNack:
		return "NACK"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", command)
	}
}

// FormatHex returns a space-separated uppercase hex dump.
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// FormatFrame returns a one-line summary of a decoded frame.
func FormatFrame(f *Frame) string {
	if len(f.Payload()) == 0 {
		return fmt.Sprintf("%s (no payload)", FormatCommand(f.Command()))
	}
	return fmt.Sprintf("%s len=%d [%s]", FormatCommand(f.Command()), len(f.Payload()), FormatHex(f.Payload()))
}

// FormatTelemetry returns a one-line summary of a telemetry snapshot.
func FormatTelemetry(t Telemetry) string {
	var sb strings.Builder
	sb.WriteString("rods=")
	for i, v := range t.ActuatorActuals {
		if i > 0 {
			sb.WriteByte('/')
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	fmt.Fprintf(&sb, " thermal=%.1fkW level=%.1f%% state=%d turbine=%.1f%%",
		t.ThermalKW, t.Level, t.State, t.TurbineSpeed)
	sb.WriteString(" pumps=")
	for i, v := range t.PumpSpeeds {
		if i > 0 {
			sb.WriteByte('/')
		}
		fmt.Fprintf(&sb, "%.0f", v)
	}
	sb.WriteString(" relays=")
	for _, on := range t.RelayStatus {
		if on {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
