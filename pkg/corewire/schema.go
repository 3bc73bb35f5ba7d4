// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PumpCommand is the wire encoding of a pump setpoint.
type PumpCommand uint8

// Pump command values
const (
	PumpOff PumpCommand = iota
	PumpStarting
	PumpOn
	PumpShuttingDown
)

func (c PumpCommand) String() string {
	switch c {
	case PumpOff:
		return "OFF"
	case PumpStarting:
		return "STARTING"
	case PumpOn:
		return "ON"
	case PumpShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return fmt.Sprintf("PUMP(0x%02X)", uint8(c))
	}
}

// Layout describes a node's channel counts. All payload offsets derive from
// it, so adding a channel to a node variant changes one number here instead
// of a hand-maintained offset table.
type Layout struct {
	Actuators int `yaml:"actuators"`
	Pumps     int `yaml:"pumps"`
	Relays    int `yaml:"relays"`
}

// DefaultLayout matches the deployed node: three actuator rods, three coolant
// pumps, four cooling-tower relays.
var DefaultLayout = Layout{Actuators: 3, Pumps: 3, Relays: 4}

// RequestSize returns the Update request payload size for this layout.
func (l Layout) RequestSize() int {
	return l.Actuators + l.Pumps + l.Relays
}

// ResponseSize returns the telemetry payload size for this layout:
// actuals, thermal float32, level u16, state byte, turbine speed u16,
// per-pump speed u16s, relay statuses, one reserved byte.
func (l Layout) ResponseSize() int {
	return l.Actuators + 4 + 2 + 1 + 2 + 2*l.Pumps + l.Relays + 1
}

// Setpoints is the decoded body of an Update request.
type Setpoints struct {
	ActuatorTargets []uint8 // percent, 0-100
	PumpCommands    []PumpCommand
	RelayCommands   []bool
}

// NewSetpoints returns an all-zero Setpoints sized for the layout. This is
// also the documented safe state: actuators driven to zero, pumps off,
// relays open.
func (l Layout) NewSetpoints() Setpoints {
	return Setpoints{
		ActuatorTargets: make([]uint8, l.Actuators),
		PumpCommands:    make([]PumpCommand, l.Pumps),
		RelayCommands:   make([]bool, l.Relays),
	}
}

// MarshalSetpoints encodes setpoints positionally for the layout. Actuator
// targets above 100 are clamped; pump commands above PumpShuttingDown are an
// error since the node would reject them.
func (l Layout) MarshalSetpoints(sp Setpoints) ([]byte, error) {
	if len(sp.ActuatorTargets) != l.Actuators || len(sp.PumpCommands) != l.Pumps || len(sp.RelayCommands) != l.Relays {
		return nil, fmt.Errorf("corewire: setpoint shape %d/%d/%d does not match layout %d/%d/%d",
			len(sp.ActuatorTargets), len(sp.PumpCommands), len(sp.RelayCommands),
			l.Actuators, l.Pumps, l.Relays)
	}

	payload := make([]byte, 0, l.RequestSize())
	for _, target := range sp.ActuatorTargets {
		if target > 100 {
			target = 100
		}
		payload = append(payload, target)
	}
	for _, cmd := range sp.PumpCommands {
		if cmd > PumpShuttingDown {
			return nil, fmt.Errorf("corewire: invalid pump command 0x%02X", uint8(cmd))
		}
		payload = append(payload, uint8(cmd))
	}
	for _, on := range sp.RelayCommands {
		payload = append(payload, boolByte(on))
	}
	return payload, nil
}

// UnmarshalSetpoints decodes an Update request payload. Out-of-range actuator
// targets are clamped to 100 and out-of-range pump commands saturate at
// PumpShuttingDown, mirroring the node firmware's lenient parse.
func (l Layout) UnmarshalSetpoints(payload []byte) (Setpoints, error) {
	if len(payload) != l.RequestSize() {
		return Setpoints{}, fmt.Errorf("%w: setpoint payload %d bytes, layout expects %d",
			ErrLengthMismatch, len(payload), l.RequestSize())
	}

	sp := l.NewSetpoints()
	off := 0
	for i := range sp.ActuatorTargets {
		v := payload[off+i]
		if v > 100 {
			v = 100
		}
		sp.ActuatorTargets[i] = v
	}
	off += l.Actuators
	for i := range sp.PumpCommands {
		cmd := PumpCommand(payload[off+i])
		if cmd > PumpShuttingDown {
			cmd = PumpShuttingDown
		}
		sp.PumpCommands[i] = cmd
	}
	off += l.Pumps
	for i := range sp.RelayCommands {
		sp.RelayCommands[i] = payload[off+i] != 0
	}
	return sp, nil
}

// Telemetry is the decoded body of an Ack response. It is a point-in-time
// snapshot; the node rebuilds it every control cycle.
type Telemetry struct {
	ActuatorActuals []uint8   // percent, 0-100
	ThermalKW       float32   // derived thermal output
	Level           float64   // process level, percent
	State           uint8     // process state code
	TurbineSpeed    float64   // percent
	PumpSpeeds      []float64 // percent, per pump
	RelayStatus     []bool
}

// MarshalTelemetry encodes a telemetry snapshot positionally for the layout.
// Percent quantities travel as little-endian u16 fixed point scaled by 100.
func (l Layout) MarshalTelemetry(t Telemetry) ([]byte, error) {
	if len(t.ActuatorActuals) != l.Actuators || len(t.PumpSpeeds) != l.Pumps || len(t.RelayStatus) != l.Relays {
		return nil, fmt.Errorf("corewire: telemetry shape %d/%d/%d does not match layout %d/%d/%d",
			len(t.ActuatorActuals), len(t.PumpSpeeds), len(t.RelayStatus),
			l.Actuators, l.Pumps, l.Relays)
	}

	payload := make([]byte, l.ResponseSize())
	off := 0
	for _, v := range t.ActuatorActuals {
		payload[off] = v
		off++
	}
	binary.LittleEndian.PutUint32(payload[off:], math.Float32bits(t.ThermalKW))
	off += 4
	binary.LittleEndian.PutUint16(payload[off:], percentFixed(t.Level))
	off += 2
	payload[off] = t.State
	off++
	binary.LittleEndian.PutUint16(payload[off:], percentFixed(t.TurbineSpeed))
	off += 2
	for _, v := range t.PumpSpeeds {
		binary.LittleEndian.PutUint16(payload[off:], percentFixed(v))
		off += 2
	}
	for _, on := range t.RelayStatus {
		payload[off] = boolByte(on)
		off++
	}
	// Trailing byte is reserved and stays zero.
	return payload, nil
}

// UnmarshalTelemetry decodes an Ack response payload.
func (l Layout) UnmarshalTelemetry(payload []byte) (Telemetry, error) {
	if len(payload) != l.ResponseSize() {
		return Telemetry{}, fmt.Errorf("%w: telemetry payload %d bytes, layout expects %d",
			ErrLengthMismatch, len(payload), l.ResponseSize())
	}

	t := Telemetry{
		ActuatorActuals: make([]uint8, l.Actuators),
		PumpSpeeds:      make([]float64, l.Pumps),
		RelayStatus:     make([]bool, l.Relays),
	}
	off := 0
	copy(t.ActuatorActuals, payload[off:off+l.Actuators])
	off += l.Actuators
	t.ThermalKW = math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	t.Level = float64(binary.LittleEndian.Uint16(payload[off:])) / 100.0
	off += 2
	t.State = payload[off]
	off++
	t.TurbineSpeed = float64(binary.LittleEndian.Uint16(payload[off:])) / 100.0
	off += 2
	for i := range t.PumpSpeeds {
		t.PumpSpeeds[i] = float64(binary.LittleEndian.Uint16(payload[off:])) / 100.0
		off += 2
	}
	for i := range t.RelayStatus {
		t.RelayStatus[i] = payload[off] != 0
		off++
	}
	return t, nil
}

// percentFixed converts a percent to u16 fixed point scaled by 100, clamped
// to the representable range.
func percentFixed(v float64) uint16 {
	if v < 0 {
		return 0
	}
	scaled := v * 100.0
	if scaled > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(scaled + 0.5)
}

func boolByte(on bool) uint8 {
	if on {
		return 1
	}
	return 0
}
