// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	if crc := CalculateCRC([]byte{}); crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%02X", crc)
	}
}

func TestCalculateCRC_KnownValues(t *testing.T) {
	// Expected values verified against the deployed node firmware's CRC
	// routine (poly 0x31, init 0x00, MSB-first).
	tests := []struct {
		name     string
		data     []byte
		expected uint8
	}{
		{name: "ping header", data: []byte{CmdPing, 0x00}, expected: 0xE7},
		{name: "pong header", data: []byte{RespAck, 0x00}, expected: 0x5A},
		{name: "nack header", data: []byte{RespNack, 0x00}, expected: 0x19},
		{name: "ASCII '123456789'", data: []byte("123456789"), expected: 0xA2},
		{name: "single 0x00", data: []byte{0x00}, expected: 0x00},
		{name: "single 0xFF", data: []byte{0xFF}, expected: 0xAC},
		{name: "single 0xAB", data: []byte{0xAB}, expected: 0x16},
		{name: "bytes 01 02 03", data: []byte{0x01, 0x02, 0x03}, expected: 0xCC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if crc := CalculateCRC(tt.data); crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%02X, got 0x%02X", tt.expected, crc)
			}
		})
	}
}

// ============================================================
// Encode Tests
// ============================================================

func TestEncode_PingWireFormat(t *testing.T) {
	// The 5-byte ping exchange is the protocol's interoperability anchor.
	data, err := Encode(CmdPing, nil)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	expected := []byte{0x02, 0x50, 0x00, 0xE7, 0x03}
	if !bytes.Equal(data, expected) {
		t.Errorf("ping frame mismatch:\n  expected % X\n  got      % X", expected, data)
	}
}

func TestEncode_UpdateWireFormat(t *testing.T) {
	payload := []byte{50, 50, 50, 2, 2, 2, 0, 0, 0, 0}
	data, err := Encode(CmdUpdate, payload)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	expected := append([]byte{0x02, 0x55, 0x0A}, payload...)
	expected = append(expected, 0x65, 0x03)
	if !bytes.Equal(data, expected) {
		t.Errorf("update frame mismatch:\n  expected % X\n  got      % X", expected, data)
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	_, err := Encode(CmdUpdate, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecode_RoundTrip(t *testing.T) {
	// Round-trip property: decode(encode(cmd, payload)) recovers the frame
	// for every legal payload length.
	for size := 0; size <= MaxPayloadSize; size++ {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}

		data, err := Encode(CmdUpdate, payload)
		if err != nil {
			t.Fatalf("size %d: encode error: %v", size, err)
		}
		frame, err := Decode(data)
		if err != nil {
			t.Fatalf("size %d: decode error: %v", size, err)
		}
		if frame.Command() != CmdUpdate {
			t.Errorf("size %d: command 0x%02X", size, frame.Command())
		}
		if !bytes.Equal(frame.Payload(), payload) {
			t.Errorf("size %d: payload mismatch", size)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	valid, _ := Encode(CmdPing, nil)

	tests := []struct {
		name     string
		mutate   func([]byte) []byte
		expected error
	}{
		{
			name:     "missing STX",
			mutate:   func(d []byte) []byte { d[0] = 0x00; return d },
			expected: ErrBadDelimiter,
		},
		{
			name:     "missing ETX",
			mutate:   func(d []byte) []byte { d[len(d)-1] = 0x00; return d },
			expected: ErrBadDelimiter,
		},
		{
			name:     "truncated",
			mutate:   func(d []byte) []byte { return d[:3] },
			expected: ErrBadDelimiter,
		},
		{
			name:     "length lies",
			mutate:   func(d []byte) []byte { d[2] = 5; return d },
			expected: ErrLengthMismatch,
		},
		{
			name:     "corrupted checksum",
			mutate:   func(d []byte) []byte { d[len(d)-2] ^= 0x01; return d },
			expected: ErrChecksumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), valid...))
			_, err := Decode(data)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestDecode_ChecksumBitFlips(t *testing.T) {
	// Any single-bit corruption of the checksum byte must be detected.
	valid, _ := Encode(CmdUpdate, []byte{10, 20, 30, 0, 1, 2, 1, 0, 1, 0})
	for bit := 0; bit < 8; bit++ {
		data := append([]byte(nil), valid...)
		data[len(data)-2] ^= 1 << bit
		if _, err := Decode(data); !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("bit %d: expected ErrChecksumMismatch, got %v", bit, err)
		}
	}
}

// ============================================================
// Schema Tests
// ============================================================

func TestLayout_Sizes(t *testing.T) {
	if size := DefaultLayout.RequestSize(); size != 10 {
		t.Errorf("default request size: expected 10, got %d", size)
	}
	if size := DefaultLayout.ResponseSize(); size != 23 {
		t.Errorf("default response size: expected 23, got %d", size)
	}
}

func TestSetpoints_RoundTrip(t *testing.T) {
	sp := Setpoints{
		ActuatorTargets: []uint8{10, 55, 100},
		PumpCommands:    []PumpCommand{PumpOff, PumpStarting, PumpOn},
		RelayCommands:   []bool{true, false, true, false},
	}
	payload, err := DefaultLayout.MarshalSetpoints(sp)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if len(payload) != DefaultLayout.RequestSize() {
		t.Fatalf("payload size %d", len(payload))
	}

	decoded, err := DefaultLayout.UnmarshalSetpoints(payload)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !bytes.Equal(decoded.ActuatorTargets, sp.ActuatorTargets) {
		t.Errorf("actuator targets: %v != %v", decoded.ActuatorTargets, sp.ActuatorTargets)
	}
	for i, cmd := range decoded.PumpCommands {
		if cmd != sp.PumpCommands[i] {
			t.Errorf("pump %d: %v != %v", i, cmd, sp.PumpCommands[i])
		}
	}
	for i, on := range decoded.RelayCommands {
		if on != sp.RelayCommands[i] {
			t.Errorf("relay %d: %v != %v", i, on, sp.RelayCommands[i])
		}
	}
}

func TestSetpoints_ClampAndSaturate(t *testing.T) {
	payload := make([]byte, DefaultLayout.RequestSize())
	payload[0] = 250 // actuator target above 100
	payload[3] = 9   // pump command above SHUTTING_DOWN
	payload[6] = 7   // any nonzero relay byte means on

	sp, err := DefaultLayout.UnmarshalSetpoints(payload)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if sp.ActuatorTargets[0] != 100 {
		t.Errorf("target not clamped: %d", sp.ActuatorTargets[0])
	}
	if sp.PumpCommands[0] != PumpShuttingDown {
		t.Errorf("pump command not saturated: %v", sp.PumpCommands[0])
	}
	if !sp.RelayCommands[0] {
		t.Error("nonzero relay byte should decode as on")
	}
}

func TestSetpoints_WrongLength(t *testing.T) {
	_, err := DefaultLayout.UnmarshalSetpoints(make([]byte, 7))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestTelemetry_RoundTrip(t *testing.T) {
	src := Telemetry{
		ActuatorActuals: []uint8{47, 52, 61},
		ThermalKW:       123456.5,
		Level:           87.25,
		State:           2,
		TurbineSpeed:    64.5,
		PumpSpeeds:      []float64{100, 42.75, 0},
		RelayStatus:     []bool{true, true, false, false},
	}
	payload, err := DefaultLayout.MarshalTelemetry(src)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if len(payload) != DefaultLayout.ResponseSize() {
		t.Fatalf("payload size %d", len(payload))
	}

	got, err := DefaultLayout.UnmarshalTelemetry(payload)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !bytes.Equal(got.ActuatorActuals, src.ActuatorActuals) {
		t.Errorf("actuals: %v != %v", got.ActuatorActuals, src.ActuatorActuals)
	}
	if got.ThermalKW != src.ThermalKW {
		t.Errorf("thermal: %v != %v", got.ThermalKW, src.ThermalKW)
	}
	if math.Abs(got.Level-src.Level) > 0.005 {
		t.Errorf("level: %v != %v", got.Level, src.Level)
	}
	if got.State != src.State {
		t.Errorf("state: %d != %d", got.State, src.State)
	}
	if math.Abs(got.TurbineSpeed-src.TurbineSpeed) > 0.005 {
		t.Errorf("turbine: %v != %v", got.TurbineSpeed, src.TurbineSpeed)
	}
	for i := range got.PumpSpeeds {
		if math.Abs(got.PumpSpeeds[i]-src.PumpSpeeds[i]) > 0.005 {
			t.Errorf("pump %d: %v != %v", i, got.PumpSpeeds[i], src.PumpSpeeds[i])
		}
	}
	for i := range got.RelayStatus {
		if got.RelayStatus[i] != src.RelayStatus[i] {
			t.Errorf("relay %d: %v != %v", i, got.RelayStatus[i], src.RelayStatus[i])
		}
	}
}

func TestTelemetry_ReservedByteZero(t *testing.T) {
	payload, err := DefaultLayout.MarshalTelemetry(Telemetry{
		ActuatorActuals: make([]uint8, 3),
		PumpSpeeds:      make([]float64, 3),
		RelayStatus:     make([]bool, 4),
	})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if payload[len(payload)-1] != 0 {
		t.Errorf("reserved byte not zero: 0x%02X", payload[len(payload)-1])
	}
}
