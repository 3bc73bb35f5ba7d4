// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import "fmt"

// Encode builds a complete wire frame for the given command and payload:
// STX ∥ CMD ∥ LEN ∥ PAYLOAD ∥ CRC8(CMD ∥ LEN ∥ PAYLOAD) ∥ ETX.
//
// The CRC byte range must match the node firmware bit-for-bit, including the
// zero-length Ping/Pong case where it covers exactly CMD ∥ LEN.
func Encode(command uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, len(payload)+5)
	frame = append(frame, StartByte, command, uint8(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, CalculateCRC(frame[1:]), EndByte)
	return frame, nil
}

// EncodeFrame encodes an existing Frame back to wire format.
func EncodeFrame(f *Frame) ([]byte, error) {
	return Encode(f.command, f.payload)
}

// MustEncode encodes a frame and panics on error. Intended for fixed-size
// frames built from validated schemas.
func MustEncode(command uint8, payload []byte) []byte {
	data, err := Encode(command, payload)
	if err != nil {
		panic(fmt.Sprintf("corewire: encode error: %v", err))
	}
	return data
}

// Decode parses a complete buffered frame. It is the whole-buffer counterpart
// of the Decoder state machine, used when the caller already holds an entire
// frame (tests, the sniffer, captured logs).
func Decode(data []byte) (*Frame, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrBadDelimiter, len(data))
	}
	if data[0] != StartByte || data[len(data)-1] != EndByte {
		return nil, fmt.Errorf("%w: first=0x%02X last=0x%02X", ErrBadDelimiter, data[0], data[len(data)-1])
	}

	declared := int(data[2])
	if declared != len(data)-5 {
		return nil, fmt.Errorf("%w: declared %d, actual %d", ErrLengthMismatch, declared, len(data)-5)
	}

	body := data[1 : len(data)-2] // CMD ∥ LEN ∥ PAYLOAD
	wireCRC := data[len(data)-2]
	if calculated := CalculateCRC(body); calculated != wireCRC {
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksumMismatch, calculated, wireCRC)
	}

	f := NewFrame(data[1], append([]byte(nil), data[3:len(data)-2]...))
	f.crc = wireCRC
	return f, nil
}
