// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import "time"

// Frame represents a decoded Corewire frame. Frames are transient: they are
// constructed, dispatched and discarded within one exchange.
type Frame struct {
	command   uint8
	payload   []byte
	crc       uint8
	timestamp time.Time
}

// NewFrame creates a frame with the given command and payload. The CRC is
// computed on encode, not here.
func NewFrame(command uint8, payload []byte) *Frame {
	return &Frame{
		command:   command,
		payload:   payload,
		timestamp: time.Now(),
	}
}

// Command returns the frame's command or response code.
func (f *Frame) Command() uint8 {
	return f.command
}

// Payload returns the frame's payload bytes.
func (f *Frame) Payload() []byte {
	return f.payload
}

// CRC returns the checksum carried on the wire (zero for locally built frames).
func (f *Frame) CRC() uint8 {
	return f.crc
}

// Timestamp returns the frame's decode timestamp.
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// IsAck reports whether the frame is a positive acknowledgement.
func (f *Frame) IsAck() bool {
	return f.command == RespAck
}

// IsNack reports whether the frame is a negative acknowledgement.
func (f *Frame) IsNack() bool {
	return f.command == RespNack
}
