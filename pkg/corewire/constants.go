// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

// Package corewire provides a reference Go implementation of the Corewire
// serial protocol.
//
// Corewire is the binary request/response protocol spoken between the
// Manifold host console and the embedded plant control nodes. A frame is
//
//	[STX][CMD][LEN][PAYLOAD 0..23][CRC8][ETX]
//
// where the CRC covers CMD, LEN and the payload. This package provides frame
// encoding/decoding, the per-byte receiver state machine, CRC validation and
// payload schemas for the setpoint/telemetry message bodies.
package corewire

// Protocol framing bytes
const (
	StartByte = 0x02 // STX
	EndByte   = 0x03 // ETX
)

// Frame size limits
const (
	MaxPayloadSize = 23
	MaxFrameSize   = 32 // CMD + LEN + payload + CRC, before ETX
)

// CRC-8 configuration (MSB-first, no reflection)
const (
	crcPolynomial = 0x31
	crcInitial    = 0x00
)

// Command codes (host → node)
const (
	CmdPing   = 0x50
	CmdUpdate = 0x55
)

// Response codes (node → host, carried in the command byte slot)
const (
	RespAck  = 0x06
	RespNack = 0x15
)

// Decoder states
const (
	stateWaitingForStart = iota
	stateInFrame
)

// Payload sizes are not fixed by the protocol itself; they derive from the
// channel layout of the node being addressed. See Layout.
