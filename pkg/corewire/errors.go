// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import "errors"

// Decode failure taxonomy. Every decode error degrades to a Nack on the
// node and a retry on the host; none of these is fatal to the receiver.
var (
	// ErrBadDelimiter reports a buffer whose first/last byte is not STX/ETX.
	ErrBadDelimiter = errors.New("corewire: bad frame delimiter")

	// ErrLengthMismatch reports a declared length that disagrees with the
	// actual payload size.
	ErrLengthMismatch = errors.New("corewire: length mismatch")

	// ErrChecksumMismatch reports a CRC that disagrees with the trailing
	// checksum byte.
	ErrChecksumMismatch = errors.New("corewire: checksum mismatch")

	// ErrOverflow reports a frame that exceeded the receive buffer. The
	// decoder discards the partial frame and resynchronizes.
	ErrOverflow = errors.New("corewire: frame buffer overflow")

	// ErrFrameTimeout reports a partial frame abandoned because no byte
	// arrived within the inter-byte window.
	ErrFrameTimeout = errors.New("corewire: inter-byte timeout, partial frame discarded")

	// ErrPayloadTooLarge reports an encode request whose payload exceeds
	// MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("corewire: payload too large")
)
