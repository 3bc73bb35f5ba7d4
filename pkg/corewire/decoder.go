// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import (
	"fmt"
	"time"
)

// DefaultFrameTimeout is how long a partial frame may sit without a new byte
// before the decoder abandons it and resynchronizes.
const DefaultFrameTimeout = 500 * time.Millisecond

// Decoder implements the Corewire receiver state machine. It consumes an
// arbitrary byte stream one byte at a time and emits complete, checksum-valid
// frames. Stray bytes outside a frame are discarded silently so line noise
// never produces spurious errors.
//
// The frame body is read by count, not by delimiter scanning: once the length
// byte is in, exactly LEN payload bytes plus the CRC are consumed without
// interpreting them, and only the byte after the counted body must be ETX.
// Payload and CRC bytes legitimately take the framing values (pump command
// codes and scaled u16 fields among them) and the wire format has no
// escaping, so the residual ambiguity is confined to resynchronization: after
// corruption, a stray 0x02 in the stream can be mistaken for a frame start
// until the CRC or trailing delimiter rejects it.
type Decoder struct {
	// FrameTimeout overrides DefaultFrameTimeout when > 0.
	FrameTimeout time.Duration

	state      int
	buffer     []byte // CMD ∥ LEN ∥ PAYLOAD ∥ CRC, without framing bytes
	lastByteAt time.Time
	rawBuffer  []byte // raw bytes since the last frame, including framing
}

// NewDecoder creates a new receiver state machine.
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateWaitingForStart,
		buffer:    make([]byte, 0, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset returns the decoder to the waiting-for-start state, discarding any
// partial frame.
func (d *Decoder) Reset() {
	d.state = stateWaitingForStart
	d.buffer = d.buffer[:0]
	d.rawBuffer = d.rawBuffer[:0]
}

// InFrame reports whether the decoder is mid-frame.
func (d *Decoder) InFrame() bool {
	return d.state == stateInFrame
}

// RawBytes returns the raw bytes accumulated since the last completed frame.
func (d *Decoder) RawBytes() []byte {
	return d.rawBuffer
}

// bodyLen returns the expected body size (CMD ∥ LEN ∥ PAYLOAD ∥ CRC), or -1
// while the length byte has not arrived yet.
func (d *Decoder) bodyLen() int {
	if len(d.buffer) < 2 {
		return -1
	}
	return 2 + int(d.buffer[1]) + 1
}

func (d *Decoder) timeout() time.Duration {
	if d.FrameTimeout > 0 {
		return d.FrameTimeout
	}
	return DefaultFrameTimeout
}

// DecodeByte processes a single byte through the state machine. It returns a
// completed frame, or nil while the frame is incomplete. A non-nil error
// reports a discarded frame (bad CRC, bad trailing delimiter, overflow,
// inter-byte timeout); the decoder has already resynchronized when it
// returns one.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	return d.DecodeByteAt(b, time.Now())
}

// DecodeByteAt is DecodeByte with an explicit arrival time, so the inter-byte
// timeout can be driven by the caller's clock.
func (d *Decoder) DecodeByteAt(b byte, now time.Time) (*Frame, error) {
	var stale error
	if d.state == stateInFrame && now.Sub(d.lastByteAt) > d.timeout() {
		// The partial frame went quiet; whatever we buffered belongs to a
		// dead exchange. Discard it before looking at the new byte.
		d.Reset()
		stale = ErrFrameTimeout
	}
	d.lastByteAt = now
	d.rawBuffer = append(d.rawBuffer, b)

	switch d.state {
	case stateWaitingForStart:
		if b == StartByte {
			d.state = stateInFrame
			d.buffer = d.buffer[:0]
		}
		// Anything else is stray noise between frames.
		return nil, stale

	case stateInFrame:
		// The body is CMD ∥ LEN ∥ PAYLOAD ∥ CRC; once it is fully buffered
		// the current byte sits in the end-delimiter position.
		if want := d.bodyLen(); want >= 0 && len(d.buffer) == want {
			if b != EndByte {
				d.Reset()
				return nil, fmt.Errorf("%w: expected end byte after %d-byte body, got 0x%02X", ErrBadDelimiter, want, b)
			}
			frame, err := d.complete()
			d.state = stateWaitingForStart
			d.buffer = d.buffer[:0]
			if err == nil {
				d.rawBuffer = d.rawBuffer[:0]
			}
			return frame, err
		}

		// The LEN byte bounds the whole frame, so an insane declared length
		// is the overflow condition.
		if len(d.buffer) == 1 && int(b) > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("%w: declared payload %d exceeds %d bytes", ErrOverflow, b, MaxPayloadSize)
		}
		d.buffer = append(d.buffer, b)
		return nil, stale

	default:
		d.Reset()
		return nil, fmt.Errorf("corewire: invalid decoder state %d", d.state)
	}
}

// complete validates the buffered body (CMD ∥ LEN ∥ PAYLOAD ∥ CRC) once the
// end delimiter arrives.
func (d *Decoder) complete() (*Frame, error) {
	if len(d.buffer) < 3 {
		return nil, fmt.Errorf("%w: frame body too short (%d bytes)", ErrLengthMismatch, len(d.buffer))
	}

	declared := int(d.buffer[1])
	if declared != len(d.buffer)-3 {
		return nil, fmt.Errorf("%w: declared %d, actual %d", ErrLengthMismatch, declared, len(d.buffer)-3)
	}

	body := d.buffer[:len(d.buffer)-1]
	wireCRC := d.buffer[len(d.buffer)-1]
	if calculated := CalculateCRC(body); calculated != wireCRC {
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksumMismatch, calculated, wireCRC)
	}

	f := NewFrame(d.buffer[0], append([]byte(nil), d.buffer[2:len(d.buffer)-1]...))
	f.crc = wireCRC
	return f, nil
}

// CheckTimeout lets a polling loop expire a quiet partial frame without
// waiting for the next byte. It reports whether a partial frame was dropped.
func (d *Decoder) CheckTimeout(now time.Time) bool {
	if d.state == stateInFrame && now.Sub(d.lastByteAt) > d.timeout() {
		d.Reset()
		return true
	}
	return false
}
