// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPayload builds a payload of arbitrary bytes, framing values
// included. The receiver reads the body by count, so nothing needs escaping.
func randomPayload(rng *rand.Rand, size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(rng.Intn(256))
	}
	return payload
}

func FuzzDecodeWholeBuffer(f *testing.F) {
	f.Add([]byte{0x02, 0x50, 0x00, 0xE7, 0x03})
	f.Add([]byte{0x02, 0x06, 0x00, 0x5A, 0x03})
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, data []byte) {
		// Decode must never panic, whatever the input.
		frame, err := Decode(data)
		if err == nil && frame == nil {
			t.Error("nil frame with nil error")
		}
	})
}

func TestFuzz_DecoderRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	for round := 0; round < rounds; round++ {
		command := byte(rng.Intn(256))
		payload := randomPayload(rng, rng.Intn(MaxPayloadSize+1))

		data, err := Encode(command, payload)
		if err != nil {
			t.Fatalf("round %d: encode error: %v", round, err)
		}

		var frame *Frame
		for _, b := range data {
			f, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("round %d: decode error: %v", round, err)
			}
			if f != nil {
				frame = f
			}
		}
		if frame == nil {
			t.Fatalf("round %d: no frame emitted", round)
		}
		if frame.Command() != command || !bytes.Equal(frame.Payload(), payload) {
			t.Fatalf("round %d: frame mismatch: %s", round, FormatFrame(frame))
		}
	}
}

func TestFuzz_DecoderSurvivesNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	decoded := 0
	for round := 0; round < rounds; round++ {
		// Random noise burst, then a valid frame. Errors are expected when
		// noise opens a bogus frame; the valid frame must still come out.
		noise := make([]byte, rng.Intn(24))
		for i := range noise {
			noise[i] = byte(rng.Intn(256))
		}
		for _, b := range noise {
			d.DecodeByte(b)
		}

		payload := randomPayload(rng, rng.Intn(MaxPayloadSize+1))
		data, err := Encode(CmdUpdate, payload)
		if err != nil {
			t.Fatalf("round %d: encode error: %v", round, err)
		}

		got := false
		for _, b := range data {
			f, _ := d.DecodeByte(b)
			if f != nil && bytes.Equal(f.Payload(), payload) {
				got = true
			}
		}
		if got {
			decoded++
		}
		// Leftover noise can leave the decoder mid-bogus-frame and swallow
		// this frame's start byte; a second send must always get through.
		if !got {
			d.Reset()
			for _, b := range data {
				f, err := d.DecodeByte(b)
				if err != nil {
					t.Fatalf("round %d: decode error after reset: %v", round, err)
				}
				if f != nil && bytes.Equal(f.Payload(), payload) {
					got = true
				}
			}
			if !got {
				t.Fatalf("round %d: frame lost even after reset", round)
			}
		}
	}
	if decoded == 0 {
		t.Error("no frames decoded across all rounds")
	}
}
