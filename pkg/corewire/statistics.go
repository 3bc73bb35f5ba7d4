// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package corewire

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks link health counters. It is safe for one writer (the
// session or sniffer loop) and any number of readers (status display).
type Statistics struct {
	mu        sync.Mutex
	startTime time.Time

	totalFrames    uint64
	validFrames    uint64
	checksumErrors uint64
	framingErrors  uint64
	overflows      uint64
	timeouts       uint64
	nacks          uint64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// StatsSnapshot is a self-consistent copy of the counters.
type StatsSnapshot struct {
	Elapsed        time.Duration
	TotalFrames    uint64
	ValidFrames    uint64
	ChecksumErrors uint64
	FramingErrors  uint64
	Overflows      uint64
	Timeouts       uint64
	Nacks          uint64
}

// RecordFrame accounts for one decode attempt: a completed frame or an error
// from the Decoder.
func (s *Statistics) RecordFrame(f *Frame, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFrames++

	switch {
	case err == nil:
		s.validFrames++
		if f != nil && f.IsNack() {
			s.nacks++
		}
	case errors.Is(err, ErrChecksumMismatch):
		s.checksumErrors++
	case errors.Is(err, ErrOverflow):
		s.overflows++
	case errors.Is(err, ErrFrameTimeout):
		s.timeouts++
	default:
		s.framingErrors++
	}
}

// RecordTimeout accounts for a partial frame expired by CheckTimeout.
func (s *Statistics) RecordTimeout() {
	s.mu.Lock()
	s.timeouts++
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters.
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Elapsed:        time.Since(s.startTime),
		TotalFrames:    s.totalFrames,
		ValidFrames:    s.validFrames,
		ChecksumErrors: s.checksumErrors,
		FramingErrors:  s.framingErrors,
		Overflows:      s.overflows,
		Timeouts:       s.timeouts,
		Nacks:          s.nacks,
	}
}

// Reset clears all counters.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = time.Now()
	s.totalFrames = 0
	s.validFrames = 0
	s.checksumErrors = 0
	s.framingErrors = 0
	s.overflows = 0
	s.timeouts = 0
	s.nacks = 0
}

// String returns a formatted summary.
func (s StatsSnapshot) String() string {
	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", s.Elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d\n", s.FramingErrors)
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", s.Overflows)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Frame Timeouts:  %8d\n", s.Timeouts)
	}
	if s.Nacks > 0 {
		result += fmt.Sprintf("Nacks:           %8d\n", s.Nacks)
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", float64(s.TotalFrames)/secs)
	}
	result += "====================================\n"
	return result
}
