// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

// Package session implements the host side of a Corewire link: a periodic
// setpoint/telemetry exchange with one control node, with bounded retries
// and a safe-state fallback that mirrors the node's own comm-loss behavior.
package session

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thorium-works/manifold/pkg/corewire"
)

// Config tunes one session. Zero values fall back to the defaults below.
type Config struct {
	Layout corewire.Layout

	// Period is the exchange tick (one Update request per tick).
	Period time.Duration

	// ReadTimeout bounds the wait for a response within one attempt.
	ReadTimeout time.Duration

	// Retries is how many times a failed attempt is repeated within one
	// tick before the tick is counted as failed.
	Retries int

	// CommLossTicks is how many consecutive failed ticks are tolerated
	// before the manager falls back to safe-state setpoints.
	CommLossTicks int
}

// Session defaults
const (
	DefaultPeriod        = 100 * time.Millisecond
	DefaultReadTimeout   = 250 * time.Millisecond
	DefaultRetries       = 3
	DefaultCommLossTicks = 10
)

func (c Config) withDefaults() Config {
	if c.Layout == (corewire.Layout{}) {
		c.Layout = corewire.DefaultLayout
	}
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.CommLossTicks <= 0 {
		c.CommLossTicks = DefaultCommLossTicks
	}
	return c
}

// Snapshot is one immutable telemetry observation. Readers always see a
// complete snapshot; the manager swaps the whole value, never a field.
type Snapshot struct {
	corewire.Telemetry
	At time.Time
}

// Manager drives the host side of one node link. One manager runs per link;
// Telemetry and Stats may be read from any goroutine.
type Manager struct {
	conn io.ReadWriteCloser
	cfg  Config

	stats      *corewire.Statistics
	frames     chan *corewire.Frame
	tickDone   chan struct{}
	readerDone chan struct{}
	stopped    chan struct{}

	txMu sync.Mutex // serializes write-then-await exchanges

	setpointMu sync.Mutex
	setpoints  corewire.Setpoints

	telemetry atomic.Pointer[Snapshot]

	failedTicks atomic.Int64
	commLost    atomic.Bool
}

// New creates a manager over an open link. Call Start to begin the exchange
// loop.
func New(conn io.ReadWriteCloser, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		conn:       conn,
		cfg:        cfg,
		stats:      corewire.NewStatistics(),
		frames:     make(chan *corewire.Frame, 8),
		tickDone:   make(chan struct{}),
		readerDone: make(chan struct{}),
		stopped:    make(chan struct{}),
		setpoints:  cfg.Layout.NewSetpoints(),
	}
}

// SetSetpoints replaces the outbound setpoints. Safe from any goroutine; the
// next tick sends them.
func (m *Manager) SetSetpoints(sp corewire.Setpoints) error {
	if _, err := m.cfg.Layout.MarshalSetpoints(sp); err != nil {
		return err
	}
	m.setpointMu.Lock()
	m.setpoints = sp
	m.setpointMu.Unlock()
	return nil
}

// Telemetry returns the most recent telemetry snapshot, if any has arrived.
func (m *Manager) Telemetry() (Snapshot, bool) {
	snap := m.telemetry.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Stats returns a self-consistent copy of the link counters.
func (m *Manager) Stats() corewire.StatsSnapshot {
	return m.stats.Snapshot()
}

// FailedTicks returns the current consecutive-failure count.
func (m *Manager) FailedTicks() int {
	return int(m.failedTicks.Load())
}

// CommLost reports whether the manager is in the safe-state fallback.
func (m *Manager) CommLost() bool {
	return m.commLost.Load()
}

// Start launches the reader and exchange loops.
func (m *Manager) Start() {
	go m.readerLoop()
	go m.tickLoop()
}

// Close stops the exchange loop, makes a best-effort attempt to park the node
// in its safe state, and closes the link. The reader stays alive until the
// parting exchange is done so its response can still be received.
func (m *Manager) Close() error {
	select {
	case <-m.tickDone:
	default:
		close(m.tickDone)
	}
	<-m.stopped

	// Best effort: one safe-state update so the node does not have to wait
	// out its own timeout. Errors are ignored; the node-side fallback
	// covers us if this write is lost.
	m.exchange(m.cfg.Layout.NewSetpoints())

	close(m.readerDone)
	return m.conn.Close()
}

// Ping performs one liveness exchange outside the tick loop.
func (m *Manager) Ping() error {
	resp, err := m.transact(corewire.MustEncode(corewire.CmdPing, nil))
	if err != nil {
		return err
	}
	if !resp.IsAck() {
		return fmt.Errorf("session: ping answered with %s", corewire.FormatCommand(resp.Command()))
	}
	return nil
}

// readerLoop pulls bytes off the link, runs them through the receiver state
// machine and hands completed frames to the exchange loop over a channel.
func (m *Manager) readerLoop() {
	decoder := corewire.NewDecoder()
	buf := make([]byte, 64)
	for {
		select {
		case <-m.readerDone:
			return
		default:
		}

		n, err := m.conn.Read(buf)
		if err != nil {
			select {
			case <-m.readerDone:
				return
			default:
				// Transient read errors (serial timeouts) just mean no
				// bytes this round.
				time.Sleep(5 * time.Millisecond)
				continue
			}
		}

		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				m.stats.RecordFrame(nil, decodeErr)
				continue
			}
			if frame == nil {
				continue
			}
			m.stats.RecordFrame(frame, nil)
			select {
			case m.frames <- frame:
			default:
				// Exchange loop is behind; stale responses are useless.
			}
		}
	}
}

// tickLoop runs the fixed-period exchange.
func (m *Manager) tickLoop() {
	defer close(m.stopped)
	ticker := time.NewTicker(m.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-m.tickDone:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick performs one setpoint exchange with bounded retries and updates the
// failure accounting.
func (m *Manager) tick() {
	sp := m.outboundSetpoints()
	if m.exchange(sp) {
		m.failedTicks.Store(0)
		m.commLost.Store(false)
		return
	}

	failed := m.failedTicks.Add(1)
	if int(failed) >= m.cfg.CommLossTicks && !m.commLost.Load() {
		// Mirror the node's fallback: from here on only safe-state
		// setpoints go out, so both ends converge on the same condition
		// even if only one of them noticed the loss.
		m.commLost.Store(true)
	}
}

// outboundSetpoints returns what this tick should send: the user's setpoints,
// or the safe state while the link is considered lost.
func (m *Manager) outboundSetpoints() corewire.Setpoints {
	if m.commLost.Load() {
		return m.cfg.Layout.NewSetpoints()
	}
	m.setpointMu.Lock()
	defer m.setpointMu.Unlock()
	return m.setpoints
}

// exchange sends one Update and waits for a telemetry Ack, retrying within
// the tick budget. It reports whether a valid Ack was processed.
func (m *Manager) exchange(sp corewire.Setpoints) bool {
	payload, err := m.cfg.Layout.MarshalSetpoints(sp)
	if err != nil {
		return false
	}
	request := corewire.MustEncode(corewire.CmdUpdate, payload)

	for attempt := 0; attempt < m.cfg.Retries; attempt++ {
		resp, err := m.transact(request)
		if err != nil {
			continue
		}
		if resp.IsNack() {
			// The node rejected the frame; the next attempt re-sends it.
			continue
		}
		telemetry, err := m.cfg.Layout.UnmarshalTelemetry(resp.Payload())
		if err != nil {
			continue
		}
		m.telemetry.Store(&Snapshot{Telemetry: telemetry, At: time.Now()})
		return true
	}
	return false
}

// transact writes one request and waits for the next decoded frame within
// the read timeout. Stale frames from earlier attempts are drained first.
func (m *Manager) transact(request []byte) (*corewire.Frame, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	for {
		select {
		case <-m.frames:
			continue
		default:
		}
		break
	}

	if _, err := m.conn.Write(request); err != nil {
		return nil, fmt.Errorf("session: write: %w", err)
	}

	// No done case here: the shutdown path still runs one final exchange,
	// and the read timeout bounds the wait either way.
	select {
	case frame := <-m.frames:
		return frame, nil
	case <-time.After(m.cfg.ReadTimeout):
		return nil, fmt.Errorf("session: no response within %s", m.cfg.ReadTimeout)
	}
}
