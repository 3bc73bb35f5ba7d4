// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package session

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thorium-works/manifold/pkg/corewire"
	"github.com/thorium-works/manifold/pkg/reactor"
)

// nodeHarness runs a real control node behind one end of an in-memory pipe
// so the manager talks to the genuine wire behavior, not a mock.
type nodeHarness struct {
	t    *testing.T
	conn net.Conn
	node *reactor.Node

	mu   sync.Mutex // guards node
	done chan struct{}

	mute     atomic.Bool  // swallow responses to simulate a dead link
	nackNext atomic.Int32 // answer the next N requests with a bare Nack
}

func startHarness(t *testing.T) (*nodeHarness, net.Conn) {
	t.Helper()
	node, err := reactor.NewNode(reactor.DefaultProfile())
	if err != nil {
		t.Fatal(err)
	}

	hostSide, nodeSide := net.Pipe()
	h := &nodeHarness{
		t:    t,
		conn: nodeSide,
		node: node,
		done: make(chan struct{}),
	}
	go h.serve()
	go h.run()
	t.Cleanup(h.stop)
	return h, hostSide
}

func (h *nodeHarness) stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	h.conn.Close()
}

// serve feeds incoming bytes to the node and writes its responses back.
func (h *nodeHarness) serve() {
	buf := make([]byte, 64)
	for {
		n, err := h.conn.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			h.mu.Lock()
			resp := h.node.Feed(buf[i], time.Now())
			h.mu.Unlock()
			if resp == nil {
				continue
			}
			if h.mute.Load() {
				continue
			}
			if h.nackNext.Load() > 0 {
				h.nackNext.Add(-1)
				resp = corewire.MustEncode(corewire.RespNack, nil)
			}
			if _, err := h.conn.Write(resp); err != nil {
				return
			}
		}
	}
}

// run advances the node's control loop in real time.
func (h *nodeHarness) run() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case now := <-ticker.C:
			h.mu.Lock()
			h.node.Tick(now)
			h.mu.Unlock()
		}
	}
}

func (h *nodeHarness) withNode(fn func(*reactor.Node)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.node)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManager_PingAndTelemetry(t *testing.T) {
	_, hostSide := startHarness(t)
	m := New(hostSide, Config{Period: 10 * time.Millisecond})
	m.Start()
	defer m.Close()

	if err := m.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if _, ok := m.Telemetry(); ok {
		// The first snapshot may legitimately already be in; just make sure
		// the no-data path also works on a fresh manager.
		t.Log("telemetry arrived before the explicit wait")
	}
	waitFor(t, 2*time.Second, func() bool {
		_, ok := m.Telemetry()
		return ok
	}, "no telemetry snapshot arrived")

	snap, _ := m.Telemetry()
	if len(snap.ActuatorActuals) != corewire.DefaultLayout.Actuators {
		t.Errorf("snapshot has %d actuators", len(snap.ActuatorActuals))
	}
	if snap.At.IsZero() {
		t.Error("snapshot missing a timestamp")
	}
	if m.CommLost() {
		t.Error("comm-loss flag set on a healthy link")
	}
}

func TestManager_SetpointsReachNode(t *testing.T) {
	h, hostSide := startHarness(t)
	m := New(hostSide, Config{Period: 10 * time.Millisecond})
	m.Start()
	defer m.Close()

	sp := corewire.Setpoints{
		ActuatorTargets: []uint8{40, 40, 40},
		PumpCommands:    []corewire.PumpCommand{corewire.PumpOn, corewire.PumpOn, corewire.PumpOn},
		RelayCommands:   []bool{true, false, false, false},
	}
	if err := m.SetSetpoints(sp); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		snap, ok := m.Telemetry()
		return ok && snap.ActuatorActuals[0] == 40 && snap.PumpSpeeds[0] == 100
	}, "node never converged on the commanded setpoints")

	var target float64
	h.withNode(func(n *reactor.Node) { target = n.Channels()[1].Target })
	if target != 40 {
		t.Errorf("node target %.1f, want 40", target)
	}

	// A structurally invalid request must be rejected before it is stored.
	bad := sp
	bad.ActuatorTargets = []uint8{1}
	if err := m.SetSetpoints(bad); err == nil {
		t.Error("mismatched setpoint shape accepted")
	}
}

func TestManager_RetriesThroughNack(t *testing.T) {
	h, hostSide := startHarness(t)
	m := New(hostSide, Config{Period: 20 * time.Millisecond, Retries: 3})
	m.Start()
	defer m.Close()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := m.Telemetry()
		return ok
	}, "no telemetry before fault injection")

	// Two rejections fit inside the three-attempt budget, so no tick fails.
	h.nackNext.Store(2)
	before, _ := m.Telemetry()
	waitFor(t, 2*time.Second, func() bool {
		snap, ok := m.Telemetry()
		return ok && snap.At.After(before.At)
	}, "exchange did not recover within the retry budget")

	if got := m.FailedTicks(); got != 0 {
		t.Errorf("failed tick count %d after recovered tick", got)
	}
	if m.Stats().Nacks == 0 {
		t.Error("nack counter did not move")
	}
}

func TestManager_CommLossFallback(t *testing.T) {
	h, hostSide := startHarness(t)
	m := New(hostSide, Config{
		Period:        5 * time.Millisecond,
		ReadTimeout:   15 * time.Millisecond,
		Retries:       2,
		CommLossTicks: 3,
	})
	m.Start()
	defer m.Close()

	sp := corewire.Setpoints{
		ActuatorTargets: []uint8{80, 80, 80},
		PumpCommands:    []corewire.PumpCommand{corewire.PumpOn, corewire.PumpOn, corewire.PumpOn},
		RelayCommands:   []bool{true, true, true, true},
	}
	if err := m.SetSetpoints(sp); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool {
		_, ok := m.Telemetry()
		return ok
	}, "link never came up")

	// Responses stop arriving; requests still reach the node.
	h.mute.Store(true)
	waitFor(t, 3*time.Second, m.CommLost, "comm-loss fallback never engaged")
	if m.FailedTicks() < 3 {
		t.Errorf("failed tick count %d below the fallback threshold", m.FailedTicks())
	}

	// While lost, the manager sends the safe state, so the node's targets
	// drop to zero even though its own timeout has not expired yet.
	waitFor(t, 2*time.Second, func() bool {
		var target float64
		h.withNode(func(n *reactor.Node) { target = n.Channels()[0].Target })
		return target == 0
	}, "safe-state setpoints never reached the node")

	// Recovery clears the flag and restores the user setpoints.
	h.mute.Store(false)
	waitFor(t, 2*time.Second, func() bool { return !m.CommLost() }, "fallback not cleared after recovery")
	waitFor(t, 2*time.Second, func() bool {
		var target float64
		h.withNode(func(n *reactor.Node) { target = n.Channels()[0].Target })
		return target == 80
	}, "user setpoints not restored after recovery")
	if m.FailedTicks() != 0 {
		t.Errorf("failed tick count %d after recovery", m.FailedTicks())
	}
}

func TestManager_CloseParksNode(t *testing.T) {
	h, hostSide := startHarness(t)
	m := New(hostSide, Config{Period: 10 * time.Millisecond})
	m.Start()

	sp := corewire.Setpoints{
		ActuatorTargets: []uint8{60, 60, 60},
		PumpCommands:    []corewire.PumpCommand{corewire.PumpOn, corewire.PumpOn, corewire.PumpOn},
		RelayCommands:   []bool{true, true, true, true},
	}
	if err := m.SetSetpoints(sp); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool {
		var target float64
		h.withNode(func(n *reactor.Node) { target = n.Channels()[0].Target })
		return target == 60
	}, "setpoints never reached the node")

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The parting safe-state update zeroes the node's targets immediately.
	var target float64
	h.withNode(func(n *reactor.Node) { target = n.Channels()[0].Target })
	if target != 0 {
		t.Errorf("node target %.1f after close, want 0", target)
	}
}
