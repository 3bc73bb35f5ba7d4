// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package reactor

import (
	"fmt"
	"time"

	"github.com/thorium-works/manifold/pkg/corewire"
)

// Node is one embedded control node: it owns every actuator channel, pump,
// relay bit and the process state machine, and it services the Corewire
// request/response exchange. All methods are meant to be called from a
// single cooperative loop; the node holds no locks.
type Node struct {
	profile  Profile
	channels []*Channel
	pumps    []*Pump
	relays   []bool
	process  *Process
	turbine  Channel

	decoder *corewire.Decoder
	stats   *corewire.Statistics

	lastRequest time.Time
	safeState   bool
}

// NewNode creates a node from a validated profile.
func NewNode(p Profile) (*Node, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		profile: p,
		relays:  make([]bool, p.Layout.Relays),
		process: NewProcess(p),
		turbine: Channel{
			Name:      "turbine",
			RaiseRate: p.TurbineRiseRate,
			LowerRate: p.TurbineFallRate,
		},
		decoder: corewire.NewDecoder(),
		stats:   corewire.NewStatistics(),
	}
	for i := 0; i < p.Layout.Actuators; i++ {
		n.channels = append(n.channels, &Channel{
			Name:      p.ChannelNames[i],
			RaiseRate: p.RaiseRate,
			LowerRate: p.LowerRate,
		})
	}
	for i := 0; i < p.Layout.Pumps; i++ {
		n.pumps = append(n.pumps, &Pump{
			Name:     fmt.Sprintf("pump-%d", i+1),
			SlewRate: p.PumpSlewRate,
		})
	}
	return n, nil
}

// Profile returns the node's profile.
func (n *Node) Profile() Profile { return n.profile }

// Stats returns the node's link statistics tracker.
func (n *Node) Stats() *corewire.Statistics { return n.stats }

// Process returns the node's process state machine.
func (n *Node) Process() *Process { return n.process }

// InSafeState reports whether the comm-loss fallback is active.
func (n *Node) InSafeState() bool { return n.safeState }

// Channels returns the node's actuator channels.
func (n *Node) Channels() []*Channel { return n.channels }

// Capacity returns the weighted aggregate of actuator positions, 0-100.
func (n *Node) Capacity() float64 {
	capacity := 0.0
	for i, c := range n.channels {
		capacity += c.Current * n.profile.CapacityWeights[i]
	}
	return capacity
}

// Feed runs one received byte through the receiver state machine and returns
// the wire bytes of any response that must be written back, or nil. Framing
// failures answer with a Nack; stray bytes between frames stay silent.
func (n *Node) Feed(b byte, now time.Time) []byte {
	frame, err := n.decoder.DecodeByteAt(b, now)
	if err != nil {
		n.stats.RecordFrame(nil, err)
		return corewire.MustEncode(corewire.RespNack, nil)
	}
	if frame == nil {
		return nil
	}
	n.stats.RecordFrame(frame, nil)

	resp := n.HandleFrame(frame, now)
	data, err := corewire.EncodeFrame(resp)
	if err != nil {
		// A response we built ourselves cannot exceed the payload limit
		// unless the profile validation is broken.
		panic(fmt.Sprintf("reactor: response encode failed: %v", err))
	}
	return data
}

// HandleFrame dispatches one decoded request and builds the response frame.
// Dispatch is synchronous and completes within the control cycle budget; it
// mutates targets only, never positions.
func (n *Node) HandleFrame(f *corewire.Frame, now time.Time) *corewire.Frame {
	switch f.Command() {
	case corewire.CmdPing:
		if len(f.Payload()) != 0 {
			return corewire.NewFrame(corewire.RespNack, nil)
		}
		n.noteRequest(now)
		return corewire.NewFrame(corewire.RespAck, nil)

	case corewire.CmdUpdate:
		sp, err := n.profile.Layout.UnmarshalSetpoints(f.Payload())
		if err != nil {
			return corewire.NewFrame(corewire.RespNack, nil)
		}
		n.applySetpoints(sp)
		n.noteRequest(now)
		n.safeState = false

		payload, err := n.profile.Layout.MarshalTelemetry(n.Telemetry())
		if err != nil {
			return corewire.NewFrame(corewire.RespNack, nil)
		}
		return corewire.NewFrame(corewire.RespAck, payload)

	default:
		return corewire.NewFrame(corewire.RespNack, nil)
	}
}

// applySetpoints forwards a validated request to the ramp controller and
// relay outputs.
func (n *Node) applySetpoints(sp corewire.Setpoints) {
	for i, target := range sp.ActuatorTargets {
		n.channels[i].SetTarget(float64(target))
	}
	for i, cmd := range sp.PumpCommands {
		n.pumps[i].SetCommand(cmd)
	}
	copy(n.relays, sp.RelayCommands)
}

func (n *Node) noteRequest(now time.Time) {
	n.lastRequest = now
}

// Tick advances the node one control cycle: comm-loss supervision, actuator
// ramps, pump slew, turbine slew and the process state machine, in that
// order.
func (n *Node) Tick(now time.Time) {
	if n.lastRequest.IsZero() {
		n.lastRequest = now
	}
	if n.decoder.CheckTimeout(now) {
		n.stats.RecordTimeout()
	}

	// Host gone quiet: drive everything toward the safe state. Positions
	// still ramp down at the bounded rate, they do not jump.
	if !n.safeState && now.Sub(n.lastRequest) > n.profile.CommTimeout() {
		n.applySetpoints(n.profile.Layout.NewSetpoints())
		n.safeState = true
	}

	for _, c := range n.channels {
		c.Step()
	}
	for _, p := range n.pumps {
		p.Step()
	}
	n.process.Step(n.Capacity())
	n.turbine.SetTarget(n.process.Level())
	n.turbine.Step()
}

// Telemetry builds the current telemetry snapshot. It is recomputed on every
// request; there is no cached copy to go stale.
func (n *Node) Telemetry() corewire.Telemetry {
	t := corewire.Telemetry{
		ActuatorActuals: make([]uint8, len(n.channels)),
		ThermalKW:       float32(n.process.ThermalKW()),
		Level:           n.process.Level(),
		State:           uint8(n.process.State()),
		TurbineSpeed:    n.turbine.Current,
		PumpSpeeds:      make([]float64, len(n.pumps)),
		RelayStatus:     make([]bool, len(n.relays)),
	}
	for i, c := range n.channels {
		t.ActuatorActuals[i] = uint8(c.Current + 0.5)
	}
	for i, p := range n.pumps {
		t.PumpSpeeds[i] = p.Speed
	}
	copy(t.RelayStatus, n.relays)
	// The condenser relay is owned by the process whenever duty is active;
	// the host's command for it only matters while duty is off.
	if n.process.CondenserDuty() {
		t.RelayStatus[n.profile.CondenserRelay] = true
	}
	return t
}
