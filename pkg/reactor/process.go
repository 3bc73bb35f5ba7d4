// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package reactor

import "fmt"

// State is the process operating state reported in telemetry.
type State uint8

// Process states
const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}

// Process derives the aggregate plant quantities from actuator capacity and
// walks the operating state machine. Transitions are a pure function of
// (state, capacity): every pair has exactly one next state, and the gap
// between the start and stop thresholds keeps the machine from oscillating
// when capacity hovers at a boundary.
type Process struct {
	startThreshold float64
	stopThreshold  float64
	levelRiseRate  float64
	levelFallRate  float64
	ratedThermalKW float64
	condenserOnKW  float64
	condenserOffKW float64

	state         State
	level         float64 // 0-100
	thermalKW     float64
	condenserDuty bool
}

// NewProcess creates a process state machine in Idle with zero level.
func NewProcess(p Profile) *Process {
	return &Process{
		startThreshold: p.StartThreshold,
		stopThreshold:  p.StopThreshold,
		levelRiseRate:  p.LevelRiseRate,
		levelFallRate:  p.LevelFallRate,
		ratedThermalKW: p.RatedThermalKW,
		condenserOnKW:  p.CondenserOnKW,
		condenserOffKW: p.CondenserOffKW,
	}
}

// State returns the current operating state.
func (p *Process) State() State { return p.state }

// Level returns the continuous process level, percent.
func (p *Process) Level() float64 { return p.level }

// ThermalKW returns the derived thermal output of the last cycle.
func (p *Process) ThermalKW() float64 { return p.thermalKW }

// CondenserDuty reports the hysteresis-driven condenser output.
func (p *Process) CondenserDuty() bool { return p.condenserDuty }

// Step advances the state machine one control cycle with the given aggregate
// capacity (the weighted actuator position figure, 0-100).
func (p *Process) Step(capacity float64) {
	switch p.state {
	case StateIdle:
		if capacity > p.startThreshold {
			p.state = StateStarting
		}

	case StateStarting:
		if capacity < p.stopThreshold {
			p.state = StateShuttingDown
			break
		}
		p.level += p.levelRiseRate
		if p.level >= 100 {
			p.level = 100
			p.state = StateRunning
		}

	case StateRunning:
		if capacity < p.stopThreshold {
			p.state = StateShuttingDown
		}

	case StateShuttingDown:
		// Drains to zero regardless of capacity; a restart goes back
		// through Idle so the startup sequence always runs complete.
		p.level -= p.levelFallRate
		if p.level <= 0 {
			p.level = 0
			p.state = StateIdle
		}
	}

	p.thermalKW = capacity / 100 * p.level / 100 * p.ratedThermalKW

	// Condenser duty switches on its own hysteresis band so it cannot
	// chatter while thermal output hovers near a single threshold.
	if p.thermalKW >= p.condenserOnKW {
		p.condenserDuty = true
	} else if p.thermalKW < p.condenserOffKW {
		p.condenserDuty = false
	}
}
