// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package reactor

import "github.com/thorium-works/manifold/pkg/corewire"

// Pump is one coolant pump. The host commands a lifecycle stage; the pump
// slews its speed toward the stage's implied setpoint and reports the stage
// it is actually in, which trails the command while the speed is in motion.
type Pump struct {
	Name     string
	Command  corewire.PumpCommand
	Speed    float64 // percent
	SlewRate float64 // percent per cycle
}

// SetCommand applies a host pump command.
func (p *Pump) SetCommand(cmd corewire.PumpCommand) {
	p.Command = cmd
}

// target returns the speed the current command drives toward.
func (p *Pump) target() float64 {
	switch p.Command {
	case corewire.PumpStarting, corewire.PumpOn:
		return 100
	default:
		return 0
	}
}

// Step advances the pump one control cycle.
func (p *Pump) Step() {
	target := p.target()
	switch {
	case p.Speed < target:
		delta := target - p.Speed
		if delta > p.SlewRate {
			delta = p.SlewRate
		}
		p.Speed += delta
	case p.Speed > target:
		delta := p.Speed - target
		if delta > p.SlewRate {
			delta = p.SlewRate
		}
		p.Speed -= delta
	}
	p.Speed = clampPercent(p.Speed)
}

// Status reports the pump's actual lifecycle stage, derived from its speed
// relative to the commanded setpoint.
func (p *Pump) Status() corewire.PumpCommand {
	target := p.target()
	switch {
	case p.Speed == target && target == 0:
		return corewire.PumpOff
	case p.Speed == target:
		return corewire.PumpOn
	case p.Speed < target:
		return corewire.PumpStarting
	default:
		return corewire.PumpShuttingDown
	}
}
