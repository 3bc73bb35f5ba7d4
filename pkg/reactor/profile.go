// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

// Package reactor implements the control logic of a plant trainer node: the
// actuator ramp controller, the coolant pumps, the process state machine and
// the command dispatcher that ties them to the Corewire protocol.
//
// A Node owns all of its state and runs on a single cooperative loop; nothing
// in this package takes a lock.
package reactor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thorium-works/manifold/pkg/corewire"
)

// Profile is the schema and tuning of one node variant. Every rate is
// expressed per control cycle so the behavior is deterministic in cycles
// regardless of wall-clock jitter.
type Profile struct {
	Name   string          `yaml:"name"`
	Layout corewire.Layout `yaml:"layout"`

	// ChannelNames labels the actuator channels, in wire order.
	ChannelNames []string `yaml:"channel_names"`

	// Actuator slew limits, percent per cycle. LowerRate may exceed
	// RaiseRate: driving actuators out fast is a safety property.
	RaiseRate float64 `yaml:"raise_rate"`
	LowerRate float64 `yaml:"lower_rate"`

	// PumpSlewRate bounds pump speed change, percent per cycle.
	PumpSlewRate float64 `yaml:"pump_slew_rate"`

	// CapacityWeights weight each actuator channel's position in the
	// aggregate capacity figure. Must sum to 1.
	CapacityWeights []float64 `yaml:"capacity_weights"`

	// Process state machine thresholds on capacity. StopThreshold must sit
	// strictly below StartThreshold; the gap is the hysteresis band that
	// keeps the machine from oscillating at the boundary.
	StartThreshold float64 `yaml:"start_threshold"`
	StopThreshold  float64 `yaml:"stop_threshold"`

	// Process level ramp, percent per cycle. The fall rate is deliberately
	// steeper than the rise rate.
	LevelRiseRate float64 `yaml:"level_rise_rate"`
	LevelFallRate float64 `yaml:"level_fall_rate"`

	// Turbine speed slew toward the process level, percent per cycle.
	TurbineRiseRate float64 `yaml:"turbine_rise_rate"`
	TurbineFallRate float64 `yaml:"turbine_fall_rate"`

	// RatedThermalKW scales the derived thermal output.
	RatedThermalKW float64 `yaml:"rated_thermal_kw"`

	// Condenser duty hysteresis band on thermal output, kW. The off
	// threshold sits strictly below the on threshold. The node forces the
	// CondenserRelay output on while duty is active, independent of what
	// the host commands for it.
	CondenserOnKW  float64 `yaml:"condenser_on_kw"`
	CondenserOffKW float64 `yaml:"condenser_off_kw"`
	CondenserRelay int     `yaml:"condenser_relay"`

	// CommTimeoutMs is how long the node tolerates silence before forcing
	// the safe state. TickMs is the control cycle period.
	CommTimeoutMs int `yaml:"comm_timeout_ms"`
	TickMs        int `yaml:"tick_ms"`
}

// DefaultProfile returns the deployed three-rod node: safety, shim and
// regulating rods, three coolant pumps, four cooling-tower relays.
func DefaultProfile() Profile {
	return Profile{
		Name:            "trainer-bc",
		Layout:          corewire.DefaultLayout,
		ChannelNames:    []string{"safety", "shim", "regulating"},
		RaiseRate:       0.5,
		LowerRate:       1.5,
		PumpSlewRate:    2.0,
		CapacityWeights: []float64{0.25, 0.35, 0.40},
		StartThreshold:  30,
		StopThreshold:   20,
		LevelRiseRate:   2.0,
		LevelFallRate:   4.0,
		TurbineRiseRate: 1.5,
		TurbineFallRate: 3.0,
		RatedThermalKW:  250000,
		CondenserOnKW:   150000,
		CondenserOffKW:  125000,
		CondenserRelay:  1,
		CommTimeoutMs:   3000,
		TickMs:          50,
	}
}

// CommTimeout returns the comm-loss window as a duration.
func (p Profile) CommTimeout() time.Duration {
	return time.Duration(p.CommTimeoutMs) * time.Millisecond
}

// TickPeriod returns the control cycle period as a duration.
func (p Profile) TickPeriod() time.Duration {
	return time.Duration(p.TickMs) * time.Millisecond
}

// LoadProfile reads and validates a node profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks profile correctness. It performs declarative validation
// only and MUST NOT mutate the profile.
func (p Profile) Validate() error {
	if p.Layout.Actuators < 1 {
		return fmt.Errorf("profile %q: at least one actuator channel required", p.Name)
	}
	if p.Layout.Pumps < 0 || p.Layout.Relays < 0 {
		return fmt.Errorf("profile %q: negative channel count", p.Name)
	}
	if p.Layout.ResponseSize() > corewire.MaxPayloadSize {
		return fmt.Errorf(
			"profile %q: telemetry payload %d bytes exceeds protocol maximum %d",
			p.Name, p.Layout.ResponseSize(), corewire.MaxPayloadSize,
		)
	}
	if p.Layout.RequestSize() > corewire.MaxPayloadSize {
		return fmt.Errorf(
			"profile %q: setpoint payload %d bytes exceeds protocol maximum %d",
			p.Name, p.Layout.RequestSize(), corewire.MaxPayloadSize,
		)
	}
	if len(p.ChannelNames) != p.Layout.Actuators {
		return fmt.Errorf(
			"profile %q: %d channel names for %d actuators",
			p.Name, len(p.ChannelNames), p.Layout.Actuators,
		)
	}
	if len(p.CapacityWeights) != p.Layout.Actuators {
		return fmt.Errorf(
			"profile %q: %d capacity weights for %d actuators",
			p.Name, len(p.CapacityWeights), p.Layout.Actuators,
		)
	}
	sum := 0.0
	for i, w := range p.CapacityWeights {
		if w < 0 {
			return fmt.Errorf("profile %q: capacity weight %d is negative", p.Name, i)
		}
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("profile %q: capacity weights sum to %.3f, want 1", p.Name, sum)
	}
	if p.RaiseRate <= 0 || p.LowerRate <= 0 {
		return fmt.Errorf("profile %q: actuator rates must be positive", p.Name)
	}
	if p.LowerRate < p.RaiseRate {
		return fmt.Errorf(
			"profile %q: lower_rate %.2f below raise_rate %.2f (shutdown must not be slower than startup)",
			p.Name, p.LowerRate, p.RaiseRate,
		)
	}
	if p.PumpSlewRate <= 0 {
		return fmt.Errorf("profile %q: pump_slew_rate must be positive", p.Name)
	}
	if p.StopThreshold >= p.StartThreshold {
		return fmt.Errorf(
			"profile %q: stop_threshold %.1f must sit strictly below start_threshold %.1f",
			p.Name, p.StopThreshold, p.StartThreshold,
		)
	}
	if p.LevelRiseRate <= 0 || p.LevelFallRate <= 0 {
		return fmt.Errorf("profile %q: level rates must be positive", p.Name)
	}
	if p.TurbineRiseRate <= 0 || p.TurbineFallRate <= 0 {
		return fmt.Errorf("profile %q: turbine rates must be positive", p.Name)
	}
	if p.RatedThermalKW <= 0 {
		return fmt.Errorf("profile %q: rated_thermal_kw must be positive", p.Name)
	}
	if p.CondenserOffKW >= p.CondenserOnKW {
		return fmt.Errorf(
			"profile %q: condenser_off_kw %.0f must sit strictly below condenser_on_kw %.0f",
			p.Name, p.CondenserOffKW, p.CondenserOnKW,
		)
	}
	if p.CondenserRelay < 0 || p.CondenserRelay >= p.Layout.Relays {
		return fmt.Errorf(
			"profile %q: condenser_relay %d out of range for %d relays",
			p.Name, p.CondenserRelay, p.Layout.Relays,
		)
	}
	if p.CommTimeoutMs <= 0 || p.TickMs <= 0 {
		return fmt.Errorf("profile %q: comm_timeout_ms and tick_ms must be positive", p.Name)
	}
	return nil
}
