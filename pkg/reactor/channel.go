// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Thorium Works

package reactor

// Channel is one rate-limited actuator channel. Current converges toward
// Target at a bounded slew per control cycle and never leaves [0, 100].
type Channel struct {
	Name      string
	Current   float64
	Target    float64
	RaiseRate float64 // max increase per cycle
	LowerRate float64 // max decrease per cycle, may exceed RaiseRate
}

// SetTarget sets the channel's target position, clamped to [0, 100].
func (c *Channel) SetTarget(pct float64) {
	c.Target = clampPercent(pct)
}

// Step advances the channel one control cycle toward its target. The move is
// bounded by the slew rates so the position never steps discontinuously and
// never overshoots.
func (c *Channel) Step() {
	switch {
	case c.Current < c.Target:
		delta := c.Target - c.Current
		if delta > c.RaiseRate {
			delta = c.RaiseRate
		}
		c.Current += delta
	case c.Current > c.Target:
		delta := c.Current - c.Target
		if delta > c.LowerRate {
			delta = c.LowerRate
		}
		c.Current -= delta
	}
	c.Current = clampPercent(c.Current)
}

// AtTarget reports whether the channel has converged.
func (c *Channel) AtTarget() bool {
	return c.Current == c.Target
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
