// Package trajectory generates parametric foot-space paths for the IK gait
// mode. The generator is leg-agnostic: callers supply the neutral foot
// position for whichever leg they are computing.
package trajectory

import "math"

// Config sets the amplitude of the foot paths, in meters.
type Config struct {
	StepHeight   float64 // how high to lift the foot during swing
	StrideLength float64 // forward/back travel per step
}

// DefaultConfig returns the shipped amplitudes.
func DefaultConfig() Config {
	return Config{StepHeight: 0.03, StrideLength: 0.04}
}

// FootTrajectory produces foot positions for the swing and stance phases.
// Coordinates: x forward, y height from body (up positive), z lateral.
type FootTrajectory struct {
	Config Config
}

// New creates a trajectory generator.
func New(cfg Config) *FootTrajectory {
	return &FootTrajectory{Config: cfg}
}

// SwingPosition returns the foot position at the given swing phase in [0,1].
// The lift is sinusoidal (zero at both ends, peaking mid-swing) and the
// forward sweep runs monotonically from half a stride behind neutral to
// half a stride ahead.
func (t *FootTrajectory) SwingPosition(phase, neutralX, neutralY, neutralZ float64) (x, y, z float64) {
	lift := t.Config.StepHeight * math.Sin(phase*math.Pi)
	forward := t.Config.StrideLength * (phase - 0.5)
	return neutralX + forward, neutralY + lift, neutralZ
}

// StancePosition returns the foot position at the given stance phase in
// [0,1]. The planted foot sweeps front to back, pushing the body forward;
// there is no vertical component.
func (t *FootTrajectory) StancePosition(phase, neutralX, neutralY, neutralZ float64) (x, y, z float64) {
	backward := t.Config.StrideLength * (0.5 - phase)
	return neutralX + backward, neutralY, neutralZ
}
