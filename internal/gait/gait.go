// Package gait drives the quadruped through a two-phase diagonal trot.
// Diagonal pair A (FL+RR) swings while pair B (FR+RL) stands, then the
// pairs swap halfway through the cycle. All joint targets are logical
// angles relative to the stand pose; the servo-write port applies
// calibration on the way out.
package gait

import (
	"errors"
	"math"
	"time"
)

// Direction of travel for the trot.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// Command failures at the control surface.
var (
	ErrAlreadyRunning     = errors.New("gait already running")
	ErrNotRunning         = errors.New("gait not running")
	ErrBadDirection       = errors.New("direction must be forward or backward")
	ErrBalanceUnavailable = errors.New("balance controller not available")
	ErrIKUnavailable      = errors.New("IK solver not available")
)

const (
	// tickInterval is the servo update period while running (50 Hz).
	tickInterval = 20 * time.Millisecond

	// singleStepInterval is the slower update period used by the
	// discrete single-step bench mode.
	singleStepInterval = 30 * time.Millisecond

	// standSettleDelay is how long the robot rests in the stand pose
	// before the first tick.
	standSettleDelay = 300 * time.Millisecond

	// stopJoinTimeout bounds the wait for the tick loop to exit.
	stopJoinTimeout = 2 * time.Second
)

// Joint movement ratios during swing/stance.
const (
	kneeForwardRatio  = 0.7  // knee contribution to forward motion
	ankleForwardRatio = 0.3  // ankle compensation of forward motion
	ankleLiftRatio    = 0.8  // ankle compensation of leg lift
	lateralStepAngle  = 15.0 // hip degrees at full lateral rate

	// ankleCompensation keeps the foot under the knee: the ankle leads
	// the knee bend by this factor in the stand pose.
	ankleCompensation = 1.3

	maxKneeBend = 80
)

// Params are the tunable gait parameters. A change takes effect on the
// next tick without interrupting a run.
type Params struct {
	CycleTime      float64 `json:"cycle_time"`       // seconds per full trot cycle
	StepHeight     int     `json:"step_height"`      // degrees of swing lift
	StepLength     int     `json:"step_length"`      // degrees of forward sweep
	Speed          float64 `json:"speed"`            // divides the effective cycle time
	RearLiftBoost  int     `json:"rear_lift_boost"`  // extra swing lift for rear legs
	IKStepHeight   float64 `json:"ik_step_height"`   // meters, IK mode
	IKStrideLength float64 `json:"ik_stride_length"` // meters, IK mode
}

// DefaultParams returns the shipped tuning for the given knee bend: step
// amplitude scales with how far the body is lowered.
func DefaultParams(kneeBend int) Params {
	return Params{
		CycleTime:      1.0,
		StepHeight:     int(float64(kneeBend) * 0.9),
		StepLength:     int(float64(kneeBend) * 0.5),
		Speed:          1.0,
		RearLiftBoost:  0,
		IKStepHeight:   0.03,
		IKStrideLength: 0.04,
	}
}

// ParamsPatch is a partial update of Params; nil fields are left unchanged.
type ParamsPatch struct {
	CycleTime      *float64 `json:"cycle_time,omitempty"`
	StepHeight     *int     `json:"step_height,omitempty"`
	StepLength     *int     `json:"step_length,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	RearLiftBoost  *int     `json:"rear_lift_boost,omitempty"`
	IKStepHeight   *float64 `json:"ik_step_height,omitempty"`
	IKStrideLength *float64 `json:"ik_stride_length,omitempty"`
}

// smoothPhase converts linear time to a cosine-eased phase: slow at both
// ends, fast in the middle, so each swing starts and ends at zero velocity.
func smoothPhase(t float64) float64 {
	return (1 - math.Cos(t*math.Pi)) / 2
}
