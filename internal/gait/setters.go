package gait

import (
	"log"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/kinematics"
	"github.com/relabs-tech/quadruped_computer/internal/trajectory"
)

// SetParams applies a partial parameter update. Changes take effect on the
// next tick without interrupting a run.
func (e *Engine) SetParams(patch ParamsPatch) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if patch.CycleTime != nil && *patch.CycleTime > 0 {
		e.params.CycleTime = *patch.CycleTime
	}
	if patch.StepHeight != nil {
		e.params.StepHeight = *patch.StepHeight
	}
	if patch.StepLength != nil {
		e.params.StepLength = *patch.StepLength
	}
	if patch.Speed != nil && *patch.Speed > 0 {
		e.params.Speed = *patch.Speed
	}
	if patch.RearLiftBoost != nil {
		e.params.RearLiftBoost = *patch.RearLiftBoost
	}
	if patch.IKStepHeight != nil && *patch.IKStepHeight > 0 {
		e.params.IKStepHeight = *patch.IKStepHeight
	}
	if patch.IKStrideLength != nil && *patch.IKStrideLength > 0 {
		e.params.IKStrideLength = *patch.IKStrideLength
	}

	if e.traj != nil && (patch.IKStepHeight != nil || patch.IKStrideLength != nil) {
		// Replaced wholesale, never mutated: the tick loop may still hold
		// the previous generator.
		e.traj = trajectory.New(trajectory.Config{
			StepHeight:   e.params.IKStepHeight,
			StrideLength: e.params.IKStrideLength,
		})
	}
}

// GetParams returns a copy of the current parameters.
func (e *Engine) GetParams() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// SetTurnRate sets the steering differential, clamped to [-1, 1].
// Negative turns left (left legs take shorter steps), positive right.
func (e *Engine) SetTurnRate(rate float64) {
	rate = clampRate(rate)
	e.mu.Lock()
	e.turnRate = rate
	e.mu.Unlock()
}

// TurnRate returns the current steering differential.
func (e *Engine) TurnRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turnRate
}

// SetLateralRate sets the side-stepping rate, clamped to [-1, 1].
func (e *Engine) SetLateralRate(rate float64) {
	rate = clampRate(rate)
	e.mu.Lock()
	e.lateralRate = rate
	e.mu.Unlock()
}

// LateralRate returns the current side-stepping rate.
func (e *Engine) LateralRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lateralRate
}

// SetStandHeight adjusts the standing knee bend (clamped to [0, 80]) and
// rebuilds all four stand poses. 0 is legs straight down; larger values
// lower the body. The running gait picks the new baseline up on its next
// tick.
func (e *Engine) SetStandHeight(kneeBend int) map[body.Leg]kinematics.LegAngles {
	if kneeBend < 0 {
		kneeBend = 0
	}
	if kneeBend > maxKneeBend {
		kneeBend = maxKneeBend
	}

	e.mu.Lock()
	e.kneeBend = kneeBend
	e.stand = standAnglesFor(kneeBend, e.rearAnkleComp)
	stand := e.stand
	e.mu.Unlock()

	log.Printf("stand height set: knee_bend=%d° knee=%.0f° ankle=%.0f°",
		kneeBend, stand[body.FrontLeft].Knee, stand[body.FrontLeft].Ankle)
	return copyStand(stand)
}

// GetStandAngles returns a copy of the current stand pose.
func (e *Engine) GetStandAngles() map[body.Leg]kinematics.LegAngles {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyStand(e.stand)
}

// KneeBend returns the current standing knee bend.
func (e *Engine) KneeBend() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kneeBend
}

// SetMode switches between angle-based and IK-based leg generation. The
// solver is constructed lazily on the first switch into IK mode; if that
// fails the engine stays in angle mode and reports the error.
func (e *Engine) SetMode(useIK bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !useIK {
		if e.useIK {
			log.Printf("gait mode: angle-based")
		}
		e.useIK = false
		return nil
	}
	if e.useIK {
		return nil
	}

	if e.solver == nil {
		if e.solverFactory == nil {
			return ErrIKUnavailable
		}
		sol, err := e.solverFactory()
		if err != nil {
			log.Printf("IK solver init failed, staying in angle mode: %v", err)
			return err
		}
		e.solver = sol
	}
	if e.traj == nil {
		e.traj = trajectory.New(trajectory.Config{
			StepHeight:   e.params.IKStepHeight,
			StrideLength: e.params.IKStrideLength,
		})
	}
	e.useIK = true
	log.Printf("gait mode: IK")
	return nil
}

// UseIK reports whether IK-based generation is active.
func (e *Engine) UseIK() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.useIK
}

// EnableBalance turns the per-leg tilt correction on or off. With
// calibrateFirst the balance controller re-zeroes before enabling; that
// blocks for several hundred milliseconds and must come from a request
// context, not the tick loop.
func (e *Engine) EnableBalance(enable, calibrateFirst bool) error {
	if e.balance == nil {
		return ErrBalanceUnavailable
	}
	if enable && calibrateFirst {
		e.balance.Calibrate(30)
	}
	e.mu.Lock()
	e.useBalance = enable
	e.mu.Unlock()
	log.Printf("balance correction: %v", enable)
	return nil
}

// BalanceEnabled reports whether tilt correction is applied.
func (e *Engine) BalanceEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.useBalance
}

// SetBalanceKp forwards the proportional gain to the balance controller.
func (e *Engine) SetBalanceKp(kp float64) error {
	if e.balance == nil {
		return ErrBalanceUnavailable
	}
	e.balance.SetKp(kp)
	return nil
}

func clampRate(rate float64) float64 {
	if rate < -1 {
		return -1
	}
	if rate > 1 {
		return 1
	}
	return rate
}

func copyStand(stand map[body.Leg]kinematics.LegAngles) map[body.Leg]kinematics.LegAngles {
	out := make(map[body.Leg]kinematics.LegAngles, len(stand))
	for leg, angles := range stand {
		out[leg] = angles
	}
	return out
}
