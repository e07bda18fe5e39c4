package gait

import (
	"math"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/kinematics"
)

// tickState is an immutable snapshot of everything one tick needs. The
// tick loop takes it once per tick under the engine lock, so a concurrent
// setter can never tear a half-applied update.
type tickState struct {
	params      Params
	direction   Direction
	turnRate    float64
	lateralRate float64
	useBalance  bool
	stand       map[body.Leg]kinematics.LegAngles
	interp      float64
}

// dirMult reverses the forward sweep for backward walking.
func (st *tickState) dirMult() float64 {
	if st.direction == Backward {
		return -1
	}
	return 1
}

// strideMult applies the turn differential: turning shortens the stride on
// the inside legs and lengthens it on the outside ones.
func (st *tickState) strideMult(leg body.Leg) float64 {
	if leg.IsLeft() {
		return 1.0 - st.turnRate*0.5
	}
	return 1.0 + st.turnRate*0.5
}

// swingAngles computes a leg's joint targets during the swing phase (leg
// in the air, moving toward the next foothold). phase runs 0..1: leg back,
// lifted at 0.5, leg forward at 1. All values are logical angles.
func swingAngles(st *tickState, phase float64, leg body.Leg) kinematics.LegAngles {
	stand := st.stand[leg]

	lift := float64(st.params.StepHeight) * math.Sin(phase*math.Pi)
	boost := 0.0
	if !leg.IsFront() {
		boost = float64(st.params.RearLiftBoost)
	}

	fwd := float64(st.params.StepLength) * st.strideMult(leg) * st.dirMult() * (phase*2 - 1)

	kneeOffset := -(lift + boost) + fwd*kneeForwardRatio
	ankleOffset := lift*ankleLiftRatio + fwd*ankleForwardRatio

	hipOffset := 0.0
	if st.lateralRate != 0 {
		lateral := lateralStepAngle * st.lateralRate * math.Sin(phase*math.Pi)
		if leg.IsLeft() {
			hipOffset += lateral
		} else {
			hipOffset -= lateral
		}
	}

	return kinematics.LegAngles{
		Hip:   stand.Hip + hipOffset,
		Knee:  stand.Knee + kneeOffset,
		Ankle: stand.Ankle + ankleOffset,
	}
}

// stanceAngles computes a leg's joint targets during the stance phase
// (foot planted, sweeping front to back to push the body forward).
func stanceAngles(st *tickState, phase float64, leg body.Leg) kinematics.LegAngles {
	stand := st.stand[leg]

	fwd := float64(st.params.StepLength) * st.strideMult(leg) * st.dirMult() * (1 - phase*2)

	kneeOffset := fwd * kneeForwardRatio
	ankleOffset := fwd * ankleForwardRatio

	hipOffset := 0.0
	if st.lateralRate != 0 {
		// Mirror of the swing term, fading as the stance completes,
		// pushing the body sideways.
		lateral := lateralStepAngle * st.lateralRate * (1 - phase)
		if leg.IsLeft() {
			hipOffset -= lateral
		} else {
			hipOffset += lateral
		}
	}

	return kinematics.LegAngles{
		Hip:   stand.Hip + hipOffset,
		Knee:  stand.Knee + kneeOffset,
		Ankle: stand.Ankle + ankleOffset,
	}
}

// standAnglesFor computes the baseline stand pose for all legs from a knee
// bend. The ankle leads the knee to keep the foot planted under the body;
// rear legs carry a fixed ankle correction absorbing measured calibration
// asymmetry.
func standAnglesFor(kneeBend int, rearAnkleComp map[body.Leg]int) map[body.Leg]kinematics.LegAngles {
	kneeAngle := 90 - kneeBend
	ankleAngle := 90 + int(float64(kneeBend)*ankleCompensation)

	stand := make(map[body.Leg]kinematics.LegAngles, 4)
	for _, leg := range body.Legs() {
		comp := 0
		if !leg.IsFront() {
			comp = rearAnkleComp[leg]
		}
		stand[leg] = kinematics.LegAngles{
			Hip:   90,
			Knee:  float64(kneeAngle),
			Ankle: float64(ankleAngle + comp),
		}
	}
	return stand
}
