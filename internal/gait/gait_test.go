package gait

import (
	"math"
	"testing"

	"github.com/relabs-tech/quadruped_computer/internal/body"
)

func TestSmoothPhase(t *testing.T) {
	if got := smoothPhase(0); got != 0 {
		t.Errorf("smoothPhase(0) = %f, want 0", got)
	}
	if got := smoothPhase(1); math.Abs(got-1) > 1e-9 {
		t.Errorf("smoothPhase(1) = %f, want 1", got)
	}
	if got := smoothPhase(0.5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("smoothPhase(0.5) = %f, want 0.5", got)
	}

	// Monotonic, and slower at the ends than in the middle.
	prev := smoothPhase(0)
	for i := 1; i <= 100; i++ {
		cur := smoothPhase(float64(i) / 100)
		if cur < prev {
			t.Fatalf("smoothPhase decreased at %d/100", i)
		}
		prev = cur
	}
	edge := smoothPhase(0.05) - smoothPhase(0)
	mid := smoothPhase(0.55) - smoothPhase(0.5)
	if edge >= mid {
		t.Errorf("easing must be slower at the edge: edge=%f mid=%f", edge, mid)
	}
}

func TestStandAnglesFor(t *testing.T) {
	stand := standAnglesFor(40, nil)
	for _, leg := range body.Legs() {
		a := stand[leg]
		if a.Hip != 90 {
			t.Errorf("%s hip = %f, want 90", leg, a.Hip)
		}
		if a.Knee != 50 {
			t.Errorf("%s knee = %f, want 50", leg, a.Knee)
		}
		if a.Ankle != 142 {
			t.Errorf("%s ankle = %f, want 142", leg, a.Ankle)
		}
	}

	// Rear ankle compensation is applied to rear legs only.
	stand = standAnglesFor(40, map[body.Leg]int{body.RearLeft: 5, body.RearRight: -3})
	if stand[body.RearLeft].Ankle != 147 || stand[body.RearRight].Ankle != 139 {
		t.Errorf("rear ankle comp not applied: RL=%f RR=%f",
			stand[body.RearLeft].Ankle, stand[body.RearRight].Ankle)
	}
	if stand[body.FrontLeft].Ankle != 142 {
		t.Errorf("front ankle must not carry rear comp: %f", stand[body.FrontLeft].Ankle)
	}
}

func testState(params Params) tickState {
	return tickState{
		params:    params,
		direction: Forward,
		stand:     standAnglesFor(40, nil),
		interp:    1.0,
	}
}

func TestSwingEndpointsMatchStance(t *testing.T) {
	st := testState(DefaultParams(40))

	for _, leg := range body.Legs() {
		stand := st.stand[leg]

		// Swing starts with the leg fully back and ends fully forward;
		// the lift is zero at both ends.
		start := swingAngles(&st, 0, leg)
		end := swingAngles(&st, 1, leg)
		fwd := float64(st.params.StepLength)

		if math.Abs(start.Knee-(stand.Knee-fwd*kneeForwardRatio)) > 1e-9 {
			t.Errorf("%s swing start knee = %f", leg, start.Knee)
		}
		if math.Abs(end.Knee-(stand.Knee+fwd*kneeForwardRatio)) > 1e-9 {
			t.Errorf("%s swing end knee = %f", leg, end.Knee)
		}

		// Stance runs the reverse sweep: its start matches the swing end.
		stanceStart := stanceAngles(&st, 0, leg)
		stanceEnd := stanceAngles(&st, 1, leg)
		if math.Abs(stanceStart.Knee-end.Knee) > 1e-9 {
			t.Errorf("%s stance start %f must pick up where swing ended %f",
				leg, stanceStart.Knee, end.Knee)
		}
		if math.Abs(stanceEnd.Knee-start.Knee) > 1e-9 {
			t.Errorf("%s stance end %f must return to the swing start %f",
				leg, stanceEnd.Knee, start.Knee)
		}
	}
}

func TestSwingLiftPeaksMidPhase(t *testing.T) {
	st := testState(DefaultParams(40))
	stand := st.stand[body.FrontLeft]

	mid := swingAngles(&st, 0.5, body.FrontLeft)
	liftKnee := stand.Knee - float64(st.params.StepHeight)
	if math.Abs(mid.Knee-liftKnee) > 1e-9 {
		t.Errorf("mid-swing knee = %f, want %f", mid.Knee, liftKnee)
	}
	liftAnkle := stand.Ankle + float64(st.params.StepHeight)*ankleLiftRatio
	if math.Abs(mid.Ankle-liftAnkle) > 1e-9 {
		t.Errorf("mid-swing ankle = %f, want %f", mid.Ankle, liftAnkle)
	}
}

func TestRearLiftBoost(t *testing.T) {
	params := DefaultParams(40)
	params.RearLiftBoost = 10
	st := testState(params)

	front := swingAngles(&st, 0.5, body.FrontLeft)
	rear := swingAngles(&st, 0.5, body.RearLeft)
	if math.Abs((front.Knee-rear.Knee)-10) > 1e-9 {
		t.Errorf("rear knee must carry the boost: front=%f rear=%f", front.Knee, rear.Knee)
	}
}

func TestBackwardReversesSweep(t *testing.T) {
	st := testState(DefaultParams(40))
	fwd := swingAngles(&st, 1, body.FrontLeft)

	st.direction = Backward
	bwd := swingAngles(&st, 1, body.FrontLeft)

	stand := st.stand[body.FrontLeft]
	if math.Abs((fwd.Knee-stand.Knee)+(bwd.Knee-stand.Knee)) > 1e-9 {
		t.Errorf("backward must mirror the sweep: fwd=%f bwd=%f", fwd.Knee, bwd.Knee)
	}
}

func TestTurnDifferential(t *testing.T) {
	st := testState(DefaultParams(40))
	st.turnRate = 1 // full right turn

	left := swingAngles(&st, 1, body.FrontLeft)
	right := swingAngles(&st, 1, body.FrontRight)
	standL := st.stand[body.FrontLeft]
	standR := st.stand[body.FrontRight]

	// Left stride halves, right stride grows by half.
	leftSweep := left.Knee - standL.Knee
	rightSweep := right.Knee - standR.Knee
	if math.Abs(rightSweep-3*leftSweep) > 1e-9 {
		t.Errorf("at full turn the outside stride must be 3x the inside: left=%f right=%f",
			leftSweep, rightSweep)
	}
}

func TestLateralHipMirrors(t *testing.T) {
	st := testState(DefaultParams(40))
	st.lateralRate = 1

	left := swingAngles(&st, 0.5, body.FrontLeft)
	right := swingAngles(&st, 0.5, body.FrontRight)
	if math.Abs(left.Hip-(90+lateralStepAngle)) > 1e-9 {
		t.Errorf("left hip at full lateral = %f, want %f", left.Hip, 90+lateralStepAngle)
	}
	if math.Abs(right.Hip-(90-lateralStepAngle)) > 1e-9 {
		t.Errorf("right hip at full lateral = %f, want %f", right.Hip, 90-lateralStepAngle)
	}

	// Stance mirrors the swing push and fades with phase.
	stance := stanceAngles(&st, 0, body.FrontLeft)
	if math.Abs(stance.Hip-(90-lateralStepAngle)) > 1e-9 {
		t.Errorf("left hip stance push = %f, want %f", stance.Hip, 90-lateralStepAngle)
	}
	stanceLate := stanceAngles(&st, 1, body.FrontLeft)
	if math.Abs(stanceLate.Hip-90) > 1e-9 {
		t.Errorf("stance lateral term must fade out: %f", stanceLate.Hip)
	}
}

func TestZeroRatesLeaveHipNeutral(t *testing.T) {
	st := testState(DefaultParams(40))
	for _, phase := range []float64{0, 0.3, 0.7, 1} {
		for _, leg := range body.Legs() {
			if a := swingAngles(&st, phase, leg); a.Hip != 90 {
				t.Errorf("%s hip = %f at phase %f with zero rates", leg, a.Hip, phase)
			}
		}
	}
}

func TestDefaultParamsScaleWithKneeBend(t *testing.T) {
	p := DefaultParams(40)
	if p.StepHeight != 36 || p.StepLength != 20 {
		t.Errorf("DefaultParams(40) = height %d length %d, want 36/20", p.StepHeight, p.StepLength)
	}
	if p.CycleTime != 1.0 || p.Speed != 1.0 {
		t.Errorf("default timing = %f/%f", p.CycleTime, p.Speed)
	}
}
