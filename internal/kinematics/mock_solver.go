package kinematics

import (
	"fmt"

	"github.com/relabs-tech/quadruped_computer/internal/body"
)

// Linearized joint response of the mock leg, degrees per meter of foot
// travel. Rough figures for a 10 cm leg; good enough for development.
const (
	mockLiftGain    = 900.0
	mockForwardGain = 350.0
	mockLateralGain = 300.0
)

// mockSolver is a linearized stand-in for the real IK solver: it maps foot
// deviations from neutral onto joint-angle deviations from the stand pose.
// It lets the IK gait path run end-to-end without the geometry library.
type mockSolver struct {
	bodyHeight float64
	kneeBend   float64
}

// NewMockSolver creates a mock solver for a body standing at the given
// height (meters) with the given knee bend (degrees).
func NewMockSolver(bodyHeight float64, kneeBend float64) Solver {
	return &mockSolver{bodyHeight: bodyHeight, kneeBend: kneeBend}
}

func (m *mockSolver) NeutralFootPositions() map[body.Leg]Vec3 {
	feet := make(map[body.Leg]Vec3, 4)
	for _, leg := range body.Legs() {
		z := 0.05
		if leg.IsLeft() {
			z = -0.05
		}
		feet[leg] = Vec3{X: 0, Y: -m.bodyHeight, Z: z}
	}
	return feet
}

func (m *mockSolver) FeetToAngles(feet map[body.Leg]Vec3) (map[body.Leg]LegAngles, error) {
	neutral := m.NeutralFootPositions()
	out := make(map[body.Leg]LegAngles, len(neutral))

	for _, leg := range body.Legs() {
		pos, ok := feet[leg]
		if !ok {
			return nil, fmt.Errorf("missing foot position for leg %s", leg)
		}
		n := neutral[leg]
		dx := pos.X - n.X
		dy := pos.Y - n.Y
		dz := pos.Z - n.Z

		lateral := dz * mockLateralGain
		if leg.IsLeft() {
			lateral = -lateral
		}

		out[leg] = LegAngles{
			Hip:   90 + lateral,
			Knee:  90 - m.kneeBend - dy*mockLiftGain + dx*mockForwardGain*0.7,
			Ankle: 90 + m.kneeBend*1.3 + dy*mockLiftGain*0.8 + dx*mockForwardGain*0.3,
		}
	}
	return out, nil
}
