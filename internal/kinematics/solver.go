// Package kinematics defines the contract the gait engine requires from an
// inverse-kinematics solver. The solver itself is an external collaborator;
// this package only fixes the port and provides a mock for development.
package kinematics

import (
	"github.com/relabs-tech/quadruped_computer/internal/body"
)

// Vec3 is a foot position in meters relative to the body origin:
// x forward, y height from body, z lateral.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LegAngles are the three logical joint angles for one leg, degrees.
type LegAngles struct {
	Hip   float64 `json:"hip"`
	Knee  float64 `json:"knee"`
	Ankle float64 `json:"ankle"`
}

// Solver converts foot positions to logical joint angles. All four legs
// must be present in the input; implementations may fail on unreachable
// positions, and the gait engine falls back to angle-mode math when
// they do.
type Solver interface {
	// NeutralFootPositions returns each leg's foot position in the
	// standing pose.
	NeutralFootPositions() map[body.Leg]Vec3

	// FeetToAngles solves all four legs at once.
	FeetToAngles(feet map[body.Leg]Vec3) (map[body.Leg]LegAngles, error)
}
